package dvr

import (
	"github.com/ManuGH/dvrd/internal/lang"
)

// The property schema maps persisted field names to typed accessors. Create,
// update and the persistence bridge all walk this table instead of branching
// per field, and the field names are bit-stable: they match the settings
// records written by earlier versions.

type fieldKind int

const (
	kindTime fieldKind = iota
	kindInt
	kindU32
	kindU16
	kindS64
	kindBool
	kindStr
	kindLangStr
)

type fieldOpt uint8

const (
	optReadOnly fieldOpt = 1 << iota
	optNoSave
	optHidden
	optDuration
	optSortKey
)

type field struct {
	id   string
	kind fieldKind
	opts fieldOpt
	get  func(eng *Engine, e *Entry) any
	set  func(eng *Engine, e *Entry, v any) bool
}

// Setter helpers. Window and binding fields are frozen once the entry leaves
// the editable states; comment and retention stay settable.

func setI64(dst *int64, v any) bool {
	n, ok := asInt64(v)
	if !ok || *dst == n {
		return false
	}
	*dst = n
	return true
}

func setInt(dst *int, v any) bool {
	n, ok := asInt64(v)
	if !ok || *dst == int(n) {
		return false
	}
	*dst = int(n)
	return true
}

func setU32(dst *uint32, v any) bool {
	n, ok := asInt64(v)
	if !ok || *dst == uint32(n) {
		return false
	}
	*dst = uint32(n)
	return true
}

func setStr(dst *string, v any) bool {
	s := asString(v)
	if *dst == s {
		return false
	}
	*dst = s
	return true
}

func setLang(dst *lang.Str, v any) bool {
	s := asLang(v)
	if s == nil || (*dst).Equal(s) {
		return false
	}
	*dst = s
	return true
}

var entryFields = []field{
	{id: "start", kind: kindTime, opts: optSortKey,
		get: func(_ *Engine, e *Entry) any { return e.Start },
		set: func(_ *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			return setI64(&e.Start, v)
		}},
	{id: "stop", kind: kindTime, opts: optDuration,
		get: func(_ *Engine, e *Entry) any { return e.Stop },
		set: func(eng *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			n, ok := asInt64(v)
			if !ok {
				return false
			}
			if now := eng.clock.Now().Unix(); n < now {
				n = now
			}
			if n < e.Start {
				n = e.Start
			}
			if e.Stop == n {
				return false
			}
			e.Stop = n
			return true
		}},
	{id: "start_extra", kind: kindS64,
		get: func(_ *Engine, e *Entry) any { return e.StartExtra },
		set: func(_ *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			return setI64(&e.StartExtra, v)
		}},
	{id: "stop_extra", kind: kindS64,
		get: func(_ *Engine, e *Entry) any { return e.StopExtra },
		set: func(_ *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			return setI64(&e.StopExtra, v)
		}},
	{id: "channel", kind: kindStr,
		get: func(_ *Engine, e *Entry) any { return e.ChannelID },
		set: func(eng *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			id := asString(v)
			if id == "" || e.ChannelID == id {
				return false
			}
			e.ChannelID = id
			if ch := eng.channels.ByUUID(id); ch != nil {
				e.ChannelName = ch.Name
			}
			return true
		}},
	{id: "channelname", kind: kindStr,
		get: func(_ *Engine, e *Entry) any { return e.ChannelName },
		set: func(eng *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			name := asString(v)
			changed := setStr(&e.ChannelName, v)
			if e.ChannelID == "" && name != "" {
				if ch := eng.channels.ByName(name); ch != nil {
					e.ChannelID = ch.UUID
					changed = true
				}
			}
			return changed
		}},
	{id: "title", kind: kindLangStr, opts: optSortKey,
		get: func(_ *Engine, e *Entry) any { return e.Title },
		set: func(_ *Engine, e *Entry, v any) bool { return setLang(&e.Title, v) }},
	{id: "subtitle", kind: kindLangStr,
		get: func(_ *Engine, e *Entry) any { return e.Subtitle },
		set: func(_ *Engine, e *Entry, v any) bool { return setLang(&e.Subtitle, v) }},
	{id: "description", kind: kindLangStr,
		get: func(_ *Engine, e *Entry) any { return e.Description },
		set: func(_ *Engine, e *Entry, v any) bool { return setLang(&e.Description, v) }},
	{id: "pri", kind: kindInt,
		get: func(_ *Engine, e *Entry) any { return int64(e.Priority) },
		set: func(_ *Engine, e *Entry, v any) bool { return setInt(&e.Priority, v) }},
	{id: "retention", kind: kindS64,
		get: func(_ *Engine, e *Entry) any { return e.Retention },
		set: func(_ *Engine, e *Entry, v any) bool { return setI64(&e.Retention, v) }},
	{id: "container", kind: kindInt,
		get: func(_ *Engine, e *Entry) any { return int64(e.Container) },
		set: func(_ *Engine, e *Entry, v any) bool { return setInt(&e.Container, v) }},
	{id: "config_name", kind: kindStr,
		get: func(_ *Engine, e *Entry) any { return e.ConfigRef },
		set: func(_ *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			return setStr(&e.ConfigRef, v)
		}},
	{id: "owner", kind: kindStr,
		get: func(_ *Engine, e *Entry) any { return e.Owner },
		set: func(_ *Engine, e *Entry, v any) bool { return setStr(&e.Owner, v) }},
	{id: "creator", kind: kindStr,
		get: func(_ *Engine, e *Entry) any { return e.Creator },
		set: func(_ *Engine, e *Entry, v any) bool { return setStr(&e.Creator, v) }},
	{id: "comment", kind: kindStr,
		get: func(_ *Engine, e *Entry) any { return e.Comment },
		set: func(_ *Engine, e *Entry, v any) bool { return setStr(&e.Comment, v) }},
	{id: "filename", kind: kindStr, opts: optReadOnly,
		get: func(_ *Engine, e *Entry) any { return e.Filename },
		set: func(_ *Engine, e *Entry, v any) bool { return setStr(&e.Filename, v) }},
	{id: "directory", kind: kindStr, opts: optReadOnly,
		get: func(_ *Engine, e *Entry) any { return e.Directory },
		set: func(_ *Engine, e *Entry, v any) bool { return setStr(&e.Directory, v) }},
	{id: "errorcode", kind: kindInt, opts: optReadOnly,
		get: func(_ *Engine, e *Entry) any { return int64(e.ErrorCode) },
		set: func(_ *Engine, e *Entry, v any) bool { return setInt(&e.ErrorCode, v) }},
	{id: "errors", kind: kindU32, opts: optReadOnly,
		get: func(_ *Engine, e *Entry) any { return int64(e.Errors) },
		set: func(_ *Engine, e *Entry, v any) bool { return setU32(&e.Errors, v) }},
	{id: "data_errors", kind: kindU32, opts: optReadOnly,
		get: func(_ *Engine, e *Entry) any { return int64(e.DataErrors) },
		set: func(_ *Engine, e *Entry, v any) bool { return setU32(&e.DataErrors, v) }},
	{id: "dvb_eid", kind: kindU16,
		get: func(_ *Engine, e *Entry) any { return int64(e.DVBEID) },
		set: func(_ *Engine, e *Entry, v any) bool {
			n, ok := asInt64(v)
			if !ok || e.DVBEID == uint16(n) {
				return false
			}
			e.DVBEID = uint16(n)
			return true
		}},
	{id: "noresched", kind: kindBool, opts: optHidden,
		get: func(_ *Engine, e *Entry) any { return e.DontReschedule },
		set: func(_ *Engine, e *Entry, v any) bool {
			b := asBool(v)
			if e.DontReschedule == b {
				return false
			}
			e.DontReschedule = b
			return true
		}},
	{id: "autorec", kind: kindStr, opts: optHidden,
		get: func(_ *Engine, e *Entry) any { return e.AutorecID },
		set: func(_ *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			return setStr(&e.AutorecID, v)
		}},
	{id: "timerec", kind: kindStr, opts: optHidden,
		get: func(_ *Engine, e *Entry) any { return e.TimerecID },
		set: func(_ *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			return setStr(&e.TimerecID, v)
		}},
	{id: "content_type", kind: kindU32,
		get: func(_ *Engine, e *Entry) any { return int64(e.ContentType) },
		set: func(_ *Engine, e *Entry, v any) bool { return setU32(&e.ContentType, v) }},
	{id: "broadcast", kind: kindU32,
		get: func(_ *Engine, e *Entry) any {
			if e.Broadcast == nil {
				return nil
			}
			return int64(e.Broadcast.ID)
		},
		set: func(eng *Engine, e *Entry, v any) bool {
			if !e.Editable() {
				return false
			}
			n, ok := asInt64(v)
			if !ok {
				return false
			}
			b := eng.guide.ByID(uint32(n))
			if b == nil || e.Broadcast == b {
				return false
			}
			e.assignBroadcast(b)
			return true
		}},
	{id: "episode", kind: kindStr,
		get: func(_ *Engine, e *Entry) any { return e.Episode },
		set: func(_ *Engine, e *Entry, v any) bool { return setStr(&e.Episode, v) }},

	// Derived read-only fields exposed to the API but never persisted.
	{id: "duration", kind: kindS64, opts: optReadOnly | optNoSave | optDuration,
		get: func(_ *Engine, e *Entry) any { return e.Duration() }},
	{id: "status", kind: kindStr, opts: optReadOnly | optNoSave,
		get: func(eng *Engine, e *Entry) any { return eng.Status(e) }},
	{id: "filesize", kind: kindS64, opts: optReadOnly | optNoSave,
		get: func(_ *Engine, e *Entry) any { return e.FileSize() }},
}

var fieldByID = func() map[string]*field {
	m := make(map[string]*field, len(entryFields))
	for i := range entryFields {
		m[entryFields[i].id] = &entryFields[i]
	}
	return m
}()

// applyConf walks the schema over a property map, reporting whether any field
// changed. Unknown keys are ignored.
func (eng *Engine) applyConf(e *Entry, conf map[string]any) bool {
	changed := false
	// Channel references resolve before the window so the stop clamp and
	// uniqueness checks see the binding; the rest applies in schema order.
	for _, id := range []string{"channel", "channelname"} {
		if v, ok := conf[id]; ok {
			if fieldByID[id].set(eng, e, v) {
				changed = true
			}
		}
	}
	for i := range entryFields {
		f := &entryFields[i]
		if f.set == nil || f.id == "channel" || f.id == "channelname" {
			continue
		}
		v, ok := conf[f.id]
		if !ok {
			continue
		}
		if f.set(eng, e, v) {
			changed = true
		}
	}
	return changed
}

// stripReadOnly drops fields external callers may not write.
func stripReadOnly(conf map[string]any) map[string]any {
	out := make(map[string]any, len(conf))
	for k, v := range conf {
		if f, ok := fieldByID[k]; ok && f.opts&optReadOnly != 0 {
			continue
		}
		out[k] = v
	}
	return out
}

// saveConf emits the persisted property map: every schema field not marked
// no-save, under its bit-stable name.
func (eng *Engine) saveConf(e *Entry) map[string]any {
	out := make(map[string]any, len(entryFields))
	for i := range entryFields {
		f := &entryFields[i]
		if f.opts&optNoSave != 0 {
			continue
		}
		v := f.get(eng, e)
		if v == nil {
			continue
		}
		out[f.id] = v
	}
	return out
}

// Props renders the full property map for the API, derived fields included.
func (eng *Engine) Props(e *Entry) map[string]any {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	out := make(map[string]any, len(entryFields))
	for i := range entryFields {
		f := &entryFields[i]
		if f.opts&optHidden != 0 {
			continue
		}
		if v := f.get(eng, e); v != nil {
			out[f.id] = v
		}
	}
	return out
}

// Loose value coercion: property maps arrive both from API JSON (float64
// numbers) and typed Go callers.

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return false
	}
}

func asLang(v any) lang.Str {
	switch x := v.(type) {
	case lang.Str:
		return x.Copy()
	case map[string]string:
		out := make(lang.Str, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	case map[string]any:
		out := make(lang.Str, len(x))
		for k, s := range x {
			out[k] = asString(s)
		}
		return out
	case string:
		if x == "" {
			return nil
		}
		return lang.New(x, "")
	default:
		return nil
	}
}
