package dvr

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ManuGH/dvrd/internal/access"
	"github.com/ManuGH/dvrd/internal/channels"
	"github.com/ManuGH/dvrd/internal/config"
	"github.com/ManuGH/dvrd/internal/epg"
	"github.com/ManuGH/dvrd/internal/log"
	"github.com/ManuGH/dvrd/internal/timers"
)

var (
	// ErrInvalidEntry is returned when a create map misses required fields
	// or holds unparseable values.
	ErrInvalidEntry = errors.New("invalid entry")
	// ErrDuplicateEntry is returned when another non-completed entry on the
	// same channel already starts at the same time.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrNotFound is returned by lookups at the API boundary.
	ErrNotFound = errors.New("entry not found")
)

// SettingsStore persists entry records keyed by UUID.
type SettingsStore interface {
	Save(uuid string, conf map[string]any) error
	Remove(uuid string) error
	Each(fn func(uuid string, conf map[string]any)) error
}

// Notifier receives entry lifecycle events and the next-start signal.
type Notifier interface {
	EntryAdded(uuid, status string)
	EntryUpdated(uuid, status string)
	EntryDeleted(uuid string)
	Upcoming(uuid string, start int64)
}

// Options wires the engine's collaborators.
type Options struct {
	Clock    timers.Clock
	Store    SettingsStore
	Notifier Notifier
	Channels *channels.Inventory
	Guide    *epg.Guide
	Profiles *config.Profiles
	Recorder Recorder
	Rules    *Rules
	Registry prometheus.Registerer
}

// Engine owns all DVR entries. Every mutation, timer callback, binder entry
// point and notification dispatch runs under the single engine lock.
type Engine struct {
	mu sync.Mutex

	clock    timers.Clock
	wheel    *timers.Wheel
	store    SettingsStore
	notifier Notifier
	channels *channels.Inventory
	guide    *epg.Guide
	profiles *config.Profiles
	recorder Recorder
	rules    *Rules
	watcher  *Watcher
	metrics  *metrics
	logc     zerolog.Logger

	entries   map[string]*Entry
	byChannel map[string]map[string]*Entry
	byConfig  map[string]map[string]*Entry
	byAutorec map[string]map[string]*Entry
	byTimerec map[string]map[string]*Entry

	upcomingSlot timers.Slot
	lastUpcoming int64
}

// New builds an engine. The returned engine's wheel must be started by the
// caller (Engine.Wheel), or driven manually in tests via RunDue.
func New(opts Options) *Engine {
	eng := &Engine{
		clock:    opts.Clock,
		store:    opts.Store,
		notifier: opts.Notifier,
		channels: opts.Channels,
		guide:    opts.Guide,
		profiles: opts.Profiles,
		recorder: opts.Recorder,
		rules:    opts.Rules,
		metrics:  newMetrics(opts.Registry),
		logc:     log.WithComponent("dvr"),

		entries:   make(map[string]*Entry),
		byChannel: make(map[string]map[string]*Entry),
		byConfig:  make(map[string]map[string]*Entry),
		byAutorec: make(map[string]map[string]*Entry),
		byTimerec: make(map[string]map[string]*Entry),
	}
	eng.wheel = timers.NewWheel(opts.Clock, eng.guarded)
	return eng
}

// Wheel exposes the timer wheel so the caller can run its dispatch loop.
func (eng *Engine) Wheel() *timers.Wheel { return eng.wheel }

// guarded runs fn under the engine lock; it is the wheel's dispatch guard.
func (eng *Engine) guarded(fn func()) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	fn()
}

// Locked runs fn under the engine lock. External collaborators (recorder
// completion, rule engines) re-enter the core through this.
func (eng *Engine) Locked(fn func()) { eng.guarded(fn) }

func indexPut(idx map[string]map[string]*Entry, key string, e *Entry) {
	m, ok := idx[key]
	if !ok {
		m = make(map[string]*Entry)
		idx[key] = m
	}
	m[e.UUID] = e
}

func indexDel(idx map[string]map[string]*Entry, key, uuid string) {
	if m, ok := idx[key]; ok {
		delete(m, uuid)
		if len(m) == 0 {
			delete(idx, key)
		}
	}
}

func (eng *Engine) insertLocked(e *Entry) {
	eng.entries[e.UUID] = e
	if e.ChannelID != "" {
		indexPut(eng.byChannel, e.ChannelID, e)
	}
	indexPut(eng.byConfig, e.ConfigRef, e)
	if e.AutorecID != "" {
		indexPut(eng.byAutorec, e.AutorecID, e)
	}
	if e.TimerecID != "" {
		indexPut(eng.byTimerec, e.TimerecID, e)
	}
}

func (eng *Engine) unlinkLocked(e *Entry) {
	delete(eng.entries, e.UUID)
	if e.ChannelID != "" {
		indexDel(eng.byChannel, e.ChannelID, e.UUID)
	}
	indexDel(eng.byConfig, e.ConfigRef, e.UUID)
	if e.AutorecID != "" {
		indexDel(eng.byAutorec, e.AutorecID, e.UUID)
	}
	if e.TimerecID != "" {
		indexDel(eng.byTimerec, e.TimerecID, e.UUID)
	}
}

// Create builds an entry from a property map, inserts it and arms its timer.
// conf must carry start, stop and a channel reference. An empty id generates
// a fresh UUID.
func (eng *Engine) Create(id string, conf map[string]any) (*Entry, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return eng.createLocked(id, conf, false)
}

func (eng *Engine) createLocked(id string, conf map[string]any, loading bool) (*Entry, error) {
	start, ok := asInt64(conf["start"])
	if !ok {
		return nil, ErrInvalidEntry
	}
	stop, ok := asInt64(conf["stop"])
	if !ok {
		return nil, ErrInvalidEntry
	}
	if asString(conf["channel"]) == "" && asString(conf["channelname"]) == "" {
		return nil, ErrInvalidEntry
	}

	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := eng.entries[id]; exists {
		return nil, ErrDuplicateEntry
	}

	// The window comes straight from the map: loading a finished entry must
	// not run it through the editable-only clamping setters.
	e := &Entry{
		UUID:      id,
		Start:     start,
		Stop:      stop,
		Container: config.ContainerNotSet,
		refcnt:    1,
	}
	rest := make(map[string]any, len(conf))
	for k, v := range conf {
		if k == "start" || k == "stop" {
			continue
		}
		rest[k] = v
	}
	eng.applyConf(e, rest)

	if e.Stop < e.Start {
		e.assignBroadcast(nil)
		return nil, ErrInvalidEntry
	}

	// Two non-completed entries on one channel must not share a start time.
	for _, other := range eng.byChannel[e.ChannelID] {
		if other.Start == e.Start && other.schedState != SchedCompleted {
			e.assignBroadcast(nil)
			return nil, ErrDuplicateEntry
		}
	}

	eng.insertLocked(e)
	eng.setTimerLocked(e)

	if !loading {
		eng.saveLocked(e)
		eng.notifier.EntryAdded(e.UUID, e.schedState.String())
	}
	eng.metrics.observeStates(eng.entries)
	eng.logc.Info().Str("uuid", e.UUID).Str("title", e.Title.Get()).
		Int64("start", e.Start).Str("state", e.schedState.String()).
		Msg("entry created")
	return e, nil
}

// CreateByEvent builds an entry covering the broadcast, carrying over its
// window, titles and identifiers; conf entries override the derived fields.
// A broadcast that already has an entry returns that entry unchanged.
func (eng *Engine) CreateByEvent(b *epg.Broadcast, conf map[string]any) (*Entry, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if e := eng.findByEventLocked(b); e != nil {
		return e, nil
	}
	merged := eng.eventConf(b)
	for k, v := range conf {
		merged[k] = v
	}
	return eng.createLocked("", merged, false)
}

// CreateByAutorec spawns an entry for a broadcast matched by an autorec rule,
// with the rule supplying padding, profile, priority, retention and ownership.
// An airing whose broadcast or episode already has an entry is returned as is;
// the semantic duplicate check still runs at recording start.
func (eng *Engine) CreateByAutorec(rule *AutorecRule, b *epg.Broadcast) (*Entry, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if e := eng.findByEventLocked(b); e != nil {
		return e, nil
	}
	if e := eng.findByEpisodeLocked(b); e != nil {
		return e, nil
	}
	conf := eng.eventConf(b)
	conf["autorec"] = rule.UUID
	conf["config_name"] = rule.Config
	conf["pri"] = rule.Priority
	conf["retention"] = rule.Retention
	conf["owner"] = rule.Owner
	conf["creator"] = rule.Creator
	conf["comment"] = rule.Comment
	if rule.StartExtra != 0 {
		conf["start_extra"] = rule.StartExtra
	}
	if rule.StopExtra != 0 {
		conf["stop_extra"] = rule.StopExtra
	}
	if rule.Directory != "" {
		conf["directory"] = rule.Directory
	}
	return eng.createLocked("", conf, false)
}

// eventConf renders a broadcast as a create map.
func (eng *Engine) eventConf(b *epg.Broadcast) map[string]any {
	conf := map[string]any{
		"channel":   b.ChannelID,
		"start":     b.Start,
		"stop":      b.Stop,
		"broadcast": b.ID,
	}
	if b.DVBEID != 0 {
		conf["dvb_eid"] = b.DVBEID
	}
	if b.GenreCode != 0 {
		conf["content_type"] = b.ContentType()
	}
	if !b.Title.Empty() {
		conf["title"] = b.Title
	}
	if !b.Subtitle.Empty() {
		conf["subtitle"] = b.Subtitle
	}
	if d := b.BestDescription(); !d.Empty() {
		conf["description"] = d
	}
	if b.Episode != nil {
		conf["episode"] = b.Episode.Display()
	}
	return conf
}

// FindByID returns the entry with the given UUID, nil when unknown.
func (eng *Engine) FindByID(id string) *Entry {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return eng.entries[id]
}

// FindByEvent returns the entry bound to the given broadcast, nil when none.
func (eng *Engine) FindByEvent(b *epg.Broadcast) *Entry {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return eng.findByEventLocked(b)
}

func (eng *Engine) findByEventLocked(b *epg.Broadcast) *Entry {
	for _, e := range eng.byChannel[b.ChannelID] {
		if e.Broadcast == b {
			return e
		}
	}
	return nil
}

// FindByEpisode returns an entry on the broadcast's channel bound to an
// airing of the same episode, nil when none.
func (eng *Engine) FindByEpisode(b *epg.Broadcast) *Entry {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return eng.findByEpisodeLocked(b)
}

func (eng *Engine) findByEpisodeLocked(b *epg.Broadcast) *Entry {
	if b.Episode == nil {
		return nil
	}
	for _, e := range eng.byChannel[b.ChannelID] {
		if e.Broadcast != nil && e.Broadcast.Episode == b.Episode {
			return e
		}
	}
	return nil
}

// List returns all entries ordered by start time then UUID.
func (eng *Engine) List() []*Entry {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	out := make([]*Entry, 0, len(eng.entries))
	for _, e := range eng.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// Update applies a property map to an existing entry on behalf of an actor.
// Non-editable entries accept only comment and retention.
func (eng *Engine) Update(actor access.Actor, id string, conf map[string]any) (*Entry, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	e, ok := eng.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !access.CanModify(actor, e.Owner) {
		return nil, access.ErrDenied
	}
	if err := eng.checkSlotFreeLocked(e, conf); err != nil {
		return nil, err
	}

	oldChannel, oldConfig := e.ChannelID, e.ConfigRef
	changed := eng.applyConf(e, stripReadOnly(conf))
	if e.ChannelID != oldChannel {
		indexDel(eng.byChannel, oldChannel, e.UUID)
		if e.ChannelID != "" {
			indexPut(eng.byChannel, e.ChannelID, e)
		}
	}
	if e.ConfigRef != oldConfig {
		indexDel(eng.byConfig, oldConfig, e.UUID)
		indexPut(eng.byConfig, e.ConfigRef, e)
	}
	if changed {
		eng.setTimerLocked(e)
		eng.saveLocked(e)
		eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
	}
	return e, nil
}

// checkSlotFreeLocked rejects an update that would move an editable entry
// onto another non-completed entry's channel and start time, before any
// field is written.
func (eng *Engine) checkSlotFreeLocked(e *Entry, conf map[string]any) error {
	if !e.Editable() {
		return nil
	}
	start := e.Start
	if n, ok := asInt64(conf["start"]); ok {
		start = n
	}
	channel := e.ChannelID
	if id := asString(conf["channel"]); id != "" {
		channel = id
	}
	if start == e.Start && channel == e.ChannelID {
		return nil
	}
	for _, other := range eng.byChannel[channel] {
		if other != e && other.Start == start && other.schedState != SchedCompleted {
			return ErrDuplicateEntry
		}
	}
	return nil
}

// Destroy removes an entry: disarms its timer, unlinks every index, drops the
// broadcast reference and publishes a delete event. persistDelete also removes
// the stored record.
func (eng *Engine) Destroy(id string, persistDelete bool) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	e, ok := eng.entries[id]
	if !ok {
		return ErrNotFound
	}
	eng.destroyLocked(e, persistDelete)
	return nil
}

func (eng *Engine) destroyLocked(e *Entry, persistDelete bool) {
	// A live recording loses its source here; detach the recorder before the
	// entry disappears.
	if e.schedState == SchedRecording {
		e.DontReschedule = true
		eng.stopRecordingLocked(e, StopSourceDeleted)
	}
	eng.wheel.Disarm(&e.slot)
	eng.unlinkLocked(e)
	eng.notifier.EntryDeleted(e.UUID)
	if persistDelete {
		if err := eng.store.Remove(e.UUID); err != nil {
			eng.logc.Error().Err(err).Str("uuid", e.UUID).Msg("remove persisted entry")
		}
	}
	e.assignBroadcast(nil)
	e.refcnt--
	eng.metrics.observeStates(eng.entries)
	eng.kickUpcomingLocked(destroyCoalesce)
	eng.logc.Info().Str("uuid", e.UUID).Msg("entry destroyed")
}

// DestroyByConfig removes every entry referencing the profile. With reattach,
// scheduled entries move to the default profile instead of being destroyed.
func (eng *Engine) DestroyByConfig(configRef string, reattach bool) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	for _, e := range eng.sortedIndexLocked(eng.byConfig[configRef]) {
		if reattach && e.Editable() {
			indexDel(eng.byConfig, e.ConfigRef, e.UUID)
			e.ConfigRef = config.DefaultProfileName
			indexPut(eng.byConfig, e.ConfigRef, e)
			eng.setTimerLocked(e)
			eng.saveLocked(e)
			eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
			continue
		}
		eng.destroyLocked(e, true)
	}
}

// DestroyByChannel removes every entry bound to the channel. Completed
// entries keep their record and only lose the binding, preserving the
// channel name for display.
func (eng *Engine) DestroyByChannel(channelID string) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	for _, e := range eng.sortedIndexLocked(eng.byChannel[channelID]) {
		if e.schedState == SchedCompleted || e.schedState == SchedMissedTime {
			indexDel(eng.byChannel, e.ChannelID, e.UUID)
			e.ChannelID = ""
			eng.saveLocked(e)
			eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
			continue
		}
		eng.destroyLocked(e, true)
	}
}

// sortedIndexLocked snapshots an index in deterministic order so bulk
// operations may mutate it while iterating.
func (eng *Engine) sortedIndexLocked(m map[string]*Entry) []*Entry {
	out := make([]*Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// LoadAll replays every persisted record through create. Records that fail
// validation are logged and skipped.
func (eng *Engine) LoadAll() error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	err := eng.store.Each(func(id string, conf map[string]any) {
		if _, err := eng.createLocked(id, conf, true); err != nil {
			eng.logc.Warn().Err(err).Str("uuid", id).Msg("skipping persisted entry")
		}
	})
	if err != nil {
		return err
	}
	eng.kickUpcomingLocked(scheduleCoalesce)
	return nil
}

// RecorderUpdate lets the capture task mutate recorder-owned fields under the
// engine lock, then persists and publishes the change.
func (eng *Engine) RecorderUpdate(id string, fn func(e *Entry)) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	e, ok := eng.entries[id]
	if !ok {
		return
	}
	fn(e)
	eng.saveLocked(e)
	eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
}

func (eng *Engine) saveLocked(e *Entry) {
	if err := eng.store.Save(e.UUID, eng.saveConf(e)); err != nil {
		eng.logc.Error().Err(err).Str("uuid", e.UUID).Msg("persist entry")
	}
}
