// Package dvr is the recording-entry engine: it owns the authoritative set of
// scheduled, running, completed and expired recordings, drives each entry's
// lifecycle with wall-clock timers, keeps entries bound to a mutable program
// guide, deduplicates rule-created recordings and persists every change.
package dvr

import (
	"github.com/ManuGH/dvrd/internal/epg"
	"github.com/ManuGH/dvrd/internal/lang"
	"github.com/ManuGH/dvrd/internal/timers"
)

// SchedState is the coarse lifecycle state of an entry.
type SchedState int

const (
	SchedNostate SchedState = iota
	SchedScheduled
	SchedRecording
	SchedCompleted
	SchedMissedTime
)

func (s SchedState) String() string {
	switch s {
	case SchedScheduled:
		return "scheduled"
	case SchedRecording:
		return "recording"
	case SchedCompleted:
		return "completed"
	case SchedMissedTime:
		return "missed"
	default:
		return "nostate"
	}
}

// RecState refines SchedRecording while the recorder is attached.
type RecState int

const (
	RecPending RecState = iota
	RecWaitProgramStart
	RecRunning
	RecCommercial
	RecError
)

// Priority levels, most to least important. PriorityNotSet defers to the
// tuner scheduler's default.
const (
	PriorityImportant = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityUnimportant
	PriorityNotSet = 6
)

// PriorityName returns the display name of a priority level.
func PriorityName(pri int) string {
	switch pri {
	case PriorityImportant:
		return "important"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityUnimportant:
		return "unimportant"
	default:
		return "not set"
	}
}

// ExtraUnset marks start_extra/stop_extra as "inherit from channel or
// profile". A plain 0 means the same thing; -1 survives round-trips where 0
// would be ambiguous with "no padding".
const ExtraUnset = -1

// recordingLead is subtracted from every effective start so the receiver has
// time to lock onto the service before the program begins.
const recordingLead = 30

// Entry is one recording record. All fields are guarded by the engine lock;
// the recorder mutates Filename, Directory, recState and the error counters
// through Engine.RecorderUpdate only.
type Entry struct {
	UUID string

	Start      int64 // unix seconds
	Stop       int64
	StartExtra int64 // minutes, 0 or ExtraUnset inherits
	StopExtra  int64

	ChannelID   string
	ChannelName string // survives channel deletion for display
	Broadcast   *epg.Broadcast
	DVBEID      uint16
	AutorecID   string
	TimerecID   string

	Title       lang.Str
	Subtitle    lang.Str
	Description lang.Str
	Episode     string // long discriminator form, "Season 3.Episode 4"
	ContentType uint32

	Priority  int
	Retention int64 // days, 0 inherits
	Container int
	ConfigRef string // profile name or UUID

	Owner   string
	Creator string
	Comment string

	Filename   string
	Directory  string
	ErrorCode  int
	Errors     uint32
	DataErrors uint32

	DontReschedule bool

	schedState SchedState
	recState   RecState
	refcnt     int
	slot       timers.Slot
}

// State returns the entry's lifecycle state.
func (e *Entry) State() SchedState { return e.schedState }

// RecState returns the recorder substate, meaningful only while recording.
func (e *Entry) RecState() RecState { return e.recState }

// Editable reports whether binding and window fields may still change.
// Entries that started recording, completed or missed are frozen except for
// comment and retention.
func (e *Entry) Editable() bool {
	return e.schedState == SchedScheduled || e.schedState == SchedNostate
}

// Duration is the scheduled program length in seconds, without padding.
func (e *Entry) Duration() int64 { return e.Stop - e.Start }

// RefCount is exposed for invariant checks in tests.
func (e *Entry) RefCount() int { return e.refcnt }

// extraTimePre resolves the pre-padding minutes: timerec entries record the
// exact window, then entry value, channel value, profile value.
func (eng *Engine) extraTimePre(e *Entry) int64 {
	if e.TimerecID != "" {
		return 0
	}
	if e.StartExtra != 0 && e.StartExtra != ExtraUnset {
		return e.StartExtra
	}
	if ch := eng.channels.ByUUID(e.ChannelID); ch != nil {
		if ch.ExtraTimePre != 0 && ch.ExtraTimePre != ExtraUnset {
			return ch.ExtraTimePre
		}
	}
	return eng.profiles.Resolve(e.ConfigRef).ExtraTimePre
}

func (eng *Engine) extraTimePost(e *Entry) int64 {
	if e.TimerecID != "" {
		return 0
	}
	if e.StopExtra != 0 && e.StopExtra != ExtraUnset {
		return e.StopExtra
	}
	if ch := eng.channels.ByUUID(e.ChannelID); ch != nil {
		if ch.ExtraTimePost != 0 && ch.ExtraTimePost != ExtraUnset {
			return ch.ExtraTimePost
		}
	}
	return eng.profiles.Resolve(e.ConfigRef).ExtraTimePost
}

// EffectiveStart is start minus padding minus the fixed receiver lead.
func (eng *Engine) EffectiveStart(e *Entry) int64 {
	return e.Start - 60*eng.extraTimePre(e) - recordingLead
}

// EffectiveStop is stop plus padding.
func (eng *Engine) EffectiveStop(e *Entry) int64 {
	return e.Stop + 60*eng.extraTimePost(e)
}

// ContainerOf resolves the output container, falling back to the profile.
func (eng *Engine) ContainerOf(e *Entry) int {
	if e.Container >= 0 {
		return e.Container
	}
	return eng.profiles.Resolve(e.ConfigRef).Container
}

// RetentionDays resolves the retention period, falling back to the profile.
func (eng *Engine) RetentionDays(e *Entry) int64 {
	if e.Retention > 0 {
		return e.Retention
	}
	return eng.profiles.Resolve(e.ConfigRef).RetentionDays
}

// assignBroadcast rebinds the entry, moving the reference it holds.
func (e *Entry) assignBroadcast(b *epg.Broadcast) {
	if e.Broadcast == b {
		return
	}
	if e.Broadcast != nil {
		e.Broadcast.PutRef()
	}
	e.Broadcast = b
	if b != nil {
		b.GetRef()
	}
}
