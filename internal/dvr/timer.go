package dvr

import (
	"time"
)

// Coalesce delays for the next-start signal. Schedule churn batches into one
// emission; destruction reacts a little faster so the UI drops stale rows.
const (
	scheduleCoalesce = 5 * time.Second
	destroyCoalesce  = 2 * time.Second
)

// setTimerLocked is the reconciler. It runs after any mutation that affects
// scheduling and moves the entry to the state the wall clock dictates,
// arming exactly one timer.
func (eng *Engine) setTimerLocked(e *Entry) {
	now := eng.clock.Now().Unix()
	switch {
	case e.DontReschedule || now >= eng.EffectiveStop(e):
		if e.schedState == SchedRecording {
			eng.stopRecordingLocked(e, StopOK)
			return
		}
		eng.finishLocked(e)
	case e.schedState == SchedRecording:
		eng.wheel.ArmAbs(&e.slot, func() { eng.stopRecordingLocked(e, StopOK) },
			time.Unix(eng.EffectiveStop(e), 0))
	case eng.channelEnabledLocked(e):
		e.schedState = SchedScheduled
		eng.wheel.ArmAbs(&e.slot, func() { eng.startRecordingLocked(e) },
			time.Unix(eng.EffectiveStart(e), 0))
		eng.kickUpcomingLocked(scheduleCoalesce)
	default:
		e.schedState = SchedNostate
		eng.wheel.Disarm(&e.slot)
	}
	eng.metrics.observeStates(eng.entries)
}

func (eng *Engine) channelEnabledLocked(e *Entry) bool {
	ch := eng.channels.ByUUID(e.ChannelID)
	return ch != nil && ch.Enabled
}

// finishLocked settles an entry whose window has passed: missed when no file
// was ever produced, completed otherwise. The expire timer takes over.
func (eng *Engine) finishLocked(e *Entry) {
	prev := e.schedState
	if e.Filename == "" {
		e.schedState = SchedMissedTime
	} else {
		e.schedState = SchedCompleted
		if eng.watcher != nil {
			eng.watcher.Add(e.Filename)
		}
	}
	eng.armExpireLocked(e)
	if prev != e.schedState {
		eng.saveLocked(e)
		eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
	}
}

func (eng *Engine) armExpireLocked(e *Entry) {
	when := e.Stop + eng.RetentionDays(e)*86400
	eng.wheel.ArmAbs(&e.slot, func() { eng.destroyLocked(e, true) }, time.Unix(when, 0))
}

// startRecordingLocked fires at effective start.
func (eng *Engine) startRecordingLocked(e *Entry) {
	if !eng.channelEnabledLocked(e) {
		e.schedState = SchedNostate
		eng.metrics.observeStates(eng.entries)
		return
	}
	if e.AutorecID != "" {
		if d := eng.dedupLocked(e); d != nil {
			eng.metrics.dedupSkips.Inc()
			eng.logc.Info().Str("uuid", e.UUID).Str("duplicate_of", d.UUID).
				Str("title", e.Title.Get()).Msg("skipping duplicate recording")
			eng.cancelDeleteLocked(e)
			return
		}
	}

	e.schedState = SchedRecording
	e.recState = RecPending
	eng.saveLocked(e)
	eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
	eng.metrics.recordingsStarted.Inc()
	eng.recorder.Subscribe(e)
	eng.wheel.ArmAbs(&e.slot, func() { eng.stopRecordingLocked(e, StopOK) },
		time.Unix(eng.EffectiveStop(e), 0))
	eng.metrics.observeStates(eng.entries)
	eng.logc.Info().Str("uuid", e.UUID).Str("title", e.Title.Get()).Msg("recording started")
}

// stopRecordingLocked ends a recording: missed when the recorder never got
// past waiting or produced no file, completed otherwise.
func (eng *Engine) stopRecordingLocked(e *Entry, code StopCode) {
	if e.schedState != SchedRecording {
		return
	}
	eng.wheel.Disarm(&e.slot)
	if e.recState == RecPending || e.recState == RecWaitProgramStart || e.Filename == "" {
		e.schedState = SchedMissedTime
		eng.metrics.recordingsFinished.WithLabelValues("missed").Inc()
	} else {
		e.schedState = SchedCompleted
		if code != StopOK && e.ErrorCode == int(StopOK) {
			e.ErrorCode = int(code)
		}
		if eng.watcher != nil {
			eng.watcher.Add(e.Filename)
		}
		eng.metrics.recordingsFinished.WithLabelValues("completed").Inc()
	}
	eng.recorder.Unsubscribe(e, code)
	eng.saveLocked(e)
	eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
	eng.armExpireLocked(e)
	eng.metrics.observeStates(eng.entries)
	eng.logc.Info().Str("uuid", e.UUID).Str("state", e.schedState.String()).
		Int("code", int(code)).Msg("recording stopped")
}

// Cancel aborts an entry. Scheduled entries are destroyed; a running
// recording is force-stopped and kept as completed, pinned so a later guide
// update cannot resurrect it. Finished entries are untouched.
func (eng *Engine) Cancel(id string) (*Entry, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	e, ok := eng.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	switch e.schedState {
	case SchedScheduled, SchedNostate:
		eng.destroyLocked(e, true)
		return nil, nil
	case SchedRecording:
		e.DontReschedule = true
		eng.stopRecordingLocked(e, StopAborted)
		return e, nil
	default:
		return e, nil
	}
}

// CancelDelete aborts an entry and removes every trace: the recording file,
// the persisted record and the entry itself.
func (eng *Engine) CancelDelete(id string) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	e, ok := eng.entries[id]
	if !ok {
		return ErrNotFound
	}
	eng.cancelDeleteLocked(e)
	return nil
}

func (eng *Engine) cancelDeleteLocked(e *Entry) {
	if e.schedState == SchedRecording {
		e.DontReschedule = true
		eng.stopRecordingLocked(e, StopAborted)
	}
	eng.removeArtifactsLocked(e)
	eng.destroyLocked(e, true)
}

// kickUpcomingLocked (re)arms the module-scope next-start timer.
func (eng *Engine) kickUpcomingLocked(delay time.Duration) {
	eng.wheel.ArmAbs(&eng.upcomingSlot, eng.emitUpcomingLocked, eng.clock.Now().Add(delay))
}

// emitUpcomingLocked publishes the earliest effective start strictly in the
// future among scheduled entries, suppressing repeats.
func (eng *Engine) emitUpcomingLocked() {
	now := eng.clock.Now().Unix()
	var best *Entry
	var bestStart int64
	for _, e := range eng.entries {
		if e.schedState != SchedScheduled {
			continue
		}
		s := eng.EffectiveStart(e)
		if s <= now {
			continue
		}
		if best == nil || s < bestStart || (s == bestStart && e.UUID < best.UUID) {
			best, bestStart = e, s
		}
	}
	var id string
	if best != nil {
		id = best.UUID
	}
	if bestStart == eng.lastUpcoming {
		return
	}
	eng.lastUpcoming = bestStart
	eng.notifier.Upcoming(id, bestStart)
}
