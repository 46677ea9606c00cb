package dvr

import (
	"github.com/ManuGH/dvrd/internal/epg"
)

// EventUpdated reacts to a guide broadcast changing in place. A bound entry
// takes the new fields; otherwise an unbound scheduled entry on the same
// channel may claim the broadcast through the fuzzy match.
func (eng *Engine) EventUpdated(b *epg.Broadcast) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if e := eng.findByEventLocked(b); e != nil {
		eng.updateFromBroadcastLocked(e, b)
		return
	}
	for _, e := range eng.sortedIndexLocked(eng.byChannel[b.ChannelID]) {
		if e.schedState != SchedScheduled || e.Broadcast != nil {
			continue
		}
		if eng.fuzzyMatchLocked(e, b) {
			e.assignBroadcast(b)
			eng.metrics.rebinds.Inc()
			eng.logc.Info().Str("uuid", e.UUID).Uint32("broadcast", b.ID).
				Msg("bound entry to updated broadcast")
			eng.updateFromBroadcastLocked(e, b)
			return
		}
	}
}

// EventReplaced reacts to the guide swapping a broadcast for a new object.
// Rule-created entries are destroyed and left for the rule engine to
// recreate; manual entries keep their identity and try to rebind.
func (eng *Engine) EventReplaced(old, repl *epg.Broadcast) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	e := eng.findByEventLocked(old)
	if e == nil {
		return
	}
	if e.schedState != SchedScheduled {
		return
	}
	e.assignBroadcast(nil)
	if e.AutorecID != "" {
		eng.logc.Info().Str("uuid", e.UUID).Msg("broadcast replaced, dropping rule entry")
		eng.destroyLocked(e, true)
		return
	}
	for _, b := range eng.guide.ChannelSchedule(e.ChannelID) {
		if eng.fuzzyMatchLocked(e, b) {
			e.assignBroadcast(b)
			eng.metrics.rebinds.Inc()
			eng.logc.Info().Str("uuid", e.UUID).Uint32("broadcast", b.ID).
				Msg("rebound entry after broadcast replace")
			eng.updateFromBroadcastLocked(e, b)
			return
		}
	}
	eng.saveLocked(e)
	eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
}

// updateFromBroadcastLocked propagates broadcast fields into the entry. The
// window follows the broadcast while the entry is still editable; a window
// change re-runs the reconciler.
func (eng *Engine) updateFromBroadcastLocked(e *Entry, b *epg.Broadcast) {
	changed, windowChanged := false, false
	if e.Editable() {
		if e.Start != b.Start {
			e.Start = b.Start
			changed, windowChanged = true, true
		}
		if e.Stop != b.Stop {
			e.Stop = b.Stop
			changed, windowChanged = true, true
		}
	}
	if !b.Title.Empty() && !e.Title.Equal(b.Title) {
		e.Title = b.Title.Copy()
		changed = true
	}
	if !b.Subtitle.Empty() && !e.Subtitle.Equal(b.Subtitle) {
		e.Subtitle = b.Subtitle.Copy()
		changed = true
	}
	if desc := b.BestDescription(); !desc.Empty() && !e.Description.Equal(desc) {
		e.Description = desc.Copy()
		changed = true
	}
	if b.DVBEID != 0 && e.DVBEID != b.DVBEID {
		e.DVBEID = b.DVBEID
		changed = true
	}
	if ct := b.ContentType(); ct != 0 && e.ContentType != ct {
		e.ContentType = ct
		changed = true
	}
	if ep := b.Episode.Display(); ep != "" && e.Episode != ep {
		e.Episode = ep
		changed = true
	}
	if windowChanged {
		eng.setTimerLocked(e)
	}
	if changed {
		eng.saveLocked(e)
		eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
	}
}

// fuzzyMatchLocked decides whether a broadcast is the same program the entry
// was scheduled for: either the DVB event id matches, or title plus duration
// within 20 percent plus start within the profile's update window, and a
// matching episode discriminator when the entry carries one.
func (eng *Engine) fuzzyMatchLocked(e *Entry, b *epg.Broadcast) bool {
	if e.DVBEID != 0 && e.DVBEID == b.DVBEID {
		return true
	}
	if !e.Title.SameText(b.Title) {
		return false
	}
	dur := e.Duration()
	if diff := b.Duration() - dur; diff > dur/5 || diff < -dur/5 {
		return false
	}
	window := eng.profiles.Resolve(e.ConfigRef).UpdateWindow
	if drift := b.Start - e.Start; drift > window || drift < -window {
		return false
	}
	if e.Episode != "" && b.Episode.Display() != e.Episode {
		return false
	}
	return true
}
