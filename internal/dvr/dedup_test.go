package dvr

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dedupSeq int

// donePrior creates an already-finished entry with a recording file, the kind
// the deduper treats as prior art.
func (h *harness) donePrior(start int64, extra map[string]any) *Entry {
	h.t.Helper()
	dedupSeq++
	conf := map[string]any{
		"channel":  "ch1",
		"title":    "X",
		"start":    start,
		"stop":     start + 1800,
		"filename": fmt.Sprintf("/tmp/prior-%d.mkv", dedupSeq),
	}
	for k, v := range extra {
		conf[k] = v
	}
	e := h.create(conf)
	require.Equal(h.t, SchedCompleted, e.State())
	return e
}

func (h *harness) autorecEntry(mode RecordMode, extra map[string]any) *Entry {
	h.t.Helper()
	require.NoError(h.t, h.rules.PutAutorec(&AutorecRule{UUID: "ar1", Record: mode}))
	now := h.unix()
	conf := map[string]any{
		"channel": "ch1",
		"title":   "X",
		"autorec": "ar1",
		"start":   now + 600,
		"stop":    now + 2400,
	}
	for k, v := range extra {
		conf[k] = v
	}
	return h.create(conf)
}

func (h *harness) dedup(e *Entry) *Entry {
	var got *Entry
	h.eng.Locked(func() { got = h.eng.dedupLocked(e) })
	return got
}

func TestDedupDifferentEpisode(t *testing.T) {
	h := newHarness(t)
	prior := h.donePrior(h.unix()-7200, map[string]any{"episode": "Season 1.Episode 1"})
	e := h.autorecEntry(RecordDifferentEpisode, map[string]any{"episode": "Season 1.Episode 1"})

	assert.Equal(t, prior, h.dedup(e))
	// Same answer twice, the query mutates nothing.
	assert.Equal(t, prior, h.dedup(e))
}

func TestDedupDifferentEpisodeNewEpisodeRecords(t *testing.T) {
	h := newHarness(t)
	h.donePrior(h.unix()-7200, map[string]any{"episode": "Season 1.Episode 1"})
	e := h.autorecEntry(RecordDifferentEpisode, map[string]any{"episode": "Season 1.Episode 2"})

	assert.Nil(t, h.dedup(e))
}

func TestDedupMissingDiscriminatorRecords(t *testing.T) {
	h := newHarness(t)
	h.donePrior(h.unix()-7200, map[string]any{"episode": "Season 1.Episode 1"})
	e := h.autorecEntry(RecordDifferentEpisode, nil)

	assert.Nil(t, h.dedup(e))
}

func TestDedupRecordAll(t *testing.T) {
	h := newHarness(t)
	h.donePrior(h.unix()-7200, map[string]any{"episode": "Season 1.Episode 1"})
	e := h.autorecEntry(RecordAll, map[string]any{"episode": "Season 1.Episode 1"})

	assert.Nil(t, h.dedup(e))
}

func TestDedupDifferentSubtitle(t *testing.T) {
	h := newHarness(t)
	prior := h.donePrior(h.unix()-7200, map[string]any{"subtitle": "Pilot"})
	hit := h.autorecEntry(RecordDifferentSubtitle, map[string]any{"subtitle": "Pilot"})
	assert.Equal(t, prior, h.dedup(hit))
}

func TestDedupDifferentDescription(t *testing.T) {
	h := newHarness(t)
	h.donePrior(h.unix()-7200, map[string]any{"description": "A man walks into a bar."})
	e := h.autorecEntry(RecordDifferentDescription, map[string]any{"description": "Something else entirely."})
	assert.Nil(t, h.dedup(e))
}

func TestDedupOncePerDay(t *testing.T) {
	h := newHarness(t)
	sameDay := h.donePrior(h.unix()-3600, nil)
	e := h.autorecEntry(RecordOncePerDay, nil)
	assert.Equal(t, sameDay, h.dedup(e))
}

func TestDedupOncePerDayPreviousDayRecords(t *testing.T) {
	h := newHarness(t)
	h.donePrior(h.unix()-86400, nil)
	e := h.autorecEntry(RecordOncePerDay, nil)
	assert.Nil(t, h.dedup(e))
}

func TestDedupOncePerWeek(t *testing.T) {
	// Harness clock is a Monday noon; an airing the previous day is Sunday
	// of the prior ISO week, an airing the same morning is the same week.
	h := newHarness(t)
	sameWeek := h.donePrior(h.unix()-3600, nil)
	e := h.autorecEntry(RecordOncePerWeek, nil)
	assert.Equal(t, sameWeek, h.dedup(e))
}

func TestDedupOncePerWeekSundayBoundary(t *testing.T) {
	h := newHarness(t)
	h.donePrior(h.unix()-86400, nil)
	e := h.autorecEntry(RecordOncePerWeek, nil)
	assert.Nil(t, h.dedup(e))
}

func TestDedupSkipsMissedAndErrored(t *testing.T) {
	h := newHarness(t)
	now := h.unix()

	// Missed: finished without a file.
	missed := h.create(map[string]any{
		"channel": "ch1", "title": "X", "episode": "Season 1.Episode 1",
		"start": now - 10800, "stop": now - 9000,
	})
	require.Equal(t, SchedMissedTime, missed.State())

	// Completed but errored.
	h.donePrior(now-7200, map[string]any{
		"episode": "Season 1.Episode 1", "errorcode": int64(StopAborted),
	})

	e := h.autorecEntry(RecordDifferentEpisode, map[string]any{"episode": "Season 1.Episode 1"})
	assert.Nil(t, h.dedup(e))
}

func TestDedupSkipScenario(t *testing.T) {
	h := newHarness(t)
	prior := h.donePrior(h.unix()-86400+3600, map[string]any{"episode": "Season 1.Episode 1"})
	_ = prior
	// Keep the duplicate on the same calendar day irrelevant; episode mode.
	e := h.autorecEntry(RecordDifferentEpisode, map[string]any{"episode": "Season 1.Episode 1"})

	h.advance(600 * time.Second)
	assert.Nil(t, h.eng.FindByID(e.UUID), "duplicate is cancel-deleted at start")
	assert.Contains(t, h.store.removed, e.UUID)
	assert.Empty(t, h.rec.subscribed)
	h.checkInvariants()
}
