package dvr

import "time"

// dedupLocked runs at recording start for autorec-created entries. It returns
// an earlier entry that makes this one redundant under the rule's record
// mode, or nil. The scan mutates nothing, so asking twice gives the same
// answer.
func (eng *Engine) dedupLocked(e *Entry) *Entry {
	rule := eng.rules.Autorec(e.AutorecID)
	if rule == nil {
		return nil
	}
	mode := rule.Record
	if mode == RecordAll {
		return nil
	}
	// A missing discriminator means we cannot prove equivalence; record.
	switch mode {
	case RecordDifferentEpisode:
		if e.Episode == "" {
			return nil
		}
	case RecordDifferentSubtitle:
		if e.Subtitle.Empty() {
			return nil
		}
	case RecordDifferentDescription:
		if e.Description.Empty() {
			return nil
		}
	}
	if e.Title.Empty() {
		return nil
	}

	for _, d := range eng.sortedIndexLocked(eng.entries) {
		if d == e || d.Start > e.Start {
			continue
		}
		if d.schedState == SchedMissedTime {
			continue
		}
		if d.schedState == SchedCompleted && d.ErrorCode != int(StopOK) {
			continue
		}
		if !d.Title.SameText(e.Title) {
			continue
		}
		switch mode {
		case RecordDifferentEpisode:
			if d.Episode == e.Episode {
				return d
			}
		case RecordDifferentSubtitle:
			if d.Subtitle.SameText(e.Subtitle) {
				return d
			}
		case RecordDifferentDescription:
			if d.Description.SameText(e.Description) {
				return d
			}
		case RecordOncePerWeek:
			if sameLocalWeek(d.Start, e.Start) {
				return d
			}
		case RecordOncePerDay:
			if sameLocalDay(d.Start, e.Start) {
				return d
			}
		}
	}
	return nil
}

// sameLocalWeek compares ISO weeks (Monday through Sunday) in local time by
// rewinding each instant to its week's Monday.
func sameLocalWeek(a, b int64) bool {
	return weekAnchor(a) == weekAnchor(b)
}

func weekAnchor(ts int64) [2]int {
	t := time.Unix(ts, 0).Local()
	t = t.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
	return [2]int{t.Year(), t.YearDay()}
}

func sameLocalDay(a, b int64) bool {
	ya, ma, da := time.Unix(a, 0).Local().Date()
	yb, mb, db := time.Unix(b, 0).Local().Date()
	return ya == yb && ma == mb && da == db
}
