// Package epg models the program-guide objects the DVR core observes: a
// Broadcast is an airing of an episode on a channel at a time. The guide
// itself (acquisition, merging) lives outside this repo; the engine only
// needs reference counting, field access and per-channel ordered schedules.
package epg

import (
	"sort"
	"sync"

	"github.com/ManuGH/dvrd/internal/lang"
)

// Broadcast is one airing. Fields are written by the guide before the
// broadcast is published to the DVR and are treated as read-only afterwards;
// a replace (not an in-place mutation) models any later change.
type Broadcast struct {
	ID          uint32
	DVBEID      uint16
	ChannelID   string
	Start       int64 // unix seconds
	Stop        int64
	Title       lang.Str
	Subtitle    lang.Str
	Description lang.Str
	Summary     lang.Str
	Episode     *EpisodeNum
	GenreCode   uint32 // DVB content descriptor, high nibble is the category

	refMu  sync.Mutex
	refcnt int
}

// GetRef takes a reference on the broadcast.
func (b *Broadcast) GetRef() {
	b.refMu.Lock()
	b.refcnt++
	b.refMu.Unlock()
}

// PutRef drops a reference.
func (b *Broadcast) PutRef() {
	b.refMu.Lock()
	b.refcnt--
	b.refMu.Unlock()
}

// RefCount returns the current count; used by invariant checks in tests.
func (b *Broadcast) RefCount() int {
	b.refMu.Lock()
	defer b.refMu.Unlock()
	return b.refcnt
}

// Duration returns stop-start in seconds.
func (b *Broadcast) Duration() int64 { return b.Stop - b.Start }

// ContentType returns the coarse category (genre code / 16).
func (b *Broadcast) ContentType() uint32 { return b.GenreCode / 16 }

// BestDescription picks the first non-empty of description and summary,
// matching how the original feeds entry descriptions.
func (b *Broadcast) BestDescription() lang.Str {
	if !b.Description.Empty() {
		return b.Description
	}
	return b.Summary
}

// Guide is the minimal in-memory guide the engine binds against: broadcasts
// by id plus an ordered schedule per channel.
type Guide struct {
	mu       sync.RWMutex
	byID     map[uint32]*Broadcast
	schedule map[string][]*Broadcast // channel UUID -> sorted by Start
}

func NewGuide() *Guide {
	return &Guide{
		byID:     make(map[uint32]*Broadcast),
		schedule: make(map[string][]*Broadcast),
	}
}

// Add inserts a broadcast into the guide and its channel schedule.
func (g *Guide) Add(b *Broadcast) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byID[b.ID] = b
	sched := append(g.schedule[b.ChannelID], b)
	sort.Slice(sched, func(i, j int) bool { return sched[i].Start < sched[j].Start })
	g.schedule[b.ChannelID] = sched
}

// Remove drops a broadcast from the guide.
func (g *Guide) Remove(b *Broadcast) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.byID, b.ID)
	sched := g.schedule[b.ChannelID]
	for i, s := range sched {
		if s == b {
			g.schedule[b.ChannelID] = append(sched[:i:i], sched[i+1:]...)
			break
		}
	}
}

// ByID looks up a broadcast, nil when unknown.
func (g *Guide) ByID(id uint32) *Broadcast {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byID[id]
}

// ChannelSchedule returns the channel's broadcasts ordered by start time.
func (g *Guide) ChannelSchedule(channelID string) []*Broadcast {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sched := g.schedule[channelID]
	out := make([]*Broadcast, len(sched))
	copy(out, sched)
	return out
}
