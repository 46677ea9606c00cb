// Package timers provides absolute wall-clock callbacks with one armed timer
// per slot. Arming a slot replaces any prior arming, disarming is idempotent,
// and every callback runs inside the guard function supplied by the owner, so
// all fires are serialized under the owner's lock. A generation counter on the
// slot lets a callback that was dispatched but not yet guarded detect that its
// slot has been re-armed or disarmed in the meantime.
package timers

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/dvrd/internal/log"
)

// Slot is the single timer slot embedded in an entry. Its fields are guarded
// by the owner's lock (the same lock the Wheel's guard function acquires).
type Slot struct {
	gen   uint64
	when  time.Time
	armed bool
}

// Armed reports whether the slot currently has a pending callback.
func (s *Slot) Armed() bool { return s.armed }

// When returns the absolute fire time of the armed callback, zero if disarmed.
func (s *Slot) When() time.Time {
	if !s.armed {
		return time.Time{}
	}
	return s.when
}

type armed struct {
	slot *Slot
	gen  uint64
	when time.Time
	cb   func()
	seq  uint64 // insertion order, stable tie-break
}

type armedHeap []*armed

func (h armedHeap) Len() int { return len(h) }
func (h armedHeap) Less(i, j int) bool {
	if !h[i].when.Equal(h[j].when) {
		return h[i].when.Before(h[j].when)
	}
	return h[i].seq < h[j].seq
}
func (h armedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *armedHeap) Push(x any)        { *h = append(*h, x.(*armed)) }
func (h *armedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Wheel dispatches armed slots in non-decreasing fire-time order.
type Wheel struct {
	clock Clock
	guard func(func())
	logc  zerolog.Logger

	mu   sync.Mutex
	heap armedHeap
	seq  uint64
	wake chan struct{}
}

// NewWheel builds a wheel. guard must acquire the owner's global lock, run the
// given function, and release the lock; it is invoked for every callback fire.
func NewWheel(clock Clock, guard func(func())) *Wheel {
	return &Wheel{
		clock: clock,
		guard: guard,
		logc:  log.WithComponent("timers"),
		wake:  make(chan struct{}, 1),
	}
}

// ArmAbs arms the slot to fire cb at the absolute instant when, replacing any
// prior arming. A fire time at or before now fires on the next dispatch pass.
// Caller must hold the owner's lock.
func (w *Wheel) ArmAbs(slot *Slot, cb func(), when time.Time) {
	slot.gen++
	slot.when = when
	slot.armed = true

	w.mu.Lock()
	w.seq++
	heap.Push(&w.heap, &armed{slot: slot, gen: slot.gen, when: when, cb: cb, seq: w.seq})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Disarm cancels any pending callback on the slot. Idempotent. Caller must
// hold the owner's lock; a callback already dispatched but not yet guarded
// will observe the bumped generation and become a no-op.
func (w *Wheel) Disarm(slot *Slot) {
	if !slot.armed {
		return
	}
	slot.gen++
	slot.armed = false
}

// RunDue fires every armed callback whose time is at or before the clock's
// current instant, in order. Stale heap items (re-armed or disarmed slots)
// are skipped. Safe to call from tests with a ManualClock.
func (w *Wheel) RunDue() {
	now := w.clock.Now()
	for {
		w.mu.Lock()
		if len(w.heap) == 0 || w.heap[0].when.After(now) {
			w.mu.Unlock()
			return
		}
		item := heap.Pop(&w.heap).(*armed)
		w.mu.Unlock()

		w.guard(func() {
			if item.slot.armed && item.slot.gen == item.gen {
				item.slot.armed = false
				item.cb()
			}
		})
	}
}

// next returns the earliest pending fire time, or false if the heap is empty.
func (w *Wheel) next() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.heap) == 0 {
		return time.Time{}, false
	}
	return w.heap[0].when, true
}

// Start runs the dispatch loop until ctx is cancelled.
func (w *Wheel) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Wheel) loop(ctx context.Context) {
	const idle = time.Minute

	timer := w.clock.NewTimer(idle)
	defer timer.Stop()

	for {
		w.RunDue()

		wait := idle
		if when, ok := w.next(); ok {
			if d := when.Sub(w.clock.Now()); d < wait {
				wait = d
			}
		}
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			w.logc.Debug().Msg("timer wheel stopping")
			return
		case <-timer.C():
		case <-w.wake:
		}
	}
}
