package timers

import "time"

// Clock interface for mocking time
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer interface for mocking time.Timer
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock implements Clock using standard time package
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
func (RealClock) NewTimer(d time.Duration) Timer {
	return &RealTimer{t: time.NewTimer(d)}
}

// RealTimer wraps time.Timer
type RealTimer struct {
	t *time.Timer
}

func (r *RealTimer) C() <-chan time.Time        { return r.t.C }
func (r *RealTimer) Stop() bool                 { return r.t.Stop() }
func (r *RealTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

// ManualClock is a test clock advanced by hand.
type ManualClock struct {
	now time.Time
}

// NewManualClock returns a clock frozen at the given instant.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time { return c.now }

// Set moves the clock to the given instant.
func (c *ManualClock) Set(now time.Time) { c.now = now }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// NewTimer returns a timer that never fires on its own; tests drive the wheel
// through RunDue instead.
func (c *ManualClock) NewTimer(d time.Duration) Timer {
	return &manualTimer{ch: make(chan time.Time)}
}

type manualTimer struct {
	ch chan time.Time
}

func (m *manualTimer) C() <-chan time.Time        { return m.ch }
func (m *manualTimer) Stop() bool                 { return true }
func (m *manualTimer) Reset(d time.Duration) bool { return true }
