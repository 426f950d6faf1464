package sequencer

import "time"

// Timer is a pending callback returned by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It reports false when the
	// callback already ran or was already stopped.
	Stop() bool
}

// Clock is the time source that drives ticks. Now is monotonic and
// relative to an arbitrary origin.
type Clock interface {
	Now() time.Duration
	AfterFunc(d time.Duration, f func()) Timer
}

// WallClock schedules ticks with the runtime timer.
type WallClock struct {
	origin time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{origin: time.Now()}
}

func (c *WallClock) Now() time.Duration {
	return time.Since(c.origin)
}

func (c *WallClock) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(d, f)
}
