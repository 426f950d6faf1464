package sequencer

import (
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock fires timers synchronously from Advance.
type manualClock struct {
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *manualClock) Now() time.Duration { return c.now }

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	t := &manualTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	target := c.now + d
	for {
		pending := c.timers[:0]
		for _, t := range c.timers {
			if !t.stopped && !t.fired {
				pending = append(pending, t)
			}
		}
		c.timers = pending
		sort.SliceStable(c.timers, func(a, b int) bool { return c.timers[a].at < c.timers[b].at })
		if len(c.timers) == 0 || c.timers[0].at > target {
			break
		}
		t := c.timers[0]
		c.now = t.at
		t.fired = true
		t.f()
	}
	c.now = target
}

func TestWallClockFires(t *testing.T) {
	c := NewWallClock()
	var fired atomic.Bool
	c.AfterFunc(5*time.Millisecond, func() { fired.Store(true) })
	require.Eventually(t, fired.Load, time.Second, time.Millisecond)
	assert.Greater(t, c.Now(), time.Duration(0))

	stopped := c.AfterFunc(time.Hour, func() {})
	assert.True(t, stopped.Stop())
}
