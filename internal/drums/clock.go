package drums

import (
	"sort"
	"sync"
	"time"

	"github.com/cbegin/drumtrainer-go/internal/sequencer"
)

var (
	_ sequencer.Clock         = (*SampleClock)(nil)
	_ sequencer.AccentClicker = (*Engine)(nil)
)

// SampleClock measures time in rendered frames. Callbacks scheduled with
// AfterFunc run on the render goroutine at the exact frame they are due,
// before that frame is rendered, so ticks and the sounds they trigger stay
// sample aligned and never drift from the output.
type SampleClock struct {
	mu         sync.Mutex
	sampleRate int
	frame      int64
	timers     []*clockTimer
}

type clockTimer struct {
	clock *SampleClock
	at    int64
	f     func()
	done  bool
}

func newSampleClock(sampleRate int) *SampleClock {
	return &SampleClock{sampleRate: sampleRate}
}

func (c *SampleClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toDuration(c.frame)
}

// Frame returns the number of frames rendered so far.
func (c *SampleClock) Frame() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

func (c *SampleClock) AfterFunc(d time.Duration, f func()) sequencer.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	t := &clockTimer{clock: c, at: c.frame + c.toFrames(d), f: f}
	i := sort.Search(len(c.timers), func(i int) bool { return c.timers[i].at > t.at })
	c.timers = append(c.timers, nil)
	copy(c.timers[i+1:], c.timers[i:])
	c.timers[i] = t
	return t
}

func (t *clockTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			break
		}
	}
	return true
}

// framesUntilDue returns how many frames can be rendered before the next
// callback is due, capped at max.
func (c *SampleClock) framesUntilDue(max int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return max
	}
	n := c.timers[0].at - c.frame
	if n < 0 {
		return 0
	}
	if n < int64(max) {
		return int(n)
	}
	return max
}

// runDue invokes every callback due at or before the current frame. The
// lock is released while callbacks run so they can schedule new timers.
func (c *SampleClock) runDue() {
	for {
		c.mu.Lock()
		if len(c.timers) == 0 || c.timers[0].at > c.frame {
			c.mu.Unlock()
			return
		}
		t := c.timers[0]
		c.timers = c.timers[1:]
		t.done = true
		c.mu.Unlock()
		t.f()
	}
}

func (c *SampleClock) advance(frames int) {
	c.mu.Lock()
	c.frame += int64(frames)
	c.mu.Unlock()
}

func (c *SampleClock) toFrames(d time.Duration) int64 {
	return int64(d.Seconds()*float64(c.sampleRate) + 0.5)
}

func (c *SampleClock) toDuration(frames int64) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(c.sampleRate)
}
