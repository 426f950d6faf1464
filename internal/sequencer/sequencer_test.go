package sequencer

import (
	"math"
	"testing"
	"time"

	"github.com/cbegin/drumtrainer-go/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hit struct {
	at    time.Duration
	inst  pattern.Instrument
	vel   float64
	open  bool
	click bool
}

type recordingEngine struct {
	clock *manualClock
	hits  []hit
}

func (e *recordingEngine) PlayDrumSound(inst pattern.Instrument, velocity float64, open bool) {
	e.hits = append(e.hits, hit{at: e.clock.now, inst: inst, vel: velocity, open: open})
}

func (e *recordingEngine) PlayMetronome() {
	e.hits = append(e.hits, hit{at: e.clock.now, click: true})
}

func (e *recordingEngine) clicks() []time.Duration {
	var out []time.Duration
	for _, h := range e.hits {
		if h.click {
			out = append(out, h.at)
		}
	}
	return out
}

func (e *recordingEngine) drums(inst pattern.Instrument) []time.Duration {
	var out []time.Duration
	for _, h := range e.hits {
		if !h.click && h.inst == inst {
			out = append(out, h.at)
		}
	}
	return out
}

// basicGroove is a 16 step eighth-note groove: kick on 0 and 8, snare on 4
// and 12, hi-hat on every even step.
func basicGroove() (*pattern.Pattern, pattern.Complexity) {
	p := pattern.New(16)
	for _, s := range []int{0, 8} {
		p.Set(pattern.Kick, s, pattern.Note{Active: true, Velocity: 0.7})
	}
	for _, s := range []int{4, 12} {
		p.Set(pattern.Snare, s, pattern.Note{Active: true, Velocity: 0.7})
	}
	for s := 0; s < 16; s += 2 {
		p.Set(pattern.HiHat, s, pattern.Note{Active: true, Velocity: 0.7})
	}
	return p, pattern.ComputeComplexity(p)
}

func newTestSequencer(t *testing.T, opts Options) (*Sequencer, *manualClock, *recordingEngine, *[]Event) {
	t.Helper()
	clock := &manualClock{}
	engine := &recordingEngine{clock: clock}
	var events []Event
	opts.OnEvent = func(ev Event) { events = append(events, ev) }
	p, c := basicGroove()
	return NewWithOptions(p, c, engine, clock, 120, opts), clock, engine, &events
}

func steps(ds []time.Duration, step time.Duration) []int {
	out := make([]int, len(ds))
	for i, d := range ds {
		out[i] = int(d / step)
	}
	return out
}

func TestGrooveFiresMetronomeOnBeats(t *testing.T) {
	seq, clock, engine, _ := newTestSequencer(t, Options{Loop: true, Metronome: true})
	require.Equal(t, 2, seq.Snapshot().StepsPerBeat)
	stepDur := 250 * time.Millisecond
	require.Equal(t, stepDur, seq.stepDuration())

	seq.Start()
	clock.Advance(16*stepDur - time.Millisecond)

	assert.Equal(t, []int{0, 2, 4, 6, 8, 10, 12, 14}, steps(engine.clicks(), stepDur))
	assert.Equal(t, []int{0, 8}, steps(engine.drums(pattern.Kick), stepDur))
	assert.Equal(t, []int{4, 12}, steps(engine.drums(pattern.Snare), stepDur))
	assert.Len(t, engine.drums(pattern.HiHat), 8)
	assert.Equal(t, 15, seq.Step())
}

func TestLoopingReturnsToZeroAfterMaxSteps(t *testing.T) {
	seq, clock, _, events := newTestSequencer(t, Options{Loop: true})
	seq.Start()
	clock.Advance(16 * 250 * time.Millisecond)
	assert.Equal(t, 0, seq.Step())
	assert.Equal(t, Running, seq.State())

	var loops []Event
	for _, ev := range *events {
		if ev.Kind == EventLoopCompleted {
			loops = append(loops, ev)
		}
	}
	require.Len(t, loops, 1)
	assert.Equal(t, 1, loops[0].Loop)
	assert.Equal(t, 1, seq.Snapshot().Loops)
}

func TestBoundedPracticeCompletes(t *testing.T) {
	seq, clock, engine, events := newTestSequencer(t, Options{Loop: false})
	seq.Start()
	clock.Advance(16 * 250 * time.Millisecond)
	assert.Equal(t, Completed, seq.State())
	assert.Equal(t, 15, seq.Step())

	fired := len(engine.hits)
	clock.Advance(10 * time.Second)
	assert.Len(t, engine.hits, fired)

	var completed bool
	for _, ev := range *events {
		if ev.Kind == EventPracticeCompleted {
			completed = true
		}
		assert.NotEqual(t, EventLoopCompleted, ev.Kind)
	}
	assert.True(t, completed)

	seq.Start()
	assert.Equal(t, 0, seq.Step())
	assert.Equal(t, Running, seq.State())
}

func TestStopCancelsPendingTick(t *testing.T) {
	seq, clock, engine, _ := newTestSequencer(t, Options{Loop: true})
	seq.Start()
	clock.Advance(600 * time.Millisecond)
	require.Equal(t, 2, seq.Step())
	seq.Stop()
	fired := len(engine.hits)
	clock.Advance(5 * time.Second)
	assert.Len(t, engine.hits, fired)
	assert.Equal(t, 2, seq.Step())
	assert.Equal(t, Stopped, seq.State())

	seq.Stop()
	seq.Reset()
	assert.Equal(t, 0, seq.Step())
}

func TestRestartDoesNotRunTwoLoops(t *testing.T) {
	seq, clock, engine, _ := newTestSequencer(t, Options{Loop: true})
	seq.Start()
	seq.Start()
	seq.Stop()
	seq.Start()
	engine.hits = nil
	clock.Advance(time.Second)
	assert.Len(t, engine.drums(pattern.HiHat), 2)
}

func TestSetBPMAppliesFromNextTick(t *testing.T) {
	seq, clock, _, _ := newTestSequencer(t, Options{Loop: true})
	seq.Start()
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 60.0, seq.SetBPM(60))

	clock.Advance(150 * time.Millisecond)
	assert.Equal(t, 1, seq.Step(), "tick already scheduled keeps its time")
	clock.Advance(499 * time.Millisecond)
	assert.Equal(t, 1, seq.Step())
	clock.Advance(time.Millisecond)
	assert.Equal(t, 2, seq.Step())
}

func TestBPMIsClamped(t *testing.T) {
	seq, _, _, _ := newTestSequencer(t, Options{})
	assert.Equal(t, 40.0, seq.SetBPM(0))
	assert.Equal(t, 40.0, seq.SetBPM(-12))
	assert.Equal(t, 40.0, seq.SetBPM(math.NaN()))
	assert.Equal(t, 240.0, seq.SetBPM(1000))
	assert.Equal(t, 96.0, seq.SetBPM(96))
	assert.Equal(t, 240.0, seq.SetTargetBPM(300))
	assert.Equal(t, 240.0, seq.Snapshot().TargetBPM)
}

func TestSeekWraps(t *testing.T) {
	seq, _, _, _ := newTestSequencer(t, Options{})
	assert.Equal(t, 15, seq.Seek(-1))
	assert.Equal(t, 3, seq.Seek(35))
	assert.Equal(t, 0, seq.Seek(16))
}

func TestScrollOffsetTracksLeadIn(t *testing.T) {
	for _, tc := range []struct{ step, want int }{
		{0, 0}, {5, 0}, {6, 1}, {15, 10},
	} {
		assert.Equal(t, tc.want, ScrollOffset(tc.step, DefaultLeadIn), "step %d", tc.step)
	}
	seq, _, _, _ := newTestSequencer(t, Options{})
	seq.Seek(9)
	assert.Equal(t, 4, seq.Snapshot().ScrollOffset)
}

func TestCountInPrecedesRunning(t *testing.T) {
	seq, clock, engine, events := newTestSequencer(t, Options{Loop: true, Metronome: true, CountInBeats: 2})
	seq.Start()
	assert.Equal(t, CountingIn, seq.State())
	assert.Empty(t, engine.drums(pattern.Kick))

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, CountingIn, seq.State())
	assert.Equal(t, []time.Duration{0, 500 * time.Millisecond}, engine.clicks())

	clock.Advance(time.Millisecond)
	assert.Equal(t, Running, seq.State())
	assert.Equal(t, []time.Duration{time.Second}, engine.drums(pattern.Kick))
	assert.Equal(t, 0, seq.Step())

	var beats []int
	for _, ev := range *events {
		if ev.Kind == EventCountIn {
			beats = append(beats, ev.Beat)
		}
	}
	assert.Equal(t, []int{1, 2}, beats)
}

func TestMetronomeToggle(t *testing.T) {
	seq, clock, engine, _ := newTestSequencer(t, Options{Loop: true})
	seq.Start()
	clock.Advance(time.Second)
	assert.Empty(t, engine.clicks())
	seq.SetMetronome(true)
	clock.Advance(time.Second)
	assert.NotEmpty(t, engine.clicks())
}

func TestSetPatternWrapsStep(t *testing.T) {
	seq, _, _, _ := newTestSequencer(t, Options{})
	seq.Seek(12)
	short := pattern.New(8)
	seq.SetPattern(short, pattern.ComputeComplexity(short))
	assert.Equal(t, 4, seq.Step())
}

func TestOpenHatPassesOpenFlag(t *testing.T) {
	clock := &manualClock{}
	engine := &recordingEngine{clock: clock}
	p := pattern.New(4)
	p.Set(pattern.OpenHat, 0, pattern.Note{Active: true, Velocity: 1, Type: pattern.Accent, Open: true})
	seq := New(p, pattern.ComputeComplexity(p), engine, clock, 120)
	seq.SetMetronome(false)
	seq.Start()
	require.Len(t, engine.hits, 1)
	assert.Equal(t, hit{inst: pattern.OpenHat, vel: 1, open: true}, engine.hits[0])
	seq.Close()
	seq.Start()
	assert.Equal(t, Stopped, seq.State())
}

func BenchmarkSequencerTick(b *testing.B) {
	clock := &manualClock{}
	engine := &recordingEngine{clock: clock}
	p, c := basicGroove()
	seq := NewWithOptions(p, c, engine, clock, 240, Options{Loop: true, Metronome: true})
	seq.Start()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		clock.Advance(125 * time.Millisecond)
		engine.hits = engine.hits[:0]
	}
}

func TestResumeDoesNotReplayStep(t *testing.T) {
	seq, clock, engine, _ := newTestSequencer(t, Options{Loop: true})
	seq.Start()
	clock.Advance(500 * time.Millisecond)
	require.Equal(t, 2, seq.Step())
	seq.Stop()

	engine.hits = nil
	seq.Start()
	assert.Equal(t, 3, seq.Step())
	assert.Empty(t, engine.drums(pattern.HiHat), "step 2 already sounded")
	clock.Advance(250 * time.Millisecond)
	assert.Equal(t, 4, seq.Step())
	assert.Len(t, engine.drums(pattern.HiHat), 1)
}

func TestSeekThenStartPlaysTargetStep(t *testing.T) {
	seq, _, engine, _ := newTestSequencer(t, Options{Loop: true})
	seq.Start()
	seq.Stop()
	seq.Seek(4)
	engine.hits = nil
	seq.Start()
	assert.Equal(t, 4, seq.Step())
	assert.Len(t, engine.drums(pattern.Snare), 1)
}

type accentEngine struct {
	recordingEngine
	accents []time.Duration
}

func (e *accentEngine) PlayAccentClick() {
	e.accents = append(e.accents, e.clock.now)
}

func TestCountInUsesAccentClick(t *testing.T) {
	clock := &manualClock{}
	engine := &accentEngine{recordingEngine: recordingEngine{clock: clock}}
	p, c := basicGroove()
	seq := NewWithOptions(p, c, engine, clock, 120, Options{Loop: true, Metronome: true, CountInBeats: 2})
	seq.Start()
	clock.Advance(time.Second)
	assert.Equal(t, []time.Duration{0, 500 * time.Millisecond}, engine.accents)
	assert.Equal(t, []time.Duration{time.Second}, engine.clicks(), "regular metronome resumes on step 0")
}
