package drums

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/cbegin/drumtrainer-go/internal/audio"
	"github.com/cbegin/drumtrainer-go/internal/effects"
	"github.com/cbegin/drumtrainer-go/internal/logger"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
	"github.com/cbegin/drumtrainer-go/internal/sequencer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 48000

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, ok := m[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func peak(buf []float32) float64 {
	var p float64
	for _, s := range buf {
		p = math.Max(p, math.Abs(float64(s)))
	}
	return p
}

func render(e *Engine, seconds float64) []float32 {
	buf := make([]float32, int(seconds*testRate)*2)
	e.Process(buf)
	return buf
}

func TestBrokenBackingTrackLeavesDrumsWorking(t *testing.T) {
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(nil)
	e := New(testRate, DefaultParams())
	f := mapFetcher{"broken.mp3": []byte("definitely not audio")}

	assert.False(t, e.LoadBackingTrack(context.Background(), f, "broken.mp3"))
	assert.False(t, e.LoadBackingTrack(context.Background(), f, "missing.ogg"))
	assert.False(t, e.LoadBackingTrack(context.Background(), nil, "any"))
	assert.False(t, e.Backing().Loaded())
	assert.ErrorIs(t, e.Backing().Play(), ErrNoBackingTrack)

	e.PlayDrumSound(pattern.Kick, 0.9, false)
	assert.Greater(t, peak(render(e, 0.1)), 0.05)

	e.PlayMetronome()
	assert.Greater(t, peak(render(e, 0.05)), 0.01)
}

func TestBrokenSampleFallsBackToSynthesis(t *testing.T) {
	e := New(testRate, DefaultParams())
	assert.False(t, e.LoadSample(context.Background(), mapFetcher{"s": {1, 2, 3}}, pattern.Snare, "s"))
	assert.False(t, e.HasSample(pattern.Snare))

	e.PlayDrumSound(pattern.Snare, 0.8, false)
	assert.Greater(t, peak(render(e, 0.05)), 0.01)
}

func TestRegisteredSampleTakesPriority(t *testing.T) {
	params := DefaultParams()
	params.BusCompressor = false
	params.DrumsVolume = 1
	e := New(testRate, params)

	frames := 256
	samples := make([]float32, frames*2)
	for i := range samples {
		samples[i] = 0.5
	}
	e.RegisterSample(pattern.Kick, &audio.Buffer{SampleRate: testRate, Samples: samples})
	require.True(t, e.HasSample(pattern.Kick))
	e.SetPan(pattern.Kick, 0)

	e.PlayDrumSound(pattern.Kick, 0.5, false)
	out := make([]float32, 512*2)
	e.Process(out)
	// Flat EQ, centered pan: gain equals velocity.
	assert.InDelta(t, 0.25, out[20], 0.02)
	assert.InDelta(t, 0, out[300*2], 1e-6)
	assert.Zero(t, e.ActiveVoices())

	e.RegisterSample(pattern.Kick, nil)
	assert.False(t, e.HasSample(pattern.Kick))
}

func TestLoadSampleFromWAV(t *testing.T) {
	e := New(testRate, DefaultParams())
	pcm := make([]float32, 200)
	for i := range pcm {
		pcm[i] = 0.25
	}
	f := mapFetcher{"ride.wav": audio.EncodeWAV16(pcm, testRate)}
	assert.True(t, e.LoadSample(context.Background(), f, pattern.Ride, "ride.wav"))
	assert.True(t, e.HasSample(pattern.Ride))
}

func TestBusVolumesAreIndependent(t *testing.T) {
	e := New(testRate, DefaultParams())
	assert.Equal(t, 1.0, e.SetMetronomeVolume(3))
	assert.Equal(t, 0.0, e.SetDrumsVolume(-1))
	assert.Equal(t, 0.0, e.SetBackingVolume(math.NaN()))
	assert.Equal(t, 1.0, e.Volume(BusMetronome))

	e.PlayDrumSound(pattern.Snare, 1, false)
	assert.Zero(t, peak(render(e, 0.05)), "drums bus muted")

	e.PlayMetronome()
	assert.Greater(t, peak(render(e, 0.02)), 0.01)
}

func TestVolumeChangeKeepsVoicesSounding(t *testing.T) {
	e := New(testRate, DefaultParams())
	e.PlayDrumSound(pattern.Crash, 1, false)
	render(e, 0.01)
	e.SetDrumsVolume(0)
	render(e, 0.01)
	assert.Equal(t, 1, e.ActiveVoices())
	e.SetDrumsVolume(1)
	assert.Greater(t, peak(render(e, 0.01)), 0.0)
}

func TestEveryInstrumentSynthesizesAndEnds(t *testing.T) {
	for _, inst := range pattern.Instruments {
		for _, open := range []bool{false, true} {
			for _, vel := range []float64{0.01, 0.3, 0.7, 1} {
				e := New(testRate, DefaultParams())
				e.PlayDrumSound(inst, vel, open)
				require.Equal(t, 1, e.ActiveVoices(), "%s open=%v vel=%v", inst, open, vel)
				out := render(e, 2.5)
				for _, s := range out {
					require.False(t, math.IsNaN(float64(s)) || math.IsInf(float64(s), 0))
					require.LessOrEqual(t, math.Abs(float64(s)), 1.0)
				}
				assert.Zero(t, e.ActiveVoices(), "%s open=%v vel=%v", inst, open, vel)
			}
		}
	}
}

func TestZeroVelocityIsSilent(t *testing.T) {
	e := New(testRate, DefaultParams())
	e.PlayDrumSound(pattern.Kick, 0, false)
	assert.Zero(t, e.ActiveVoices())
}

func TestVoicePoolStealsOldest(t *testing.T) {
	e := New(testRate, DefaultParams())
	for i := 0; i < maxVoices+10; i++ {
		e.PlayDrumSound(pattern.Ride, 0.5, false)
	}
	assert.Equal(t, maxVoices, e.ActiveVoices())
}

func TestBackingTransport(t *testing.T) {
	e := New(testRate, DefaultParams())
	tr := e.Backing()
	tr.SetEstimatedDuration(8 * time.Second)
	assert.Equal(t, 8*time.Second, tr.Duration())

	pcm := make([]float32, testRate*2)
	for i := range pcm {
		pcm[i] = 0.5
	}
	require.True(t, e.LoadBackingTrack(context.Background(), mapFetcher{"t.wav": audio.EncodeWAV16(pcm, testRate)}, "t.wav"))
	assert.Equal(t, time.Second, tr.Duration())

	require.NoError(t, tr.Play())
	assert.True(t, tr.Playing())
	assert.Greater(t, peak(render(e, 0.25)), 0.1)
	assert.Equal(t, 250*time.Millisecond, tr.CurrentTime())

	tr.Pause()
	render(e, 0.25)
	assert.Equal(t, 250*time.Millisecond, tr.CurrentTime())

	tr.Seek(0.5)
	assert.Equal(t, 500*time.Millisecond, tr.CurrentTime())
	require.NoError(t, tr.Play())
	render(e, 0.1)
	assert.Equal(t, 600*time.Millisecond, tr.CurrentTime())

	// Seeking while playing restarts from the new offset.
	tr.Seek(0.2)
	render(e, 0.1)
	assert.Equal(t, 300*time.Millisecond, tr.CurrentTime())

	tr.Seek(99)
	assert.Equal(t, time.Second, tr.CurrentTime())
	render(e, 0.01)
	assert.False(t, tr.Playing())

	require.NoError(t, tr.Play())
	assert.Equal(t, time.Duration(0), tr.CurrentTime())
	tr.Stop()
	assert.False(t, tr.Playing())
	assert.Equal(t, time.Duration(0), tr.CurrentTime())
	assert.Zero(t, peak(render(e, 0.05)))
}

func TestSampleClockOrdersTimers(t *testing.T) {
	c := newSampleClock(1000)
	var got []int
	c.AfterFunc(5*time.Millisecond, func() { got = append(got, 2) })
	c.AfterFunc(time.Millisecond, func() { got = append(got, 1) })
	stopped := c.AfterFunc(3*time.Millisecond, func() { got = append(got, 99) })
	c.AfterFunc(5*time.Millisecond, func() { got = append(got, 3) })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	for i := 0; i < 10; i++ {
		c.runDue()
		c.advance(c.framesUntilDue(1))
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 10*time.Millisecond, c.Now())
}

func TestProcessSplitsBlocksAtDueTimers(t *testing.T) {
	e := New(testRate, DefaultParams())
	var at []int64
	e.Clock().AfterFunc(time.Millisecond, func() { at = append(at, e.Clock().Frame()) })
	e.Clock().AfterFunc(7*time.Millisecond, func() { at = append(at, e.Clock().Frame()) })
	render(e, 0.01)
	assert.Equal(t, []int64{48, 336}, at)
}

// The sequencer driven by the engine clock ticks on exact frame
// boundaries: 250 ms per eighth note at 120 BPM is 12000 frames.
func TestEngineClockDrivesSequencer(t *testing.T) {
	e := New(testRate, DefaultParams())
	p := pattern.New(16)
	p.Set(pattern.Kick, 0, pattern.Note{Active: true, Velocity: 0.7})
	c := pattern.ComputeComplexity(p)

	var ticks []int64
	seq := sequencer.NewWithOptions(p, c, e, e.Clock(), 120, sequencer.Options{
		Loop:      true,
		Metronome: true,
		OnEvent: func(ev sequencer.Event) {
			if ev.Kind == sequencer.EventTick {
				ticks = append(ticks, e.Clock().Frame())
			}
		},
	})
	defer seq.Close()
	seq.Start()

	render(e, 1.01)
	require.Len(t, ticks, 5)
	for i, f := range ticks {
		assert.Equal(t, int64(i*12000), f)
	}
	assert.Equal(t, 4, seq.Step())
}

func BenchmarkEngineProcess(b *testing.B) {
	e := New(testRate, DefaultParams())
	buf := make([]float32, 512*2)
	insts := pattern.Instruments
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%8 == 0 {
			e.PlayDrumSound(insts[i/8%len(insts)], 0.8, false)
			e.PlayMetronome()
		}
		e.Process(buf)
	}
}

func TestMasterEQMutesBands(t *testing.T) {
	e := New(testRate, DefaultParams())
	eq := e.MasterEQ()
	for b := 0; b < effects.NumBands; b++ {
		eq.SetGain(b, 0)
	}
	e.PlayDrumSound(pattern.Snare, 1, false)
	assert.Zero(t, peak(render(e, 0.05)))

	for b := 0; b < effects.NumBands; b++ {
		eq.SetGain(b, 1)
	}
	e.PlayDrumSound(pattern.Snare, 1, false)
	assert.Greater(t, peak(render(e, 0.05)), 0.01)
}

func TestCountInSoundsAccentClick(t *testing.T) {
	p := pattern.New(8)
	e := New(testRate, DefaultParams())
	seq := sequencer.NewWithOptions(p, pattern.ComputeComplexity(p), e, e.Clock(), 120,
		sequencer.Options{Loop: true, CountInBeats: 1})
	defer seq.Close()

	seq.Start()
	assert.Equal(t, sequencer.CountingIn, seq.State())
	assert.Equal(t, 1, e.ActiveVoices())
	assert.Greater(t, peak(render(e, 0.05)), 0.01)
}
