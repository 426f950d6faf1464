// Package drums renders drum hits, metronome clicks and the backing track
// into one stereo stream.
package drums

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/cbegin/drumtrainer-go/internal/audio"
	"github.com/cbegin/drumtrainer-go/internal/effects"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// Bus is one of the three persistent mix buses.
type Bus int

const (
	BusMetronome Bus = iota
	BusDrums
	BusBacking
	numBuses
)

func (b Bus) String() string {
	switch b {
	case BusMetronome:
		return "metronome"
	case BusDrums:
		return "drums"
	case BusBacking:
		return "backing"
	default:
		return "unknown"
	}
}

const (
	// blockFrames bounds how long a wall-clock hit can wait for the mixer.
	blockFrames = 128
	maxVoices   = 64
)

type Params struct {
	MetronomeVolume float64
	DrumsVolume     float64
	BackingVolume   float64
	RoomReverb      bool
	BusCompressor   bool
}

func DefaultParams() Params {
	return Params{
		MetronomeVolume: 0.6,
		DrumsVolume:     0.8,
		BackingVolume:   0.7,
		BusCompressor:   true,
	}
}

type activeVoice struct {
	v     voice
	bus   Bus
	left  float64
	right float64
	age   int
}

// Engine is the mixer. It implements audio.SampleSource and the
// sequencer's Engine interface.
type Engine struct {
	sampleRate int
	clock      *SampleClock
	gains      [numBuses]atomic.Uint64

	mu      sync.Mutex
	voices  []activeVoice
	samples map[pattern.Instrument]*audio.Buffer
	pans    map[pattern.Instrument]float64
	backing *Transport
	drumFX  *effects.Chain
	master  *effects.EQ5Band
	seed    uint32
	bus     [numBuses][]float32
}

func New(sampleRate int, params Params) *Engine {
	e := &Engine{
		sampleRate: sampleRate,
		clock:      newSampleClock(sampleRate),
		samples:    make(map[pattern.Instrument]*audio.Buffer),
		pans:       make(map[pattern.Instrument]float64, len(defaultPan)),
		drumFX:     effects.NewChain(),
		master:     effects.NewEQ5Band(sampleRate),
		seed:       0x9E3779B9,
	}
	e.backing = &Transport{e: e}
	for inst, p := range defaultPan {
		e.pans[inst] = p
	}
	if params.BusCompressor {
		e.drumFX.Add(effects.NewDrumBusCompressor(sampleRate))
	}
	if params.RoomReverb {
		e.drumFX.Add(effects.NewRoomReverb(sampleRate))
	}
	e.SetVolume(BusMetronome, params.MetronomeVolume)
	e.SetVolume(BusDrums, params.DrumsVolume)
	e.SetVolume(BusBacking, params.BackingVolume)
	for b := range e.bus {
		e.bus[b] = make([]float32, blockFrames*2)
	}
	return e
}

func (e *Engine) SampleRate() int { return e.sampleRate }

// Clock is the engine's frame counter as a sequencer clock.
func (e *Engine) Clock() *SampleClock { return e.clock }

// Backing returns the backing-track transport.
func (e *Engine) Backing() *Transport { return e.backing }

// MasterEQ exposes the output equalizer.
func (e *Engine) MasterEQ() *effects.EQ5Band { return e.master }

// SetVolume sets a bus gain clamped to [0, 1]. It applies from the next
// rendered block and does not retrigger sounding voices.
func (e *Engine) SetVolume(b Bus, v float64) float64 {
	if b < 0 || b >= numBuses {
		return 0
	}
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.gains[b].Store(math.Float64bits(v))
	return v
}

func (e *Engine) Volume(b Bus) float64 {
	if b < 0 || b >= numBuses {
		return 0
	}
	return math.Float64frombits(e.gains[b].Load())
}

func (e *Engine) SetMetronomeVolume(v float64) float64 { return e.SetVolume(BusMetronome, v) }
func (e *Engine) SetDrumsVolume(v float64) float64     { return e.SetVolume(BusDrums, v) }
func (e *Engine) SetBackingVolume(v float64) float64   { return e.SetVolume(BusBacking, v) }

// SetPan places an instrument in the stereo field, -1 left to 1 right.
func (e *Engine) SetPan(inst pattern.Instrument, pan float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	e.mu.Lock()
	e.pans[inst] = pan
	e.mu.Unlock()
}

// PlayDrumSound starts a new voice for inst. A registered sample is played
// at gain velocity; otherwise the instrument is synthesized.
func (e *Engine) PlayDrumSound(inst pattern.Instrument, velocity float64, open bool) {
	velocity = pattern.ClampVelocity(velocity)
	if velocity == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var v voice
	if buf := e.samples[inst]; buf != nil && buf.Frames() > 0 {
		v = &sampleVoice{buf: buf, gain: velocity}
	} else {
		v = synthVoice(e.sampleRate, inst, velocity, open, e.nextSeed())
	}
	e.addVoiceLocked(v, BusDrums, e.pans[inst])
}

// PlayMetronome starts a metronome click.
func (e *Engine) PlayMetronome() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addVoiceLocked(newClick(e.sampleRate, false), BusMetronome, 0)
}

// PlayAccentClick starts the higher count-in click.
func (e *Engine) PlayAccentClick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addVoiceLocked(newClick(e.sampleRate, true), BusMetronome, 0)
}

// ActiveVoices returns the number of voices still sounding.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

func (e *Engine) nextSeed() uint32 {
	e.seed = e.seed*1664525 + 1013904223
	return e.seed
}

// addVoiceLocked appends v with equal-power pan gains, dropping the
// oldest voice when the pool is full.
func (e *Engine) addVoiceLocked(v voice, bus Bus, pan float64) {
	if len(e.voices) >= maxVoices {
		oldest := 0
		for i := range e.voices {
			if e.voices[i].age > e.voices[oldest].age {
				oldest = i
			}
		}
		e.voices = append(e.voices[:oldest], e.voices[oldest+1:]...)
	}
	angle := (pan + 1) / 2 * (math.Pi / 2)
	e.voices = append(e.voices, activeVoice{
		v:     v,
		bus:   bus,
		left:  math.Cos(angle) * math.Sqrt2,
		right: math.Sin(angle) * math.Sqrt2,
	})
}

// Process renders interleaved stereo frames into dst. Clock callbacks run
// between sub-blocks at the frame they are due, with no engine lock held.
func (e *Engine) Process(dst []float32) {
	frames := len(dst) / 2
	done := 0
	for done < frames {
		e.clock.runDue()
		n := e.clock.framesUntilDue(min(blockFrames, frames-done))
		if n == 0 {
			// Callback scheduled for this very frame by another callback.
			continue
		}
		e.render(dst[done*2 : (done+n)*2])
		e.clock.advance(n)
		done += n
	}
}

func (e *Engine) render(out []float32) {
	frames := len(out) / 2
	var gains [numBuses]float32
	for b := range gains {
		gains[b] = float32(math.Float64frombits(e.gains[b].Load()))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for b := range e.bus {
		clear(e.bus[b][:frames*2])
	}
	live := e.voices[:0]
	for _, av := range e.voices {
		buf := e.bus[av.bus]
		alive := true
		for f := 0; f < frames; f++ {
			l, r, ok := av.v.next()
			if !ok {
				alive = false
				break
			}
			buf[f*2] += float32(l * av.left)
			buf[f*2+1] += float32(r * av.right)
		}
		if alive {
			av.age += frames
			live = append(live, av)
		}
	}
	for i := len(live); i < len(e.voices); i++ {
		e.voices[i] = activeVoice{}
	}
	e.voices = live
	e.backing.renderLocked(e.bus[BusBacking][:frames*2], e.clock.Frame())
	e.drumFX.ProcessInterleaved(e.bus[BusDrums][:frames*2])

	for i := 0; i < frames*2; i += 2 {
		var l, r float32
		for b := range e.bus {
			l += e.bus[b][i] * gains[b]
			r += e.bus[b][i+1] * gains[b]
		}
		l, r = e.master.Process(l, r)
		out[i] = clampSample(l)
		out[i+1] = clampSample(r)
	}
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
