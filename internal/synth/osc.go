// Package synth holds the oscillators, envelopes and filters the drum
// voices are built from. Everything here is per-sample and allocation free.
package synth

import "math"

const twoPi = math.Pi * 2

type Wave int

const (
	Sine Wave = iota
	Triangle
	Saw
	Square
)

// Osc is a phase accumulator oscillator. Frequency can change every sample.
type Osc struct {
	Wave       Wave
	phase      float64
	sampleRate float64
}

func NewOsc(w Wave, sampleRate int) Osc {
	return Osc{Wave: w, sampleRate: float64(sampleRate)}
}

// Next advances the phase by freq and returns the sample in [-1, 1].
func (o *Osc) Next(freq float64) float64 {
	dt := freq / o.sampleRate
	t := o.phase
	o.phase += dt
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}
	switch o.Wave {
	case Triangle:
		return 2*math.Abs(2*t-1) - 1
	case Saw:
		return 2*t - 1 - polyBLEP(t, dt)
	case Square:
		out := -1.0
		if t < 0.5 {
			out = 1
		}
		out += polyBLEP(t, dt)
		out -= polyBLEP(math.Mod(t+0.5, 1), dt)
		return out
	default:
		return math.Sin(twoPi * t)
	}
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// Noise is a xorshift32 white noise source. The zero value is usable.
type Noise struct {
	state uint32
}

func NewNoise(seed uint32) Noise {
	if seed == 0 {
		seed = 0xACE1
	}
	return Noise{state: seed}
}

// Next returns uniform white noise in [-1, 1).
func (n *Noise) Next() float64 {
	if n.state == 0 {
		n.state = 0xACE1
	}
	x := n.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	n.state = x
	return float64(x)/float64(1<<31) - 1
}

// Sweep is an exponential glide from From to To over Dur seconds, holding
// To afterwards.
type Sweep struct {
	From, To float64
	Dur      float64
}

// At returns the sweep value t seconds after the start.
func (s Sweep) At(t float64) float64 {
	if t <= 0 || s.From <= 0 || s.To <= 0 {
		return s.From
	}
	if t >= s.Dur || s.Dur <= 0 {
		return s.To
	}
	return s.From * math.Pow(s.To/s.From, t/s.Dur)
}
