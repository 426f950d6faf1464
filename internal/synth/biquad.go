package synth

import "math"

type FilterKind int

const (
	LowPass FilterKind = iota
	HighPass
	BandPass
)

// Biquad is an RBJ cookbook second order filter in transposed direct form II.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// NewBiquad designs a filter at freq Hz with quality q. Frequencies at or
// above Nyquist are pulled just below it.
func NewBiquad(kind FilterKind, sampleRate int, freq, q float64) *Biquad {
	sr := float64(sampleRate)
	if freq >= sr/2 {
		freq = sr/2 - 1
	}
	if freq < 10 {
		freq = 10
	}
	if q <= 0 {
		q = math.Sqrt2 / 2
	}
	w0 := twoPi * freq / sr
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)

	var b0, b1, b2 float64
	switch kind {
	case HighPass:
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
		b2 = (1 + cosw) / 2
	case BandPass:
		// constant 0 dB peak gain
		b0 = alpha
		b1 = 0
		b2 = -alpha
	default:
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
		b2 = (1 - cosw) / 2
	}
	a0 := 1 + alpha
	return &Biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f *Biquad) Process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

func (f *Biquad) Reset() {
	f.z1, f.z2 = 0, 0
}
