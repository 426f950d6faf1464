package synth

import "math"

// silence is -60 dB, the level at which a decaying voice is finished.
const silence = 0.001

// Envelope is a one-shot attack/decay contour: a linear rise to Peak over
// Attack seconds, then an exponential fall to -60 dB over Decay seconds.
type Envelope struct {
	Peak   float64
	Attack float64
	Decay  float64

	pos        int
	attackLen  int
	decayLen   int
	decayCoeff float64
	level      float64
	done       bool
}

func NewEnvelope(sampleRate int, peak, attack, decay float64) *Envelope {
	e := &Envelope{Peak: peak, Attack: attack, Decay: decay}
	sr := float64(sampleRate)
	e.attackLen = int(attack * sr)
	e.decayLen = int(decay * sr)
	if e.decayLen < 1 {
		e.decayLen = 1
	}
	// level *= coeff per sample reaches silence after decayLen samples.
	e.decayCoeff = math.Pow(silence, 1/float64(e.decayLen))
	if peak <= 0 {
		e.done = true
	}
	return e
}

// Next returns the current level and advances one sample.
func (e *Envelope) Next() float64 {
	if e.done {
		return 0
	}
	var out float64
	switch {
	case e.pos < e.attackLen:
		out = e.Peak * float64(e.pos+1) / float64(e.attackLen)
		e.level = out
	case e.pos == e.attackLen:
		e.level = e.Peak
		out = e.level
	default:
		e.level *= e.decayCoeff
		out = e.level
		if e.level <= e.Peak*silence {
			e.done = true
			out = 0
		}
	}
	e.pos++
	return out
}

// Done reports whether the envelope has reached silence.
func (e *Envelope) Done() bool {
	return e.done
}

// Len is the total envelope length in samples.
func (e *Envelope) Len() int {
	return e.attackLen + e.decayLen + 1
}

// PerceptualVelocity maps linear velocity onto a gentler loudness curve.
func PerceptualVelocity(v float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return math.Pow(v, 0.8)
}

// SoftClip saturates x smoothly into (-1, 1).
func SoftClip(x, drive float64) float64 {
	if drive <= 0 {
		drive = 1
	}
	return math.Tanh(x*drive) / math.Tanh(drive)
}

// DCBlocker removes offset left by asymmetric transients.
type DCBlocker struct {
	prevIn, prevOut float64
}

func (d *DCBlocker) Process(x float64) float64 {
	const r = 0.995
	y := x - d.prevIn + r*d.prevOut
	d.prevIn = x
	d.prevOut = y
	return y
}
