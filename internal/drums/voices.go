package drums

import (
	"github.com/cbegin/drumtrainer-go/internal/audio"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
	"github.com/cbegin/drumtrainer-go/internal/synth"
)

// voice is one self-terminating sound. next returns false once the voice
// has nothing left to play; it is then dropped by the mixer.
type voice interface {
	next() (l, r float64, ok bool)
}

// mono adapts a single channel generator.
type mono func() (float64, bool)

func (m mono) next() (float64, float64, bool) {
	v, ok := m()
	return v, v, ok
}

// kick: pitch swept sine body, sub an octave below, a short lowpassed saw
// click and a band-passed noise thump, soft clipped together.
func newKick(sr int, vel float64, seed uint32) voice {
	amp := synth.PerceptualVelocity(vel)
	body := synth.NewOsc(synth.Sine, sr)
	sub := synth.NewOsc(synth.Sine, sr)
	click := synth.NewOsc(synth.Saw, sr)
	noise := synth.NewNoise(seed)
	sweep := synth.Sweep{From: 150, To: 45, Dur: 0.15}
	bodyEnv := synth.NewEnvelope(sr, amp, 0.002, 0.45)
	subEnv := synth.NewEnvelope(sr, 0.5*amp, 0.005, 0.3)
	clickEnv := synth.NewEnvelope(sr, 0.3*amp, 0.0005, 0.02)
	noiseEnv := synth.NewEnvelope(sr, 0.2*amp, 0.001, 0.03)
	clickLP := synth.NewBiquad(synth.LowPass, sr, 5000, 0.707)
	noiseBP := synth.NewBiquad(synth.BandPass, sr, 1500, 1)
	var dc synth.DCBlocker
	step := 1 / float64(sr)
	t := 0.0
	return mono(func() (float64, bool) {
		if bodyEnv.Done() {
			return 0, false
		}
		f := sweep.At(t)
		t += step
		x := body.Next(f)*bodyEnv.Next() +
			sub.Next(f*0.5)*subEnv.Next() +
			clickLP.Process(click.Next(3000))*clickEnv.Next() +
			noiseBP.Process(noise.Next())*noiseEnv.Next()
		return dc.Process(synth.SoftClip(x, 1.5)), true
	})
}

// snare: triangle tone falling 200 to 60 Hz under band-passed noise.
func newSnare(sr int, vel float64, seed uint32) voice {
	amp := synth.PerceptualVelocity(vel)
	tone := synth.NewOsc(synth.Triangle, sr)
	noise := synth.NewNoise(seed)
	sweep := synth.Sweep{From: 200, To: 60, Dur: 0.1}
	toneEnv := synth.NewEnvelope(sr, 0.5*amp, 0.001, 0.12)
	noiseEnv := synth.NewEnvelope(sr, 0.8*amp, 0.001, 0.18)
	bp := synth.NewBiquad(synth.BandPass, sr, 3000, 0.8)
	step := 1 / float64(sr)
	t := 0.0
	return mono(func() (float64, bool) {
		if toneEnv.Done() && noiseEnv.Done() {
			return 0, false
		}
		x := tone.Next(sweep.At(t))*toneEnv.Next() + bp.Process(noise.Next())*noiseEnv.Next()
		t += step
		return x, true
	})
}

// hat: high-passed noise. Open hats ring longer, louder and darker.
func newHat(sr int, vel float64, open bool, seed uint32) voice {
	amp := synth.PerceptualVelocity(vel)
	cutoff, peak, decay := 8000.0, 0.4, 0.08
	if open {
		cutoff, peak, decay = 6000.0, 0.6, 0.4
	}
	noise := synth.NewNoise(seed)
	env := synth.NewEnvelope(sr, peak*amp, 0.0005, decay)
	hp := synth.NewBiquad(synth.HighPass, sr, cutoff, 0.707)
	return mono(func() (float64, bool) {
		if env.Done() {
			return 0, false
		}
		return hp.Process(noise.Next()) * env.Next(), true
	})
}

// tom: plain sine sweep.
func newTom(sr int, vel float64, low bool) voice {
	amp := synth.PerceptualVelocity(vel)
	sweep := synth.Sweep{From: 200, To: 100, Dur: 0.3}
	if low {
		sweep = synth.Sweep{From: 130, To: 70, Dur: 0.3}
	}
	osc := synth.NewOsc(synth.Sine, sr)
	env := synth.NewEnvelope(sr, 0.8*amp, 0.002, 0.3)
	step := 1 / float64(sr)
	t := 0.0
	return mono(func() (float64, bool) {
		if env.Done() {
			return 0, false
		}
		x := osc.Next(sweep.At(t)) * env.Next()
		t += step
		return x, true
	})
}

// cymbal: long noise wash. Crash is broad and bright-mid, ride is a
// narrower, higher band with a longer tail.
func newCymbal(sr int, vel float64, ride bool, seed uint32) voice {
	amp := synth.PerceptualVelocity(vel)
	center, q, hpCut, peak, decay := 5000.0, 0.6, 3000.0, 0.6, 1.5
	if ride {
		center, q, hpCut, peak, decay = 8000.0, 2.0, 5000.0, 0.35, 2.0
	}
	noise := synth.NewNoise(seed)
	bp := synth.NewBiquad(synth.BandPass, sr, center, q)
	hp := synth.NewBiquad(synth.HighPass, sr, hpCut, 0.707)
	env := synth.NewEnvelope(sr, peak*amp, 0.002, decay)
	return mono(func() (float64, bool) {
		if env.Done() {
			return 0, false
		}
		return hp.Process(bp.Process(noise.Next())) * env.Next(), true
	})
}

// click is the metronome tick.
func newClick(sr int, accent bool) voice {
	freq, peak := 1000.0, 0.5
	if accent {
		freq, peak = 1500.0, 0.6
	}
	osc := synth.NewOsc(synth.Sine, sr)
	env := synth.NewEnvelope(sr, peak, 0.001, 0.05)
	return mono(func() (float64, bool) {
		if env.Done() {
			return 0, false
		}
		return osc.Next(freq) * env.Next(), true
	})
}

// sampleVoice plays a decoded buffer once at a fixed gain.
type sampleVoice struct {
	buf  *audio.Buffer
	pos  int
	gain float64
}

func (v *sampleVoice) next() (float64, float64, bool) {
	if v.pos >= v.buf.Frames() {
		return 0, 0, false
	}
	l, r := v.buf.Frame(v.pos)
	v.pos++
	return float64(l) * v.gain, float64(r) * v.gain, true
}

// synthVoice builds the synthesized sound for inst. Unknown instruments
// fall back to the snare so a hit is never silent.
func synthVoice(sr int, inst pattern.Instrument, vel float64, open bool, seed uint32) voice {
	switch inst {
	case pattern.Kick:
		return newKick(sr, vel, seed)
	case pattern.Snare, pattern.GhostSnare:
		return newSnare(sr, vel, seed)
	case pattern.HiHat:
		return newHat(sr, vel, open, seed)
	case pattern.OpenHat:
		return newHat(sr, vel, true, seed)
	case pattern.Tom:
		return newTom(sr, vel, false)
	case pattern.LowTom:
		return newTom(sr, vel, true)
	case pattern.Crash:
		return newCymbal(sr, vel, false, seed)
	case pattern.Ride:
		return newCymbal(sr, vel, true, seed)
	default:
		return newSnare(sr, vel, seed)
	}
}

// defaultPan places the kit as seen from the drummer's seat, -1 left to 1 right.
var defaultPan = map[pattern.Instrument]float64{
	pattern.HiHat:   -0.3,
	pattern.OpenHat: -0.3,
	pattern.Tom:     0.2,
	pattern.LowTom:  0.4,
	pattern.Crash:   -0.45,
	pattern.Ride:    0.5,
}
