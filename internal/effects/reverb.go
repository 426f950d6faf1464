package effects

// Reverb is a small Schroeder room: four damped comb filters in parallel
// followed by two allpass diffusers, with a short pre-delay so the dry
// transient stays in front.
type Reverb struct {
	pre     delayLine
	combs   [4]combFilter
	allpass [2]allpassFilter
	wet     float32
}

type delayLine struct {
	buf []float32
	pos int
}

type combFilter struct {
	buf    []float32
	pos    int
	fb     float32
	damp   float32
	filter float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

// NewReverb creates a reverb.
// roomSize: 0..1 scales the comb lengths
// feedback: 0..0.95 controls decay time
// damping: 0..1 high frequency loss per reflection
// wet: wet/dry mix 0..1
func NewReverb(sampleRate int, roomSize, feedback, damping, wet float32) *Reverb {
	base := int(float32(sampleRate) * clamp(roomSize, 0, 1) * 0.05)
	if base < 10 {
		base = 10
	}
	r := &Reverb{
		pre: delayLine{buf: make([]float32, maxInt(sampleRate/100, 1))},
		wet: clamp(wet, 0, 1),
	}
	fb := clamp(feedback, 0, 0.95)
	damp := clamp(damping, 0, 1)
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range r.combs {
		r.combs[i] = combFilter{buf: make([]float32, combLens[i]), fb: fb, damp: damp}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range r.allpass {
		r.allpass[i] = allpassFilter{buf: make([]float32, maxInt(apLens[i], 1)), fb: 0.5}
	}
	return r
}

// NewRoomReverb returns the short drum room used when room sound is enabled.
func NewRoomReverb(sampleRate int) *Reverb {
	return NewReverb(sampleRate, 0.35, 0.6, 0.4, 0.18)
}

func (r *Reverb) Process(l, r2 float32) (float32, float32) {
	mono := r.pre.process((l + r2) * 0.5)
	var out float32
	for i := range r.combs {
		out += r.combs[i].process(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].process(out)
	}
	return l*(1-r.wet) + out*r.wet, r2*(1-r.wet) + out*r.wet
}

func (r *Reverb) Reset() {
	r.pre.reset()
	for i := range r.combs {
		clear(r.combs[i].buf)
		r.combs[i].pos = 0
		r.combs[i].filter = 0
	}
	for i := range r.allpass {
		clear(r.allpass[i].buf)
		r.allpass[i].pos = 0
	}
}

func (d *delayLine) process(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
	return out
}

func (d *delayLine) reset() {
	clear(d.buf)
	d.pos = 0
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.filter = out*(1-c.damp) + c.filter*c.damp
	c.buf[c.pos] = in + c.filter*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
