package effects

import (
	"math"
	"sync/atomic"
)

// Compressor is a stereo-linked peak compressor. Both channels share one
// detector so kick and snare transients do not shift the stereo image.
type Compressor struct {
	threshold float32
	ratio     float32
	attack    float32
	release   float32
	makeup    float32
	env       float32
	reduction atomic.Uint32 // float32 bits of the last gain applied
}

// NewCompressor creates a compressor.
// thresholdDB: level above which gain is reduced (e.g. -12)
// ratio: e.g. 3 for 3:1
// attackMs, releaseMs: detector time constants
// makeupDB: gain added after compression
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	c := &Compressor{
		threshold: dbToGain(thresholdDB),
		ratio:     ratio,
		attack:    timeCoeff(sampleRate, attackMs),
		release:   timeCoeff(sampleRate, releaseMs),
		makeup:    dbToGain(makeupDB),
	}
	c.reduction.Store(math.Float32bits(1))
	return c
}

// NewDrumBusCompressor returns the settings used on the drum bus: fast
// enough to catch the kick without dulling the snare crack.
func NewDrumBusCompressor(sampleRate int) *Compressor {
	return NewCompressor(sampleRate, -10, 3, 2, 120, 2)
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	peak := l
	if peak < 0 {
		peak = -peak
	}
	if ar := absf(r); ar > peak {
		peak = ar
	}
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	g := c.computeGain(c.env)
	c.reduction.Store(math.Float32bits(g))
	g *= c.makeup
	return l * g, r * g
}

func (c *Compressor) computeGain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

// GainReduction returns the last applied gain before makeup; 1 means none.
func (c *Compressor) GainReduction() float32 {
	return math.Float32frombits(c.reduction.Load())
}

func (c *Compressor) Reset() {
	c.env = 0
	c.reduction.Store(math.Float32bits(1))
}

func dbToGain(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

func timeCoeff(sampleRate int, ms float32) float32 {
	if ms <= 0 {
		return 1
	}
	return float32(1.0 - math.Exp(-1.0/(float64(ms)*float64(sampleRate)/1000.0)))
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
