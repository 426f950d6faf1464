package effects

import (
	"math"
	"sync/atomic"
)

// Band indexes of the master EQ.
const (
	BandSub = iota
	BandLow
	BandMid
	BandPresence
	BandAir
	NumBands
)

// EQ5Band is the master equalizer. Bands split at 90Hz, 400Hz, 2.5kHz and
// 7kHz, which separate kick fundamental, kick and tom body, snare, stick
// attack and cymbals.
// Gains are stored as float32 bits so the UI thread can change them while
// the audio thread reads without locking.
type EQ5Band struct {
	gains  [NumBands]atomic.Uint32
	alphas [NumBands - 1]float32
	lpL    [NumBands - 1]float32
	lpR    [NumBands - 1]float32
}

var drumCrossovers = [NumBands - 1]float64{90, 400, 2500, 7000}

// NewEQ5Band creates an EQ with all gains at unity.
func NewEQ5Band(sampleRate int) *EQ5Band {
	eq := &EQ5Band{}
	dt := 1.0 / float64(sampleRate)
	for i, freq := range drumCrossovers {
		rc := 1.0 / (2.0 * math.Pi * freq)
		eq.alphas[i] = float32(dt / (rc + dt))
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1.0))
	}
	return eq
}

// SetGain sets a linear band gain clamped to [0, 4]. Out of range bands are ignored.
func (eq *EQ5Band) SetGain(band int, gain float32) {
	if band < 0 || band >= NumBands {
		return
	}
	eq.gains[band].Store(math.Float32bits(clamp(gain, 0, 4)))
}

// SetGainDB sets a band gain in decibels.
func (eq *EQ5Band) SetGainDB(band int, db float32) {
	eq.SetGain(band, dbToGain(db))
}

// Gain returns the linear gain of band, 1 for unknown bands.
func (eq *EQ5Band) Gain(band int) float32 {
	if band < 0 || band >= NumBands {
		return 1.0
	}
	return math.Float32frombits(eq.gains[band].Load())
}

func (eq *EQ5Band) Process(l, r float32) (float32, float32) {
	// Each crossover takes the lowpassed part of what remains; the residue
	// above the last crossover is the top band.
	var outL, outR float32
	remL, remR := l, r
	for i := range eq.alphas {
		eq.lpL[i] += eq.alphas[i] * (remL - eq.lpL[i])
		eq.lpR[i] += eq.alphas[i] * (remR - eq.lpR[i])
		g := math.Float32frombits(eq.gains[i].Load())
		outL += eq.lpL[i] * g
		outR += eq.lpR[i] * g
		remL -= eq.lpL[i]
		remR -= eq.lpR[i]
	}
	g := math.Float32frombits(eq.gains[NumBands-1].Load())
	return outL + remL*g, outR + remR*g
}

func (eq *EQ5Band) Reset() {
	for i := range eq.lpL {
		eq.lpL[i] = 0
		eq.lpR[i] = 0
	}
}
