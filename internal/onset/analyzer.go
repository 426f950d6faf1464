package onset

import (
	"math"
	"math/cmplx"
	"sync"
)

const (
	// FFTSize is the analysis window; FFTSize/2 frequency bins are reported.
	FFTSize    = 2048
	ringBufLen = 16384

	minDecibels = -90.0
	maxDecibels = -10.0
)

// Analyzer keeps the most recent input in a ring buffer and produces
// byte-scaled magnitude spectra with the same scaling and time smoothing
// as a browser AnalyserNode, so thresholds tuned there carry over.
type Analyzer struct {
	mu         sync.Mutex
	sampleRate int
	smoothing  float64
	ring       []float32
	writePos   int
	total      int64

	window   []float64
	buf      []complex128
	smoothed []float64
	bytes    []byte
}

// NewAnalyzer creates an analyzer. smoothing in [0, 1) blends each
// spectrum with the previous one; browsers default to 0.8.
func NewAnalyzer(sampleRate int, smoothing float64) *Analyzer {
	if smoothing < 0 || smoothing >= 1 {
		smoothing = 0
	}
	a := &Analyzer{
		sampleRate: sampleRate,
		smoothing:  smoothing,
		ring:       make([]float32, ringBufLen),
		window:     make([]float64, FFTSize),
		buf:        make([]complex128, FFTSize),
		smoothed:   make([]float64, FFTSize/2),
		bytes:      make([]byte, FFTSize/2),
	}
	for i := range a.window {
		a.window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(FFTSize)))
	}
	return a
}

func (a *Analyzer) SampleRate() int { return a.sampleRate }

// BinCount is the number of frequency bins per spectrum.
func (a *Analyzer) BinCount() int { return FFTSize / 2 }

// Write appends mono samples.
func (a *Analyzer) Write(samples []float32) {
	a.mu.Lock()
	for _, s := range samples {
		a.ring[a.writePos] = s
		a.writePos = (a.writePos + 1) % ringBufLen
	}
	a.total += int64(len(samples))
	a.mu.Unlock()
}

// Samples returns the number of samples written since the last Reset.
func (a *Analyzer) Samples() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.writePos = 0
	a.total = 0
}

// Spectrum analyzes the latest FFTSize samples and returns byte magnitudes
// in [0, 255], one per bin. The slice is reused by the next call.
func (a *Analyzer) Spectrum() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	start := (a.writePos - FFTSize + ringBufLen) % ringBufLen
	for i := 0; i < FFTSize; i++ {
		a.buf[i] = complex(float64(a.ring[(start+i)%ringBufLen])*a.window[i], 0)
	}
	fft(a.buf)
	for i := range a.smoothed {
		mag := cmplx.Abs(a.buf[i]) / FFTSize
		a.smoothed[i] = a.smoothing*a.smoothed[i] + (1-a.smoothing)*mag
		db := minDecibels
		if a.smoothed[i] > 0 {
			db = 20 * math.Log10(a.smoothed[i])
		}
		v := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		a.bytes[i] = byte(v)
	}
	return a.bytes
}

// fft computes a radix-2 FFT in-place.
func fft(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}
	bits := 0
	for m := n; m > 1; m >>= 1 {
		bits++
	}
	for i := 0; i < n; i++ {
		j := 0
		for b := 0; b < bits; b++ {
			if i&(1<<b) != 0 {
				j |= 1 << (bits - 1 - b)
			}
		}
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		wn := -2.0 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				t := cmplx.Rect(1, wn*float64(k)) * x[start+k+half]
				x[start+k+half] = x[start+k] - t
				x[start+k] = x[start+k] + t
			}
		}
	}
}
