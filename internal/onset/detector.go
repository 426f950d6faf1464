// Package onset detects percussive attacks in a live input stream and
// scores them against the expected hits of a pattern.
package onset

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/cbegin/drumtrainer-go/internal/logger"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// Class is the coarse frequency class of a detected hit.
type Class int

const (
	LowMid Class = iota
	High
)

func (c Class) String() string {
	if c == High {
		return "high"
	}
	return "lowmid"
}

func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Class) UnmarshalText(b []byte) error {
	*c = LowMid
	if string(b) == "high" {
		*c = High
	}
	return nil
}

// ClassOf returns the class an instrument is expected to produce.
func ClassOf(inst pattern.Instrument) Class {
	switch inst {
	case pattern.HiHat, pattern.OpenHat, pattern.Crash, pattern.Ride:
		return High
	default:
		return LowMid
	}
}

// Onset is one detected attack. At is the stream position of the analysis
// pass that fired.
type Onset struct {
	At        time.Duration `json:"at"`
	Frequency float64       `json:"frequency"`
	Amplitude float64       `json:"amplitude"`
	Class     Class         `json:"class"`
}

type State int

const (
	Idle State = iota
	Listening
	Disabled
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Disabled:
		return "disabled"
	default:
		return "idle"
	}
}

const (
	DefaultThreshold     = 30
	DefaultRefractory    = 50 * time.Millisecond
	DefaultHighFrequency = 5000
	DefaultHop           = time.Second / 60
)

type Options struct {
	// Threshold is the RMS of the byte spectrum, 0 to 255.
	Threshold     float64
	Refractory    time.Duration
	HighFrequency float64
	// Hop is the stream time between analysis passes.
	Hop       time.Duration
	Smoothing float64
}

func DefaultOptions() Options {
	return Options{
		Threshold:     DefaultThreshold,
		Refractory:    DefaultRefractory,
		HighFrequency: DefaultHighFrequency,
		Hop:           DefaultHop,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Threshold <= 0 {
		o.Threshold = d.Threshold
	}
	if o.Refractory <= 0 {
		o.Refractory = d.Refractory
	}
	if o.HighFrequency <= 0 {
		o.HighFrequency = d.HighFrequency
	}
	if o.Hop <= 0 {
		o.Hop = d.Hop
	}
	return o
}

// Detector runs one analysis pass per hop on its own goroutine while
// listening. An onset fires whenever the spectrum RMS is above the
// threshold and the refractory interval has passed since the last onset.
type Detector struct {
	opts Options

	mu        sync.Mutex
	state     State
	err       error
	listening bool
	analyzer  *Analyzer
	input     Input
	hasLast   bool
	last      time.Duration
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewDetector(opts Options) *Detector {
	return &Detector{opts: opts.withDefaults()}
}

// Start opens src and begins listening. onOnset is called on the detector
// goroutine. Starting a listening detector does nothing. A failure to open
// the source leaves the detector Disabled with the error kept in Err.
func (d *Detector) Start(ctx context.Context, src Source, onOnset func(Onset)) error {
	d.mu.Lock()
	if d.listening {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if src == nil {
		src = Unavailable{}
	}
	in, err := src.Open(ctx)
	if err != nil {
		d.mu.Lock()
		d.state = Disabled
		d.err = err
		d.mu.Unlock()
		fields := logger.Fields{"permission": errors.Is(err, ErrPermissionDenied)}
		logger.Warn("onset: input unavailable: "+err.Error(), fields)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listening {
		_ = in.Close()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.analyzer = NewAnalyzer(in.SampleRate(), d.opts.Smoothing)
	d.input = in
	d.state = Listening
	d.err = nil
	d.listening = true
	d.hasLast = false
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(runCtx, in, d.done, onOnset)
	return nil
}

// Stop ends listening and releases the input. No analysis pass runs after
// Stop returns. Stopping an idle detector does nothing.
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.listening {
		d.mu.Unlock()
		return
	}
	d.listening = false
	d.state = Idle
	cancel, done, in := d.cancel, d.done, d.input
	d.mu.Unlock()

	cancel()
	_ = in.Close()
	<-done
}

// Wait blocks until the input ends or Stop is called.
func (d *Detector) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (d *Detector) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err is the last failure that disabled the detector.
func (d *Detector) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Detector) run(ctx context.Context, in Input, done chan struct{}, onOnset func(Onset)) {
	defer close(done)
	sr := in.SampleRate()
	hop := int(d.opts.Hop.Seconds() * float64(sr))
	if hop < 1 {
		hop = 1
	}
	buf := make([]float32, hop)
	var consumed int64
	for {
		filled := 0
		for filled < hop {
			if ctx.Err() != nil {
				return
			}
			n, err := in.Read(buf[filled:])
			filled += n
			if err != nil {
				if filled > 0 {
					consumed += int64(filled)
					d.pass(buf[:filled], consumed, sr, onOnset)
				}
				d.finish(err)
				return
			}
		}
		consumed += int64(filled)
		if !d.pass(buf, consumed, sr, onOnset) {
			return
		}
	}
}

// pass feeds one hop and analyzes it. It reports false once listening has
// ended.
func (d *Detector) pass(samples []float32, consumed int64, sr int, onOnset func(Onset)) bool {
	d.mu.Lock()
	if !d.listening {
		d.mu.Unlock()
		return false
	}
	at := time.Duration(consumed) * time.Second / time.Duration(sr)
	o, ok := d.analyzeLocked(samples, at)
	d.mu.Unlock()
	if ok && onOnset != nil {
		onOnset(o)
	}
	return true
}

func (d *Detector) analyzeLocked(samples []float32, at time.Duration) (Onset, bool) {
	d.analyzer.Write(samples)
	spec := d.analyzer.Spectrum()

	var sum float64
	peak, peakBin := byte(0), 0
	for i, v := range spec {
		sum += float64(v) * float64(v)
		if v > peak {
			peak, peakBin = v, i
		}
	}
	rms := math.Sqrt(sum / float64(len(spec)))
	if rms <= d.opts.Threshold {
		return Onset{}, false
	}
	if d.hasLast && at-d.last <= d.opts.Refractory {
		return Onset{}, false
	}
	d.hasLast = true
	d.last = at

	freq := float64(peakBin) * float64(d.analyzer.SampleRate()) / float64(2*len(spec))
	class := LowMid
	if freq > d.opts.HighFrequency {
		class = High
	}
	return Onset{At: at, Frequency: freq, Amplitude: rms / 255, Class: class}, true
}

func (d *Detector) finish(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.listening {
		return
	}
	d.listening = false
	_ = d.input.Close()
	if errors.Is(err, io.EOF) {
		d.state = Idle
		return
	}
	d.state = Disabled
	d.err = err
	logger.Warn("onset: input failed: "+err.Error(), nil)
}
