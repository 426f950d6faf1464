package onset

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cbegin/drumtrainer-go/internal/audio"
)

var (
	// ErrPermissionDenied is returned by a Source when the user refused
	// access to the input device.
	ErrPermissionDenied = errors.New("onset: input permission denied")
	// ErrDeviceUnavailable is returned when no input device can be opened.
	ErrDeviceUnavailable = errors.New("onset: input device unavailable")
)

// Input is an open mono capture stream. Read blocks until samples are
// available and returns io.EOF when the stream ends.
type Input interface {
	Read(dst []float32) (int, error)
	SampleRate() int
	Close() error
}

// Source acquires an Input. Each successful Open must be paired with
// Input.Close.
type Source interface {
	Open(ctx context.Context) (Input, error)
}

// Unavailable is the Source used when no capture device is configured.
type Unavailable struct{}

func (Unavailable) Open(context.Context) (Input, error) {
	return nil, ErrDeviceUnavailable
}

// FileSource replays a recorded take. With Realtime set, reads are paced
// to the sample rate as a live microphone would be.
type FileSource struct {
	Data       []byte
	SampleRate int
	Realtime   bool
}

func (f FileSource) Open(context.Context) (Input, error) {
	sr := f.SampleRate
	if sr <= 0 {
		sr = 48000
	}
	buf, err := audio.Decode(f.Data, sr)
	if err != nil {
		return nil, err
	}
	return &sliceInput{samples: buf.Mono(), sampleRate: sr, realtime: f.Realtime}, nil
}

// SampleSource serves mono samples already in memory.
type SampleSource struct {
	Samples    []float32
	SampleRate int
}

func (s SampleSource) Open(context.Context) (Input, error) {
	return &sliceInput{samples: s.Samples, sampleRate: s.SampleRate}, nil
}

type sliceInput struct {
	mu         sync.Mutex
	samples    []float32
	pos        int
	sampleRate int
	realtime   bool
	started    time.Time
	closed     bool
}

func (in *sliceInput) Read(dst []float32) (int, error) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if in.pos >= len(in.samples) {
		in.mu.Unlock()
		return 0, io.EOF
	}
	n := copy(dst, in.samples[in.pos:])
	in.pos += n
	pos := in.pos
	if in.realtime && in.started.IsZero() {
		in.started = time.Now()
	}
	started := in.started
	in.mu.Unlock()

	if in.realtime {
		due := started.Add(time.Duration(pos) * time.Second / time.Duration(in.sampleRate))
		time.Sleep(time.Until(due))
	}
	return n, nil
}

func (in *sliceInput) SampleRate() int { return in.sampleRate }

func (in *sliceInput) Close() error {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
	return nil
}
