package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Output plays a SampleSource until closed. Device is the real one; tests
// and offline rendering substitute their own.
type Output interface {
	Start(src SampleSource) error
	SampleRate() int
	Close() error
}

// ErrDeviceClosed is returned by Start after Close.
var ErrDeviceClosed = errors.New("audio: device closed")

// ebiten allows one audio context per process, so the context itself is
// shared; each Device still owns its player and must be closed.
var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// Device is an opened output stream.
type Device struct {
	mu         sync.Mutex
	sampleRate int
	tap        func([]float32)
	player     *ebitaudio.Player
	reader     *StreamReader
	closed     bool
}

// OpenDevice acquires the audio output at sampleRate. tap may be nil.
func OpenDevice(sampleRate int, tap func([]float32)) (*Device, error) {
	if _, err := sharedAudioContext(sampleRate); err != nil {
		return nil, err
	}
	return &Device{sampleRate: sampleRate, tap: tap}, nil
}

func (d *Device) SampleRate() int { return d.sampleRate }

// Start begins pulling frames from src, replacing any previous source.
func (d *Device) Start(src SampleSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	if d.player != nil {
		d.player.Pause()
		_ = d.player.Close()
		d.player = nil
	}
	ctx, err := sharedAudioContext(d.sampleRate)
	if err != nil {
		return err
	}
	reader := NewStreamReader(src, d.tap)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return fmt.Errorf("audio: new player: %w", err)
	}
	// Short buffer keeps tick-to-sound latency low.
	pl.SetBufferSize(40 * time.Millisecond)
	pl.Play()
	d.player = pl
	d.reader = reader
	return nil
}

// Position returns what the listener actually hears.
func (d *Device) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return 0
	}
	return d.player.Position()
}

// Close stops the stream. It is safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.player == nil {
		return nil
	}
	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	if cerr := d.reader.Close(); err == nil {
		err = cerr
	}
	return err
}
