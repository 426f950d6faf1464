package drums

import (
	"errors"
	"time"

	"github.com/cbegin/drumtrainer-go/internal/audio"
)

// ErrNoBackingTrack is returned by Transport.Play when nothing is loaded.
var ErrNoBackingTrack = errors.New("drums: no backing track loaded")

// Transport plays the backing track on the backing bus. Position is kept
// as a frame offset into the buffer plus the engine frame at which that
// offset was last (re)started.
type Transport struct {
	e          *Engine
	buf        *audio.Buffer
	playing    bool
	startFrame int64
	offset     int64
	estimate   time.Duration
}

func (t *Transport) setBuffer(buf *audio.Buffer) {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	t.buf = buf
	t.playing = false
	t.offset = 0
}

// Loaded reports whether a decoded track is available.
func (t *Transport) Loaded() bool {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	return t.buf != nil
}

// Play starts or resumes from the current offset.
func (t *Transport) Play() error {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	if t.buf == nil {
		return ErrNoBackingTrack
	}
	if t.playing {
		return nil
	}
	if t.offset >= int64(t.buf.Frames()) {
		t.offset = 0
	}
	t.playing = true
	t.startFrame = t.e.clock.Frame()
	return nil
}

// Pause keeps the current position as the offset to resume from.
func (t *Transport) Pause() {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	if !t.playing {
		return
	}
	t.offset = t.positionLocked()
	t.playing = false
}

// Stop halts playback and rewinds.
func (t *Transport) Stop() {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	t.playing = false
	t.offset = 0
}

// Seek moves to seconds, clamped to the track. A playing track restarts
// from the new offset.
func (t *Transport) Seek(seconds float64) {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	if seconds < 0 || seconds != seconds {
		seconds = 0
	}
	off := int64(seconds * float64(t.e.sampleRate))
	if t.buf != nil && off > int64(t.buf.Frames()) {
		off = int64(t.buf.Frames())
	}
	t.offset = off
	if t.playing {
		t.startFrame = t.e.clock.Frame()
	}
}

func (t *Transport) Playing() bool {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	return t.playing
}

// SetEstimatedDuration is reported by Duration until a track is loaded.
func (t *Transport) SetEstimatedDuration(d time.Duration) {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	t.estimate = d
}

// Duration is the decoded length, or the estimate when nothing is loaded.
func (t *Transport) Duration() time.Duration {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	if t.buf != nil {
		return t.buf.Duration()
	}
	return t.estimate
}

// CurrentTime is the playback position within the track.
func (t *Transport) CurrentTime() time.Duration {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	return time.Duration(t.positionLocked()) * time.Second / time.Duration(t.e.sampleRate)
}

func (t *Transport) positionLocked() int64 {
	if !t.playing {
		return t.offset
	}
	pos := t.offset + t.e.clock.Frame() - t.startFrame
	if t.buf != nil && pos > int64(t.buf.Frames()) {
		pos = int64(t.buf.Frames())
	}
	return pos
}

// renderLocked writes the next len(out)/2 frames of the track into out.
// now is the engine frame at the start of the block.
func (t *Transport) renderLocked(out []float32, now int64) {
	if !t.playing || t.buf == nil {
		return
	}
	pos := t.offset + now - t.startFrame
	frames := len(out) / 2
	total := int64(t.buf.Frames())
	for f := 0; f < frames; f++ {
		if pos+int64(f) >= total {
			t.playing = false
			t.offset = total
			return
		}
		out[f*2], out[f*2+1] = t.buf.Frame(int(pos) + f)
	}
}
