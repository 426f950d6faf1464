package drums

import (
	"context"

	"github.com/cbegin/drumtrainer-go/internal/audio"
	"github.com/cbegin/drumtrainer-go/internal/logger"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// Fetcher returns the raw bytes behind a content reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// RegisterSample makes inst play buf instead of its synthesized sound. A
// nil buffer restores synthesis.
func (e *Engine) RegisterSample(inst pattern.Instrument, buf *audio.Buffer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if buf == nil {
		delete(e.samples, inst)
		return
	}
	e.samples[inst] = buf
}

// HasSample reports whether inst plays a registered sample.
func (e *Engine) HasSample(inst pattern.Instrument) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.samples[inst] != nil
}

// LoadSample fetches and decodes ref for inst. Failures are logged and the
// instrument keeps its synthesized sound.
func (e *Engine) LoadSample(ctx context.Context, f Fetcher, inst pattern.Instrument, ref string) bool {
	buf, ok := e.fetchAndDecode(ctx, f, ref, logger.Fields{"instrument": string(inst)})
	if !ok {
		return false
	}
	e.RegisterSample(inst, buf)
	return true
}

// LoadBackingTrack fetches and decodes ref as the backing track. Failures
// are logged and leave the transport silent; drums and metronome are
// unaffected.
func (e *Engine) LoadBackingTrack(ctx context.Context, f Fetcher, ref string) bool {
	buf, ok := e.fetchAndDecode(ctx, f, ref, logger.Fields{"kind": "backing"})
	if !ok {
		e.backing.setBuffer(nil)
		return false
	}
	e.backing.setBuffer(buf)
	logger.Info("drums: backing track loaded", logger.Fields{
		"ref":      ref,
		"duration": buf.Duration().String(),
	})
	return true
}

func (e *Engine) fetchAndDecode(ctx context.Context, f Fetcher, ref string, fields logger.Fields) (*audio.Buffer, bool) {
	fields["ref"] = ref
	if f == nil {
		logger.Warn("drums: no fetcher configured", fields)
		return nil, false
	}
	data, err := f.Fetch(ctx, ref)
	if err != nil {
		logger.Warn("drums: fetch failed: "+err.Error(), fields)
		return nil, false
	}
	buf, err := audio.Decode(data, e.sampleRate)
	if err != nil {
		logger.Warn("drums: decode failed: "+err.Error(), fields)
		return nil, false
	}
	return buf, true
}
