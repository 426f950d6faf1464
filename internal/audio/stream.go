// Package audio owns the output device and converts between the float32
// sample buffers the mixer renders and the byte streams ebiten expects.
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
)

// SampleSource fills dst with interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// StreamReader adapts a SampleSource to the float32 little-endian stereo
// byte stream of ebiten's NewPlayerF32. An optional tap sees every block
// after it is rendered.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	tap    func([]float32)
	buf    []float32
	frames int64
}

func NewStreamReader(source SampleSource, tap func([]float32)) *StreamReader {
	return &StreamReader{source: source, tap: tap}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	if r.tap != nil {
		r.tap(r.buf)
	}
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	r.frames += int64(frames)
	n := frames * 8
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

// FramesRead is the number of frames handed to the device so far.
func (r *StreamReader) FramesRead() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *StreamReader) Close() error { return nil }
