package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constSource struct {
	v        float32
	finished bool
}

func (s *constSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = s.v
	}
}

func (s *constSource) Finished() bool { return s.finished }

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	var tapped int
	src := &constSource{v: 0.25}
	r := NewStreamReader(src, func(b []float32) { tapped += len(b) })
	p := make([]byte, 8*4+3)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	assert.Equal(t, 8, tapped)
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(p[28:])))
	assert.Equal(t, int64(4), r.FramesRead())

	src.finished = true
	_, err = r.Read(p)
	assert.ErrorIs(t, err, io.EOF)

	n, err = r.Read(make([]byte, 7))
	assert.Zero(t, n)
	assert.NoError(t, err)
}

func sineWAV(seconds float64, sampleRate int) ([]float32, []byte) {
	frames := int(seconds * float64(sampleRate))
	samples := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		samples[2*i] = v
		samples[2*i+1] = -v
	}
	return samples, EncodeWAV16(samples, sampleRate)
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	samples, data := sineWAV(0.25, 48000)
	assert.Equal(t, "wav", Format(data))

	buf, err := Decode(data, 48000)
	require.NoError(t, err)
	require.Equal(t, len(samples)/2, buf.Frames())
	assert.Equal(t, 250*time.Millisecond, buf.Duration())
	for i := 0; i < buf.Frames(); i += 997 {
		l, r := buf.Frame(i)
		assert.InDelta(t, samples[2*i], l, 1e-3)
		assert.InDelta(t, samples[2*i+1], r, 1e-3)
	}
	l, r := buf.Frame(buf.Frames())
	assert.Zero(t, l)
	assert.Zero(t, r)
	for _, m := range buf.Mono()[:100] {
		assert.InDelta(t, 0, m, 1e-3)
	}
}

func TestDecodeRejectsUnknownData(t *testing.T) {
	_, err := Decode([]byte("not audio at all"), 48000)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode([]byte("RIFF\x00\x00\x00\x00WAVEjunk"), 48000)
	assert.Error(t, err)
}

func TestFormatSniffing(t *testing.T) {
	assert.Equal(t, "vorbis", Format([]byte("OggS\x00\x02")))
	assert.Equal(t, "mp3", Format([]byte("ID3\x04")))
	assert.Equal(t, "mp3", Format([]byte{0xFF, 0xFB, 0x90}))
	assert.Equal(t, "", Format(nil))
}

func TestEncodeWAVFloat32Header(t *testing.T) {
	data := EncodeWAVFloat32([]float32{0.5, -0.5}, 44100, 2)
	require.Len(t, data, 52)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(data[20:]))
	assert.Equal(t, uint32(44100*8), binary.LittleEndian.Uint32(data[28:]))
	assert.Equal(t, float32(-0.5), math.Float32frombits(binary.LittleEndian.Uint32(data[48:])))
}
