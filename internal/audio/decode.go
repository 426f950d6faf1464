package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// ErrUnsupportedFormat is returned for data that is not WAV, MP3 or Ogg Vorbis.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// Buffer is decoded interleaved stereo audio.
type Buffer struct {
	SampleRate int
	Samples    []float32
}

// Frames returns the number of stereo frames.
func (b *Buffer) Frames() int {
	if b == nil {
		return 0
	}
	return len(b.Samples) / 2
}

func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Frame returns the frame at i, or silence past the end.
func (b *Buffer) Frame(i int) (float32, float32) {
	if i < 0 || 2*i+1 >= len(b.Samples) {
		return 0, 0
	}
	return b.Samples[2*i], b.Samples[2*i+1]
}

// Mono averages both channels into one slice.
func (b *Buffer) Mono() []float32 {
	out := make([]float32, b.Frames())
	for i := range out {
		out[i] = (b.Samples[2*i] + b.Samples[2*i+1]) * 0.5
	}
	return out
}

// Format sniffs the container from the leading bytes.
func Format(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return "vorbis"
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	default:
		return ""
	}
}

// Decode decodes WAV, MP3 or Ogg Vorbis data resampled to sampleRate.
func Decode(data []byte, sampleRate int) (*Buffer, error) {
	src := bytes.NewReader(data)
	var (
		stream io.Reader
		err    error
	)
	switch Format(data) {
	case "wav":
		stream, err = wav.DecodeWithSampleRate(sampleRate, src)
	case "vorbis":
		stream, err = vorbis.DecodeWithSampleRate(sampleRate, src)
	case "mp3":
		stream, err = mp3.DecodeWithSampleRate(sampleRate, src)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("audio: decode: %w", err)
	}
	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("audio: read decoded stream: %w", err)
	}
	return &Buffer{SampleRate: sampleRate, Samples: int16ToFloat(pcm)}, nil
}

// int16ToFloat converts signed 16-bit little-endian PCM to float32.
func int16ToFloat(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// EncodeWAV16 encodes interleaved stereo samples as 16-bit PCM WAV.
func EncodeWAV16(samples []float32, sampleRate int) []byte {
	const channels = 2
	dataSize := len(samples) * 2
	out := make([]byte, 44+dataSize)
	writeWAVHeader(out, sampleRate, channels, 16, 1, dataSize)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(int16(s*32767)))
	}
	return out
}

// EncodeWAVFloat32 encodes interleaved samples as IEEE float WAV.
func EncodeWAVFloat32(samples []float32, sampleRate, channels int) []byte {
	dataSize := len(samples) * 4
	out := make([]byte, 44+dataSize)
	writeWAVHeader(out, sampleRate, channels, 32, 3, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

func writeWAVHeader(out []byte, sampleRate, channels, bits, format, dataSize int) {
	blockAlign := channels * bits / 8
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], uint16(format))
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], uint16(bits))
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
}
