package drumtrainer

import (
	"github.com/cbegin/drumtrainer-go/internal/audio"
	"github.com/cbegin/drumtrainer-go/internal/drums"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
	"github.com/cbegin/drumtrainer-go/internal/sequencer"
)

// RenderOptions controls an offline render.
type RenderOptions struct {
	Loop         bool
	Metronome    bool
	CountInBeats int
	Params       drums.Params
}

// DefaultRenderOptions loops with the metronome on and no count-in.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Loop: true, Metronome: true, Params: drums.DefaultParams()}
}

// RenderSamples renders seconds of interleaved stereo audio of p at bpm.
func RenderSamples(p *pattern.Pattern, c pattern.Complexity, bpm, seconds float64, sampleRate int) []float32 {
	return RenderSamplesWithOptions(p, c, bpm, seconds, sampleRate, DefaultRenderOptions())
}

// RenderSamplesWithOptions is RenderSamples with explicit playback options.
// Ticks are driven by the rendered frame count, so output is deterministic.
func RenderSamplesWithOptions(p *pattern.Pattern, c pattern.Complexity, bpm, seconds float64, sampleRate int, opts RenderOptions) []float32 {
	engine := drums.New(sampleRate, opts.Params)
	seq := sequencer.NewWithOptions(p, c, engine, engine.Clock(), bpm, sequencer.Options{
		Loop:         opts.Loop,
		Metronome:    opts.Metronome,
		CountInBeats: opts.CountInBeats,
	})
	defer seq.Close()
	seq.Start()
	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	engine.Process(out)
	return out
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	return audio.EncodeWAVFloat32(samples, sampleRate, channels)
}
