package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cbegin/drumtrainer-go"
	"github.com/cbegin/drumtrainer-go/internal/audio"
	"github.com/cbegin/drumtrainer-go/internal/drums"
	"github.com/cbegin/drumtrainer-go/internal/notation"
)

var (
	renderOutput    string
	renderSeconds   float64
	renderPCM16     bool
	renderMetronome bool
	renderReverb    bool
)

var renderCmd = &cobra.Command{
	Use:   "render [notation-file|-]",
	Short: "Render notation to a WAV file without an audio device",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "out.wav", "Output .wav path")
	renderCmd.Flags().Float64Var(&renderSeconds, "seconds", 8, "Length to render")
	renderCmd.Flags().BoolVar(&renderPCM16, "pcm16", false, "Write 16-bit PCM instead of 32-bit float")
	renderCmd.Flags().BoolVar(&renderMetronome, "metronome", true, "Include metronome clicks")
	renderCmd.Flags().BoolVar(&renderReverb, "reverb", false, "Add room reverb to the drum bus")
}

func runRender(cmd *cobra.Command, args []string) error {
	text, err := readNotation(args)
	if err != nil {
		return err
	}
	res, err := notation.ParseDetailed(text)
	if err != nil {
		return err
	}
	opts := drumtrainer.DefaultRenderOptions()
	opts.Metronome = renderMetronome
	opts.Params = drums.Params{
		MetronomeVolume: cfg.MetronomeVolume,
		DrumsVolume:     cfg.DrumsVolume,
		BackingVolume:   cfg.BackingVolume,
		RoomReverb:      renderReverb || cfg.RoomReverb,
		BusCompressor:   true,
	}
	bpm := tempo(res.BPM)
	samples := drumtrainer.RenderSamplesWithOptions(res.Pattern, res.Complexity, bpm, renderSeconds, cfg.SampleRate, opts)

	var wav []byte
	if renderPCM16 {
		wav = audio.EncodeWAV16(samples, cfg.SampleRate)
	} else {
		wav = drumtrainer.EncodeWAVFloat32LE(samples, cfg.SampleRate, 2)
	}
	if err := os.WriteFile(renderOutput, wav, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%.1fs at %.0f BPM)\n", renderOutput, renderSeconds, bpm)
	return nil
}
