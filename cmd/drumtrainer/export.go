package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cbegin/drumtrainer-go/internal/midiexport"
	"github.com/cbegin/drumtrainer-go/internal/notation"
)

var (
	exportOutput string
	exportLoops  int
)

var exportCmd = &cobra.Command{
	Use:   "export <notation-file|->",
	Short: "Export notation as a General MIDI drum track",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output .mid path (default: input name with .mid)")
	exportCmd.Flags().IntVar(&exportLoops, "loops", 1, "Repeat the pattern N times")
}

func runExport(cmd *cobra.Command, args []string) error {
	text, err := readNotation(args)
	if err != nil {
		return err
	}
	res, err := notation.ParseDetailed(text)
	if err != nil {
		return err
	}
	out := exportOutput
	if out == "" {
		out = "pattern.mid"
		if len(args) > 0 && args[0] != "-" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".mid"
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	bpm := tempo(res.BPM)
	opts := midiexport.Options{Loops: exportLoops, Name: strings.TrimSuffix(filepath.Base(out), ".mid")}
	if err := midiexport.Write(f, res.Pattern, res.Complexity, bpm, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d steps x %d at %.0f BPM)\n", out, res.Pattern.Len(), max(exportLoops, 1), bpm)
	return nil
}
