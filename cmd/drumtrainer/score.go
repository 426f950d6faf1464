package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbegin/drumtrainer-go/internal/notation"
	"github.com/cbegin/drumtrainer-go/internal/onset"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

var (
	scoreLoop   bool
	scoreOffset time.Duration
	scoreJSON   bool
)

var scoreCmd = &cobra.Command{
	Use:   "score <notation-file|-> <take.wav>",
	Short: "Score a recorded take against notation",
	Long: `Detects onsets in the recording and grades each one against the nearest
scheduled note. --offset is the time in the recording where step 0 starts.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreLoop, "loop", true, "Treat the pattern as looping for the whole take")
	scoreCmd.Flags().DurationVar(&scoreOffset, "offset", 0, "Time of step 0 in the recording")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "Print every score as JSON")
}

func runScore(cmd *cobra.Command, args []string) error {
	takePath := args[len(args)-1]
	text, err := readNotation(args[:len(args)-1])
	if err != nil {
		return err
	}
	res, err := notation.ParseDetailed(text)
	if err != nil {
		return err
	}
	take, err := os.ReadFile(takePath)
	if err != nil {
		return err
	}

	bpm := tempo(res.BPM)
	spb := pattern.StepsPerBeat(res.Complexity)
	var period time.Duration
	if scoreLoop {
		period = pattern.Duration(res.Pattern, bpm, spb)
	}
	scorer := onset.NewScorer(pattern.Schedule(res.Pattern, bpm, spb), period)

	det := onset.NewDetector(onset.Options{
		Threshold:  cfg.OnsetThreshold,
		Refractory: time.Duration(cfg.RefractoryMs) * time.Millisecond,
	})
	var scores []onset.Score
	src := onset.FileSource{Data: take, SampleRate: cfg.SampleRate}
	err = det.Start(cmd.Context(), src, func(o onset.Onset) {
		o.At -= scoreOffset
		scores = append(scores, scorer.Score(o))
	})
	if err != nil {
		return err
	}
	det.Wait()

	if scoreJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Stats    onset.Stats             `json:"stats"`
			Accuracy float64                 `json:"accuracy"`
			Scores   []onset.Score           `json:"scores"`
			Notes    []pattern.ScheduledNote `json:"notes"`
		}{scorer.Stats(), scorer.Stats().Accuracy(), scores, scorer.Results()})
	}
	for _, sc := range scores {
		cmd.Printf("%8.3fs %-12s %-10s %+6.1fms\n", sc.Onset.At.Seconds(), sc.Accuracy, sc.Instrument, float64(sc.Delta.Microseconds())/1000)
	}
	printStats(scorer.Stats())
	if n := scorer.Unplayed(); n > 0 {
		cmd.Printf("%d scheduled notes never played\n", n)
	}
	return nil
}
