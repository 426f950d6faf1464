package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbegin/drumtrainer-go"
	"github.com/cbegin/drumtrainer-go/internal/onset"
	"github.com/cbegin/drumtrainer-go/internal/store"
)

var (
	playLoops     int
	playPractice  bool
	playBacking   string
	playTake      string
	playMetronome bool
	playCountIn   int
	playWallClock bool
	playEQ        []float32
	playWindows   []time.Duration
)

var playCmd = &cobra.Command{
	Use:   "play [notation-file|-]",
	Short: "Play notation through the audio device",
	Long: `Plays the pattern with metronome and drum sounds. With --practice the
pattern plays once (after the count-in) and the session ends; otherwise it
loops until --loops is reached or the process is interrupted.

--take scores a recorded performance in real time against the pattern,
standing in for a live microphone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().IntVar(&playLoops, "loops", 0, "Stop after N loops (0 = until interrupted)")
	playCmd.Flags().BoolVar(&playPractice, "practice", false, "Play the pattern once and stop")
	playCmd.Flags().StringVar(&playBacking, "backing", "", "Backing track path or URL (mp3, ogg, wav)")
	playCmd.Flags().StringVar(&playTake, "take", "", "Recorded take (wav, mp3, ogg) to score while playing")
	playCmd.Flags().BoolVar(&playMetronome, "metronome", true, "Play metronome clicks")
	playCmd.Flags().IntVar(&playCountIn, "count-in", -1, "Count-in beats (default from DRUMTRAINER_COUNT_IN_BEATS)")
	playCmd.Flags().BoolVar(&playWallClock, "wall-clock", false, "Tick from the wall clock instead of the audio stream")
	playCmd.Flags().Float32SliceVar(&playEQ, "eq", nil, "Master EQ gains, low to high (up to 5 values, 1 = flat)")
	playCmd.Flags().DurationSliceVar(&playWindows, "windows", nil, "Perfect, good and slightly-off timing windows (e.g. 30ms,75ms,150ms)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	text, err := readNotation(args)
	if err != nil {
		return err
	}

	opts := []drumtrainer.SessionOption{
		drumtrainer.WithConfig(cfg),
		drumtrainer.WithLoopPlayback(!playPractice),
		drumtrainer.WithFetcher(store.NewResolver("")),
	}
	if playCountIn >= 0 {
		opts = append(opts, drumtrainer.WithCountIn(playCountIn))
	}
	if playWallClock {
		opts = append(opts, drumtrainer.WithClock(drumtrainer.ClockWall))
	}
	if playTake != "" {
		data, err := os.ReadFile(playTake)
		if err != nil {
			return err
		}
		opts = append(opts, drumtrainer.WithMicrophone(onset.FileSource{Data: data, SampleRate: cfg.SampleRate, Realtime: true}))
	}

	s, err := drumtrainer.Open(opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.LoadNotation(text)
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(os.Stderr, "warning: %s\n", d)
	}
	if bpmFlag > 0 {
		s.SetBPM(bpmFlag)
	}
	s.SetMetronome(playMetronome)
	for band, gain := range playEQ {
		s.SetEQBand(band, gain)
	}
	if len(playWindows) > 0 {
		if len(playWindows) != 3 {
			return fmt.Errorf("--windows takes three durations, got %d", len(playWindows))
		}
		s.SetThresholds(onset.Thresholds{Perfect: playWindows[0], Good: playWindows[1], SlightlyOff: playWindows[2]})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if playBacking != "" && !s.LoadBackingTrack(ctx, playBacking) {
		fmt.Fprintln(os.Stderr, "backing track unavailable; continuing without it")
	}

	ch := s.Watch()
	if err := s.Play(); err != nil {
		return err
	}
	if playTake != "" {
		_ = s.Listen(ctx, nil)
	}
	snap := s.Snapshot()
	fmt.Printf("playing %d steps at %.0f BPM (%s)\n", res.Pattern.Len(), snap.BPM, res.Format)

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			printStats(s.Stats())
			return nil
		case ev := <-ch:
			switch ev.Kind {
			case drumtrainer.EventCountIn:
				fmt.Printf("count %d\n", ev.Beat)
			case drumtrainer.EventLoopCompleted:
				fmt.Printf("loop %d completed\n", ev.Loop)
				if playLoops > 0 && ev.Loop >= playLoops {
					s.Stop()
					printStats(s.Stats())
					return nil
				}
			case drumtrainer.EventPracticeCompleted:
				fmt.Println("practice completed")
				s.StopListening()
				printStats(s.Stats())
				return nil
			case drumtrainer.EventOnsetScored:
				sc := ev.Score
				fmt.Printf("hit %-12s %-8s %+6.1fms\n", sc.Accuracy, sc.Instrument, float64(sc.Delta.Microseconds())/1000)
			}
		}
	}
}

func printStats(st onset.Stats) {
	if st.Total == 0 {
		return
	}
	fmt.Printf("perfect %d  good %d  slightly off %d  missed %d  accuracy %.1f%%  best streak %d\n",
		st.Perfect, st.Good, st.SlightlyOff, st.Missed, st.Accuracy(), st.BestStreak)
}
