// Package main is the entry point for the drumtrainer CLI
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cbegin/drumtrainer-go/internal/config"
	"github.com/cbegin/drumtrainer-go/internal/logger"
)

const sentryFlushTimeout = 2 * time.Second

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

var (
	envFile     string
	bpmFlag     float64
	notationArg string
	cfg         *config.Config
	flushSentry = func() {}
)

func main() {
	err := rootCmd.Execute()
	flushSentry()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "drumtrainer",
	Short: "Practice drum patterns written as tabular notation",
	Long: `drumtrainer plays drum notation with a metronome and an optional
backing track, scores recorded or live playing, and exports MIDI.

Examples:
  drumtrainer play groove.csv --bpm 90
  drumtrainer render groove.csv -o groove.wav --seconds 8
  drumtrainer export groove.csv -o groove.mid --loops 4
  drumtrainer score groove.csv take.wav
  drumtrainer serve --port 8080`,
	Version:           releaseVersion,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file (default .env when present)")
	rootCmd.PersistentFlags().Float64Var(&bpmFlag, "bpm", 0, "Tempo override; defaults to the notation's BPM column or DRUMTRAINER_BPM")
	rootCmd.PersistentFlags().StringVarP(&notationArg, "notation", "n", "", "Inline notation instead of a file argument")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(serveCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env", nil)
	}

	cfg = config.Load()
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	initSentry()
	return nil
}

func initSentry() {
	if cfg.SentryDSN == "" {
		return
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     "drumtrainer@" + releaseVersion,
		EnableLogs:  true,
		Debug:       !cfg.IsProduction(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
			}
			return event
		},
	})
	if err != nil {
		logger.Warn("failed to initialize sentry", logger.Fields{"error": err.Error()})
		return
	}
	logger.Info("sentry initialized", logger.Fields{"environment": cfg.Environment, "release": releaseVersion})
	flushSentry = func() { sentry.Flush(sentryFlushTimeout) }
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string, len(headers))
	for k, v := range headers {
		switch strings.ToLower(k) {
		case "authorization", "cookie", "x-api-key":
			filtered[k] = "[REDACTED]"
		default:
			filtered[k] = v
		}
	}
	return filtered
}

// readNotation returns inline notation, the named file, or stdin for "-".
func readNotation(args []string) (string, error) {
	if strings.TrimSpace(notationArg) != "" {
		return notationArg, nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no notation: pass a file or --notation")
	}
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// tempo picks the --bpm flag, then the notation's tempo, then the
// configured default.
func tempo(notationBPM float64) float64 {
	switch {
	case bpmFlag > 0:
		return bpmFlag
	case notationBPM > 0:
		return notationBPM
	default:
		return cfg.BPM
	}
}
