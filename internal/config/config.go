package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cbegin/drumtrainer-go/internal/logger"
)

// Config holds the runtime configuration. Every field has a default so an
// empty environment yields a working setup.
type Config struct {
	Environment string
	Port        string
	LogLevel    string

	// Audio
	SampleRate      int
	MetronomeVolume float64
	DrumsVolume     float64
	BackingVolume   float64
	RoomReverb      bool

	// Playback
	BPM          float64
	MinBPM       float64
	MaxBPM       float64
	LeadInSteps  int
	CountInBeats int

	// Onset detection
	OnsetThreshold float64
	RefractoryMs   int

	// Observability
	SentryDSN string
}

func Load() *Config {
	return &Config{
		Environment:     getEnv("DRUMTRAINER_ENV", "development"),
		Port:            getEnv("DRUMTRAINER_PORT", "8080"),
		LogLevel:        getEnv("DRUMTRAINER_LOG_LEVEL", "info"),
		SampleRate:      getInt("DRUMTRAINER_SAMPLE_RATE", 48000),
		MetronomeVolume: getFloat("DRUMTRAINER_METRONOME_VOLUME", 0.6),
		DrumsVolume:     getFloat("DRUMTRAINER_DRUMS_VOLUME", 0.8),
		BackingVolume:   getFloat("DRUMTRAINER_BACKING_VOLUME", 0.7),
		RoomReverb:      getBool("DRUMTRAINER_ROOM_REVERB", false),
		BPM:             getFloat("DRUMTRAINER_BPM", 120),
		MinBPM:          getFloat("DRUMTRAINER_MIN_BPM", 40),
		MaxBPM:          getFloat("DRUMTRAINER_MAX_BPM", 240),
		LeadInSteps:     getInt("DRUMTRAINER_LEAD_IN_STEPS", 5),
		CountInBeats:    getInt("DRUMTRAINER_COUNT_IN_BEATS", 0),
		OnsetThreshold:  getFloat("DRUMTRAINER_ONSET_THRESHOLD", 30),
		RefractoryMs:    getInt("DRUMTRAINER_REFRACTORY_MS", 50),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
	}
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		invalid(key, raw)
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || v != v {
		invalid(key, raw)
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		invalid(key, raw)
		return defaultValue
	}
	return v
}

func invalid(key, raw string) {
	logger.Warn("config: invalid value, using default", logger.Fields{"key": key, "value": raw})
}
