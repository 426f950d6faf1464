package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFieldsSortsKeys(t *testing.T) {
	got := formatFields(Fields{"step": 4, "instrument": "snare", "bpm": 120.5})
	assert.Equal(t, "{bpm=120.5, instrument=snare, step=4}", got)
	assert.Equal(t, "", formatFields(nil))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	defer SetLevel(LevelInfo)

	SetLevel(LevelWarn)
	Info("hidden", nil)
	Debug("hidden", nil)
	Warn("shown", Fields{"k": "v"})
	Error("failed", errors.New("boom"), nil)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown {k=v}")
	assert.Contains(t, out, "[ERROR] failed: boom")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}
