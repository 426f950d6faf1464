package notation

import (
	"testing"

	"github.com/cbegin/drumtrainer-go/internal/pattern"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	r := Resolver{}
	for _, tc := range []struct {
		text string
		inst pattern.Instrument
		note pattern.Note
	}{
		{"Bass Drum", pattern.Kick, pattern.Note{Active: true, Velocity: 0.7, Type: pattern.Normal}},
		{" KICK ", pattern.Kick, pattern.Note{Active: true, Velocity: 0.7, Type: pattern.Normal}},
		{"Snare", pattern.Snare, pattern.Note{Active: true, Velocity: 0.7, Type: pattern.Normal}},
		{"High Tom", pattern.Tom, pattern.Note{Active: true, Velocity: 0.8, Type: pattern.Normal}},
		{"Floor Tom", pattern.LowTom, pattern.Note{Active: true, Velocity: 0.8, Type: pattern.Normal}},
		{"Crash Cymbal", pattern.Crash, pattern.Note{Active: true, Velocity: 0.9, Type: pattern.Accent}},
		{"Ride", pattern.Ride, pattern.Note{Active: true, Velocity: 0.7, Type: pattern.Normal}},
		{"Open Hi-Hat", pattern.OpenHat, pattern.Note{Active: true, Velocity: 0.7, Type: pattern.Normal, Open: true}},
		{"hihat", pattern.HiHat, pattern.Note{Active: true, Velocity: 0.7, Type: pattern.Normal}},
		{"Ghost Snare", pattern.Snare, pattern.Note{Active: true, Velocity: 0.3, Type: pattern.Ghost}},
		{"ghost", pattern.Snare, pattern.Note{Active: true, Velocity: 0.3, Type: pattern.Ghost}},
		{"Ghost Tom", pattern.Tom, pattern.Note{Active: true, Velocity: 0.3, Type: pattern.Ghost}},
	} {
		res, ok := r.Resolve(tc.text)
		if assert.True(t, ok, tc.text) {
			assert.Equal(t, tc.inst, res.Instrument, tc.text)
			assert.Equal(t, tc.note, res.Note, tc.text)
		}
	}

	for _, text := range []string{"", "cowbell", "Tambourine"} {
		_, ok := r.Resolve(text)
		assert.False(t, ok, text)
	}
}

func TestGhostQualifierOverridesEveryRule(t *testing.T) {
	r := Resolver{}
	for _, rule := range DefaultRules {
		text := "ghost " + rule.Any[0]
		if len(rule.All) > 0 {
			text += " " + rule.All[0]
		}
		res, ok := r.Resolve(text)
		if assert.True(t, ok, text) {
			assert.Equal(t, rule.Instrument, res.Instrument, text)
			assert.Equal(t, 0.3, res.Note.Velocity, text)
			assert.Equal(t, pattern.Ghost, res.Note.Type, text)
		}
	}
}

func TestCustomRuleTable(t *testing.T) {
	p := NewParser([]Rule{{Any: []string{"cowbell"}, Instrument: pattern.Ride, Velocity: 0.5, Type: pattern.Normal}})
	res, err := p.Parse("Count,Instrument 1\n1,Cowbell\n")
	if assert.NoError(t, err) {
		assert.Equal(t, 0.5, res.Pattern.Track(pattern.Ride)[0].Velocity)
	}
}
