package pattern

import (
	"encoding/json"
	"time"
)

// Complexity summarizes the resolution and articulation of a pattern.
type Complexity struct {
	HasEighthNotes       bool `json:"hasEighthNotes"`
	HasSixteenthNotes    bool `json:"hasSixteenthNotes"`
	HasVelocityVariation bool `json:"hasVelocityVariation"`
	HasOpenHats          bool `json:"hasOpenHats"`
	MaxSteps             int  `json:"maxSteps"`
}

// ComputeComplexity derives the complexity descriptor from the pattern contents.
func ComputeComplexity(p *Pattern) Complexity {
	n := p.Len()
	c := Complexity{
		HasEighthNotes:    n >= 16,
		HasSixteenthNotes: n >= 32,
		MaxSteps:          n,
	}
	for inst, track := range p.tracks {
		for _, note := range track {
			if !note.Active {
				continue
			}
			if note.Type == Ghost || note.Type == Accent {
				c.HasVelocityVariation = true
			}
			if inst.IsHiHat() && note.Open {
				c.HasOpenHats = true
			}
		}
	}
	return c
}

// StepsPerBeat is 4 for sixteenth-note resolution and 2 otherwise. Every
// timing computation in the module goes through this one convention.
func StepsPerBeat(c Complexity) int {
	if c.HasSixteenthNotes {
		return 4
	}
	return 2
}

// StepDuration returns 60000/bpm/stepsPerBeat milliseconds.
func StepDuration(bpm float64, stepsPerBeat int) time.Duration {
	if bpm <= 0 || stepsPerBeat <= 0 {
		return 0
	}
	ms := 60000.0 / bpm / float64(stepsPerBeat)
	return time.Duration(ms * float64(time.Millisecond))
}

// Duration returns the length of one pass through the pattern.
func Duration(p *Pattern, bpm float64, stepsPerBeat int) time.Duration {
	return time.Duration(p.Len()) * StepDuration(bpm, stepsPerBeat)
}

type patternJSON struct {
	Length       int                   `json:"length"`
	Tracks       map[Instrument][]Note `json:"tracks"`
	Subdivisions []string              `json:"subdivisions"`
	Sections     []string              `json:"sections"`
}

func (p *Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(patternJSON{
		Length:       p.Len(),
		Tracks:       p.tracks,
		Subdivisions: p.Subdivisions,
		Sections:     p.Sections,
	})
}

func (p *Pattern) UnmarshalJSON(data []byte) error {
	var raw patternJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fresh := New(raw.Length)
	for inst, track := range raw.Tracks {
		for i, n := range track {
			fresh.Set(inst, i, n)
		}
	}
	copy(fresh.Subdivisions, raw.Subdivisions)
	copy(fresh.Sections, raw.Sections)
	*p = *fresh
	return nil
}
