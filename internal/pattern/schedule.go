package pattern

import "sort"

// ScheduledNote is one expected hit of a pattern at a fixed tempo. Time is
// in seconds from the start of the pattern.
type ScheduledNote struct {
	Time            float64    `json:"time"`
	Instrument      Instrument `json:"instrument"`
	Step            int        `json:"step"`
	Hit             bool       `json:"hit"`
	Correct         bool       `json:"correct"`
	WrongInstrument bool       `json:"wrongInstrument"`
	SlightlyOff     bool       `json:"slightlyOff"`
}

// Schedule projects the active notes of p onto a time line at bpm. The
// result is sorted by time, then by instrument display order, and is never
// mutated afterwards; regenerate it whenever the pattern or tempo changes.
func Schedule(p *Pattern, bpm float64, stepsPerBeat int) []ScheduledNote {
	stepSec := StepDuration(bpm, stepsPerBeat).Seconds()
	order := make(map[Instrument]int, len(p.tracks))
	for i, inst := range p.Keys() {
		order[inst] = i
	}
	var out []ScheduledNote
	for inst, track := range p.tracks {
		for step, n := range track {
			if !n.Active {
				continue
			}
			out = append(out, ScheduledNote{
				Time:       float64(step) * stepSec,
				Instrument: inst,
				Step:       step,
			})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Step != out[b].Step {
			return out[a].Step < out[b].Step
		}
		return order[out[a].Instrument] < order[out[b].Instrument]
	})
	return out
}
