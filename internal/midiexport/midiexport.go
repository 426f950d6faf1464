// Package midiexport writes patterns as General MIDI drum files.
package midiexport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

const (
	// Resolution is the number of ticks per quarter note.
	Resolution = 480
	// DrumChannel is MIDI channel 10.
	DrumChannel = 9
)

// GMNotes maps instruments to General MIDI percussion keys.
var GMNotes = map[pattern.Instrument]uint8{
	pattern.Kick:       36,
	pattern.Snare:      38,
	pattern.GhostSnare: 38,
	pattern.HiHat:      42,
	pattern.OpenHat:    46,
	pattern.Tom:        48,
	pattern.LowTom:     45,
	pattern.Crash:      49,
	pattern.Ride:       51,
}

type Options struct {
	// Loops repeats the pattern; values below 1 write it once.
	Loops int
	Name  string
}

type event struct {
	tick uint32
	off  bool
	msg  smf.Message
}

// Encode writes p once as a format 0 file.
func Encode(p *pattern.Pattern, c pattern.Complexity, bpm float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, p, c, bpm, Options{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes p to w. Steps use the same steps-per-beat convention as
// playback, so an eighth-note pattern gets 240 ticks per step.
func Write(w io.Writer, p *pattern.Pattern, c pattern.Complexity, bpm float64, opts Options) error {
	if p == nil {
		return errors.New("midiexport: nil pattern")
	}
	if bpm <= 0 {
		bpm = 120
	}
	loops := opts.Loops
	if loops < 1 {
		loops = 1
	}
	ticksPerStep := uint32(Resolution / pattern.StepsPerBeat(c))
	gate := ticksPerStep / 2
	total := uint32(p.Len()*loops) * ticksPerStep

	var events []event
	for loop := 0; loop < loops; loop++ {
		for step := 0; step < p.Len(); step++ {
			at := uint32(loop*p.Len()+step) * ticksPerStep
			for _, inst := range p.ActiveAt(step) {
				key, ok := GMNotes[inst]
				if !ok {
					continue
				}
				n, _ := p.Note(inst, step)
				events = append(events,
					event{tick: at, msg: smf.Message(midi.NoteOn(DrumChannel, key, velocity(n.Velocity)))},
					event{tick: at + gate, off: true, msg: smf.Message(midi.NoteOff(DrumChannel, key))},
				)
			}
		}
	}
	// Offs first so a retriggered key is never cut by its previous off.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	var track smf.Track
	if opts.Name != "" {
		track.Add(0, smf.MetaTrackSequenceName(opts.Name))
	}
	track.Add(0, smf.MetaTempo(bpm))
	track.Add(0, smf.MetaMeter(4, 4))
	var cur uint32
	for _, ev := range events {
		track.Add(ev.tick-cur, ev.msg)
		cur = ev.tick
	}
	if cur < total {
		track.Close(total - cur)
	} else {
		track.Close(0)
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(Resolution)
	if err := s.Add(track); err != nil {
		return fmt.Errorf("midiexport: add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("midiexport: write: %w", err)
	}
	return nil
}

func velocity(v float64) uint8 {
	vel := int(math.Round(pattern.ClampVelocity(v) * 127))
	if vel < 1 {
		vel = 1
	}
	return uint8(vel)
}
