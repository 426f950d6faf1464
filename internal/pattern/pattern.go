package pattern

import "sort"

// NoteType classifies how a note is articulated.
type NoteType string

const (
	Normal NoteType = "normal"
	Ghost  NoteType = "ghost"
	Accent NoteType = "accent"
)

// Instrument is a pattern track key.
type Instrument string

const (
	Kick       Instrument = "kick"
	Snare      Instrument = "snare"
	GhostSnare Instrument = "ghostsnare"
	HiHat      Instrument = "hihat"
	OpenHat    Instrument = "openhat"
	Tom        Instrument = "tom"
	LowTom     Instrument = "lowtom"
	Crash      Instrument = "crash"
	Ride       Instrument = "ride"
)

// Instruments lists every track key in display order.
var Instruments = []Instrument{Crash, Ride, OpenHat, HiHat, Tom, LowTom, Snare, GhostSnare, Kick}

const DefaultSteps = 16

// Note is a single step of a track. Open is only meaningful on hi-hat tracks.
type Note struct {
	Active   bool     `json:"active"`
	Velocity float64  `json:"velocity"`
	Type     NoteType `json:"type"`
	Open     bool     `json:"open,omitempty"`
}

// IsHiHat reports whether the instrument carries open/closed state.
func (i Instrument) IsHiHat() bool {
	return i == HiHat || i == OpenHat
}

// Rest returns the inactive note a fresh track of this instrument is filled with.
func (i Instrument) Rest() Note {
	switch i {
	case GhostSnare:
		return Note{Velocity: 0.3, Type: Ghost}
	case LowTom:
		return Note{Velocity: 0.8, Type: Normal}
	case Crash:
		return Note{Velocity: 0.9, Type: Accent}
	case OpenHat:
		return Note{Velocity: 0.7, Type: Normal, Open: true}
	default:
		return Note{Velocity: 0.7, Type: Normal}
	}
}

// Pattern is a set of equal-length instrument tracks plus per-step labels.
type Pattern struct {
	tracks       map[Instrument][]Note
	Subdivisions []string
	Sections     []string
}

// New returns an all-rest pattern of the given length.
func New(steps int) *Pattern {
	if steps <= 0 {
		steps = DefaultSteps
	}
	p := &Pattern{
		tracks:       make(map[Instrument][]Note, len(Instruments)),
		Subdivisions: make([]string, steps),
		Sections:     make([]string, steps),
	}
	for _, inst := range Instruments {
		track := make([]Note, steps)
		rest := inst.Rest()
		for i := range track {
			track[i] = rest
		}
		p.tracks[inst] = track
	}
	return p
}

// Len returns the number of steps shared by every track.
func (p *Pattern) Len() int {
	return len(p.Subdivisions)
}

// Track returns the notes of inst. The slice is shared with the pattern.
func (p *Pattern) Track(inst Instrument) []Note {
	return p.tracks[inst]
}

// Keys returns the instruments present in the pattern in display order,
// followed by any custom keys sorted by name.
func (p *Pattern) Keys() []Instrument {
	out := make([]Instrument, 0, len(p.tracks))
	known := make(map[Instrument]bool, len(Instruments))
	for _, inst := range Instruments {
		known[inst] = true
		if _, ok := p.tracks[inst]; ok {
			out = append(out, inst)
		}
	}
	var extra []Instrument
	for inst := range p.tracks {
		if !known[inst] {
			extra = append(extra, inst)
		}
	}
	sort.Slice(extra, func(a, b int) bool { return extra[a] < extra[b] })
	return append(out, extra...)
}

// Note returns the note at step, wrapping the index into range.
func (p *Pattern) Note(inst Instrument, step int) (Note, bool) {
	track, ok := p.tracks[inst]
	if !ok || len(track) == 0 {
		return Note{}, false
	}
	return track[Wrap(step, len(track))], true
}

// Set stores a note. Steps outside the pattern are ignored; unknown
// instruments get a new rest-filled track.
func (p *Pattern) Set(inst Instrument, step int, n Note) bool {
	if step < 0 || step >= p.Len() {
		return false
	}
	track, ok := p.tracks[inst]
	if !ok {
		track = make([]Note, p.Len())
		rest := inst.Rest()
		for i := range track {
			track[i] = rest
		}
		p.tracks[inst] = track
	}
	n.Velocity = ClampVelocity(n.Velocity)
	if n.Type == "" {
		n.Type = Normal
	}
	track[step] = n
	return true
}

// Toggle flips the active flag of one step. It is the only in-place
// mutation used while authoring.
func (p *Pattern) Toggle(inst Instrument, step int) bool {
	track, ok := p.tracks[inst]
	if !ok || len(track) == 0 {
		return false
	}
	i := Wrap(step, len(track))
	track[i].Active = !track[i].Active
	return track[i].Active
}

// LastActiveStep returns the index of the last step with any active note, or -1.
func (p *Pattern) LastActiveStep() int {
	last := -1
	for _, track := range p.tracks {
		for i := len(track) - 1; i > last; i-- {
			if track[i].Active {
				last = i
				break
			}
		}
	}
	return last
}

// Trim truncates every track and label slice to n steps.
func (p *Pattern) Trim(n int) {
	if n < 0 || n >= p.Len() {
		return
	}
	for inst, track := range p.tracks {
		p.tracks[inst] = track[:n:n]
	}
	p.Subdivisions = p.Subdivisions[:n:n]
	p.Sections = p.Sections[:n:n]
}

// ActiveAt returns the instruments sounding at step, in display order.
func (p *Pattern) ActiveAt(step int) []Instrument {
	if p.Len() == 0 {
		return nil
	}
	step = Wrap(step, p.Len())
	var out []Instrument
	for _, inst := range p.Keys() {
		if p.tracks[inst][step].Active {
			out = append(out, inst)
		}
	}
	return out
}

// Clone returns a deep copy.
func (p *Pattern) Clone() *Pattern {
	c := &Pattern{
		tracks:       make(map[Instrument][]Note, len(p.tracks)),
		Subdivisions: append([]string(nil), p.Subdivisions...),
		Sections:     append([]string(nil), p.Sections...),
	}
	for inst, track := range p.tracks {
		c.tracks[inst] = append([]Note(nil), track...)
	}
	return c
}

// Tracks exposes a copy of the track map for serialization.
func (p *Pattern) Tracks() map[Instrument][]Note {
	out := make(map[Instrument][]Note, len(p.tracks))
	for inst, track := range p.tracks {
		out[inst] = append([]Note(nil), track...)
	}
	return out
}

func ClampVelocity(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Wrap maps any step index onto [0, n).
func Wrap(step, n int) int {
	if n <= 0 {
		return 0
	}
	step %= n
	if step < 0 {
		step += n
	}
	return step
}
