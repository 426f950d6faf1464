package onset

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// Accuracy grades the timing of one hit.
type Accuracy int

const (
	Perfect Accuracy = iota
	Good
	SlightlyOff
	Miss
)

func (a Accuracy) String() string {
	switch a {
	case Perfect:
		return "perfect"
	case Good:
		return "good"
	case SlightlyOff:
		return "slightly-off"
	default:
		return "miss"
	}
}

func (a Accuracy) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Accuracy) UnmarshalText(b []byte) error {
	for _, v := range []Accuracy{Perfect, Good, SlightlyOff, Miss} {
		if v.String() == string(b) {
			*a = v
			return nil
		}
	}
	return fmt.Errorf("onset: unknown accuracy %q", b)
}

// Thresholds are the outer bounds of each grade on |delta|.
type Thresholds struct {
	Perfect     time.Duration
	Good        time.Duration
	SlightlyOff time.Duration
}

var DefaultThresholds = Thresholds{
	Perfect:     30 * time.Millisecond,
	Good:        75 * time.Millisecond,
	SlightlyOff: 150 * time.Millisecond,
}

// Classify grades delta. The grade never improves as |delta| grows.
func (t Thresholds) Classify(delta time.Duration) Accuracy {
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta <= t.Perfect:
		return Perfect
	case delta <= t.Good:
		return Good
	case delta <= t.SlightlyOff:
		return SlightlyOff
	default:
		return Miss
	}
}

// Stats are the running counters of a practice take.
type Stats struct {
	Perfect       int `json:"perfectHits"`
	Good          int `json:"goodHits"`
	SlightlyOff   int `json:"slightlyOffHits"`
	Missed        int `json:"missedHits"`
	Total         int `json:"totalHits"`
	CurrentStreak int `json:"currentStreak"`
	BestStreak    int `json:"bestStreak"`
}

// Accuracy is the share of perfect and good hits as a percentage, 100
// before any hit.
func (s Stats) Accuracy() float64 {
	if s.Total == 0 {
		return 100
	}
	return float64(s.Perfect+s.Good) / float64(s.Total) * 100
}

// Score is the verdict for one onset.
type Score struct {
	Onset           Onset         `json:"onset"`
	Index           int           `json:"index"`
	Instrument      string        `json:"instrument,omitempty"`
	Delta           time.Duration `json:"delta"`
	Accuracy        Accuracy      `json:"accuracy"`
	WrongInstrument bool          `json:"wrongInstrument"`
}

// Scorer matches onsets to the nearest scheduled note. With a loop period
// set, onset times are folded into the first iteration so a looping
// pattern is scored against one schedule.
type Scorer struct {
	mu         sync.Mutex
	notes      []pattern.ScheduledNote
	period     time.Duration
	thresholds Thresholds
	stats      Stats
}

// NewScorer copies notes, which must be sorted by time.
func NewScorer(notes []pattern.ScheduledNote, period time.Duration) *Scorer {
	return &Scorer{
		notes:      append([]pattern.ScheduledNote(nil), notes...),
		period:     period,
		thresholds: DefaultThresholds,
	}
}

// SetSchedule replaces the notes and loop period after a tempo or pattern
// change. Counters and streaks carry over; per-note hit flags start fresh.
func (s *Scorer) SetSchedule(notes []pattern.ScheduledNote, period time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append([]pattern.ScheduledNote(nil), notes...)
	s.period = period
}

// SetThresholds replaces the timing windows used for later onsets.
func (s *Scorer) SetThresholds(t Thresholds) {
	s.mu.Lock()
	s.thresholds = t
	s.mu.Unlock()
}

// Score grades o and updates the counters. Streaks continue only on
// perfect and good hits.
func (s *Scorer) Score(o Onset) Score {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc := Score{Onset: o, Index: -1, Accuracy: Miss}
	if i, delta, ok := s.nearestLocked(o.At, o.Class); ok {
		n := &s.notes[i]
		sc.Index = i
		sc.Instrument = string(n.Instrument)
		sc.Delta = delta
		sc.Accuracy = s.thresholds.Classify(delta)
		sc.WrongInstrument = ClassOf(n.Instrument) != o.Class
		if sc.Accuracy != Miss {
			n.Hit = true
			n.WrongInstrument = sc.WrongInstrument
			n.SlightlyOff = sc.Accuracy == SlightlyOff
			n.Correct = !sc.WrongInstrument && (sc.Accuracy == Perfect || sc.Accuracy == Good)
		}
	}

	s.stats.Total++
	switch sc.Accuracy {
	case Perfect:
		s.stats.Perfect++
		s.stats.CurrentStreak++
	case Good:
		s.stats.Good++
		s.stats.CurrentStreak++
	case SlightlyOff:
		s.stats.SlightlyOff++
		s.stats.CurrentStreak = 0
	default:
		s.stats.Missed++
		s.stats.CurrentStreak = 0
	}
	if s.stats.CurrentStreak > s.stats.BestStreak {
		s.stats.BestStreak = s.stats.CurrentStreak
	}
	return sc
}

// nearestLocked finds the note closest to at. Among notes sharing that
// time, one of the onset's class is preferred. Delta is onset minus note,
// so early hits are negative.
func (s *Scorer) nearestLocked(at time.Duration, class Class) (int, time.Duration, bool) {
	if len(s.notes) == 0 {
		return 0, 0, false
	}
	t := at.Seconds()
	period := s.period.Seconds()
	if period > 0 {
		t = math.Mod(t, period)
		if t < 0 {
			t += period
		}
	}
	best, bestDelta := -1, math.Inf(1)
	consider := func(i int, shift float64) {
		d := t - (s.notes[i].Time + shift)
		if math.Abs(d) < math.Abs(bestDelta) {
			best, bestDelta = i, d
		}
	}
	i := sort.Search(len(s.notes), func(i int) bool { return s.notes[i].Time >= t })
	if i < len(s.notes) {
		consider(i, 0)
	}
	if i > 0 {
		consider(i-1, 0)
	}
	if period > 0 {
		// Late hits on the last note and early hits on the first one
		// straddle the loop boundary.
		consider(0, period)
		consider(len(s.notes)-1, -period)
	}
	when := s.notes[best].Time
	lo := best
	for lo > 0 && s.notes[lo-1].Time == when {
		lo--
	}
	for j := lo; j < len(s.notes) && s.notes[j].Time == when; j++ {
		if ClassOf(s.notes[j].Instrument) == class {
			best = j
			break
		}
	}
	return best, time.Duration(bestDelta * float64(time.Second)), true
}

func (s *Scorer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Results returns a copy of the schedule with hit flags applied.
func (s *Scorer) Results() []pattern.ScheduledNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pattern.ScheduledNote(nil), s.notes...)
}

// Unplayed counts scheduled notes no onset landed on.
func (s *Scorer) Unplayed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, note := range s.notes {
		if !note.Hit {
			n++
		}
	}
	return n
}

// Reset clears counters and hit flags.
func (s *Scorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{}
	for i := range s.notes {
		n := &s.notes[i]
		n.Hit, n.Correct, n.WrongInstrument, n.SlightlyOff = false, false, false, false
	}
}
