// Package sequencer steps through a drum pattern and triggers the audio
// engine on each tick.
package sequencer

import (
	"math"
	"sync"
	"time"

	"github.com/cbegin/drumtrainer-go/internal/logger"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// Engine receives the sounds fired on each tick. Calls must not block.
type Engine interface {
	PlayDrumSound(inst pattern.Instrument, velocity float64, open bool)
	PlayMetronome()
}

// AccentClicker is implemented by engines with a distinct count-in click.
// Count-in beats use it when available and fall back to PlayMetronome.
type AccentClicker interface {
	PlayAccentClick()
}

type State int

const (
	Stopped State = iota
	CountingIn
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case CountingIn:
		return "counting-in"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "stopped"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventTick EventKind = iota
	EventCountIn
	EventLoopCompleted
	EventPracticeCompleted
	EventStateChanged
)

// Event is delivered to Options.OnEvent outside the sequencer lock.
type Event struct {
	Kind  EventKind
	Step  int
	State State
	Loop  int
	Beat  int
	At    time.Duration
}

const (
	DefaultMinBPM = 40
	DefaultMaxBPM = 240
	DefaultLeadIn = 5
)

type Options struct {
	// Loop wraps playback indefinitely. When false the sequencer stops in
	// Completed after the last step.
	Loop         bool
	Metronome    bool
	CountInBeats int
	LeadIn       int
	MinBPM       float64
	MaxBPM       float64
	OnEvent      func(Event)
}

// Snapshot is the presentation view of the sequencer.
type Snapshot struct {
	State        State   `json:"state"`
	Step         int     `json:"step"`
	BPM          float64 `json:"bpm"`
	TargetBPM    float64 `json:"targetBpm"`
	ScrollOffset int     `json:"scrollOffset"`
	Metronome    bool    `json:"metronome"`
	Loops        int     `json:"loops"`
	StepsPerBeat int     `json:"stepsPerBeat"`
}

type Sequencer struct {
	mu         sync.Mutex
	pattern    *pattern.Pattern
	complexity pattern.Complexity
	engine     Engine
	clock      Clock
	opts       Options

	state     State
	step      int
	bpm       float64
	targetBPM float64
	metronome bool
	countIn   int
	beat      int
	loops     int
	next      time.Duration
	timer     Timer
	// fired is set once the current step has sounded; a resumed Start
	// moves past it instead of playing it twice.
	fired bool
	gen       uint64
	closed    bool
}

func New(p *pattern.Pattern, c pattern.Complexity, engine Engine, clock Clock, bpm float64) *Sequencer {
	return NewWithOptions(p, c, engine, clock, bpm, Options{Loop: true, Metronome: true})
}

func NewWithOptions(p *pattern.Pattern, c pattern.Complexity, engine Engine, clock Clock, bpm float64, opts Options) *Sequencer {
	if opts.MinBPM <= 0 {
		opts.MinBPM = DefaultMinBPM
	}
	if opts.MaxBPM < opts.MinBPM {
		opts.MaxBPM = DefaultMaxBPM
	}
	if opts.LeadIn <= 0 {
		opts.LeadIn = DefaultLeadIn
	}
	if clock == nil {
		clock = NewWallClock()
	}
	if p == nil {
		p = pattern.New(pattern.DefaultSteps)
		c = pattern.ComputeComplexity(p)
	}
	s := &Sequencer{
		pattern:    p,
		complexity: c,
		engine:     engine,
		clock:      clock,
		opts:       opts,
		metronome:  opts.Metronome,
	}
	s.bpm = s.clamp(bpm)
	s.targetBPM = s.bpm
	return s
}

// ClampBPM limits bpm to [lo, hi]. Non-positive and NaN values map to lo.
func ClampBPM(bpm, lo, hi float64) float64 {
	if bpm <= 0 || math.IsNaN(bpm) || bpm < lo {
		return lo
	}
	if bpm > hi {
		return hi
	}
	return bpm
}

// ScrollOffset is the first visible step for a window that starts moving
// once the playhead passes leadIn.
func ScrollOffset(step, leadIn int) int {
	if step <= leadIn {
		return 0
	}
	return step - leadIn
}

func (s *Sequencer) clamp(bpm float64) float64 {
	return ClampBPM(bpm, s.opts.MinBPM, s.opts.MaxBPM)
}

func (s *Sequencer) stepsPerBeat() int {
	return pattern.StepsPerBeat(s.complexity)
}

func (s *Sequencer) stepDuration() time.Duration {
	return pattern.StepDuration(s.bpm, s.stepsPerBeat())
}

// Start begins playback from the current step, through a count-in when
// configured. After a pause it resumes at the step following the last one
// that sounded. Starting a running sequencer does nothing; starting a
// completed one rewinds to step 0.
func (s *Sequencer) Start() {
	s.mu.Lock()
	if s.closed || s.state == Running || s.state == CountingIn {
		s.mu.Unlock()
		return
	}
	if s.state == Completed {
		s.step = 0
		s.fired = false
	}
	if s.fired {
		s.step = pattern.Wrap(s.step+1, s.pattern.Len())
		s.fired = false
	}
	s.gen++
	now := s.clock.Now()
	s.next = now
	var events []Event
	if s.opts.CountInBeats > 0 {
		s.state = CountingIn
		s.countIn = s.opts.CountInBeats
		s.beat = 0
		events = append(events, Event{Kind: EventStateChanged, State: CountingIn, Step: s.step, At: now})
		events = s.countInLocked(events)
	} else {
		s.state = Running
		events = append(events, Event{Kind: EventStateChanged, State: Running, Step: s.step, At: now})
		events = s.fireLocked(events)
		s.next += s.stepDuration()
		s.scheduleLocked()
	}
	s.mu.Unlock()
	s.emit(events)
}

// Stop cancels the pending tick before returning. The current step is kept.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.cancelLocked()
	s.state = Stopped
	ev := Event{Kind: EventStateChanged, State: Stopped, Step: s.step, At: s.clock.Now()}
	s.mu.Unlock()
	s.emit([]Event{ev})
}

// Reset stops playback and rewinds to step 0.
func (s *Sequencer) Reset() {
	s.Stop()
	s.mu.Lock()
	s.step = 0
	s.loops = 0
	s.fired = false
	s.mu.Unlock()
}

// Close stops playback and makes further Start calls no-ops.
func (s *Sequencer) Close() {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// SetBPM clamps bpm to the supported range. The tick already scheduled
// keeps its time; the new interval applies from the tick after it.
func (s *Sequencer) SetBPM(bpm float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bpm = s.clamp(bpm)
	return s.bpm
}

// SetTargetBPM records the tempo the player is working towards.
func (s *Sequencer) SetTargetBPM(bpm float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetBPM = s.clamp(bpm)
	return s.targetBPM
}

func (s *Sequencer) SetMetronome(on bool) {
	s.mu.Lock()
	s.metronome = on
	s.mu.Unlock()
}

// Seek moves the playhead to step modulo the pattern length. While
// running, the next tick advances from the new step.
func (s *Sequencer) Seek(step int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = pattern.Wrap(step, s.pattern.Len())
	s.fired = false
	return s.step
}

// SetPattern swaps the pattern without interrupting the tick loop.
func (s *Sequencer) SetPattern(p *pattern.Pattern, c pattern.Complexity) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.pattern = p
	s.complexity = c
	s.step = pattern.Wrap(s.step, p.Len())
	s.mu.Unlock()
}

func (s *Sequencer) Pattern() (*pattern.Pattern, pattern.Complexity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern, s.complexity
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:        s.state,
		Step:         s.step,
		BPM:          s.bpm,
		TargetBPM:    s.targetBPM,
		ScrollOffset: ScrollOffset(s.step, s.opts.LeadIn),
		Metronome:    s.metronome,
		Loops:        s.loops,
		StepsPerBeat: s.stepsPerBeat(),
	}
}

func (s *Sequencer) scheduleLocked() {
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.next-s.clock.Now(), func() { s.onTimer(gen) })
}

func (s *Sequencer) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sequencer) onTimer(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		logger.Debug("sequencer: dropped stale tick", logger.Fields{"gen": gen})
		return
	}
	var events []Event
	switch s.state {
	case CountingIn:
		events = s.countInLocked(nil)
	case Running:
		events = s.advanceLocked(nil)
	}
	s.mu.Unlock()
	s.emit(events)
}

// countInLocked plays one count-in click per beat, then enters Running on
// the following beat.
func (s *Sequencer) countInLocked(events []Event) []Event {
	beat := s.stepDuration() * time.Duration(s.stepsPerBeat())
	if s.countIn > 0 {
		s.countIn--
		s.beat++
		if ac, ok := s.engine.(AccentClicker); ok {
			ac.PlayAccentClick()
		} else {
			s.engine.PlayMetronome()
		}
		events = append(events, Event{Kind: EventCountIn, Beat: s.beat, Step: s.step, State: CountingIn, At: s.next})
		s.next += beat
		s.scheduleLocked()
		return events
	}
	s.state = Running
	events = append(events, Event{Kind: EventStateChanged, State: Running, Step: s.step, At: s.next})
	events = s.fireLocked(events)
	s.next += s.stepDuration()
	s.scheduleLocked()
	return events
}

func (s *Sequencer) advanceLocked(events []Event) []Event {
	n := s.pattern.Len()
	next := s.step + 1
	if next >= n {
		if !s.opts.Loop {
			s.cancelLocked()
			s.state = Completed
			return append(events,
				Event{Kind: EventPracticeCompleted, Step: s.step, State: Completed, At: s.next},
				Event{Kind: EventStateChanged, Step: s.step, State: Completed, At: s.next},
			)
		}
		next = 0
		s.loops++
		events = append(events, Event{Kind: EventLoopCompleted, Loop: s.loops, State: Running, At: s.next})
	}
	s.step = next
	events = s.fireLocked(events)
	s.next += s.stepDuration()
	s.scheduleLocked()
	return events
}

// fireLocked triggers every active note at the current step plus the
// metronome on beat boundaries.
func (s *Sequencer) fireLocked(events []Event) []Event {
	s.fired = true
	for _, inst := range s.pattern.Keys() {
		n := s.pattern.Track(inst)[s.step]
		if n.Active {
			s.engine.PlayDrumSound(inst, n.Velocity, n.Open)
		}
	}
	if s.metronome && s.step%s.stepsPerBeat() == 0 {
		s.engine.PlayMetronome()
	}
	return append(events, Event{Kind: EventTick, Step: s.step, State: s.state, Loop: s.loops, At: s.next})
}

func (s *Sequencer) emit(events []Event) {
	if s.opts.OnEvent == nil {
		return
	}
	for _, ev := range events {
		s.opts.OnEvent(ev)
	}
}
