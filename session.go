// Package drumtrainer plays rhythm notation with a metronome, drum sounds
// and an optional backing track, and scores live playing against it.
package drumtrainer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbegin/drumtrainer-go/internal/audio"
	"github.com/cbegin/drumtrainer-go/internal/config"
	"github.com/cbegin/drumtrainer-go/internal/drums"
	"github.com/cbegin/drumtrainer-go/internal/logger"
	"github.com/cbegin/drumtrainer-go/internal/notation"
	"github.com/cbegin/drumtrainer-go/internal/onset"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
	"github.com/cbegin/drumtrainer-go/internal/sequencer"
)

// EventKind identifies a SessionEvent.
type EventKind int

const (
	EventTick EventKind = iota
	EventCountIn
	EventLoopCompleted
	EventPracticeCompleted
	EventStateChanged
	EventOnsetScored
)

// SessionEvent carries playback and scoring events from Watch().
type SessionEvent struct {
	Kind  EventKind
	Step  int
	Loop  int
	Beat  int
	State sequencer.State
	Score *onset.Score
}

// ClockSource selects what drives sequencer ticks.
type ClockSource int

const (
	// ClockAudio ticks from the rendered frame count, so ticks never drift
	// from the output stream.
	ClockAudio ClockSource = iota
	ClockWall
)

var ErrSessionClosed = errors.New("drumtrainer: session closed")

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	cfg          *config.Config
	sampleRate   int
	loopPlayback bool
	output       audio.Output
	noDevice     bool
	clock        ClockSource
	countIn      int
	countInSet   bool
	sampleTap    func([]float32)
	mic          onset.Source
	fetcher      drums.Fetcher
}

func WithConfig(cfg *config.Config) SessionOption {
	return func(c *sessionConfig) { c.cfg = cfg }
}

func WithSampleRate(sampleRate int) SessionOption {
	return func(c *sessionConfig) { c.sampleRate = sampleRate }
}

// WithLoopPlayback selects looping preview (true) or bounded practice
// playback that ends in Completed (false).
func WithLoopPlayback(enabled bool) SessionOption {
	return func(c *sessionConfig) { c.loopPlayback = enabled }
}

// WithOutput plays through out instead of the system audio device.
func WithOutput(out audio.Output) SessionOption {
	return func(c *sessionConfig) { c.output = out }
}

// WithoutDevice opens no output; the caller pulls frames from Engine().
func WithoutDevice() SessionOption {
	return func(c *sessionConfig) { c.noDevice = true }
}

func WithClock(src ClockSource) SessionOption {
	return func(c *sessionConfig) { c.clock = src }
}

func WithCountIn(beats int) SessionOption {
	return func(c *sessionConfig) {
		c.countIn = beats
		c.countInSet = true
	}
}

// WithSampleTap installs a callback invoked with each output buffer on the
// audio thread. It only applies to the system audio device.
func WithSampleTap(tap func([]float32)) SessionOption {
	return func(c *sessionConfig) { c.sampleTap = tap }
}

func WithMicrophone(src onset.Source) SessionOption {
	return func(c *sessionConfig) { c.mic = src }
}

// WithFetcher sets how backing track and sample references are resolved.
func WithFetcher(f drums.Fetcher) SessionOption {
	return func(c *sessionConfig) { c.fetcher = f }
}

// Session owns one practice session: the output device, the drum engine,
// the current sequencer and the onset detector. Open and Close are paired.
type Session struct {
	id      string
	conf    sessionConfig
	engine  *drums.Engine
	output  audio.Output
	clock   sequencer.Clock
	detect  *onset.Detector
	fetcher drums.Fetcher

	mu         sync.Mutex
	seq        *sequencer.Sequencer
	pattern    *pattern.Pattern
	complexity pattern.Complexity
	bpm        float64
	scorer     *onset.Scorer
	thresholds onset.Thresholds
	listenAt   time.Duration
	done       chan struct{}
	closed     bool

	// Step 0 on the stream timeline, derived from the most recent tick.
	playStart    time.Duration
	lastTickAt   time.Duration
	lastTickStep int

	eventCh   chan SessionEvent
	eventChMu sync.Mutex
}

// Open acquires the audio output and prepares an empty default pattern.
func Open(opts ...SessionOption) (*Session, error) {
	conf := sessionConfig{loopPlayback: true}
	for _, opt := range opts {
		opt(&conf)
	}
	if conf.cfg == nil {
		conf.cfg = config.Load()
	}
	cfg := conf.cfg
	if conf.sampleRate <= 0 {
		conf.sampleRate = cfg.SampleRate
	}
	if conf.sampleRate <= 0 {
		return nil, errors.New("drumtrainer: sampleRate must be positive")
	}
	if !conf.countInSet {
		conf.countIn = cfg.CountInBeats
	}
	if conf.mic == nil {
		conf.mic = onset.Unavailable{}
	}

	engine := drums.New(conf.sampleRate, drums.Params{
		MetronomeVolume: cfg.MetronomeVolume,
		DrumsVolume:     cfg.DrumsVolume,
		BackingVolume:   cfg.BackingVolume,
		RoomReverb:      cfg.RoomReverb,
		BusCompressor:   true,
	})
	s := &Session{
		id:      uuid.New().String(),
		conf:    conf,
		engine:  engine,
		fetcher: conf.fetcher,
		bpm:     cfg.BPM,
		detect: onset.NewDetector(onset.Options{
			Threshold:  cfg.OnsetThreshold,
			Refractory: time.Duration(cfg.RefractoryMs) * time.Millisecond,
		}),
		thresholds: onset.DefaultThresholds,
	}
	if conf.clock == ClockWall {
		s.clock = sequencer.NewWallClock()
	} else {
		s.clock = engine.Clock()
	}

	if !conf.noDevice {
		out := conf.output
		if out == nil {
			dev, err := audio.OpenDevice(conf.sampleRate, conf.sampleTap)
			if err != nil {
				return nil, err
			}
			out = dev
		}
		if err := out.Start(engine); err != nil {
			_ = out.Close()
			return nil, err
		}
		s.output = out
	}

	p := pattern.New(pattern.DefaultSteps)
	s.LoadPattern(p, pattern.ComputeComplexity(p))
	logger.Info("session opened", logger.Fields{
		"session_id":  s.id,
		"sample_rate": conf.sampleRate,
		"device":      s.output != nil,
	})
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Engine exposes the mixer, e.g. to pull frames when opened WithoutDevice.
func (s *Session) Engine() *drums.Engine { return s.engine }

// LoadNotation parses text and makes it the current pattern. On a parse
// error the session falls back to an empty default pattern and the error
// is returned.
func (s *Session) LoadNotation(text string) (*notation.Result, error) {
	res, err := notation.ParseDetailed(text)
	if err != nil {
		p := pattern.New(pattern.DefaultSteps)
		s.LoadPattern(p, pattern.ComputeComplexity(p))
		return nil, err
	}
	if res.BPM > 0 {
		s.mu.Lock()
		s.bpm = res.BPM
		s.mu.Unlock()
	}
	s.LoadPattern(res.Pattern, res.Complexity)
	return res, nil
}

// LoadPattern replaces the pattern and starts a fresh take. The new
// sequencer is installed stopped in the same critical section that removes
// the old one, and the old one is closed afterwards, so callers never see
// a missing sequencer and two tick loops never drive the engine at once.
func (s *Session) LoadPattern(p *pattern.Pattern, c pattern.Complexity) {
	cfg := s.conf.cfg
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	old := s.seq
	s.pattern = p
	s.complexity = c
	s.seq = sequencer.NewWithOptions(p, c, s.engine, s.clock, s.bpm, sequencer.Options{
		Loop:         s.conf.loopPlayback,
		Metronome:    true,
		CountInBeats: s.conf.countIn,
		LeadIn:       cfg.LeadInSteps,
		MinBPM:       cfg.MinBPM,
		MaxBPM:       cfg.MaxBPM,
		OnEvent:      s.onSequencerEvent,
	})
	s.bpm = s.seq.Snapshot().BPM
	s.scorer = onset.NewScorer(nil, 0)
	s.scorer.SetThresholds(s.thresholds)
	s.lastTickAt, s.lastTickStep, s.playStart = 0, 0, 0
	s.rescheduleLocked()
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// rescheduleLocked regenerates the expected-hit schedule; it changes
// whenever the pattern or tempo does. Counters and streaks carry over.
func (s *Session) rescheduleLocked() {
	spb := pattern.StepsPerBeat(s.complexity)
	period := time.Duration(0)
	if s.conf.loopPlayback {
		period = pattern.Duration(s.pattern, s.bpm, spb)
	}
	s.scorer.SetSchedule(pattern.Schedule(s.pattern, s.bpm, spb), period)
	s.engine.Backing().SetEstimatedDuration(pattern.Duration(s.pattern, s.bpm, spb))
	s.alignLocked()
}

// alignLocked places step 0 on the stream timeline at the current tempo,
// counting back from the most recent tick.
func (s *Session) alignLocked() {
	step := pattern.StepDuration(s.bpm, pattern.StepsPerBeat(s.complexity))
	s.playStart = s.lastTickAt - time.Duration(s.lastTickStep)*step
}

func (s *Session) current() *sequencer.Sequencer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Play starts the sequencer and, when loaded, the backing track.
func (s *Session) Play() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.done == nil {
		s.done = make(chan struct{})
	}
	seq := s.seq
	s.mu.Unlock()
	if seq == nil {
		return ErrSessionClosed
	}

	seq.Start()
	if err := s.engine.Backing().Play(); err != nil && !errors.Is(err, drums.ErrNoBackingTrack) {
		return err
	}
	return nil
}

// Pause stops ticking and the backing track, keeping both positions.
func (s *Session) Pause() {
	if seq := s.current(); seq != nil {
		seq.Stop()
	}
	s.engine.Backing().Pause()
}

// Stop halts playback and releases anyone blocked in Wait.
func (s *Session) Stop() {
	if seq := s.current(); seq != nil {
		seq.Stop()
	}
	s.engine.Backing().Stop()
	s.signalDone()
}

// Reset stops playback, rewinds to step 0 and clears scoring.
func (s *Session) Reset() {
	if seq := s.current(); seq != nil {
		seq.Reset()
	}
	s.engine.Backing().Stop()
	s.mu.Lock()
	s.scorer.Reset()
	s.mu.Unlock()
	s.signalDone()
}

// SetThresholds changes the timing windows used to grade later hits.
func (s *Session) SetThresholds(t onset.Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = t
	s.scorer.SetThresholds(t)
}

// SetEQBand sets the linear gain (0-4, 1 = unity) of a master EQ band.
// Bands split at 90Hz, 400Hz, 2.5kHz and 7kHz. It takes effect on the
// next rendered block without locking the audio thread.
func (s *Session) SetEQBand(band int, gain float32) {
	s.engine.MasterEQ().SetGain(band, gain)
}

// EQBand returns the current gain of a master EQ band.
func (s *Session) EQBand(band int) float32 {
	return s.engine.MasterEQ().Gain(band)
}

// SetBPM clamps and applies bpm from the next tick and returns the value
// in effect.
func (s *Session) SetBPM(bpm float64) float64 {
	seq := s.current()
	if seq == nil {
		return 0
	}
	v := seq.SetBPM(bpm)
	s.mu.Lock()
	s.bpm = v
	s.rescheduleLocked()
	s.mu.Unlock()
	return v
}

func (s *Session) SetTargetBPM(bpm float64) float64 {
	if seq := s.current(); seq != nil {
		return seq.SetTargetBPM(bpm)
	}
	return 0
}

// Seek moves the playhead; out of range steps wrap.
func (s *Session) Seek(step int) int {
	if seq := s.current(); seq != nil {
		return seq.Seek(step)
	}
	return 0
}

func (s *Session) SetMetronome(on bool) {
	if seq := s.current(); seq != nil {
		seq.SetMetronome(on)
	}
}

// Toggle flips one step of the current pattern (authoring mode).
func (s *Session) Toggle(inst pattern.Instrument, step int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == nil {
		return false
	}
	// The sequencer reads the old pattern under its own lock; edit a copy.
	p := s.pattern.Clone()
	active := p.Toggle(inst, step)
	s.pattern = p
	s.complexity = pattern.ComputeComplexity(p)
	s.seq.SetPattern(s.pattern, s.complexity)
	s.rescheduleLocked()
	return active
}

func (s *Session) SetMetronomeVolume(v float64) float64 { return s.engine.SetMetronomeVolume(v) }
func (s *Session) SetDrumsVolume(v float64) float64     { return s.engine.SetDrumsVolume(v) }
func (s *Session) SetBackingVolume(v float64) float64   { return s.engine.SetBackingVolume(v) }

// Backing returns the backing-track transport.
func (s *Session) Backing() *drums.Transport { return s.engine.Backing() }

// LoadBackingTrack resolves and decodes ref. A failure is logged and the
// track stays silent; drums and metronome keep working.
func (s *Session) LoadBackingTrack(ctx context.Context, ref string) bool {
	return s.engine.LoadBackingTrack(ctx, s.fetcher, ref)
}

// LoadSample replaces the synthesized sound of inst with a decoded sample.
func (s *Session) LoadSample(ctx context.Context, inst pattern.Instrument, ref string) bool {
	return s.engine.LoadSample(ctx, s.fetcher, inst, ref)
}

// Snapshot is the presentation state of playback.
func (s *Session) Snapshot() sequencer.Snapshot {
	if seq := s.current(); seq != nil {
		return seq.Snapshot()
	}
	return sequencer.Snapshot{}
}

// Window returns width steps starting at the current scroll offset.
func (s *Session) Window(width int) []pattern.StepView {
	snap := s.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return pattern.Window(s.pattern, snap.ScrollOffset, width)
}

// Listen starts the onset detector on the configured microphone. Each
// onset is scored against the current schedule and reported to cb (which
// may be nil) and to Watch. Microphone failures leave playback untouched.
func (s *Session) Listen(ctx context.Context, cb func(onset.Score)) error {
	s.mu.Lock()
	s.listenAt = s.clock.Now()
	s.mu.Unlock()
	err := s.detect.Start(ctx, s.conf.mic, func(o onset.Onset) {
		s.mu.Lock()
		// Onsets are timed from when listening began; the schedule from
		// when step 0 last sounded.
		o.At = s.listenAt + o.At - s.playStart
		sc := s.scorer.Score(o)
		s.mu.Unlock()
		if cb != nil {
			cb(sc)
		}
		s.sendEvent(SessionEvent{Kind: EventOnsetScored, Score: &sc})
	})
	if err != nil {
		logger.Warn("session: microphone disabled", logger.Fields{"session_id": s.id, "error": err.Error()})
	}
	return err
}

func (s *Session) StopListening() { s.detect.Stop() }

// DetectorState reports listening, idle or disabled, with the error that
// disabled it.
func (s *Session) DetectorState() (onset.State, error) {
	return s.detect.State(), s.detect.Err()
}

func (s *Session) Stats() onset.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scorer.Stats()
}

// Results returns the schedule with hit flags from scoring.
func (s *Session) Results() []pattern.ScheduledNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scorer.Results()
}

func (s *Session) onSequencerEvent(ev sequencer.Event) {
	out := SessionEvent{Step: ev.Step, Loop: ev.Loop, Beat: ev.Beat, State: ev.State}
	switch ev.Kind {
	case sequencer.EventTick:
		out.Kind = EventTick
		s.mu.Lock()
		s.lastTickAt, s.lastTickStep = ev.At, ev.Step
		s.alignLocked()
		s.mu.Unlock()
	case sequencer.EventCountIn:
		out.Kind = EventCountIn
	case sequencer.EventLoopCompleted:
		out.Kind = EventLoopCompleted
	case sequencer.EventPracticeCompleted:
		out.Kind = EventPracticeCompleted
	case sequencer.EventStateChanged:
		out.Kind = EventStateChanged
	}
	s.sendEvent(out)
	if ev.Kind == sequencer.EventPracticeCompleted {
		s.signalDone()
	}
}

func (s *Session) sendEvent(ev SessionEvent) {
	s.eventChMu.Lock()
	ch := s.eventCh
	s.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (s *Session) signalDone() {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// Wait blocks until bounded practice completes or playback is stopped.
// With loop playback, Wait blocks until Stop (use Watch to count loops).
// Wait returns immediately if Play has not been called.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives session events. The channel is
// buffered (cap 64) and events are dropped when it is full, so receive in
// a goroutine. Only the most recent Watch channel receives events.
func (s *Session) Watch() <-chan SessionEvent {
	ch := make(chan SessionEvent, 64)
	s.eventChMu.Lock()
	s.eventCh = ch
	s.eventChMu.Unlock()
	return ch
}

// Close stops listening and playback and releases the output device. It
// is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	seq := s.seq
	s.seq = nil
	s.mu.Unlock()

	s.detect.Stop()
	if seq != nil {
		seq.Close()
	}
	s.signalDone()
	var err error
	if s.output != nil {
		err = s.output.Close()
	}
	logger.Info("session closed", logger.Fields{"session_id": s.id})
	return err
}
