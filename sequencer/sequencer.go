package sequencer

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/geosym/audio"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/event"
	"github.com/lixenwraith/geosym/pattern"
	"github.com/lixenwraith/geosym/status"
)

var (
	// ErrNoPattern is returned by Play before any pattern was selected
	ErrNoPattern = errors.New("no pattern selected")
	// ErrInvalidTempo is returned by SetTempo for NaN or infinite values
	ErrInvalidTempo = errors.New("invalid tempo")
)

// Bank is the voice set the sequencer drives
type Bank interface {
	pattern.Voices
	Silence()
	SetTempo(bpm float64)
}

// Option configures a Sequencer
type Option func(*Sequencer)

// WithQueue mirrors every trigger, beat and transport edge onto q
func WithQueue(q *event.Queue) Option {
	return func(s *Sequencer) { s.queue = q }
}

// WithStats publishes counters into r
func WithStats(r *status.Registry) Option {
	return func(s *Sequencer) { s.stats = r }
}

// WithBeat installs the primary beat handler
// It runs on the audio thread under the sequencer lock and must not call back into the sequencer
func WithBeat(fn func()) Option {
	return func(s *Sequencer) { s.onBeat = fn }
}

// Sequencer owns the Transport and the running pattern
// Advance (audio thread) and the control methods share one mutex, so a step's
// triggers, its beat and any control call are totally ordered
type Sequencer struct {
	mu      sync.Mutex
	bank    Bank
	tr      Transport
	pending *pattern.Definition
	running *pattern.Running
	tempo   float64 // Manual tempo override, 0 = pattern tempo

	onBeat func()
	queue  *event.Queue
	stats  *status.Registry

	// Cached metric pointers, nil-safe through counters below
	steps   *atomic.Int64
	beats   *atomic.Int64
	swaps   *atomic.Int64
	live    *atomic.Int64
	playing *atomic.Bool
	bpm     *status.AtomicFloat
	name    *status.AtomicString
}

// New creates a stopped sequencer for bank at sampleRate
func New(bank Bank, sampleRate int, opts ...Option) *Sequencer {
	s := &Sequencer{
		bank: bank,
		tr:   newTransport(sampleRate),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.stats == nil {
		s.stats = status.NewRegistry()
	}
	s.steps = s.stats.Ints.Get(status.KeySequencerSteps)
	s.beats = s.stats.Ints.Get(status.KeySequencerBeats)
	s.swaps = s.stats.Ints.Get(status.KeySequencerSwaps)
	s.live = s.stats.Ints.Get(status.KeySequencesLive)
	s.playing = s.stats.Bools.Get(status.KeyPlaying)
	s.bpm = s.stats.Floats.Get(status.KeyBPM)
	s.name = s.stats.Strings.Get(status.KeyPattern)
	s.bpm.Set(s.tr.BPM)
	return s
}

// SetPattern selects def and adopts its tempo
// While stopped only the pending definition changes; while running the sequences are hot-swapped
func (s *Sequencer) SetPattern(def *pattern.Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", pattern.ErrUnknownPatternID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tr.State != core.TransportRunning {
		s.pending = def
		s.tempo = 0
		s.applyTempo(def.BPM)
		s.name.Store(string(def.ID))
		return nil
	}

	prevTempo := s.tempo
	s.tempo = 0
	if err := s.swap(def, def.BPM); err != nil {
		s.tempo = prevTempo
		return err
	}
	return nil
}

// SetTempo overrides the pattern tempo until the next SetPattern
// Finite values are clamped to the supported range; others are rejected
func (s *Sequencer) SetTempo(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTempo, bpm)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tempo = bpm
	if s.tr.State != core.TransportRunning || s.pending == nil {
		s.applyTempo(bpm)
		return nil
	}
	return s.swap(s.pending, bpm)
}

// Play starts the transport from position 0 with the pending pattern
// Calling Play while running is a no-op
func (s *Sequencer) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tr.State == core.TransportRunning {
		return nil
	}
	if s.pending == nil {
		return ErrNoPattern
	}

	r, err := s.instantiate(s.pending)
	if err != nil {
		return err
	}
	s.tr.reset()
	s.tr.State = core.TransportRunning
	s.applyTempo(s.currentTempo())
	s.tr.LoopSteps = s.pending.LoopSteps

	s.running = r
	r.Start(0)
	s.live.Store(int64(pattern.LiveSequences()))
	s.playing.Store(true)
	s.push(event.TriggerEvent{Type: event.EventTransportStart, Pattern: s.pending.ID, BPM: s.tr.BPM})
	log.Printf("sequencer: play %s at %.1f bpm", s.pending.ID, s.tr.BPM)
	return nil
}

// Pause stops every sequence, silences the bank and rewinds the transport in one step
func (s *Sequencer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tr.State != core.TransportRunning {
		return
	}
	if s.running != nil {
		s.running.Dispose()
		s.running = nil
	}
	s.bank.Silence()
	s.tr.reset()
	s.live.Store(int64(pattern.LiveSequences()))
	s.playing.Store(false)
	s.push(event.TriggerEvent{Type: event.EventTransportStop})
	log.Printf("sequencer: stop")
}

// Advance implements audio.Clock, splitting the render at exact step boundaries
// All voices due on a step fire before any frame at or after it renders
func (s *Sequencer) Advance(frames int, render func(n int)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := 0
	for done < frames {
		n := frames - done
		if s.tr.State == core.TransportRunning {
			for s.tr.due() {
				s.fireStep()
			}
			n = min(n, s.tr.framesUntilNext())
		}
		if render != nil {
			render(n)
		}
		done += n
		if s.tr.State == core.TransportRunning {
			s.tr.SamplePos += int64(n)
		}
	}
}

// State returns the transport state
func (s *Sequencer) State() core.TransportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.State
}

// Progress returns the normalized position within the pattern loop, 0 while stopped
func (s *Sequencer) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.Progress()
}

// Transport returns a copy of the transport
func (s *Sequencer) Transport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr
}

// Pattern returns the selected definition, nil before the first SetPattern
func (s *Sequencer) Pattern() *pattern.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// BPM returns the tempo in effect
func (s *Sequencer) BPM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.BPM
}

// Close disposes the running pattern; idempotent
func (s *Sequencer) Close() {
	s.Pause()
}

// --- internals, caller holds mu ---

func (s *Sequencer) currentTempo() float64 {
	if s.tempo > 0 {
		return s.tempo
	}
	if s.pending != nil {
		return s.pending.BPM
	}
	return s.tr.BPM
}

func (s *Sequencer) applyTempo(bpm float64) {
	s.tr.setTempo(bpm)
	s.bank.SetTempo(s.tr.BPM)
	s.bpm.Set(s.tr.BPM)
}

func (s *Sequencer) instantiate(def *pattern.Definition) (*pattern.Running, error) {
	return pattern.Instantiate(def, s.bank, s.handleBeat, pattern.WithObserver(s.handleTrigger))
}

// swap replaces the running sequences in one operation, anchored at the current bar
func (s *Sequencer) swap(def *pattern.Definition, bpm float64) error {
	next, err := s.instantiate(def)
	if err != nil {
		log.Printf("sequencer: swap to %s failed: %v", def.ID, err)
		return err
	}
	if s.running != nil {
		s.running.Dispose()
	}

	s.pending = def
	s.applyTempo(bpm)
	s.tr.LoopSteps = def.LoopSteps
	s.running = next
	next.Start(s.tr.BarStart())

	s.swaps.Add(1)
	s.live.Store(int64(pattern.LiveSequences()))
	s.name.Store(string(def.ID))
	s.push(event.TriggerEvent{Type: event.EventPatternSwap, Step: s.tr.Step, Pattern: def.ID, BPM: s.tr.BPM})
	return nil
}

func (s *Sequencer) fireStep() {
	step := s.tr.Step
	if s.running != nil {
		s.running.Fire(step, s.tr.SamplesPerStep)
	}
	s.tr.advanceStep()
	s.steps.Add(1)
}

func (s *Sequencer) handleBeat() {
	s.beats.Add(1)
	s.push(event.TriggerEvent{Type: event.EventBeat, Step: s.tr.Step, Voice: core.VoiceKick, BPM: s.tr.BPM})
	if s.onBeat != nil {
		s.onBeat()
	}
}

func (s *Sequencer) handleTrigger(tr pattern.Trigger) {
	if s.queue == nil {
		return
	}
	gate := time.Duration(tr.Gate * s.tr.SamplesPerStep / float64(s.tr.SampleRate) * float64(time.Second))
	s.queue.Push(event.TriggerEvent{
		Type:     event.EventNoteOn,
		Step:     tr.Step,
		Voice:    tr.Voice,
		Notes:    tr.Notes,
		Velocity: tr.Velocity,
		Gate:     gate,
		BPM:      s.tr.BPM,
	})
}

func (s *Sequencer) push(ev event.TriggerEvent) {
	if s.queue != nil {
		s.queue.Push(ev)
	}
}

var _ audio.Clock = (*Sequencer)(nil)
