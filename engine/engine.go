package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/geosym/analysis"
	"github.com/lixenwraith/geosym/audio"
	"github.com/lixenwraith/geosym/clock"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/event"
	"github.com/lixenwraith/geosym/parameter"
	"github.com/lixenwraith/geosym/pattern"
	"github.com/lixenwraith/geosym/pulse"
	"github.com/lixenwraith/geosym/sequencer"
	"github.com/lixenwraith/geosym/status"
)

// ErrClosed is returned by control calls after Close
var ErrClosed = errors.New("engine closed")

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the time source for the beat pulse and snapshots
func WithClock(c clock.Provider) Option {
	return func(e *Engine) { e.clock = c }
}

// WithQueue mirrors sequencer triggers onto q
func WithQueue(q *event.Queue) Option {
	return func(e *Engine) { e.queue = q }
}

// WithStats shares a metrics registry
func WithStats(r *status.Registry) Option {
	return func(e *Engine) { e.stats = r }
}

// WithSilentFailover keeps playing on a silent output when the active output breaks
// Without it a broken output pauses the engine
func WithSilentFailover() Option {
	return func(e *Engine) { e.failover = true }
}

// Engine wires the voice bank, sequencer, beat pulse, analyzer and publisher
// behind one control surface
//
// Render chain: Master (sequencer clock) -> Volume -> Tap -> Output
type Engine struct {
	cfg      Config
	catalog  *pattern.Catalog
	clock    clock.Provider
	queue    *event.Queue
	stats    *status.Registry
	failover bool

	bank      *audio.Bank
	master    *audio.Master
	volume    *effects.Volume
	tap       *analysis.Tap
	seq       *sequencer.Sequencer
	beat      *pulse.Pulse
	analyzer  *analysis.Analyzer
	publisher *analysis.Publisher

	mu        sync.Mutex
	output    audio.Output
	level     float64 // Linear volume restored on unmute
	muted     bool
	cancelRun context.CancelFunc
	runDone   chan struct{}
	runParent context.Context
	outErr    error // Last output failure
	closed    bool

	handlersMu  sync.RWMutex
	handlers    map[int]func()
	nextHandler int
}

// New builds a stopped engine driving output
// The configured pattern is selected but nothing plays until Play
func New(cfg *Config, output audio.Output, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if output == nil {
		return nil, fmt.Errorf("%w: nil output", audio.ErrActivationFailed)
	}

	e := &Engine{
		cfg:      *cfg,
		output:   output,
		level:    cfg.Volume,
		muted:    cfg.Muted,
		handlers: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = clock.NewReal()
	}
	if e.stats == nil {
		e.stats = status.NewRegistry()
	}

	catalog, err := LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	e.catalog = catalog

	bank, err := audio.NewStandardBank(cfg.SampleRate, cfg.AcidVoice)
	if err != nil {
		return nil, err
	}
	e.bank = bank

	e.beat = pulse.New(e.clock, parameter.BeatPulseDuration)
	seqOpts := []sequencer.Option{sequencer.WithStats(e.stats), sequencer.WithBeat(e.handleBeat)}
	if e.queue != nil {
		seqOpts = append(seqOpts, sequencer.WithQueue(e.queue))
	}
	e.seq = sequencer.New(bank, cfg.SampleRate, seqOpts...)

	e.master = audio.NewMaster(bank)
	e.master.SetClock(e.seq)
	e.volume = audio.NewVolume(e.master, cfg.Volume)
	e.volume.Silent = e.volume.Silent || cfg.Muted
	e.tap = analysis.NewTap(e.volume, parameter.FFTSize)
	output.Play(e.tap)

	e.analyzer, err = analysis.NewAnalyzer(e.tap)
	if err != nil {
		bank.Dispose()
		return nil, err
	}
	e.publisher = analysis.NewPublisher(e, e.beat, e.analyzer, analysis.NewMapper(catalog),
		analysis.WithClock(e.clock), analysis.WithStats(e.stats))

	e.stats.Ints.Get(status.KeyVoicesLive).Store(int64(bank.LiveNodes()))
	e.stats.Strings.Get(status.KeyBackend).Store(output.Name())

	if cfg.Pattern != "" {
		if err := e.SetPattern(cfg.Pattern); err != nil {
			bank.Dispose()
			return nil, err
		}
	}
	return e, nil
}

// LoadCatalog parses the catalog file at path, or returns the built-in catalog for an empty path
func LoadCatalog(path string) (*pattern.Catalog, error) {
	if path == "" {
		return pattern.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return pattern.Load(data)
}

// Play activates the output on first use and starts the transport
// Activation failure wraps audio.ErrActivationFailed and leaves the engine stopped
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playLocked(ctx)
}

// PlaySilent replaces the output with a real-time silent pump and plays
// Beats, progress and snapshots keep their timing without sound
func (e *Engine) PlaySilent(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playSilentLocked(ctx)
}

func (e *Engine) playSilentLocked(ctx context.Context) error {
	if e.closed {
		return ErrClosed
	}
	if e.seq.State() == core.TransportRunning {
		return nil
	}
	if err := e.output.Close(); err != nil {
		log.Printf("engine: close %s: %v", e.output.Name(), err)
	}
	e.output = audio.NewSilentOutput(e.cfg.SampleRate)
	e.output.Play(e.tap)
	e.stats.Strings.Get(status.KeyBackend).Store(e.output.Name())
	return e.playLocked(ctx)
}

func (e *Engine) playLocked(ctx context.Context) error {
	if e.closed {
		return ErrClosed
	}
	if e.seq.State() == core.TransportRunning {
		return nil
	}
	if err := e.output.Activate(); err != nil {
		log.Printf("engine: activate %s: %v", e.output.Name(), err)
		return err
	}
	if err := e.seq.Play(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancelRun = cancel
	e.runDone = done
	e.runParent = ctx
	core.Go(func() {
		defer close(done)
		e.publisher.Run(runCtx)
	})
	if f, ok := e.output.(audio.Faulty); ok {
		errs := f.Errors()
		core.Go(func() {
			select {
			case err := <-errs:
				e.handleOutputFailure(done, err)
			case <-runCtx.Done():
			}
		})
	}
	e.publisher.Tick(e.clock.Now())
	return nil
}

// handleOutputFailure stops a run whose output quit pulling audio
// done identifies the run; a run already paused or replaced is left alone
func (e *Engine) handleOutputFailure(done chan struct{}, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.runDone != done {
		return
	}
	log.Printf("engine: output %s failed: %v", e.output.Name(), err)
	e.outErr = err
	e.stats.Ints.Get(status.KeyOutputFailures).Add(1)

	parent := e.runParent
	e.pauseLocked()
	if !e.failover {
		return
	}
	if err := e.playSilentLocked(parent); err != nil {
		log.Printf("engine: silent failover: %v", err)
	}
}

// OutputErr returns the last output failure, nil if the output never broke
func (e *Engine) OutputErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outErr
}

// Pause stops and silences all voices, rewinds, and publishes the default snapshot
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
}

func (e *Engine) pauseLocked() {
	e.seq.Pause()
	if e.cancelRun != nil {
		e.cancelRun()
		<-e.runDone
		e.cancelRun = nil
		e.runDone = nil
		e.runParent = nil
	}
	e.beat.Reset()
	e.tap.Reset()
	e.publisher.Reset()
}

// SetPattern selects id; while playing the switch is immediate and phase-locked to the bar
func (e *Engine) SetPattern(id core.PatternID) error {
	def, err := e.catalog.Get(id)
	if err != nil {
		log.Printf("engine: set pattern: %v", err)
		return err
	}
	return e.seq.SetPattern(def)
}

// SetTempo overrides the pattern tempo until the next SetPattern
func (e *Engine) SetTempo(bpm float64) error {
	return e.seq.SetTempo(bpm)
}

// BPM returns the tempo in effect
func (e *Engine) BPM() float64 {
	return e.seq.BPM()
}

// SetVolume sets the linear master volume; 0 or below mutes
func (e *Engine) SetVolume(linear float64) {
	linear = snapLevel(linear)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.level = linear
	e.muted = linear == 0
	e.output.Do(func() {
		audio.SetLinearVolume(e.volume, linear)
	})
}

// SetVolumeDB sets the master gain in decibels
func (e *Engine) SetVolumeDB(db float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.level = snapLevel(audio.DBToLinear(db))
	e.muted = e.level == 0
	e.output.Do(func() {
		audio.SetDBVolume(e.volume, db)
	})
}

// snapLevel clamps to [0, 1]; float residue from repeated steps counts as zero
func snapLevel(linear float64) float64 {
	linear = min(max(linear, 0), 1)
	if linear < parameter.MuteFloor {
		return 0
	}
	return linear
}

// Volume returns the linear volume restored on unmute
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// Muted reports whether output is muted
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// ToggleMute flips mute and returns the new muted state
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.muted = !e.muted
	muted, level := e.muted, e.level
	e.output.Do(func() {
		if muted || level <= 0 {
			e.volume.Silent = true
			return
		}
		audio.SetLinearVolume(e.volume, level)
	})
	return muted
}

// OnBeat registers fn for every primary beat and returns its removal func
// fn runs on the audio thread and must not block or call back into the engine
func (e *Engine) OnBeat(fn func()) (remove func()) {
	e.handlersMu.Lock()
	id := e.nextHandler
	e.nextHandler++
	e.handlers[id] = fn
	e.handlersMu.Unlock()

	return func() {
		e.handlersMu.Lock()
		delete(e.handlers, id)
		e.handlersMu.Unlock()
	}
}

func (e *Engine) handleBeat() {
	e.beat.Fire()
	e.handlersMu.RLock()
	for _, fn := range e.handlers {
		fn()
	}
	e.handlersMu.RUnlock()
}

// Playing implements analysis.Transport
func (e *Engine) Playing() bool {
	return e.seq.State() == core.TransportRunning
}

// PatternID implements analysis.Transport
func (e *Engine) PatternID() core.PatternID {
	if def := e.seq.Pattern(); def != nil {
		return def.ID
	}
	return ""
}

// Progress returns the position in the current loop, 0 while stopped
func (e *Engine) Progress() float64 {
	return e.seq.Progress()
}

// Snapshot returns the last published audio parameters
func (e *Engine) Snapshot() analysis.Snapshot {
	return e.publisher.Latest()
}

// Subscribe delivers snapshots at the publish cadence
func (e *Engine) Subscribe(buf int) (<-chan analysis.Snapshot, func()) {
	return e.publisher.Subscribe(buf)
}

// SubscribeProgress delivers loop progress at the progress cadence
func (e *Engine) SubscribeProgress(buf int) (<-chan float64, func()) {
	return e.publisher.SubscribeProgress(buf)
}

// Spectrum samples the analyzer directly
func (e *Engine) Spectrum() []float64 {
	return e.analyzer.SampleSpectrum()
}

// Patterns lists the catalog in order
func (e *Engine) Patterns() []*pattern.Definition {
	return e.catalog.All()
}

// Catalog returns the pattern catalog in use
func (e *Engine) Catalog() *pattern.Catalog {
	return e.catalog
}

// Publisher exposes the snapshot publisher for deterministic ticking
func (e *Engine) Publisher() *analysis.Publisher {
	return e.publisher
}

// Stats returns the metrics registry
func (e *Engine) Stats() *status.Registry {
	return e.stats
}

// Output returns the output currently driven
func (e *Engine) Output() audio.Output {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.output
}

// Close stops playback and releases the output and the bank; idempotent
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.pauseLocked()
	e.closed = true

	err := e.output.Close()
	e.output.Do(func() {
		e.bank.Dispose()
	})
	e.stats.Ints.Get(status.KeyVoicesLive).Store(int64(e.bank.LiveNodes()))
	log.Printf("engine: closed")
	return err
}
