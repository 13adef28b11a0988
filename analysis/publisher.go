package analysis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/geosym/clock"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/parameter"
	"github.com/lixenwraith/geosym/status"
)

// Transport is the read side of the scheduler the publisher samples
type Transport interface {
	Playing() bool
	PatternID() core.PatternID
	Progress() float64
}

// Beat reports whether the beat pulse is raised at now
type Beat interface {
	ActiveAt(now time.Time) bool
}

// PublisherOption configures a Publisher
type PublisherOption func(*Publisher)

// WithClock sets the time source used by Run
func WithClock(c clock.Provider) PublisherOption {
	return func(p *Publisher) { p.clock = c }
}

// WithStats publishes snapshot and drop counters into r
func WithStats(r *status.Registry) PublisherOption {
	return func(p *Publisher) { p.stats = r }
}

// WithIntervals overrides the snapshot and progress cadences
func WithIntervals(snapshot, progress time.Duration) PublisherOption {
	return func(p *Publisher) {
		if snapshot > 0 {
			p.snapshotEvery = snapshot
		}
		if progress > 0 {
			p.progressEvery = progress
		}
	}
}

// Publisher composes snapshots and fans them out to subscribers
// It owns the latest snapshot; subscribers only ever receive copies
type Publisher struct {
	transport Transport
	beat      Beat
	analyzer  *Analyzer
	mapper    *Mapper
	clock     clock.Provider
	stats     *status.Registry

	snapshotEvery time.Duration
	progressEvery time.Duration

	mu       sync.Mutex
	latest   Snapshot
	progress float64
	nextID   int
	subs     map[int]chan Snapshot
	psubs    map[int]chan float64

	snapshots *atomic.Int64
	dropped   *atomic.Int64
}

// NewPublisher creates a publisher holding the default snapshot
// analyzer may be nil, in which case energies stay 0
func NewPublisher(tr Transport, beat Beat, analyzer *Analyzer, mapper *Mapper, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		transport:     tr,
		beat:          beat,
		analyzer:      analyzer,
		mapper:        mapper,
		snapshotEvery: parameter.PublishInterval,
		progressEvery: parameter.ProgressInterval,
		latest:        Default(),
		subs:          make(map[int]chan Snapshot),
		psubs:         make(map[int]chan float64),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = clock.NewReal()
	}
	if p.mapper == nil {
		p.mapper = NewMapper(nil)
	}
	if p.stats == nil {
		p.stats = status.NewRegistry()
	}
	p.snapshots = p.stats.Ints.Get(status.KeySnapshots)
	p.dropped = p.stats.Ints.Get(status.KeyDropped)
	return p
}

// Tick composes one snapshot at now and publishes it
// While the transport is stopped the snapshot is exactly Default()
func (p *Publisher) Tick(now time.Time) Snapshot {
	snap := p.compose(now)

	p.mu.Lock()
	p.latest = snap
	for _, ch := range p.subs {
		if offer(ch, snap) {
			p.dropped.Add(1)
		}
	}
	p.mu.Unlock()

	p.snapshots.Add(1)
	return snap
}

// TickProgress samples loop progress and publishes it, 0 while stopped
func (p *Publisher) TickProgress(now time.Time) float64 {
	var prog float64
	if p.transport != nil && p.transport.Playing() {
		prog = p.transport.Progress()
	}

	p.mu.Lock()
	p.progress = prog
	for _, ch := range p.psubs {
		if offer(ch, prog) {
			p.dropped.Add(1)
		}
	}
	p.mu.Unlock()
	return prog
}

// Run ticks snapshots and progress on their cadences until ctx is done
func (p *Publisher) Run(ctx context.Context) {
	snapTicker := time.NewTicker(p.snapshotEvery)
	defer snapTicker.Stop()
	progTicker := time.NewTicker(p.progressEvery)
	defer progTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-snapTicker.C:
			p.Tick(p.clock.Now())
		case <-progTicker.C:
			p.TickProgress(p.clock.Now())
		}
	}
}

// Reset publishes the default snapshot and progress 0 immediately
func (p *Publisher) Reset() {
	def := Default()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = def
	p.progress = 0
	for _, ch := range p.subs {
		if offer(ch, def) {
			p.dropped.Add(1)
		}
	}
	for _, ch := range p.psubs {
		if offer(ch, 0.0) {
			p.dropped.Add(1)
		}
	}
}

// Latest returns a copy of the last published snapshot
func (p *Publisher) Latest() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// LatestProgress returns the last published progress
func (p *Publisher) LatestProgress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Subscribe registers a snapshot channel of capacity buf, primed with the latest snapshot
// A full channel loses its oldest value; the returned func unsubscribes and closes it
func (p *Publisher) Subscribe(buf int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, max(buf, 1))

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	ch <- p.latest
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

// SubscribeProgress registers a progress channel, see Subscribe
func (p *Publisher) SubscribeProgress(buf int) (<-chan float64, func()) {
	ch := make(chan float64, max(buf, 1))

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.psubs[id] = ch
	ch <- p.progress
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.psubs, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

// Subscribers returns the number of snapshot and progress subscribers
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs) + len(p.psubs)
}

// compose reads the collaborators without holding mu
func (p *Publisher) compose(now time.Time) Snapshot {
	if p.transport == nil || !p.transport.Playing() {
		return Default()
	}

	var bass, high float64
	if p.analyzer != nil {
		bins := p.analyzer.SampleSpectrum()
		bass = BassEnergy(bins)
		high = HighEnergy(bins)
	}

	id := p.transport.PatternID()
	v := p.mapper.MapPattern(id, bass, high)
	return Snapshot{
		BeatActive:          p.beat != nil && p.beat.ActiveAt(now),
		PatternIntensity:    v.PatternIntensity,
		BassEnergy:          bass,
		HighFrequencyEnergy: high,
		VisualTempo:         v.VisualTempo,
		ColorIntensity:      v.ColorIntensity,
		RotationSpeed:       v.RotationSpeed,
		AcidResonance:       v.AcidResonance,
		SpatialDepth:        v.SpatialDepth,
		Pattern:             id,
		Progress:            p.transport.Progress(),
		Playing:             true,
		At:                  now,
	}
}

// offer sends v without blocking, evicting the oldest queued value when ch is full
// Caller holds the publisher lock, so no other sender races the retry
func offer[T any](ch chan T, v T) (dropped bool) {
	select {
	case ch <- v:
		return false
	default:
	}
	select {
	case <-ch:
		dropped = true
	default:
	}
	select {
	case ch <- v:
	default:
	}
	return dropped
}
