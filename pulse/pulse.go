package pulse

import (
	"sync"
	"time"

	"github.com/lixenwraith/geosym/clock"
	"github.com/lixenwraith/geosym/parameter"
)

// Pulse is a momentary beat flag: true for a fixed duration after each Fire
// Fire runs on the audio thread, Active on the publisher; both are safe concurrently
type Pulse struct {
	mu       sync.Mutex
	clock    clock.Provider
	duration time.Duration
	until    time.Time
	last     time.Time
	count    uint64
}

// New creates a pulse reading time from c; zero d uses the default beat pulse duration
func New(c clock.Provider, d time.Duration) *Pulse {
	if d <= 0 {
		d = parameter.BeatPulseDuration
	}
	return &Pulse{clock: c, duration: d}
}

// Fire raises the pulse now
func (p *Pulse) Fire() {
	p.FireAt(p.clock.Now())
}

// FireAt raises the pulse at now; a fire during an active pulse extends it
func (p *Pulse) FireAt(now time.Time) {
	p.mu.Lock()
	p.until = now.Add(p.duration)
	p.last = now
	p.count++
	p.mu.Unlock()
}

// Active reports whether the pulse is raised now
func (p *Pulse) Active() bool {
	return p.ActiveAt(p.clock.Now())
}

// ActiveAt reports whether the pulse is raised at now
func (p *Pulse) ActiveAt(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Before(p.until)
}

// Last returns the time of the most recent fire, zero if none
func (p *Pulse) Last() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Count returns total fires since creation or Reset
func (p *Pulse) Count() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Reset lowers the pulse immediately and clears the count
func (p *Pulse) Reset() {
	p.mu.Lock()
	p.until = time.Time{}
	p.last = time.Time{}
	p.count = 0
	p.mu.Unlock()
}
