package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/geosym/core"
)

// Bank owns the voices and the shared effect graph
// Construction and disposal are guarded; rendering runs on the audio thread
// and must not overlap Dispose
type Bank struct {
	mu     sync.Mutex
	rate   int
	master bus
	fx     *Effects
	voices [core.VoiceKindCount]Voice

	live     atomic.Int64 // Allocated graph nodes
	disposed atomic.Bool
}

// NewBank creates an empty bank rendering at rate
func NewBank(rate int) *Bank {
	return &Bank{rate: rate}
}

// NewStandardBank builds effects and the full voice set with the default routing
// The acid voice is optional; without it patterns apply their declared fallback
func NewStandardBank(rate int, withAcid bool) (*Bank, error) {
	b := NewBank(rate)
	fx := b.CreateEffects()

	routes := []struct {
		kind core.VoiceKind
		sink Sink
	}{
		{core.VoiceKick, fx.Reverb},
		{core.VoiceBass, fx.Delay},
		{core.VoiceHiHat, fx.Reverb},
		{core.VoicePad, fx.Reverb},
	}
	if withAcid {
		routes = append(routes, struct {
			kind core.VoiceKind
			sink Sink
		}{core.VoiceAcidLead, fx.Delay})
	}

	for _, r := range routes {
		if _, err := b.CreateVoice(r.kind, r.sink); err != nil {
			b.Dispose()
			return nil, err
		}
	}
	return b, nil
}

// SampleRate returns the render rate
func (b *Bank) SampleRate() int {
	return b.rate
}

// Master returns the dry output bus
func (b *Bank) Master() Sink {
	return &b.master
}

// CreateEffects allocates the shared effect graph once; later calls return it
func (b *Bank) CreateEffects() *Effects {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fx == nil {
		b.fx = newEffects(b.rate, &b.master)
		b.live.Add(int64(len(b.fx.chain)))
	}
	return b.fx
}

// Effects returns the effect graph or nil before CreateEffects
func (b *Bank) Effects() *Effects {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fx
}

// CreateVoice allocates a voice of kind sending into sink (nil = master)
// A voice already present for kind is replaced and released
func (b *Bank) CreateVoice(kind core.VoiceKind, sink Sink) (Voice, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVoiceKind, int(kind))
	}
	if b.disposed.Load() {
		return nil, ErrBankDisposed
	}

	v, err := NewVoice(kind, b.rate)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = &b.master
	}
	v.Connect(sink)

	b.mu.Lock()
	defer b.mu.Unlock()

	if bass, ok := v.(*BassVoice); ok && b.fx != nil {
		bass.SetInsert(b.fx.Filter)
	}
	if old := b.voices[kind]; old != nil {
		old.Reset()
		old.Connect(nil)
		b.live.Add(-1)
	}
	b.voices[kind] = v
	b.live.Add(1)
	return v, nil
}

// Voice returns the voice for kind, nil when absent
func (b *Bank) Voice(kind core.VoiceKind) Voice {
	if !kind.Valid() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voices[kind]
}

// SetTempo retimes tempo-synced effects
func (b *Bank) SetTempo(bpm float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fx != nil {
		b.fx.Delay.SetTempo(bpm)
	}
}

// RenderFrame advances every voice and effect by one sample
func (b *Bank) RenderFrame() float64 {
	if b.disposed.Load() {
		return 0
	}
	for _, v := range b.voices {
		if v == nil || !v.Active() {
			continue
		}
		if out := v.Output(); out != nil {
			out.Send(v.Sample())
		}
	}
	if b.fx != nil {
		b.fx.process()
	}
	return b.master.take()
}

// Silence cuts every voice and clears effect tails in one step
func (b *Bank) Silence() {
	for _, v := range b.voices {
		if v != nil {
			v.Reset()
		}
	}
	if b.fx != nil {
		b.fx.reset()
	}
	b.master.take()
}

// LiveNodes returns the count of allocated graph nodes
func (b *Bank) LiveNodes() int {
	return int(b.live.Load())
}

// Dispose releases all voices and effects
// Idempotent; safe after partial construction
func (b *Bank) Dispose() {
	if !b.disposed.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, v := range b.voices {
		if v != nil {
			v.Reset()
			v.Connect(nil)
		}
	}
	if b.fx != nil {
		b.fx.reset()
		for _, e := range b.fx.chain {
			e.Connect(nil)
		}
	}
	b.live.Store(0)
}

// Disposed reports whether Dispose has run
func (b *Bank) Disposed() bool {
	return b.disposed.Load()
}
