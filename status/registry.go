package status

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

// Metric keys published by the engine
const (
	KeySequencerSteps = "sequencer.steps"
	KeySequencerBeats = "sequencer.beats"
	KeySequencerSwaps = "sequencer.swaps"
	KeyVoicesLive     = "voices.live"
	KeySequencesLive  = "sequences.live"
	KeySnapshots      = "publisher.snapshots"
	KeyDropped        = "publisher.dropped"
	KeyPlaying        = "engine.playing"
	KeyPattern        = "engine.pattern"
	KeyBackend        = "engine.backend"
	KeyBPM            = "engine.bpm"
	KeyOutputFailures = "engine.output_failures"
	KeyMIDISent       = "midi.sent"
)

// Registry is the central metrics facade
// Components cache pointers at construction and write atomics directly
type Registry struct {
	Bools   *MetricMap[atomic.Bool]
	Ints    *MetricMap[atomic.Int64]
	Floats  *MetricMap[AtomicFloat]
	Strings *MetricMap[AtomicString]
}

// NewRegistry creates an initialized Registry
func NewRegistry() *Registry {
	return &Registry{
		Bools:   NewMetricMap[atomic.Bool](),
		Ints:    NewMetricMap[atomic.Int64](),
		Floats:  NewMetricMap[AtomicFloat](),
		Strings: NewMetricMap[AtomicString](),
	}
}

// TotalCount returns total metrics across all types
func (r *Registry) TotalCount() int {
	return r.Bools.Count() + r.Ints.Count() + r.Floats.Count() + r.Strings.Count()
}

// Dump renders every metric as "key=value", grouped by type in sorted key order
func (r *Registry) Dump() []string {
	out := make([]string, 0, r.TotalCount())
	r.Bools.Range(func(k string, v *atomic.Bool) {
		out = append(out, k+"="+strconv.FormatBool(v.Load()))
	})
	r.Ints.Range(func(k string, v *atomic.Int64) {
		out = append(out, k+"="+strconv.FormatInt(v.Load(), 10))
	})
	r.Floats.Range(func(k string, v *AtomicFloat) {
		out = append(out, fmt.Sprintf("%s=%.3f", k, v.Get()))
	})
	r.Strings.Range(func(k string, v *AtomicString) {
		out = append(out, k+"="+v.Load())
	})
	return out
}
