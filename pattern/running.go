package pattern

import (
	"fmt"
	"sync/atomic"

	"github.com/lixenwraith/geosym/audio"
	"github.com/lixenwraith/geosym/core"
)

// Voices resolves a voice kind to a bank voice, nil when absent
type Voices interface {
	Voice(kind core.VoiceKind) audio.Voice
}

// Trigger describes one fired step, delivered to observers after the voice call
type Trigger struct {
	Step     int64          // Global grid step
	Track    core.VoiceKind // Track that fired
	Voice    core.VoiceKind // Voice that sounded; differs from Track under fallback
	Notes    []int
	Velocity float64
	Gate     float64 // Grid steps
	Beat     bool
}

// Option configures a Running
type Option func(*Running)

// WithObserver receives every trigger on the audio thread; it must not block
func WithObserver(fn func(Trigger)) Option {
	return func(r *Running) {
		r.observe = fn
	}
}

// binding ties a track to the voice it drives
type binding struct {
	track *Track
	voice audio.Voice
}

// Running is an instantiated pattern bound to bank voices
// Not safe for concurrent use; the sequencer serializes access
type Running struct {
	def      *Definition
	bindings []binding
	onBeat   func()
	observe  func(Trigger)

	anchor   int64
	started  bool
	disposed bool
}

var liveSequences atomic.Int64

// LiveSequences returns the number of track sequences not yet disposed
func LiveSequences() int {
	return int(liveSequences.Load())
}

// Instantiate binds def's tracks to voices
// An acid track without an acid voice follows the pattern's declared fallback
func Instantiate(def *Definition, voices Voices, onBeat func(), opts ...Option) (*Running, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrUnknownPatternID)
	}

	r := &Running{def: def, onBeat: onBeat}
	for _, opt := range opts {
		opt(r)
	}

	for i := range def.Tracks {
		t := &def.Tracks[i]
		v := voices.Voice(t.Voice)

		if v == nil && t.Voice == core.VoiceAcidLead {
			if def.AcidFallback == FallbackOmit {
				continue
			}
			v = voices.Voice(core.VoiceBass)
		}
		if v == nil {
			return nil, fmt.Errorf("%w: pattern %s needs %s", ErrMissingVoice, def.ID, t.Voice)
		}
		r.bindings = append(r.bindings, binding{track: t, voice: v})
	}

	liveSequences.Add(int64(len(r.bindings)))
	return r, nil
}

// Definition returns the bound pattern
func (r *Running) Definition() *Definition {
	return r.def
}

// Sequences returns the number of bound track sequences
func (r *Running) Sequences() int {
	return len(r.bindings)
}

// Started reports whether Fire will trigger voices
func (r *Running) Started() bool {
	return r.started && !r.disposed
}

// Start arms every sequence at grid step anchor, which becomes local step 0
func (r *Running) Start(anchor int64) {
	if r.disposed {
		return
	}
	r.anchor = anchor
	r.started = true

	for _, b := range r.bindings {
		if tv, ok := b.voice.(audio.Timbred); ok && b.track.Voice == core.VoiceBass {
			tv.SetTimbre(r.def.BassTimbre)
		}
	}
}

// Stop disarms all sequences and releases their voices together
func (r *Running) Stop() {
	if !r.started {
		return
	}
	r.started = false
	for _, b := range r.bindings {
		b.voice.Release()
	}
}

// Dispose stops and unbinds; idempotent
func (r *Running) Dispose() {
	if r.disposed {
		return
	}
	r.Stop()
	for _, b := range r.bindings {
		if tv, ok := b.voice.(audio.Timbred); ok && b.track.Voice == core.VoiceBass {
			tv.SetTimbre(audio.TimbrePlain)
		}
	}
	liveSequences.Add(-int64(len(r.bindings)))
	r.bindings = nil
	r.disposed = true
}

// Fire triggers every track due at global grid step
// Tracks fire in definition order; a primary kick calls onBeat before returning
func (r *Running) Fire(step int64, samplesPerStep float64) {
	if !r.started || r.disposed {
		return
	}
	local := step - r.anchor
	if local < 0 {
		return
	}

	for _, b := range r.bindings {
		t := b.track
		stride := int64(t.Stride)
		if local%stride != 0 {
			continue
		}
		s := t.Steps[(local/stride)%int64(len(t.Steps))]
		if s.Rest() {
			continue
		}

		vel := t.VelocityFor(s)
		b.voice.Trigger(audio.NoteParams{
			Notes:    s.Notes,
			Velocity: vel,
			Gate:     int(t.Gate * samplesPerStep),
		})

		beat := t.Voice == core.VoiceKick && s.Kind == StepNote && s.Notes[0] == r.def.Primary
		if beat && r.onBeat != nil {
			r.onBeat()
		}

		if r.observe != nil {
			r.observe(Trigger{
				Step:     step,
				Track:    t.Voice,
				Voice:    b.voice.Kind(),
				Notes:    s.Notes,
				Velocity: vel,
				Gate:     t.Gate,
				Beat:     beat,
			})
		}
	}
}
