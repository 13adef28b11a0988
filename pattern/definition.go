package pattern

import (
	"errors"
	"fmt"
	"math"

	"github.com/lixenwraith/geosym/audio"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/parameter"
)

// Sentinel errors
var (
	ErrUnknownPatternID = errors.New("unknown pattern id")
	ErrBadStep          = errors.New("malformed step")
	ErrMisaligned       = errors.New("track loop is not a whole number of bars")
	ErrDuplicateID      = errors.New("duplicate pattern id")
	ErrEmptyCatalog     = errors.New("catalog has no patterns")
	ErrMissingVoice     = errors.New("voice required by pattern is missing")
)

// StepKind tags the variant held by a Step
type StepKind uint8

const (
	StepRest  StepKind = iota
	StepNote           // Single pitch, track velocity
	StepChord          // Pitch set triggered together
	StepHit            // Unpitched hit with its own velocity
)

func (k StepKind) String() string {
	switch k {
	case StepNote:
		return "note"
	case StepChord:
		return "chord"
	case StepHit:
		return "hit"
	}
	return "rest"
}

// Step is one grid cell of a track
type Step struct {
	Kind     StepKind
	Notes    []int   // MIDI notes for Note and Chord
	Velocity float64 // Hit velocity; 0 for pitched steps
}

// Rest reports whether the step never triggers
func (s Step) Rest() bool {
	return s.Kind == StepRest
}

// Fallback decides what an acid track does when no acid voice exists
type Fallback int

const (
	FallbackBass Fallback = iota // Reuse the bass voice
	FallbackOmit                 // Drop the layer
)

func (f Fallback) String() string {
	if f == FallbackOmit {
		return "omit"
	}
	return "bass"
}

// Track is one voice's step sequence
type Track struct {
	Voice       core.VoiceKind
	Stride      int     // Grid steps per element: 16n = 1, 8n = 2, 2n = 8
	Gate        float64 // Note length in grid steps
	Velocity    float64 // Default velocity for pitched steps
	VelocityMap map[int]float64
	Steps       []Step
}

// LoopSteps returns the track's loop length on the 16th grid
func (t *Track) LoopSteps() int {
	return len(t.Steps) * t.Stride
}

// VelocityFor returns the velocity for a pitched step
func (t *Track) VelocityFor(s Step) float64 {
	if s.Kind == StepHit {
		return s.Velocity
	}
	if len(s.Notes) > 0 && t.VelocityMap != nil {
		if v, ok := t.VelocityMap[s.Notes[0]]; ok {
			return v
		}
	}
	return t.Velocity
}

// Visual is a pattern's baseline visual preset with energy coefficients
type Visual struct {
	Tempo     float64
	Color     float64
	ColorBass float64 // Added per unit of bass energy
	Rotation  float64
	Intensity float64
	Acid      float64
	AcidHigh  float64 // Added per unit of high-frequency energy
	Depth     float64
}

// DefaultVisual is the neutral preset for ids without one
var DefaultVisual = Visual{
	Tempo:     1,
	Color:     0.5,
	Rotation:  0.5,
	Intensity: 0.7,
	Depth:     0.5,
}

// Definition is a declarative pattern
type Definition struct {
	ID           core.PatternID
	Name         string
	BPM          float64
	Genre        string
	Primary      int // Kick pitch raising the beat pulse
	BassTimbre   audio.Timbre
	AcidFallback Fallback
	LoopSteps    int // Progress loop length on the 16th grid
	Visual       Visual
	Tracks       []Track
}

// Track returns the track for kind, nil when the pattern has none
func (d *Definition) Track(kind core.VoiceKind) *Track {
	for i := range d.Tracks {
		if d.Tracks[i].Voice == kind {
			return &d.Tracks[i]
		}
	}
	return nil
}

// ArrangementSteps is the grid length after which every track realigns
func (d *Definition) ArrangementSteps() int {
	steps := parameter.StepsPerBar
	for i := range d.Tracks {
		steps = lcm(steps, d.Tracks[i].LoopSteps())
	}
	return steps
}

// Validate checks grid alignment and step types per voice
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrBadStep)
	}
	if d.BPM <= 0 || math.IsNaN(d.BPM) {
		return fmt.Errorf("pattern %s: invalid bpm %v", d.ID, d.BPM)
	}
	if d.LoopSteps <= 0 || d.LoopSteps%parameter.StepsPerBar != 0 {
		return fmt.Errorf("%w: pattern %s loop_steps %d", ErrMisaligned, d.ID, d.LoopSteps)
	}

	seen := make(map[core.VoiceKind]bool)
	for i := range d.Tracks {
		t := &d.Tracks[i]
		if !t.Voice.Valid() {
			return fmt.Errorf("pattern %s: %w", d.ID, core.ErrInvalidVoiceKind)
		}
		if seen[t.Voice] {
			return fmt.Errorf("pattern %s: duplicate %s track", d.ID, t.Voice)
		}
		seen[t.Voice] = true

		if t.Stride < 1 || len(t.Steps) == 0 || len(t.Steps) > parameter.MaxTrackSteps {
			return fmt.Errorf("%w: pattern %s %s has %d steps stride %d", ErrMisaligned, d.ID, t.Voice, len(t.Steps), t.Stride)
		}
		if t.LoopSteps()%parameter.StepsPerBar != 0 {
			return fmt.Errorf("%w: pattern %s %s spans %d grid steps", ErrMisaligned, d.ID, t.Voice, t.LoopSteps())
		}

		for j, s := range t.Steps {
			if err := checkStep(t.Voice, s); err != nil {
				return fmt.Errorf("pattern %s %s step %d: %w", d.ID, t.Voice, j, err)
			}
		}
	}
	return nil
}

func checkStep(kind core.VoiceKind, s Step) error {
	switch s.Kind {
	case StepRest:
		return nil
	case StepHit:
		if kind != core.VoiceHiHat {
			return fmt.Errorf("%w: velocity step on %s", ErrBadStep, kind)
		}
		if s.Velocity < 0 || s.Velocity > 1 {
			return fmt.Errorf("%w: velocity %v", ErrBadStep, s.Velocity)
		}
	case StepChord:
		if kind != core.VoicePad {
			return fmt.Errorf("%w: chord on %s", ErrBadStep, kind)
		}
		if len(s.Notes) == 0 {
			return fmt.Errorf("%w: empty chord", ErrBadStep)
		}
	case StepNote:
		if kind == core.VoiceHiHat {
			return fmt.Errorf("%w: pitch on hihat", ErrBadStep)
		}
		if len(s.Notes) != 1 {
			return fmt.Errorf("%w: note needs one pitch", ErrBadStep)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrBadStep, s.Kind)
	}
	return nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return max(a, b)
	}
	return a / gcd(a, b) * b
}
