package analysis

import (
	"time"

	"github.com/lixenwraith/geosym/core"
)

// Snapshot is one published set of audio parameters
// Values are copied to every consumer; nothing downstream can mutate the publisher's copy
type Snapshot struct {
	BeatActive          bool
	PatternIntensity    float64
	BassEnergy          float64
	HighFrequencyEnergy float64
	VisualTempo         float64
	ColorIntensity      float64
	RotationSpeed       float64
	AcidResonance       float64
	SpatialDepth        float64

	Pattern  core.PatternID // Empty while stopped
	Progress float64
	Playing  bool
	At       time.Time // Zero while stopped
}

// Default is the stopped baseline: neutral values, never all zeros
func Default() Snapshot {
	return Snapshot{
		PatternIntensity: 0.5,
		VisualTempo:      1,
		ColorIntensity:   0.5,
		RotationSpeed:    0.5,
		SpatialDepth:     0.5,
	}
}

// IsDefault reports whether s is the stopped baseline
func (s Snapshot) IsDefault() bool {
	return s == Default()
}
