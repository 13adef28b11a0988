package analysis

import (
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/pattern"
)

// Visual is the pattern-derived part of a snapshot
type Visual struct {
	VisualTempo      float64
	ColorIntensity   float64
	RotationSpeed    float64
	PatternIntensity float64
	AcidResonance    float64
	SpatialDepth     float64
}

// Mapper turns a pattern id and the current energies into visual parameters
// Presets are copied at construction, so MapPattern is a pure function of its arguments
type Mapper struct {
	presets map[core.PatternID]pattern.Visual
}

// NewMapper takes the visual presets of every pattern in c
func NewMapper(c *pattern.Catalog) *Mapper {
	m := &Mapper{presets: make(map[core.PatternID]pattern.Visual)}
	if c == nil {
		return m
	}
	for _, d := range c.All() {
		m.presets[d.ID] = d.Visual
	}
	return m
}

// MapPattern applies energy offsets to the pattern's baseline; values are not clamped
// Unknown ids map to the neutral default preset
func (m *Mapper) MapPattern(id core.PatternID, bass, high float64) Visual {
	p, ok := m.presets[id]
	if !ok {
		p = pattern.DefaultVisual
	}
	return Visual{
		VisualTempo:      p.Tempo,
		ColorIntensity:   p.Color + p.ColorBass*bass,
		RotationSpeed:    p.Rotation,
		PatternIntensity: p.Intensity,
		AcidResonance:    p.Acid + p.AcidHigh*high,
		SpatialDepth:     p.Depth,
	}
}
