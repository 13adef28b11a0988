package pattern

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/geosym/audio"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/parameter"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Catalog is an immutable, ordered set of pattern definitions
// Definitions are shared; callers must not mutate them
type Catalog struct {
	order []core.PatternID
	defs  map[core.PatternID]*Definition
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded built-in catalog, parsed once
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(builtinCatalog)
	})
	return defaultCatalog, defaultErr
}

// Get returns the definition for id
func (c *Catalog) Get(id core.PatternID) (*Definition, error) {
	if d, ok := c.defs[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPatternID, string(id))
}

// Has reports whether id is in the catalog
func (c *Catalog) Has(id core.PatternID) bool {
	_, ok := c.defs[id]
	return ok
}

// IDs returns pattern ids in file order
func (c *Catalog) IDs() []core.PatternID {
	out := make([]core.PatternID, len(c.order))
	copy(out, c.order)
	return out
}

// All returns definitions in file order
func (c *Catalog) All() []*Definition {
	out := make([]*Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.defs[id])
	}
	return out
}

// Len returns the number of patterns
func (c *Catalog) Len() int {
	return len(c.order)
}

// --- YAML schema ---

type fileCatalog struct {
	Version  int           `yaml:"version"`
	Patterns []filePattern `yaml:"patterns"`
}

type filePattern struct {
	ID           string      `yaml:"id"`
	Name         string      `yaml:"name"`
	BPM          float64     `yaml:"bpm"`
	Genre        string      `yaml:"genre"`
	Primary      string      `yaml:"primary"`
	BassTimbre   string      `yaml:"bass_timbre"`
	AcidFallback string      `yaml:"acid_fallback"`
	LoopSteps    int         `yaml:"loop_steps"`
	Visual       *fileVisual `yaml:"visual"`
	Tracks       []fileTrack `yaml:"tracks"`
}

type fileVisual struct {
	Tempo     *float64 `yaml:"tempo"`
	Color     *float64 `yaml:"color"`
	ColorBass *float64 `yaml:"color_bass"`
	Rotation  *float64 `yaml:"rotation"`
	Intensity *float64 `yaml:"intensity"`
	Acid      *float64 `yaml:"acid"`
	AcidHigh  *float64 `yaml:"acid_high"`
	Depth     *float64 `yaml:"depth"`
}

type fileTrack struct {
	Voice       string             `yaml:"voice"`
	Every       string             `yaml:"every"`
	Gate        string             `yaml:"gate"`
	Velocity    *float64           `yaml:"velocity"`
	VelocityMap map[string]float64 `yaml:"velocity_map"`
	Steps       string             `yaml:"steps"`
}

// Load parses and validates a YAML catalog
func Load(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(fc.Patterns) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{defs: make(map[core.PatternID]*Definition, len(fc.Patterns))}
	for i := range fc.Patterns {
		def, err := fc.Patterns[i].definition()
		if err != nil {
			return nil, err
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.defs[def.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, def.ID)
		}
		c.defs[def.ID] = def
		c.order = append(c.order, def.ID)
	}
	return c, nil
}

func (fp *filePattern) definition() (*Definition, error) {
	def := &Definition{
		ID:        core.PatternID(fp.ID),
		Name:      fp.Name,
		BPM:       fp.BPM,
		Genre:     fp.Genre,
		LoopSteps: fp.LoopSteps,
		Visual:    fp.Visual.resolve(),
	}
	if def.LoopSteps == 0 {
		def.LoopSteps = parameter.LoopSteps
	}

	primary := fp.Primary
	if primary == "" {
		primary = parameter.PrimaryPitch
	}
	note, err := ParsePitch(primary)
	if err != nil {
		return nil, fmt.Errorf("pattern %s primary: %w", fp.ID, err)
	}
	def.Primary = note

	if def.BassTimbre, err = audio.ParseTimbre(fp.BassTimbre); err != nil {
		return nil, fmt.Errorf("pattern %s: %w", fp.ID, err)
	}

	switch fp.AcidFallback {
	case "", "bass":
		def.AcidFallback = FallbackBass
	case "omit":
		def.AcidFallback = FallbackOmit
	default:
		return nil, fmt.Errorf("pattern %s: unknown acid_fallback %q", fp.ID, fp.AcidFallback)
	}

	for i := range fp.Tracks {
		t, err := fp.Tracks[i].track()
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", fp.ID, err)
		}
		def.Tracks = append(def.Tracks, t)
	}
	return def, nil
}

func (fv *fileVisual) resolve() Visual {
	v := DefaultVisual
	if fv == nil {
		return v
	}
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&v.Tempo, fv.Tempo)
	set(&v.Color, fv.Color)
	set(&v.ColorBass, fv.ColorBass)
	set(&v.Rotation, fv.Rotation)
	set(&v.Intensity, fv.Intensity)
	set(&v.Acid, fv.Acid)
	set(&v.AcidHigh, fv.AcidHigh)
	set(&v.Depth, fv.Depth)
	return v
}

func (ft *fileTrack) track() (Track, error) {
	kind, err := core.ParseVoiceKind(ft.Voice)
	if err != nil {
		return Track{}, err
	}
	t := Track{Voice: kind, Velocity: 1}

	every := ft.Every
	if every == "" {
		every = "16n"
	}
	stride, err := ParseDuration(every)
	if err != nil {
		return Track{}, fmt.Errorf("%s every: %w", kind, err)
	}
	if stride < 1 || stride != float64(int(stride)) {
		return Track{}, fmt.Errorf("%w: %s every %q is finer than the grid", ErrMisaligned, kind, every)
	}
	t.Stride = int(stride)

	gate := ft.Gate
	if gate == "" {
		gate = every
	}
	if t.Gate, err = ParseDuration(gate); err != nil {
		return Track{}, fmt.Errorf("%s gate: %w", kind, err)
	}

	if ft.Velocity != nil {
		t.Velocity = *ft.Velocity
	}
	if len(ft.VelocityMap) > 0 {
		t.VelocityMap = make(map[int]float64, len(ft.VelocityMap))
		for name, vel := range ft.VelocityMap {
			note, err := ParsePitch(name)
			if err != nil {
				return Track{}, fmt.Errorf("%s velocity_map: %w", kind, err)
			}
			t.VelocityMap[note] = vel
		}
	}

	for _, tok := range strings.Fields(ft.Steps) {
		s, err := ParseStep(kind, tok)
		if err != nil {
			return Track{}, fmt.Errorf("%s: %w", kind, err)
		}
		t.Steps = append(t.Steps, s)
	}
	return t, nil
}

// ParseStep decodes one step token for a voice
// "." "-" "_" rest; hihat takes a velocity ("0.3"); pad takes a
// comma-separated chord ("C3,Eb3,G3"); other voices take a pitch ("A#0")
func ParseStep(kind core.VoiceKind, tok string) (Step, error) {
	switch tok {
	case ".", "-", "_", "~":
		return Step{Kind: StepRest}, nil
	}

	switch kind {
	case core.VoiceHiHat:
		vel, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return Step{}, fmt.Errorf("%w: velocity %q", ErrBadStep, tok)
		}
		return Step{Kind: StepHit, Velocity: vel}, nil

	case core.VoicePad:
		parts := strings.Split(tok, ",")
		notes := make([]int, 0, len(parts))
		for _, p := range parts {
			n, err := ParsePitch(p)
			if err != nil {
				return Step{}, err
			}
			notes = append(notes, n)
		}
		return Step{Kind: StepChord, Notes: notes}, nil

	default:
		n, err := ParsePitch(tok)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: StepNote, Notes: []int{n}}, nil
	}
}
