package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/parameter"
)

// Output backends selectable by name
const (
	BackendAuto    = "auto"    // CLI player when one is found, else speaker
	BackendSpeaker = "speaker" // beep/speaker via oto
	BackendPipe    = "pipe"    // CLI player, fail when none found
	BackendSilent  = "silent"  // Real-time pump into io.Discard
)

// ErrInvalidConfig marks a configuration value outside its domain
var ErrInvalidConfig = errors.New("invalid config")

// Config holds engine settings: defaults, then file, then environment, then flags
type Config struct {
	SampleRate  int            `yaml:"sample_rate"`
	Volume      float64        `yaml:"volume"` // Linear 0.0-1.0
	Muted       bool           `yaml:"muted"`
	Pattern     core.PatternID `yaml:"pattern"`
	Backend     string         `yaml:"backend"`
	AcidVoice   bool           `yaml:"acid_voice"`   // Build the dedicated acid-lead voice
	CatalogFile string         `yaml:"catalog_file"` // Replaces the built-in catalog when set
	MIDIPort    string         `yaml:"midi_port"`    // Substring of the output port name, empty disables
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	return &Config{
		SampleRate: parameter.AudioSampleRate,
		Volume:     0.5,
		Pattern:    core.DefaultPattern,
		Backend:    BackendAuto,
	}
}

// LoadConfigFile overlays the YAML file at path onto the defaults
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads path when non-empty, then applies environment overrides
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadConfigFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings from GEOSYM_* variables
// Malformed values are ignored and the previous setting kept
func (c *Config) ApplyEnv() {
	// Master volume 0-100 converted to 0.0-1.0
	if volume := os.Getenv("GEOSYM_VOLUME"); volume != "" {
		if val, err := strconv.Atoi(volume); err == nil {
			c.Volume = min(max(float64(val)/100.0, 0), 1)
		}
	}

	if p := os.Getenv("GEOSYM_PATTERN"); p != "" {
		c.Pattern = core.PatternID(p)
	}

	if b := os.Getenv("GEOSYM_BACKEND"); b != "" {
		c.Backend = strings.ToLower(b)
	}

	if sampleRate := os.Getenv("GEOSYM_SAMPLE_RATE"); sampleRate != "" {
		if val, err := strconv.Atoi(sampleRate); err == nil && val > 0 {
			c.SampleRate = val
		}
	}

	if acid := os.Getenv("GEOSYM_ACID_VOICE"); acid != "" {
		if val, err := strconv.ParseBool(acid); err == nil {
			c.AcidVoice = val
		}
	}

	if port, ok := os.LookupEnv("GEOSYM_MIDI_PORT"); ok {
		c.MIDIPort = port
	}
}

// Validate checks ranges and names
func (c *Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("%w: volume %.2f outside 0-1", ErrInvalidConfig, c.Volume)
	}
	switch c.Backend {
	case BackendAuto, BackendSpeaker, BackendPipe, BackendSilent:
	default:
		return fmt.Errorf("%w: backend %q", ErrInvalidConfig, c.Backend)
	}
	return nil
}
