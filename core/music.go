package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidVoiceKind is returned when a voice kind is outside the known set
var ErrInvalidVoiceKind = errors.New("invalid voice kind")

// VoiceKind identifies synthesizer voices
type VoiceKind int

const (
	VoiceKick VoiceKind = iota
	VoiceBass
	VoiceHiHat
	VoicePad
	VoiceAcidLead
	VoiceKindCount
)

var voiceNames = [...]string{"kick", "bass", "hihat", "pad", "acid"}

func (k VoiceKind) String() string {
	if k >= 0 && int(k) < len(voiceNames) {
		return voiceNames[k]
	}
	return "unknown"
}

// Valid reports whether k names a known voice
func (k VoiceKind) Valid() bool {
	return k >= 0 && k < VoiceKindCount
}

// IsDrum returns true for unpitched percussion voices
func (k VoiceKind) IsDrum() bool {
	return k == VoiceKick || k == VoiceHiHat
}

// ParseVoiceKind resolves a voice name as used in pattern files
func ParseVoiceKind(s string) (VoiceKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "hat", "hi-hat":
		name = "hihat"
	case "acidlead", "acid-lead", "lead":
		name = "acid"
	}
	for i, n := range voiceNames {
		if n == name {
			return VoiceKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidVoiceKind, s)
}

// MarshalText implements encoding.TextMarshaler
func (k VoiceKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVoiceKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *VoiceKind) UnmarshalText(text []byte) error {
	v, err := ParseVoiceKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// PatternID identifies a pattern in the catalog
// The set is closed over whatever the loaded catalog defines
type PatternID string

// Built-in catalog ids
const (
	PatternClassicMinimal PatternID = "pattern1"
	PatternSyncopated     PatternID = "pattern2"
	PatternDeepHypnotic   PatternID = "pattern3"
	PatternPlastikman     PatternID = "pattern4"
)

// DefaultPattern is selected when nothing else is configured
const DefaultPattern = PatternClassicMinimal

func (p PatternID) String() string {
	return string(p)
}

// TransportState is the scheduler's run state
type TransportState int32

const (
	TransportStopped TransportState = iota
	TransportRunning
)

func (s TransportState) String() string {
	if s == TransportRunning {
		return "running"
	}
	return "stopped"
}
