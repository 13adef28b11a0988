package audio

import (
	"errors"

	"github.com/lixenwraith/geosym/core"
)

// Sink receives mono samples for the current frame
// Voices and effects send into sinks; each sink drains once per frame
type Sink interface {
	Send(x float64)
}

// NoteParams contains trigger parameters
type NoteParams struct {
	Notes    []int   // MIDI notes; drums use the first entry for pitch when relevant
	Velocity float64 // 0.0-1.0
	Gate     int     // Samples held before release, 0 = voice default
}

// Timbre selects a voice's tone family
type Timbre int

const (
	TimbrePlain Timbre = iota
	TimbreRich
)

func (t Timbre) String() string {
	if t == TimbreRich {
		return "rich"
	}
	return "plain"
}

// ParseTimbre maps catalog names to timbres, empty is plain
func ParseTimbre(s string) (Timbre, error) {
	switch s {
	case "", "plain":
		return TimbrePlain, nil
	case "rich":
		return TimbreRich, nil
	}
	return TimbrePlain, errors.New("unknown timbre " + s)
}

// BackendType identifies the audio backend
type BackendType int

const (
	BackendPulse BackendType = iota
	BackendPipeWire
	BackendALSA
	BackendSoX
	BackendFFplay
	BackendOSS
	BackendDiscard
)

// BackendConfig describes a CLI audio backend
type BackendConfig struct {
	Type BackendType
	Name string
	Path string
	Args []string
}

// Sentinel errors
var (
	ErrInvalidVoiceKind = core.ErrInvalidVoiceKind
	ErrActivationFailed = errors.New("audio output activation failed")
	ErrNoAudioBackend   = errors.New("no compatible audio backend found")
	ErrPipeClosed       = errors.New("audio pipe closed")
	ErrBankDisposed     = errors.New("voice bank disposed")
)
