package event

import (
	"time"

	"github.com/lixenwraith/geosym/core"
)

// EventType represents the type of engine event
type EventType int

const (
	// EventNoteOn is a voice trigger fired by a running pattern
	// Trigger: Sequencer step | Consumer: MIDI mirror
	EventNoteOn EventType = iota

	// EventBeat is a primary kick step
	// Trigger: Sequencer step | Consumer: headless logger
	EventBeat

	// EventPatternSwap is a pattern change applied while running
	// Trigger: SetPattern, SetTempo | Consumer: headless logger
	EventPatternSwap

	// EventTransportStart and EventTransportStop mark transport edges
	// Consumer: MIDI mirror (all notes off on stop)
	EventTransportStart
	EventTransportStop
)

func (t EventType) String() string {
	switch t {
	case EventNoteOn:
		return "note_on"
	case EventBeat:
		return "beat"
	case EventPatternSwap:
		return "pattern_swap"
	case EventTransportStart:
		return "start"
	case EventTransportStop:
		return "stop"
	}
	return "unknown"
}

// TriggerEvent is a fixed-size record passed from the audio thread to consumers
// Notes aliases catalog data and must be treated as read-only
type TriggerEvent struct {
	Type     EventType
	Step     int64 // Global grid step
	Voice    core.VoiceKind
	Notes    []int
	Velocity float64
	Gate     time.Duration // Note length at the tempo in effect
	Pattern  core.PatternID
	BPM      float64
}
