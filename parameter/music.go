package parameter

import (
	"math"
	"time"
)

// Tempo and Timing
const (
	DefaultBPM    = 124
	MinBPM        = 60
	MaxBPM        = 200
	StepsPerBeat  = 4                          // 16th notes
	BeatsPerBar   = 4                          // 4/4 time
	StepsPerBar   = StepsPerBeat * BeatsPerBar // 16 steps
	LoopSteps     = StepsPerBar                // Progress loop: one bar
	MaxPolyphony  = 8                          // Pad voice pool
	PrimaryPitch  = "C1"                       // Kick pitch that raises the beat pulse
	MaxTrackSteps = 256                        // Guard against runaway catalog entries
)

// SamplesPerStep returns the exact (fractional) length of one 16th step
func SamplesPerStep(sampleRate int, bpm float64) float64 {
	return float64(sampleRate) * 60 / (bpm * StepsPerBeat)
}

// SamplesPerBar returns the exact length of one bar in samples
func SamplesPerBar(sampleRate int, bpm float64) float64 {
	return SamplesPerStep(sampleRate, bpm) * StepsPerBar
}

// LoopDuration is the wall time of one progress loop at bpm
func LoopDuration(bpm float64) time.Duration {
	beats := float64(LoopSteps) / StepsPerBeat
	return time.Duration(60 / bpm * beats * float64(time.Second))
}

// ClampBPM bounds a tempo to the supported range; NaN becomes DefaultBPM
func ClampBPM(bpm float64) float64 {
	if math.IsNaN(bpm) {
		return DefaultBPM
	}
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

// Envelope describes an ADSR shape in seconds, sustain as level
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// Voice envelope presets
var (
	KickEnvelope  = Envelope{Attack: 0.001, Decay: 0.4, Sustain: 0.01, Release: 1.4}
	BassEnvelope  = Envelope{Attack: 0.02, Decay: 0.1, Sustain: 0.3, Release: 0.8}
	HiHatEnvelope = Envelope{Attack: 0.001, Decay: 0.1, Sustain: 0, Release: 0.01}
	PadEnvelope   = Envelope{Attack: 0.8, Decay: 2, Sustain: 0.5, Release: 3}
	AcidEnvelope  = Envelope{Attack: 0.005, Decay: 0.1, Sustain: 0.2, Release: 0.1}
	// Acid filter sweep: cutoff rises AcidFilterOctave octaves above AcidFilterBase
	AcidFilterEnvelope = Envelope{Attack: 0.005, Decay: 0.2, Sustain: 0.1, Release: 0.2}
)

// Voice tone settings
const (
	KickPitchDecay   = 0.05 // Seconds for the membrane pitch sweep
	KickOctaves      = 5.0  // Sweep start above the played note
	HiHatFrequency   = 200.0
	HiHatHarmonicity = 5.1
	HiHatResonance   = 4000.0 // High-pass cutoff Hz
	HiHatPartials    = 6
	HiHatModIndex    = 32.0
	RichBassDetune   = 0.007 // Ratio spread of the rich bass oscillators
	AcidFilterBase   = 200.0
	AcidFilterQ      = 8.0
	AcidFilterOctave = 4.0
)

// Voice trims in dB
const (
	KickTrimDB  = 0.0
	BassTrimDB  = 0.0
	HiHatTrimDB = -20.0
	PadTrimDB   = -15.0
	AcidTrimDB  = -6.0
)

// Shared effect settings
const (
	ReverbRoomSize     = 0.84 // Tail near 2.5 s
	ReverbDamp         = 0.2
	ReverbGain         = 0.015
	ReverbWet          = 0.15
	DelayFeedback      = 0.2
	DelayWet           = 0.1
	DelayDampCutoff    = 3000.0 // Feedback low-pass, Hz
	DelayMaxSeconds    = 2.0
	FilterCutoff       = 900.0
	FilterQ            = 1.2
	DistortionDrive    = 2.5
	DistortionWet      = 0.4
	MasterHeadroomGain = 0.5
)

// Note names (semitone offset within octave)
const (
	NoteC  = 0
	NoteCs = 1
	NoteD  = 2
	NoteDs = 3
	NoteE  = 4
	NoteF  = 5
	NoteFs = 6
	NoteG  = 7
	NoteGs = 8
	NoteA  = 9
	NoteAs = 10
	NoteB  = 11
)

// MIDINote returns the MIDI note for a semitone and octave (C4 = 60)
func MIDINote(note, octave int) int {
	return (octave+1)*12 + note
}
