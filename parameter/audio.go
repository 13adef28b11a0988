package parameter

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate    = 44100
	AudioChannels      = 2
	AudioBitDepth      = 16
	AudioBytesPerFrame = AudioChannels * (AudioBitDepth / 8) // 4 bytes
)

// Audio Engine Timing
const (
	// AudioBufferDuration determines latency and pump tick rate
	AudioBufferDuration = 50 * time.Millisecond

	// SpeakerBufferDuration is the beep/speaker device buffer
	SpeakerBufferDuration = 100 * time.Millisecond

	// MuteFloor is the linear level treated as silence
	MuteFloor = 1e-9
)

// AudioBufferSamples is frames per pump tick at rate
func AudioBufferSamples(rate int) int {
	return rate * int(AudioBufferDuration/time.Millisecond) / 1000
}

// Signal and analysis cadence
const (
	BeatPulseDuration = 100 * time.Millisecond
	PublishInterval   = 100 * time.Millisecond // Snapshot republish, ~10 Hz
	ProgressInterval  = 50 * time.Millisecond  // Progress poll, 20 Hz
	SpectrumBins      = 32
	FFTSize           = 1024 // Power of two
	SubscriberBuffer  = 4
)

// MIDI mirror
const (
	MIDIPollInterval = 5 * time.Millisecond
	EventQueueSize   = 512 // Power of two
	EventBufferMask  = EventQueueSize - 1
)
