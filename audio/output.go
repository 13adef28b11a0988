package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// Output is the single process-wide audio sink driven by one engine
type Output interface {
	// Name identifies the backend for logs and status
	Name() string

	// Activate opens the device; idempotent, retryable after failure
	// Failures wrap ErrActivationFailed
	Activate() error

	// Play attaches the root streamer; may be called before Activate
	Play(s beep.Streamer)

	// Do runs fn excluded from the stream callback
	Do(fn func())

	// Close releases the device; idempotent
	Close() error
}

// Faulty is implemented by outputs whose stream can break after activation
// A value on Errors means the output stopped pulling audio
type Faulty interface {
	Errors() <-chan error
}

// SpeakerOutput plays through beep/speaker (oto)
type SpeakerOutput struct {
	mu     sync.Mutex
	rate   beep.SampleRate
	buffer time.Duration
	mixer  *beep.Mixer
	active bool
}

// NewSpeakerOutput creates a speaker output at rate with device buffer
func NewSpeakerOutput(rate int, buffer time.Duration) *SpeakerOutput {
	return &SpeakerOutput{
		rate:   beep.SampleRate(rate),
		buffer: buffer,
		mixer:  &beep.Mixer{},
	}
}

func (o *SpeakerOutput) Name() string { return "speaker" }

// Activate initializes the speaker once
func (o *SpeakerOutput) Activate() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active {
		return nil
	}
	if err := speaker.Init(o.rate, o.rate.N(o.buffer)); err != nil {
		return fmt.Errorf("%w: speaker: %v", ErrActivationFailed, err)
	}
	speaker.Play(o.mixer)
	o.active = true
	return nil
}

func (o *SpeakerOutput) Play(s beep.Streamer) {
	o.Do(func() {
		o.mixer.Add(s)
	})
}

func (o *SpeakerOutput) Do(fn func()) {
	o.mu.Lock()
	active := o.active
	o.mu.Unlock()

	if active {
		speaker.Lock()
		defer speaker.Unlock()
	}
	fn()
}

// Close stops playback and releases the device
func (o *SpeakerOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	o.active = false
	return nil
}

// ManualOutput is pulled explicitly; used for deterministic rendering
type ManualOutput struct {
	mu       sync.Mutex
	streamer beep.Streamer
	active   bool
	closed   bool

	// FailActivation makes Activate fail until cleared
	FailActivation error
	Activations    int
}

// NewManualOutput creates a pull-driven output
func NewManualOutput() *ManualOutput {
	return &ManualOutput{}
}

func (o *ManualOutput) Name() string { return "manual" }

func (o *ManualOutput) Activate() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active {
		return nil
	}
	o.Activations++
	if o.FailActivation != nil {
		return fmt.Errorf("%w: %v", ErrActivationFailed, o.FailActivation)
	}
	o.active = true
	o.closed = false
	return nil
}

func (o *ManualOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamer = s
}

func (o *ManualOutput) Do(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
}

// Pull renders frames synchronously; silence when inactive
func (o *ManualOutput) Pull(frames int) [][2]float64 {
	buf := make([][2]float64, frames)
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active || o.streamer == nil {
		return buf
	}
	o.streamer.Stream(buf)
	return buf
}

func (o *ManualOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = false
	o.closed = true
	return nil
}

// Active reports activation state
func (o *ManualOutput) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}
