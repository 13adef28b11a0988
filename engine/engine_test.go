package engine

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lixenwraith/geosym/analysis"
	"github.com/lixenwraith/geosym/audio"
	"github.com/lixenwraith/geosym/clock"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/event"
	"github.com/lixenwraith/geosym/parameter"
	"github.com/lixenwraith/geosym/pattern"
	"github.com/lixenwraith/geosym/status"
)

const testRate = 22050

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *audio.ManualOutput, *clock.Mock) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SampleRate = testRate
	out := audio.NewManualOutput()
	mc := clock.NewMock(time.Unix(1000, 0))

	e, err := New(cfg, out, append([]Option{WithClock(mc)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, out, mc
}

// pullLoops renders n loops of the current pattern in audio-buffer sized chunks
func pullLoops(out *audio.ManualOutput, bpm float64, n int) {
	frames := int(parameter.SamplesPerStep(testRate, bpm)*float64(parameter.LoopSteps)*float64(n)) + 1
	chunk := 1024
	for frames > 0 {
		c := min(chunk, frames)
		out.Pull(c)
		frames -= c
	}
}

// TestActivationFailureStaysStopped verifies a failed Play leaves the engine stopped and retryable
func TestActivationFailureStaysStopped(t *testing.T) {
	e, out, _ := newTestEngine(t)
	out.FailActivation = errors.New("no device")

	err := e.Play(context.Background())
	if !errors.Is(err, audio.ErrActivationFailed) {
		t.Fatalf("Expected ErrActivationFailed, got %v", err)
	}
	if e.Playing() {
		t.Error("Engine should stay stopped")
	}
	if !e.Snapshot().IsDefault() {
		t.Error("Snapshot should be default after failed Play")
	}

	out.FailActivation = nil
	if err := e.Play(context.Background()); err != nil {
		t.Fatalf("Retry Play: %v", err)
	}
	if !e.Playing() {
		t.Error("Engine should be playing after retry")
	}
	if out.Activations != 2 {
		t.Errorf("Activations = %d, want 2", out.Activations)
	}
}

// TestPlaySilentFallback verifies the silent pump replaces a failed output
func TestPlaySilentFallback(t *testing.T) {
	e, out, _ := newTestEngine(t)
	out.FailActivation = errors.New("no device")

	svc := NewService(e, true)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start with fallback: %v", err)
	}
	if !e.Playing() {
		t.Fatal("Expected playing after silent fallback")
	}
	if got := e.Output().Name(); got != "silent" {
		t.Errorf("Output = %s, want silent", got)
	}
	if got := e.Stats().Strings.Get(status.KeyBackend).Load(); got != "silent" {
		t.Errorf("backend metric = %q", got)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

// TestServiceWithoutFallbackFails verifies activation errors surface when fallback is off
func TestServiceWithoutFallbackFails(t *testing.T) {
	e, out, _ := newTestEngine(t)
	out.FailActivation = errors.New("no device")

	if err := NewService(e, false).Start(context.Background()); !errors.Is(err, audio.ErrActivationFailed) {
		t.Errorf("Expected ErrActivationFailed, got %v", err)
	}
}

// TestBeatsReachHandlersAndSnapshot verifies beat handlers fire per primary kick and the pulse shows in snapshots
func TestBeatsReachHandlersAndSnapshot(t *testing.T) {
	e, out, mc := newTestEngine(t)

	var beats atomic.Int64
	remove := e.OnBeat(func() { beats.Add(1) })

	if err := e.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	pullLoops(out, e.BPM(), 2)

	if got := beats.Load(); got != 8 {
		t.Errorf("beats = %d, want 8 over two loops", got)
	}
	if got := e.Stats().Ints.Get(status.KeySequencerBeats).Load(); got != 8 {
		t.Errorf("beat metric = %d, want 8", got)
	}

	// Beat pulse was raised at the mock's current time
	snap := e.Publisher().Tick(mc.Now())
	if !snap.Playing || !snap.BeatActive {
		t.Errorf("snapshot = %+v, want playing with beat", snap)
	}
	if snap.Pattern != core.PatternClassicMinimal || snap.VisualTempo != 1 {
		t.Errorf("snapshot pattern fields = %+v", snap)
	}
	if snap.BassEnergy <= 0 {
		t.Error("Expected bass energy from rendered kick and bass")
	}

	mc.Advance(parameter.BeatPulseDuration)
	if snap := e.Publisher().Tick(mc.Now()); snap.BeatActive {
		t.Error("Beat pulse should expire after its duration")
	}

	remove()
	pullLoops(out, e.BPM(), 1)
	if got := beats.Load(); got != 8 {
		t.Errorf("removed handler still called: %d", got)
	}
}

// TestPauseRestoresDefaultSnapshot verifies the snapshot after Pause equals the default even after high energy
func TestPauseRestoresDefaultSnapshot(t *testing.T) {
	e, out, mc := newTestEngine(t)
	snaps, cancel := e.Subscribe(4)
	defer cancel()
	<-snaps

	if err := e.SetPattern(core.PatternPlastikman); err != nil {
		t.Fatal(err)
	}
	if err := e.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	pullLoops(out, e.BPM(), 1)
	snap := e.Publisher().Tick(mc.Now())
	if snap.IsDefault() || snap.AcidResonance < 0.7 {
		t.Fatalf("playing snapshot = %+v", snap)
	}
	if snap.BassEnergy <= 0 || snap.ColorIntensity <= 0.9 {
		t.Fatalf("Expected bass energy while playing, got bass=%v color=%v", snap.BassEnergy, snap.ColorIntensity)
	}

	e.Pause()
	if e.Playing() {
		t.Error("Expected stopped after Pause")
	}
	if got := e.Snapshot(); got != analysis.Default() {
		t.Errorf("Snapshot after Pause = %+v, want default", got)
	}
	if e.Progress() != 0 {
		t.Errorf("Progress after Pause = %v", e.Progress())
	}

	var last analysis.Snapshot
	for len(snaps) > 0 {
		last = <-snaps
	}
	if last != analysis.Default() {
		t.Errorf("Last delivered snapshot = %+v, want default", last)
	}

	// Rendering while stopped produces silence
	buf := out.Pull(512)
	for i, f := range buf {
		if f[0] != 0 || f[1] != 0 {
			t.Fatalf("frame %d = %v after Pause", i, f)
		}
	}
}

// TestSetPatternUnknown verifies unknown ids fail and leave the selection unchanged
func TestSetPatternUnknown(t *testing.T) {
	e, _, _ := newTestEngine(t)

	err := e.SetPattern("pattern9")
	if !errors.Is(err, pattern.ErrUnknownPatternID) {
		t.Fatalf("Expected ErrUnknownPatternID, got %v", err)
	}
	if e.PatternID() != core.PatternClassicMinimal {
		t.Errorf("Pattern changed to %s", e.PatternID())
	}
}

// TestSwitchWhilePlayingStaysRunning verifies a hot switch keeps playing at the new tempo
func TestSwitchWhilePlayingStaysRunning(t *testing.T) {
	e, out, _ := newTestEngine(t)
	if err := e.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	out.Pull(4096)

	if err := e.SetPattern(core.PatternDeepHypnotic); err != nil {
		t.Fatal(err)
	}
	if !e.Playing() {
		t.Error("Switch should keep the engine playing")
	}
	if e.BPM() != 118 {
		t.Errorf("BPM = %v, want 118", e.BPM())
	}
	if got := e.Stats().Ints.Get(status.KeySequencerSwaps).Load(); got != 1 {
		t.Errorf("swaps = %d, want 1", got)
	}
}

// TestVolumeAndMute verifies volume, dB volume and mute toggling
func TestVolumeAndMute(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.SetVolume(0.8)
	if e.Volume() != 0.8 {
		t.Errorf("Volume = %v", e.Volume())
	}
	if !e.ToggleMute() {
		t.Error("First toggle should mute")
	}
	if !e.volume.Silent {
		t.Error("Volume stage should be silent when muted")
	}
	if e.ToggleMute() {
		t.Error("Second toggle should unmute")
	}
	if e.volume.Silent {
		t.Error("Volume stage should be audible after unmute")
	}

	e.SetVolumeDB(-20)
	if v := e.Volume(); v < 0.099 || v > 0.101 {
		t.Errorf("Volume after -20 dB = %v, want 0.1", v)
	}

	e.SetVolume(0)
	if !e.volume.Silent {
		t.Error("Zero volume should be silent")
	}
}

// TestVolumeStepsDownToMute verifies repeated decrements land on an exact mute
func TestVolumeStepsDownToMute(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.SetVolume(0.5)
	for i := 0; i < 5; i++ {
		e.SetVolume(e.Volume() - 0.1)
	}
	if e.Volume() != 0 {
		t.Errorf("Volume = %g, want 0", e.Volume())
	}
	if !e.Muted() {
		t.Error("Expected muted after stepping to zero")
	}
	if !e.volume.Silent {
		t.Error("Volume stage should be silent")
	}
}

// TestTriggersReachQueue verifies note and transport events are mirrored onto the queue
func TestTriggersReachQueue(t *testing.T) {
	q := event.NewQueue()
	e, out, _ := newTestEngine(t, WithQueue(q))

	if err := e.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	out.Pull(256)

	evs := q.Consume()
	if len(evs) == 0 || evs[0].Type != event.EventTransportStart {
		t.Fatalf("events = %v, want transport start first", evs)
	}
	var notes int
	for _, ev := range evs {
		if ev.Type == event.EventNoteOn {
			notes++
		}
	}
	if notes == 0 {
		t.Error("Expected note events for step 0")
	}
}

// TestCloseIdempotent verifies Close releases the bank once and blocks further Play
func TestCloseIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Second Close: %v", err)
	}
	if e.bank.LiveNodes() != 0 {
		t.Errorf("LiveNodes = %d after Close", e.bank.LiveNodes())
	}
	if err := e.Play(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Play after Close = %v, want ErrClosed", err)
	}
	if pattern.LiveSequences() != 0 {
		t.Errorf("LiveSequences = %d after Close", pattern.LiveSequences())
	}
}

// brokenWriter rejects every write, like a player that exited
type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func newBrokenEngine(t *testing.T, opts ...Option) (*Engine, audio.Output) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SampleRate = testRate
	out := audio.NewWriterOutput(testRate, brokenWriter{})
	e, err := New(cfg, out, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestBrokenOutputPauses verifies a dead pipe stops the transport and publishes the default snapshot
func TestBrokenOutputPauses(t *testing.T) {
	e, _ := newBrokenEngine(t)
	if err := e.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitFor(t, "pause after pipe failure", func() bool { return !e.Playing() })

	if err := e.OutputErr(); !errors.Is(err, audio.ErrPipeClosed) {
		t.Errorf("OutputErr = %v, want ErrPipeClosed", err)
	}
	if got := e.Snapshot(); got != analysis.Default() {
		t.Errorf("Snapshot = %+v, want default", got)
	}
	if e.Progress() != 0 {
		t.Errorf("Progress = %v, want 0", e.Progress())
	}
	if n := e.Stats().Ints.Get(status.KeyOutputFailures).Load(); n != 1 {
		t.Errorf("output failures = %d, want 1", n)
	}
}

// TestBrokenOutputFailsOverToSilent verifies the silent pump takes over and the grid keeps moving
func TestBrokenOutputFailsOverToSilent(t *testing.T) {
	e, broken := newBrokenEngine(t, WithSilentFailover())
	if err := e.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitFor(t, "silent failover", func() bool {
		return e.OutputErr() != nil && e.Output() != broken
	})
	if !e.Playing() {
		t.Fatal("Expected playing after failover")
	}
	waitFor(t, "progress on silent output", func() bool { return e.Progress() > 0 })
}
