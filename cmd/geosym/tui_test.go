package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/geosym/analysis"
	"github.com/lixenwraith/geosym/audio"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/engine"
	"github.com/lixenwraith/geosym/pattern"
)

func newTestVisualizer(t *testing.T) (*visualizer, *engine.Engine) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	screen.SetSize(100, 30)
	t.Cleanup(screen.Fini)

	cfg := engine.DefaultConfig()
	cfg.SampleRate = 22050
	e, err := engine.New(cfg, audio.NewManualOutput())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return newVisualizer(context.Background(), screen, e), e
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func row(s tcell.Screen, y, width int) string {
	var b strings.Builder
	for x := 0; x < width; x++ {
		r, _, _, _ := s.GetContent(x, y)
		b.WriteRune(r)
	}
	return b.String()
}

// TestVisualizerKeys verifies key bindings reach the engine
func TestVisualizerKeys(t *testing.T) {
	v, e := newTestVisualizer(t)

	v.handleKey(key('3'))
	if e.PatternID() != core.PatternDeepHypnotic {
		t.Errorf("pattern = %s, want pattern3", e.PatternID())
	}

	before := e.Volume()
	v.handleKey(key('+'))
	if e.Volume() <= before {
		t.Errorf("volume %v did not rise from %v", e.Volume(), before)
	}
	v.handleKey(key('-'))
	v.handleKey(key('-'))
	if e.Volume() >= before {
		t.Errorf("volume %v did not fall below %v", e.Volume(), before)
	}

	for i := 0; i < 12; i++ {
		v.handleKey(key('-'))
	}
	if e.Volume() != 0 || !e.Muted() {
		t.Errorf("volume %g muted %v after stepping down, want exact mute", e.Volume(), e.Muted())
	}

	bpm := e.BPM()
	v.handleKey(key(']'))
	if e.BPM() != bpm+tempoStep {
		t.Errorf("bpm = %v, want %v", e.BPM(), bpm+tempoStep)
	}

	v.handleKey(key('m'))
	if !e.Muted() {
		t.Error("m should mute")
	}

	v.handleKey(key(' '))
	if !e.Playing() {
		t.Errorf("space should start playback: %s", v.message)
	}
	v.handleKey(key(' '))
	if e.Playing() {
		t.Error("second space should pause")
	}
	if v.snap != analysis.Default() {
		t.Error("pause should reset the drawn snapshot")
	}

	if v.handleKey(key('q')) {
		t.Error("q should quit")
	}
	if v.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Error("escape should quit")
	}
}

// TestVisualizerDraw verifies the header and pattern list render
func TestVisualizerDraw(t *testing.T) {
	v, _ := newTestVisualizer(t)
	v.draw()

	if got := row(v.screen, 0, v.width); !strings.Contains(got, "stopped") {
		t.Errorf("header = %q", got)
	}
	if got := row(v.screen, 2, v.width); !strings.Contains(got, "Classic Minimal") || !strings.Contains(got, "Plastikman") {
		t.Errorf("pattern row = %q", got)
	}

	v.snap.BeatActive = true
	v.progress = 0.5
	v.draw()
	if got := row(v.screen, 4, v.width); !strings.Contains(got, "BEAT") || !strings.Contains(got, "█") {
		t.Errorf("progress row = %q", got)
	}
}

// TestListPatterns verifies the catalog table
func TestListPatterns(t *testing.T) {
	c, err := pattern.Default()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := listPatterns(&buf, c); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"pattern1", "Classic Minimal", "124", "pattern4", "110"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 5 {
		t.Errorf("lines = %d, want header plus 4", lines)
	}
}

// TestPrintSnapshot verifies the headless line format
func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	s := analysis.Default()
	s.BeatActive = true
	s.Pattern = core.PatternPlastikman
	s.At = time.Unix(0, 0)
	printSnapshot(&buf, s)

	out := buf.String()
	if !strings.HasPrefix(out, "* pattern4") || !strings.Contains(out, "tempo=1.00") {
		t.Errorf("line = %q", out)
	}
}
