package status

import (
	"sync"
	"testing"
)

// TestMetricMapCachesPointers verifies repeated Get returns the same metric
func TestMetricMapCachesPointers(t *testing.T) {
	r := NewRegistry()
	a := r.Ints.Get(KeySequencerSteps)
	b := r.Ints.Get(KeySequencerSteps)
	if a != b {
		t.Fatal("Expected cached pointer")
	}
	a.Add(3)
	if b.Load() != 3 {
		t.Errorf("Expected 3, got %d", b.Load())
	}
	if !r.Ints.Has(KeySequencerSteps) || r.Ints.Has(KeyMIDISent) {
		t.Error("Has reports wrong membership")
	}
}

// TestAtomicFloatConcurrentAdd verifies lock-free accumulation
func TestAtomicFloatConcurrentAdd(t *testing.T) {
	var f AtomicFloat
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.Add(0.5)
			}
		}()
	}
	wg.Wait()
	if f.Get() != 400 {
		t.Errorf("Expected 400, got %f", f.Get())
	}
}

// TestAtomicStringTruncates verifies the length bound
func TestAtomicStringTruncates(t *testing.T) {
	var s AtomicString
	if s.Load() != "" {
		t.Fatal("Zero value should be empty")
	}
	long := "pattern-with-a-very-long-identifier-name"
	s.Store(long)
	if got := s.Load(); len(got) != MaxStringLen || got != long[:MaxStringLen] {
		t.Errorf("Expected truncation to %d, got %q", MaxStringLen, got)
	}
}

// TestRegistryDump verifies sorted rendering by type
func TestRegistryDump(t *testing.T) {
	r := NewRegistry()
	r.Bools.Get(KeyPlaying).Store(true)
	r.Ints.Get(KeySequencerBeats).Store(4)
	r.Ints.Get(KeySequencerSteps).Store(16)
	r.Floats.Get(KeyBPM).Set(124)
	r.Strings.Get(KeyPattern).Store("pattern1")

	want := []string{
		"engine.playing=true",
		"sequencer.beats=4",
		"sequencer.steps=16",
		"engine.bpm=124.000",
		"engine.pattern=pattern1",
	}
	got := r.Dump()
	if len(got) != len(want) {
		t.Fatalf("Expected %d lines, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
