package parameter

import (
	"math"
	"testing"
)

// TestClampBPM verifies tempos are bounded and NaN falls back to the default
func TestClampBPM(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{124, 124},
		{10, MinBPM},
		{500, MaxBPM},
		{math.Inf(1), MaxBPM},
		{math.Inf(-1), MinBPM},
		{math.NaN(), DefaultBPM},
	}
	for _, tt := range tests {
		if got := ClampBPM(tt.in); got != tt.want {
			t.Errorf("ClampBPM(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestSamplesPerStep verifies one 16th at 120 BPM is an eighth of a second
func TestSamplesPerStep(t *testing.T) {
	if got := SamplesPerStep(48000, 120); got != 6000 {
		t.Errorf("SamplesPerStep(48000, 120) = %v, want 6000", got)
	}
}
