package core

import (
	"errors"
	"testing"
)

// TestParseVoiceKind verifies names and aliases resolve to voice kinds
func TestParseVoiceKind(t *testing.T) {
	tests := []struct {
		in   string
		want VoiceKind
	}{
		{"kick", VoiceKick},
		{"Bass", VoiceBass},
		{"hihat", VoiceHiHat},
		{"hat", VoiceHiHat},
		{" pad ", VoicePad},
		{"acid", VoiceAcidLead},
		{"acid-lead", VoiceAcidLead},
	}

	for _, tt := range tests {
		got, err := ParseVoiceKind(tt.in)
		if err != nil {
			t.Errorf("ParseVoiceKind(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVoiceKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestParseVoiceKindInvalid verifies unknown names wrap ErrInvalidVoiceKind
func TestParseVoiceKindInvalid(t *testing.T) {
	_, err := ParseVoiceKind("cowbell")
	if !errors.Is(err, ErrInvalidVoiceKind) {
		t.Fatalf("Expected ErrInvalidVoiceKind, got %v", err)
	}
}

// TestVoiceKindString verifies out-of-range kinds stringify safely
func TestVoiceKindString(t *testing.T) {
	if VoiceKindCount.String() != "unknown" {
		t.Errorf("Expected unknown, got %s", VoiceKindCount.String())
	}
	if VoiceKind(-1).Valid() {
		t.Error("Negative kind should be invalid")
	}
	if !VoiceKick.IsDrum() || VoicePad.IsDrum() {
		t.Error("IsDrum classification wrong")
	}
}

// TestVoiceKindText verifies text round trip used by the catalog decoder
func TestVoiceKindText(t *testing.T) {
	var k VoiceKind
	if err := k.UnmarshalText([]byte("pad")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if k != VoicePad {
		t.Errorf("Expected pad, got %v", k)
	}
	if _, err := VoiceKind(42).MarshalText(); !errors.Is(err, ErrInvalidVoiceKind) {
		t.Errorf("Expected ErrInvalidVoiceKind for kind 42, got %v", err)
	}
}
