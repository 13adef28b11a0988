package midiout

import (
	"context"
	"errors"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/lixenwraith/geosym/clock"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/event"
	"github.com/lixenwraith/geosym/status"
)

type capture struct {
	msgs []gomidi.Message
	fail bool
}

func (c *capture) send(msg gomidi.Message) error {
	if c.fail {
		return errors.New("port gone")
	}
	c.msgs = append(c.msgs, append(gomidi.Message(nil), msg...))
	return nil
}

// count returns messages whose status nibble matches
func (c *capture) count(status byte) int {
	n := 0
	for _, m := range c.msgs {
		if len(m) > 0 && m[0]&0xF0 == status {
			n++
		}
	}
	return n
}

func isOff(m gomidi.Message) bool {
	return m[0]&0xF0 == 0x80 || (m[0]&0xF0 == 0x90 && m[2] == 0)
}

// TestMirrorNoteOnAndGate verifies triggers become note-ons with note-offs after the gate
func TestMirrorNoteOnAndGate(t *testing.T) {
	q := event.NewQueue()
	c := &capture{}
	reg := status.NewRegistry()
	start := time.Unix(0, 0)
	m := NewMirror(q, c.send, clock.NewMock(start), reg)

	q.Push(event.TriggerEvent{Type: event.EventNoteOn, Voice: core.VoiceKick, Notes: []int{24}, Velocity: 1, Gate: 100 * time.Millisecond})
	q.Push(event.TriggerEvent{Type: event.EventNoteOn, Voice: core.VoicePad, Notes: []int{51, 55, 58}, Velocity: 0.3, Gate: 200 * time.Millisecond})
	q.Push(event.TriggerEvent{Type: event.EventNoteOn, Voice: core.VoiceHiHat, Velocity: 0.5, Gate: 0})
	q.Push(event.TriggerEvent{Type: event.EventBeat})

	if n := m.Poll(start); n != 5 {
		t.Fatalf("Poll sent %d, want 5 note-ons", n)
	}
	if m.Pending() != 5 {
		t.Errorf("Pending = %d, want 5", m.Pending())
	}

	kick := c.msgs[0]
	if kick[0] != 0x90|drumChannel || kick[1] != gmKick || kick[2] != 127 {
		t.Errorf("kick = % X", []byte(kick))
	}
	pad := c.msgs[1]
	if pad[0] != 0x90|padChannel || pad[1] != 51 || pad[2] != 38 {
		t.Errorf("pad = % X", []byte(pad))
	}
	hat := c.msgs[4]
	if hat[0] != 0x90|drumChannel || hat[1] != gmClosedHiHat {
		t.Errorf("hihat = % X", []byte(hat))
	}

	// Hihat gate is raised to the minimum, kick ends at 100ms, pad at 200ms
	if n := m.Poll(start.Add(time.Millisecond)); n != 1 {
		t.Errorf("Poll at 1ms sent %d, want hihat off", n)
	}
	if n := m.Poll(start.Add(100 * time.Millisecond)); n != 1 {
		t.Errorf("Poll at 100ms sent %d, want kick off", n)
	}
	if n := m.Poll(start.Add(time.Second)); n != 3 {
		t.Errorf("Poll at 1s sent %d, want 3 pad offs", n)
	}

	offs := 0
	for _, msg := range c.msgs[5:] {
		if isOff(msg) {
			offs++
		}
	}
	if offs != 5 {
		t.Errorf("note offs = %d, want 5", offs)
	}
	if got := reg.Ints.Get(status.KeyMIDISent).Load(); got != 10 {
		t.Errorf("midi.sent = %d, want 10", got)
	}
}

// TestMirrorStopReleasesAll verifies a transport stop flushes held notes and sends all-notes-off
func TestMirrorStopReleasesAll(t *testing.T) {
	q := event.NewQueue()
	c := &capture{}
	start := time.Unix(0, 0)
	m := NewMirror(q, c.send, nil, nil)

	q.Push(event.TriggerEvent{Type: event.EventNoteOn, Voice: core.VoiceBass, Notes: []int{24}, Velocity: 0.8, Gate: time.Hour})
	m.Poll(start)
	q.Push(event.TriggerEvent{Type: event.EventTransportStop})
	m.Poll(start)

	if m.Pending() != 0 {
		t.Errorf("Pending = %d after stop", m.Pending())
	}
	if got := c.count(0xB0); got != 4 {
		t.Errorf("control changes = %d, want 4", got)
	}
	last := c.msgs[1]
	if !isOff(last) || last[1] != 24 {
		t.Errorf("bass off = % X", []byte(last))
	}
}

// TestMirrorSendErrorsNotCounted verifies failing sends are not counted as sent
func TestMirrorSendErrorsNotCounted(t *testing.T) {
	q := event.NewQueue()
	c := &capture{fail: true}
	reg := status.NewRegistry()
	m := NewMirror(q, c.send, nil, reg)

	q.Push(event.TriggerEvent{Type: event.EventNoteOn, Voice: core.VoiceBass, Notes: []int{30}, Velocity: 1, Gate: time.Millisecond})
	if n := m.Poll(time.Unix(0, 0)); n != 0 {
		t.Errorf("Poll sent %d with failing port", n)
	}
	if got := reg.Ints.Get(status.KeyMIDISent).Load(); got != 0 {
		t.Errorf("midi.sent = %d", got)
	}
}

// TestMirrorServiceLifecycle verifies Start and Stop are idempotent and flush on stop
func TestMirrorServiceLifecycle(t *testing.T) {
	q := event.NewQueue()
	c := &capture{}
	m := NewMirror(q, c.send, nil, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if m.Pending() != 0 {
		t.Errorf("Pending = %d after Stop", m.Pending())
	}
	if deps := m.Dependencies(); len(deps) != 1 || deps[0] != "engine" {
		t.Errorf("Dependencies = %v", deps)
	}
}

// TestRoute verifies channel and key assignment
func TestRoute(t *testing.T) {
	tests := []struct {
		voice   core.VoiceKind
		note    int
		channel uint8
		key     uint8
	}{
		{core.VoiceKick, 24, drumChannel, gmKick},
		{core.VoiceHiHat, 0, drumChannel, gmClosedHiHat},
		{core.VoiceBass, 36, bassChannel, 36},
		{core.VoicePad, 200, padChannel, 127},
		{core.VoiceAcidLead, -3, acidChannel, 0},
	}
	for _, tt := range tests {
		ch, key := route(tt.voice, tt.note)
		if ch != tt.channel || key != tt.key {
			t.Errorf("route(%s, %d) = (%d, %d), want (%d, %d)", tt.voice, tt.note, ch, key, tt.channel, tt.key)
		}
	}
}
