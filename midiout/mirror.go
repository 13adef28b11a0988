package midiout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/lixenwraith/geosym/clock"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/event"
	"github.com/lixenwraith/geosym/parameter"
	"github.com/lixenwraith/geosym/status"
)

// ErrPortNotFound is returned when no output port matches the requested name
var ErrPortNotFound = errors.New("midi output port not found")

// Channel and key assignment per voice; drums follow General MIDI on channel 10
const (
	drumChannel   = 9
	gmKick        = 36
	gmClosedHiHat = 42
	bassChannel   = 0
	padChannel    = 1
	acidChannel   = 2
	ccAllNotesOff = 123
	minGate       = time.Millisecond
)

// Sender writes one message to a port
type Sender func(gomidi.Message) error

// Ports lists output port names
func Ports() []string {
	var names []string
	for _, p := range gomidi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

// OpenPort opens the first output whose name contains name, case-insensitive
func OpenPort(name string) (Sender, string, error) {
	want := strings.ToLower(name)
	for _, p := range gomidi.GetOutPorts() {
		if !strings.Contains(strings.ToLower(p.String()), want) {
			continue
		}
		send, err := gomidi.SendTo(p)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", p.String(), err)
		}
		return send, p.String(), nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

type noteOff struct {
	at      time.Time
	channel uint8
	key     uint8
}

// Mirror echoes sequencer triggers from the event queue to a MIDI port
// Note-offs are scheduled from each trigger's gate
type Mirror struct {
	queue *event.Queue
	send  Sender
	clock clock.Provider

	mu      sync.Mutex
	pending []noteOff

	sent   *atomic.Int64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMirror creates a mirror consuming q; stats may be nil
func NewMirror(q *event.Queue, send Sender, c clock.Provider, stats *status.Registry) *Mirror {
	if c == nil {
		c = clock.NewReal()
	}
	if stats == nil {
		stats = status.NewRegistry()
	}
	return &Mirror{
		queue: q,
		send:  send,
		clock: c,
		sent:  stats.Ints.Get(status.KeyMIDISent),
	}
}

// route maps a voice and pitch to a channel and key
func route(voice core.VoiceKind, note int) (channel, key uint8) {
	switch voice {
	case core.VoiceKick:
		return drumChannel, gmKick
	case core.VoiceHiHat:
		return drumChannel, gmClosedHiHat
	case core.VoicePad:
		return padChannel, clampKey(note)
	case core.VoiceAcidLead:
		return acidChannel, clampKey(note)
	default:
		return bassChannel, clampKey(note)
	}
}

func clampKey(n int) uint8 {
	return uint8(min(max(n, 0), 127))
}

func velocity(v float64) uint8 {
	return uint8(min(max(v*127, 1), 127))
}

// Poll drains the queue and sends everything due at now, returning messages sent
func (m *Mirror) Poll(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, ev := range m.queue.Consume() {
		switch ev.Type {
		case event.EventNoteOn:
			n += m.noteOn(now, ev)
		case event.EventTransportStop:
			n += m.flushLocked(time.Time{})
			n += m.allNotesOff()
		}
	}
	n += m.flushLocked(now)
	return n
}

func (m *Mirror) noteOn(now time.Time, ev event.TriggerEvent) int {
	notes := ev.Notes
	if len(notes) == 0 {
		// Hits carry no pitch
		notes = []int{0}
	}
	gate := max(ev.Gate, minGate)

	n := 0
	for _, note := range notes {
		ch, key := route(ev.Voice, note)
		if m.write(gomidi.NoteOn(ch, key, velocity(ev.Velocity))) {
			n++
		}
		m.pending = append(m.pending, noteOff{at: now.Add(gate), channel: ch, key: key})
	}
	return n
}

// flushLocked sends note-offs due at or before now; zero now flushes everything
func (m *Mirror) flushLocked(now time.Time) int {
	if len(m.pending) == 0 {
		return 0
	}
	sort.SliceStable(m.pending, func(i, j int) bool {
		return m.pending[i].at.Before(m.pending[j].at)
	})

	n, i := 0, 0
	for ; i < len(m.pending); i++ {
		off := m.pending[i]
		if !now.IsZero() && off.at.After(now) {
			break
		}
		if m.write(gomidi.NoteOff(off.channel, off.key)) {
			n++
		}
	}
	m.pending = append(m.pending[:0], m.pending[i:]...)
	return n
}

func (m *Mirror) allNotesOff() int {
	n := 0
	for _, ch := range []uint8{bassChannel, padChannel, acidChannel, drumChannel} {
		if m.write(gomidi.ControlChange(ch, ccAllNotesOff, 0)) {
			n++
		}
	}
	return n
}

func (m *Mirror) write(msg gomidi.Message) bool {
	if m.send == nil {
		return false
	}
	if err := m.send(msg); err != nil {
		log.Printf("midi: send %v: %v", msg, err)
		return false
	}
	m.sent.Add(1)
	return true
}

// Pending returns the number of scheduled note-offs
func (m *Mirror) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Run polls at parameter.MIDIPollInterval until ctx is done, then releases held notes
func (m *Mirror) Run(ctx context.Context) {
	ticker := time.NewTicker(parameter.MIDIPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Flush()
			return
		case <-ticker.C:
			m.Poll(m.clock.Now())
		}
	}
}

// Flush sends every pending note-off immediately
func (m *Mirror) Flush() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked(time.Time{})
}

// Name implements service.Service
func (m *Mirror) Name() string { return "midi" }

// Dependencies implements service.Service
func (m *Mirror) Dependencies() []string { return []string{"engine"} }

// Start implements service.Service
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	core.Go(func() {
		defer close(done)
		m.Run(runCtx)
	})
	return nil
}

// Stop implements service.Service; pending notes are released
func (m *Mirror) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// CloseDriver releases the registered MIDI driver
func CloseDriver() {
	gomidi.CloseDriver()
}
