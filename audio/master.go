package audio

import (
	"sync/atomic"

	"github.com/lixenwraith/geosym/parameter"
)

// Clock splits a render request at musical event boundaries
// Advance calls render with consecutive frame counts summing to frames,
// firing any due events between calls
type Clock interface {
	Advance(frames int, render func(n int))
}

// Master is the beep.Streamer at the root of the mix
// It renders the bank frame by frame under the clock's timing
type Master struct {
	bank  *Bank
	clock atomic.Pointer[Clock]
	gain  float64

	// Render state, touched only by Stream
	buf    [][2]float64
	offset int
	render func(n int)
}

// NewMaster creates the master streamer for bank
func NewMaster(bank *Bank) *Master {
	m := &Master{
		bank: bank,
		gain: parameter.MasterHeadroomGain,
	}
	m.render = m.renderFrames
	return m
}

// SetClock installs the event clock, nil renders free-running
func (m *Master) SetClock(c Clock) {
	if c == nil {
		m.clock.Store(nil)
		return
	}
	m.clock.Store(&c)
}

// Stream implements beep.Streamer; it never drains
func (m *Master) Stream(samples [][2]float64) (n int, ok bool) {
	m.buf = samples
	m.offset = 0
	if c := m.clock.Load(); c != nil {
		(*c).Advance(len(samples), m.render)
	}
	// Fill any remainder the clock did not render
	if m.offset < len(samples) {
		m.renderFrames(len(samples) - m.offset)
	}
	m.buf = nil
	return len(samples), true
}

// Err implements beep.Streamer
func (m *Master) Err() error { return nil }

func (m *Master) renderFrames(n int) {
	end := m.offset + n
	if end > len(m.buf) {
		end = len(m.buf)
	}
	for i := m.offset; i < end; i++ {
		v := softLimit(m.bank.RenderFrame() * m.gain)
		m.buf[i][0] = v
		m.buf[i][1] = v
	}
	m.offset = end
}

// softLimit compresses peaks above 0.8 and hard clips at unity
func softLimit(v float64) float64 {
	if v > 0.8 {
		v = 0.8 + 0.2*(1.0-1.0/(1.0+(v-0.8)*5.0))
	} else if v < -0.8 {
		v = -0.8 - 0.2*(1.0-1.0/(1.0+(-v-0.8)*5.0))
	}
	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	return v
}
