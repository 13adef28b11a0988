package clock

import (
	"sync"
	"time"
)

// Provider supplies the current time
// Engine timers and the beat pulse read through it so tests can drive time
type Provider interface {
	Now() time.Time
}

// Real provides the system time with monotonic clock readings
type Real struct{}

// NewReal creates a wall-clock provider
func NewReal() *Real {
	return &Real{}
}

// Now returns the current time
func (Real) Now() time.Time {
	return time.Now()
}

// Mock is a controllable time source for tests
type Mock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewMock creates a mock provider starting at start
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

// Now returns the mocked time
func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set jumps to t
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d and returns the new time
func (m *Mock) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
