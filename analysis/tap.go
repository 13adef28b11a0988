package analysis

import (
	"sync"

	"github.com/gopxl/beep"
)

// Tap is a pass-through streamer that keeps the most recent mono samples
// It sits after the volume stage so the analyzer sees what is heard
type Tap struct {
	src beep.Streamer

	mu     sync.Mutex
	ring   []float32
	pos    int
	filled int
}

// NewTap wraps src keeping size samples of history
func NewTap(src beep.Streamer, size int) *Tap {
	return &Tap{src: src, ring: make([]float32, size)}
}

// Stream implements beep.Streamer
func (t *Tap) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = t.src.Stream(samples)

	t.mu.Lock()
	size := len(t.ring)
	for i := 0; i < n; i++ {
		t.ring[t.pos] = float32((samples[i][0] + samples[i][1]) * 0.5)
		t.pos++
		if t.pos == size {
			t.pos = 0
		}
	}
	t.filled = min(t.filled+n, size)
	t.mu.Unlock()
	return n, ok
}

// Err implements beep.Streamer
func (t *Tap) Err() error {
	return t.src.Err()
}

// Read copies the latest len(dst) samples oldest first and returns how many were ever written
// Slots never written read as zero
func (t *Tap) Read(dst []float32) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := len(t.ring)
	n := min(len(dst), size)
	start := t.pos - n
	if start < 0 {
		start += size
	}
	for i := 0; i < n; i++ {
		dst[i] = t.ring[(start+i)%size]
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return t.filled
}

// Reset forgets history
func (t *Tap) Reset() {
	t.mu.Lock()
	clear(t.ring)
	t.pos = 0
	t.filled = 0
	t.mu.Unlock()
}
