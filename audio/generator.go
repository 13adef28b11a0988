package audio

import (
	"math"

	"github.com/lixenwraith/geosym/parameter"
)

// Waveform types
const (
	waveSine = iota
	waveTriangle
	waveSquare
	waveSaw
)

// phasor is a normalized oscillator phase in [0, 1)
type phasor float64

// advance returns the current phase and steps by freq/rate
func (p *phasor) advance(freq, rate float64) float64 {
	ph := float64(*p)
	next := ph + freq/rate
	*p = phasor(next - math.Floor(next))
	return ph
}

// wave evaluates a waveform at phase ph
func wave(waveType int, ph float64) float64 {
	switch waveType {
	case waveTriangle:
		return 4*math.Abs(ph-0.5) - 1
	case waveSquare:
		if ph < 0.5 {
			return 1.0
		}
		return -1.0
	case waveSaw:
		return 2.0 * (ph - 0.5)
	default:
		return math.Sin(2 * math.Pi * ph)
	}
}

// ADSRState tracks envelope phase
type ADSRState int

const (
	ADSRIdle ADSRState = iota
	ADSRAttack
	ADSRDecay
	ADSRSustain
	ADSRRelease
)

// envelope is a per-sample ADSR with an optional auto-release gate
type envelope struct {
	attack  int     // Samples
	decay   int     // Samples
	sustain float64 // Level 0-1
	release int     // Samples

	state ADSRState
	level float64
	pos   int
	from  float64 // Level at the start of attack or release
	gate  int     // Samples until release, <0 = hold
}

func newEnvelope(e parameter.Envelope, rate int) envelope {
	toSamples := func(sec float64) int {
		return int(sec * float64(rate))
	}
	return envelope{
		attack:  toSamples(e.Attack),
		decay:   toSamples(e.Decay),
		sustain: e.Sustain,
		release: toSamples(e.Release),
	}
}

// trigger restarts the attack from the current level to avoid clicks
func (e *envelope) trigger(gate int) {
	e.state = ADSRAttack
	e.from = e.level
	e.pos = 0
	if gate <= 0 {
		gate = -1
	}
	e.gate = gate
}

// noteOff enters release from the current level
func (e *envelope) noteOff() {
	if e.state == ADSRIdle || e.state == ADSRRelease {
		return
	}
	e.state = ADSRRelease
	e.from = e.level
	e.pos = 0
}

func (e *envelope) reset() {
	e.state = ADSRIdle
	e.level = 0
	e.pos = 0
	e.gate = -1
}

func (e *envelope) active() bool {
	return e.state != ADSRIdle
}

// next advances one sample and returns the level
func (e *envelope) next() float64 {
	if e.gate > 0 {
		e.gate--
		if e.gate == 0 {
			e.noteOff()
		}
	}

	switch e.state {
	case ADSRAttack:
		if e.attack > 0 {
			e.level = e.from + (1.0-e.from)*float64(e.pos)/float64(e.attack)
		} else {
			e.level = 1.0
		}
		e.pos++
		if e.pos >= e.attack {
			e.state = ADSRDecay
			e.pos = 0
		}

	case ADSRDecay:
		if e.decay > 0 {
			t := float64(e.pos) / float64(e.decay)
			e.level = 1.0 - t*(1.0-e.sustain)
		} else {
			e.level = e.sustain
		}
		e.pos++
		if e.pos >= e.decay {
			if e.sustain > 0 {
				e.state = ADSRSustain
			} else {
				e.state = ADSRIdle
				e.level = 0
			}
		}

	case ADSRSustain:
		e.level = e.sustain

	case ADSRRelease:
		if e.release > 0 {
			t := float64(e.pos) / float64(e.release)
			e.level = e.from * (1.0 - t)
		} else {
			e.level = 0
		}
		e.pos++
		if e.pos >= e.release || e.level <= 0.0001 {
			e.state = ADSRIdle
			e.level = 0
		}

	default:
		e.level = 0
	}

	return e.level
}
