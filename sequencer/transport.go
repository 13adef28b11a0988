package sequencer

import (
	"math"

	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/parameter"
)

// Transport is the shared grid clock
// Step positions accumulate in float64 sample time so long runs do not drift
type Transport struct {
	State          core.TransportState
	BPM            float64
	SampleRate     int
	SamplesPerStep float64
	LoopSteps      int

	SamplePos int64   // Samples rendered since Play
	Step      int64   // Next grid step to fire
	NextAt    float64 // Sample position of Step
	LastAt    float64 // Sample position of Step-1
}

func newTransport(rate int) Transport {
	t := Transport{SampleRate: rate, LoopSteps: parameter.LoopSteps}
	t.setTempo(parameter.DefaultBPM)
	return t
}

// setTempo changes the step length keeping the fractional position within the current step
func (t *Transport) setTempo(bpm float64) {
	bpm = parameter.ClampBPM(bpm)
	old := t.SamplesPerStep
	t.BPM = bpm
	t.SamplesPerStep = parameter.SamplesPerStep(t.SampleRate, bpm)

	if t.State != core.TransportRunning || t.Step == 0 || old <= 0 {
		return
	}
	pos := float64(t.SamplePos)
	frac := 1 - (t.NextAt-pos)/old
	frac = min(max(frac, 0), 1)
	t.NextAt = pos + (1-frac)*t.SamplesPerStep
	t.LastAt = t.NextAt - t.SamplesPerStep
}

// reset rewinds to the stopped origin
func (t *Transport) reset() {
	t.State = core.TransportStopped
	t.SamplePos = 0
	t.Step = 0
	t.NextAt = 0
	t.LastAt = 0
}

// due reports whether the next step falls on or before the current sample
func (t *Transport) due() bool {
	return float64(t.SamplePos) >= t.NextAt
}

// advanceStep moves past the step just fired
func (t *Transport) advanceStep() {
	t.LastAt = t.NextAt
	t.Step++
	t.NextAt += t.SamplesPerStep
}

// framesUntilNext is the whole-sample distance to the next step, at least 1
func (t *Transport) framesUntilNext() int {
	n := int64(math.Ceil(t.NextAt)) - t.SamplePos
	if n < 1 {
		return 1
	}
	return int(n)
}

// Position is the fractional grid position: last fired step plus the elapsed fraction of it
func (t *Transport) Position() float64 {
	if t.State != core.TransportRunning || t.Step == 0 {
		return 0
	}
	frac := (float64(t.SamplePos) - t.LastAt) / t.SamplesPerStep
	frac = min(max(frac, 0), math.Nextafter(1, 0))
	return float64(t.Step-1) + frac
}

// Progress is the position within the pattern loop, in [0, 1)
func (t *Transport) Progress() float64 {
	if t.LoopSteps <= 0 {
		return 0
	}
	loop := float64(t.LoopSteps)
	p := math.Mod(t.Position(), loop) / loop
	if p >= 1 {
		return 0
	}
	return p
}

// BarStart is the first grid step of the bar containing the next step
func (t *Transport) BarStart() int64 {
	return t.Step - t.Step%parameter.StepsPerBar
}
