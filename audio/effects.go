package audio

import (
	"math"

	dspfx "github.com/cwbudde/algo-dsp/dsp/effects/reverb"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/geosym/parameter"
)

// bus accumulates sends for one frame
type bus struct {
	in float64
}

func (b *bus) Send(x float64) {
	b.in += x
}

// take drains the accumulated frame
func (b *bus) take() float64 {
	x := b.in
	b.in = 0
	return x
}

// effect is a node of the shared graph, processed once per frame in chain order
type effect interface {
	Sink
	process()
	Connect(s Sink)
	reset()
}

// node carries the input bus and output connection common to effects
type node struct {
	bus
	out Sink
}

// Connect routes this node's output into s
func (n *node) Connect(s Sink) {
	n.out = s
}

func (n *node) emit(y float64) {
	if n.out != nil {
		n.out.Send(y)
	}
}

// --- Sections ---

// clampCutoff keeps a corner frequency inside the usable band at rate
func clampCutoff(hz float64, rate int) float64 {
	return min(max(hz, 10), float64(rate)*0.45)
}

// lowpass builds a fresh section; rebuilding is how state is cleared
func lowpass(hz, q float64, rate int) *biquad.Section {
	return biquad.NewSection(design.Lowpass(clampCutoff(hz, rate), q, float64(rate)))
}

func highpass(hz, q float64, rate int) *biquad.Section {
	return biquad.NewSection(design.Highpass(clampCutoff(hz, rate), q, float64(rate)))
}

// --- Filter ---

// Filter is a low-pass insert
type Filter struct {
	node
	sec    *biquad.Section
	rate   int
	cutoff float64
	q      float64
}

func newFilter(rate int) *Filter {
	f := &Filter{rate: rate}
	f.SetCutoff(parameter.FilterCutoff, parameter.FilterQ)
	return f
}

// SetCutoff retunes the filter, clearing its state
func (f *Filter) SetCutoff(hz, q float64) {
	if q <= 0 {
		q = 0.707
	}
	f.cutoff, f.q = hz, q
	f.sec = lowpass(hz, q, f.rate)
}

// Cutoff returns the corner frequency and Q
func (f *Filter) Cutoff() (hz, q float64) {
	return f.cutoff, f.q
}

func (f *Filter) process() {
	f.emit(f.sec.ProcessSample(f.take()))
}

func (f *Filter) reset() {
	f.take()
	f.sec = lowpass(f.cutoff, f.q, f.rate)
}

// --- Distortion ---

// Distortion is a tanh waveshaper with dry/wet mix
type Distortion struct {
	node
	drive float64
	wet   float64
	norm  float64
}

func newDistortion() *Distortion {
	d := &Distortion{}
	d.SetDrive(parameter.DistortionDrive, parameter.DistortionWet)
	return d
}

// SetDrive sets the shaper gain and wet amount
func (d *Distortion) SetDrive(drive, wet float64) {
	if drive <= 0 {
		drive = 1
	}
	d.drive = drive
	d.wet = wet
	d.norm = 1 / math.Tanh(drive)
}

func (d *Distortion) process() {
	x := d.take()
	shaped := math.Tanh(x*d.drive) * d.norm
	d.emit((1-d.wet)*x + d.wet*shaped)
}

func (d *Distortion) reset() {
	d.take()
}

// --- Delay ---

// Delay is a feedback delay line whose time tracks the transport
// Repeats darken through a low-pass in the feedback path
type Delay struct {
	node
	buf      []float64
	pos      int
	length   int
	rate     int
	feedback float64
	wet      float64
	damp     *biquad.Section
}

func newDelay(rate int) *Delay {
	d := &Delay{
		buf:      make([]float64, int(parameter.DelayMaxSeconds*float64(rate))),
		rate:     rate,
		feedback: parameter.DelayFeedback,
		wet:      parameter.DelayWet,
		damp:     lowpass(parameter.DelayDampCutoff, 0.707, rate),
	}
	d.SetTempo(parameter.DefaultBPM)
	return d
}

// SetTempo sets the delay time to one eighth note at bpm
func (d *Delay) SetTempo(bpm float64) {
	d.SetTime(60 / bpm / 2)
}

// SetTime sets the delay time in seconds
func (d *Delay) SetTime(sec float64) {
	n := int(sec * float64(d.rate))
	if n < 1 {
		n = 1
	}
	if n > len(d.buf) {
		n = len(d.buf)
	}
	d.length = n
}

func (d *Delay) process() {
	x := d.take()
	read := d.pos - d.length
	if read < 0 {
		read += len(d.buf)
	}
	delayed := d.buf[read]
	d.buf[d.pos] = x + d.damp.ProcessSample(delayed)*d.feedback
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
	d.emit((1-d.wet)*x + d.wet*delayed)
}

func (d *Delay) reset() {
	d.take()
	clear(d.buf)
	d.damp = lowpass(parameter.DelayDampCutoff, 0.707, d.rate)
}

// --- Reverb ---

// Reverb is the shared room send
type Reverb struct {
	node
	rv *dspfx.Reverb
}

func newReverb() *Reverb {
	rv := dspfx.NewReverb()
	rv.SetWet(parameter.ReverbWet)
	rv.SetDry(1 - parameter.ReverbWet)
	rv.SetRoomSize(parameter.ReverbRoomSize)
	rv.SetDamp(parameter.ReverbDamp)
	rv.SetGain(parameter.ReverbGain)
	return &Reverb{rv: rv}
}

func (r *Reverb) process() {
	r.emit(r.rv.ProcessSample(r.take()))
}

func (r *Reverb) reset() {
	r.take()
	r.rv.Reset()
}

// Effects is the shared send graph
// Processing order is fixed: Filter, Distortion, Delay, Reverb
// A node may feed any later node within the same frame
type Effects struct {
	Reverb     *Reverb
	Delay      *Delay
	Filter     *Filter
	Distortion *Distortion
	chain      []effect
}

func newEffects(rate int, master Sink) *Effects {
	fx := &Effects{
		Reverb:     newReverb(),
		Delay:      newDelay(rate),
		Filter:     newFilter(rate),
		Distortion: newDistortion(),
	}
	// Insert chain for the rich bass: filter -> distortion -> delay
	fx.Filter.Connect(fx.Distortion)
	fx.Distortion.Connect(fx.Delay)
	fx.Delay.Connect(master)
	fx.Reverb.Connect(master)
	fx.chain = []effect{fx.Filter, fx.Distortion, fx.Delay, fx.Reverb}
	return fx
}

func (fx *Effects) process() {
	for _, e := range fx.chain {
		e.process()
	}
}

func (fx *Effects) reset() {
	for _, e := range fx.chain {
		e.reset()
	}
}

// NewVolume wraps s in a beep volume stage at linear gain vol
// math.Log10(0) is -Inf, so zero volume is rendered silent
func NewVolume(s beep.Streamer, vol float64) *effects.Volume {
	v := &effects.Volume{Streamer: s, Base: 10}
	SetLinearVolume(v, vol)
	return v
}

// SetLinearVolume updates v to linear gain vol
func SetLinearVolume(v *effects.Volume, vol float64) {
	if vol <= 0 {
		v.Volume = 0
		v.Silent = true
		return
	}
	v.Volume = math.Log10(vol)
	v.Silent = false
}

// SetDBVolume updates v to a gain in decibels
func SetDBVolume(v *effects.Volume, db float64) {
	if math.IsInf(db, -1) {
		v.Volume = 0
		v.Silent = true
		return
	}
	v.Volume = db / 20
	v.Silent = false
}
