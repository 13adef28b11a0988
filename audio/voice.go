package audio

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"

	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/parameter"
)

// Voice is the common interface for the bank's sound generators
// All methods run on the audio thread or under the scheduler lock
type Voice interface {
	Kind() core.VoiceKind
	Trigger(p NoteParams)
	Sample() float64
	Active() bool
	Release()
	Reset()
	Connect(s Sink)
	Output() Sink
}

// Timbred is implemented by voices with switchable tone families
type Timbred interface {
	SetTimbre(t Timbre)
	Timbre() Timbre
}

// NewVoice constructs a voice of kind at rate, unconnected
func NewVoice(kind core.VoiceKind, rate int) (Voice, error) {
	switch kind {
	case core.VoiceKick:
		return NewKickVoice(rate), nil
	case core.VoiceBass:
		return NewBassVoice(rate), nil
	case core.VoiceHiHat:
		return NewHiHatVoice(rate), nil
	case core.VoicePad:
		return NewPadVoice(rate), nil
	case core.VoiceAcidLead:
		return NewAcidVoice(rate), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidVoiceKind, int(kind))
}

// voiceBase carries identity, routing and trim
type voiceBase struct {
	kind core.VoiceKind
	rate float64
	out  Sink
	trim float64 // Linear gain from the dB trim
	gate int     // Default gate in samples
}

func newVoiceBase(kind core.VoiceKind, rate int, trimDB, gateSec float64) voiceBase {
	return voiceBase{
		kind: kind,
		rate: float64(rate),
		trim: DBToLinear(trimDB),
		gate: int(gateSec * float64(rate)),
	}
}

func (b *voiceBase) Kind() core.VoiceKind { return b.kind }
func (b *voiceBase) Connect(s Sink)       { b.out = s }
func (b *voiceBase) Output() Sink         { return b.out }

func (b *voiceBase) gateFor(p NoteParams) int {
	if p.Gate > 0 {
		return p.Gate
	}
	return b.gate
}

func firstNote(p NoteParams, fallback int) int {
	if len(p.Notes) > 0 {
		return p.Notes[0]
	}
	return fallback
}

// --- KickVoice: membrane drum ---

// KickVoice is a sine whose pitch sweeps exponentially down onto the note
type KickVoice struct {
	voiceBase
	env      envelope
	osc      phasor
	base     float64
	peak     float64
	pos      int
	sweep    int
	velocity float64
}

// NewKickVoice creates a kick voice
func NewKickVoice(rate int) *KickVoice {
	return &KickVoice{
		voiceBase: newVoiceBase(core.VoiceKick, rate, parameter.KickTrimDB, 0.1),
		env:       newEnvelope(parameter.KickEnvelope, rate),
		sweep:     int(parameter.KickPitchDecay * float64(rate)),
	}
}

func (v *KickVoice) Trigger(p NoteParams) {
	v.base = NoteFreq(firstNote(p, parameter.MIDINote(parameter.NoteC, 1)))
	v.peak = v.base * math.Pow(2, parameter.KickOctaves)
	v.velocity = p.Velocity
	v.pos = 0
	v.osc = 0
	v.env.trigger(v.gateFor(p))
}

func (v *KickVoice) Sample() float64 {
	if !v.env.active() {
		return 0
	}
	freq := v.base
	if v.pos < v.sweep {
		t := float64(v.pos) / float64(v.sweep)
		freq = v.peak * math.Pow(v.base/v.peak, t)
	}
	v.pos++
	ph := v.osc.advance(freq, v.rate)
	return wave(waveSine, ph) * v.env.next() * v.velocity * v.trim
}

func (v *KickVoice) Active() bool { return v.env.active() }
func (v *KickVoice) Release()     { v.env.noteOff() }
func (v *KickVoice) Reset()       { v.env.reset(); v.pos = 0 }

// --- BassVoice: mono bass with plain and rich timbres ---

// BassVoice plays a triangle (plain) or three detuned saws (rich)
// The rich timbre routes through the insert sink when one is set
type BassVoice struct {
	voiceBase
	env      envelope
	osc      [3]phasor
	freq     float64
	velocity float64
	timbre   Timbre
	plain    Sink
	insert   Sink
}

// NewBassVoice creates a bass voice
func NewBassVoice(rate int) *BassVoice {
	return &BassVoice{
		voiceBase: newVoiceBase(core.VoiceBass, rate, parameter.BassTrimDB, 0.2),
		env:       newEnvelope(parameter.BassEnvelope, rate),
	}
}

// Connect sets the plain send and re-applies routing
func (v *BassVoice) Connect(s Sink) {
	v.plain = s
	v.route()
}

// SetInsert sets the send used by the rich timbre
func (v *BassVoice) SetInsert(s Sink) {
	v.insert = s
	v.route()
}

func (v *BassVoice) SetTimbre(t Timbre) {
	v.timbre = t
	v.route()
}

func (v *BassVoice) Timbre() Timbre { return v.timbre }

func (v *BassVoice) route() {
	if v.timbre == TimbreRich && v.insert != nil {
		v.out = v.insert
		return
	}
	v.out = v.plain
}

func (v *BassVoice) Trigger(p NoteParams) {
	v.freq = NoteFreq(firstNote(p, parameter.MIDINote(parameter.NoteC, 1)))
	v.velocity = p.Velocity
	v.env.trigger(v.gateFor(p))
}

func (v *BassVoice) Sample() float64 {
	if !v.env.active() {
		return 0
	}
	var raw float64
	if v.timbre == TimbreRich {
		d := parameter.RichBassDetune
		raw = (wave(waveSaw, v.osc[0].advance(v.freq*(1-d), v.rate)) +
			wave(waveSaw, v.osc[1].advance(v.freq, v.rate)) +
			wave(waveSaw, v.osc[2].advance(v.freq*(1+d), v.rate))) / 3
	} else {
		raw = wave(waveTriangle, v.osc[0].advance(v.freq, v.rate))
	}
	return raw * v.env.next() * v.velocity * v.trim
}

func (v *BassVoice) Active() bool { return v.env.active() }
func (v *BassVoice) Release()     { v.env.noteOff() }
func (v *BassVoice) Reset()       { v.env.reset() }

// --- HiHatVoice: metallic FM partials ---

// Inharmonic partial ratios of the classic metal cymbal model
var hihatRatios = [parameter.HiHatPartials]float64{1.0, 1.483, 1.932, 2.546, 2.630, 3.897}

// HiHatVoice sums phase-modulated square partials through a high-pass
type HiHatVoice struct {
	voiceBase
	env      envelope
	carriers [parameter.HiHatPartials]phasor
	mods     [parameter.HiHatPartials]phasor
	hp       *biquad.Section
	velocity float64
}

// NewHiHatVoice creates a hihat voice
func NewHiHatVoice(rate int) *HiHatVoice {
	return &HiHatVoice{
		voiceBase: newVoiceBase(core.VoiceHiHat, rate, parameter.HiHatTrimDB, 0.03),
		env:       newEnvelope(parameter.HiHatEnvelope, rate),
		hp:        highpass(parameter.HiHatResonance, 0.707, rate),
	}
}

func (v *HiHatVoice) Trigger(p NoteParams) {
	v.velocity = p.Velocity
	v.env.trigger(v.gateFor(p))
}

func (v *HiHatVoice) Sample() float64 {
	if !v.env.active() {
		return 0
	}
	var sum float64
	for i, ratio := range hihatRatios {
		f := parameter.HiHatFrequency * ratio
		m := wave(waveSine, v.mods[i].advance(f*parameter.HiHatHarmonicity, v.rate))
		ph := v.carriers[i].advance(f, v.rate) + parameter.HiHatModIndex*m/(2*math.Pi)
		sum += wave(waveSquare, ph-math.Floor(ph))
	}
	out := v.hp.ProcessSample(sum / parameter.HiHatPartials)
	return out * v.env.next() * v.velocity * v.trim
}

func (v *HiHatVoice) Active() bool { return v.env.active() }
func (v *HiHatVoice) Release()     { v.env.noteOff() }
func (v *HiHatVoice) Reset() {
	v.env.reset()
	v.hp = highpass(parameter.HiHatResonance, 0.707, int(v.rate))
}

// --- PadVoice: polyphonic sine pad ---

type padNote struct {
	note     int
	freq     float64
	osc      phasor
	env      envelope
	velocity float64
	age      uint64
}

// PadVoice is a fixed pool of sine voices with oldest-note stealing
type PadVoice struct {
	voiceBase
	notes [parameter.MaxPolyphony]padNote
	clock uint64
}

// NewPadVoice creates a pad voice
func NewPadVoice(rate int) *PadVoice {
	v := &PadVoice{
		voiceBase: newVoiceBase(core.VoicePad, rate, parameter.PadTrimDB, 1.0),
	}
	for i := range v.notes {
		v.notes[i].env = newEnvelope(parameter.PadEnvelope, rate)
	}
	return v
}

// allocate returns a slot: same note, then idle, then oldest
func (v *PadVoice) allocate(note int) *padNote {
	var idle, oldest *padNote
	for i := range v.notes {
		n := &v.notes[i]
		if n.env.active() && n.note == note {
			return n
		}
		if !n.env.active() && idle == nil {
			idle = n
		}
		if oldest == nil || n.age < oldest.age {
			oldest = n
		}
	}
	if idle != nil {
		return idle
	}
	return oldest
}

// Trigger starts every note of the chord with the same gate and velocity
func (v *PadVoice) Trigger(p NoteParams) {
	gate := v.gateFor(p)
	for _, note := range p.Notes {
		v.clock++
		n := v.allocate(note)
		n.note = note
		n.freq = NoteFreq(note)
		n.velocity = p.Velocity
		n.age = v.clock
		n.env.trigger(gate)
	}
}

func (v *PadVoice) Sample() float64 {
	var sum float64
	for i := range v.notes {
		n := &v.notes[i]
		if !n.env.active() {
			continue
		}
		sum += wave(waveSine, n.osc.advance(n.freq, v.rate)) * n.env.next() * n.velocity
	}
	return sum / 3 * v.trim
}

func (v *PadVoice) Active() bool {
	for i := range v.notes {
		if v.notes[i].env.active() {
			return true
		}
	}
	return false
}

// ActiveNotes returns the number of sounding pool slots
func (v *PadVoice) ActiveNotes() int {
	count := 0
	for i := range v.notes {
		if v.notes[i].env.active() {
			count++
		}
	}
	return count
}

func (v *PadVoice) Release() {
	for i := range v.notes {
		v.notes[i].env.noteOff()
	}
}

func (v *PadVoice) Reset() {
	for i := range v.notes {
		v.notes[i].env.reset()
	}
}

// --- AcidVoice: saw through an enveloped resonant low-pass ---

// AcidVoice is a mono saw with a swept state-variable filter
type AcidVoice struct {
	voiceBase
	env      envelope
	fenv     envelope
	osc      phasor
	freq     float64
	velocity float64
	low      float64
	band     float64
}

// NewAcidVoice creates an acid lead voice
func NewAcidVoice(rate int) *AcidVoice {
	return &AcidVoice{
		voiceBase: newVoiceBase(core.VoiceAcidLead, rate, parameter.AcidTrimDB, 0.1),
		env:       newEnvelope(parameter.AcidEnvelope, rate),
		fenv:      newEnvelope(parameter.AcidFilterEnvelope, rate),
	}
}

func (v *AcidVoice) Trigger(p NoteParams) {
	v.freq = NoteFreq(firstNote(p, parameter.MIDINote(parameter.NoteC, 2)))
	v.velocity = p.Velocity
	gate := v.gateFor(p)
	v.env.trigger(gate)
	v.fenv.trigger(gate)
}

func (v *AcidVoice) Sample() float64 {
	if !v.env.active() {
		return 0
	}
	x := wave(waveSaw, v.osc.advance(v.freq, v.rate))

	cutoff := parameter.AcidFilterBase * math.Pow(2, parameter.AcidFilterOctave*v.fenv.next())
	if limit := v.rate / 6; cutoff > limit {
		cutoff = limit
	}
	f := 2 * math.Sin(math.Pi*cutoff/v.rate)
	q := 1 / parameter.AcidFilterQ
	v.low += f * v.band
	high := x - v.low - q*v.band
	v.band += f * high

	return v.low * v.env.next() * v.velocity * v.trim
}

func (v *AcidVoice) Active() bool { return v.env.active() }
func (v *AcidVoice) Release()     { v.env.noteOff(); v.fenv.noteOff() }

func (v *AcidVoice) Reset() {
	v.env.reset()
	v.fenv.reset()
	v.low, v.band = 0, 0
}
