package audio

import (
	"math"
	"testing"

	"github.com/gopxl/beep"
)

// recorder is a sink capturing the last sent sample per frame
type recorder struct {
	last float64
}

func (r *recorder) Send(x float64) { r.last += x }

func (r *recorder) take() float64 {
	x := r.last
	r.last = 0
	return x
}

// TestDelayEcho verifies an impulse reappears after the delay time
func TestDelayEcho(t *testing.T) {
	rate := 1000
	d := newDelay(rate)
	d.SetTime(0.01) // 10 samples
	out := &recorder{}
	d.Connect(out)

	var echoAt = -1
	for i := 0; i < 30; i++ {
		if i == 0 {
			d.Send(1.0)
		}
		d.process()
		y := out.take()
		if i > 0 && y > 0 && echoAt < 0 {
			echoAt = i
		}
	}

	if echoAt != 10 {
		t.Errorf("Expected echo at sample 10, got %d", echoAt)
	}
}

// TestDelaySetTempo verifies the delay tracks one eighth note
func TestDelaySetTempo(t *testing.T) {
	d := newDelay(44100)
	d.SetTempo(120)
	want := int(0.25 * 44100)
	if d.length != want {
		t.Errorf("Expected %d samples at 120 BPM, got %d", want, d.length)
	}
}

// TestReverbTailDecays verifies the reverb rings then decays
func TestReverbTailDecays(t *testing.T) {
	const window = 8000
	r := newReverb()
	out := &recorder{}
	r.Connect(out)

	r.Send(1.0)
	r.process()
	out.take()

	var early, late float64
	for i := 1; i < window*4; i++ {
		r.process()
		y := math.Abs(out.take())
		if i < window {
			early += y
		} else if i >= window*3 {
			late += y
		}
	}

	if early == 0 {
		t.Fatal("Expected reverb tail after impulse")
	}
	if late >= early {
		t.Errorf("Expected tail to decay, early=%f late=%f", early, late)
	}
}

// TestReverbReset verifies reset clears the tail
func TestReverbReset(t *testing.T) {
	r := newReverb()
	out := &recorder{}
	r.Connect(out)
	r.Send(1.0)
	for i := 0; i < 100; i++ {
		r.process()
	}
	r.reset()
	out.take()
	for i := 0; i < 2000; i++ {
		r.process()
		if y := out.take(); y != 0 {
			t.Fatalf("Expected silence after reset, got %f at %d", y, i)
		}
	}
}

// TestFilterLowPass verifies low frequencies pass and high frequencies attenuate
func TestFilterLowPass(t *testing.T) {
	rate := 44100
	measure := func(freq float64) float64 {
		f := newFilter(rate)
		f.SetCutoff(500, 0.707)
		out := &recorder{}
		f.Connect(out)
		var peak float64
		for i := 0; i < rate/4; i++ {
			f.Send(math.Sin(2 * math.Pi * freq * float64(i) / float64(rate)))
			f.process()
			y := out.take()
			if i > rate/8 && math.Abs(y) > peak {
				peak = math.Abs(y)
			}
		}
		return peak
	}

	low := measure(100)
	high := measure(8000)
	if low < 0.8 {
		t.Errorf("Expected 100Hz to pass, peak %f", low)
	}
	if high > 0.05 {
		t.Errorf("Expected 8kHz attenuated, peak %f", high)
	}
}

// TestFilterResetClearsState verifies reset leaves no ringing
func TestFilterResetClearsState(t *testing.T) {
	f := newFilter(44100)
	out := &recorder{}
	f.Connect(out)
	for i := 0; i < 64; i++ {
		f.Send(1)
		f.process()
	}
	f.reset()
	out.take()
	for i := 0; i < 64; i++ {
		f.process()
		if y := out.take(); y != 0 {
			t.Fatalf("Expected silence after reset, got %f at %d", y, i)
		}
	}
}

// TestDelayRepeatsDarken verifies the feedback path attenuates high frequencies
func TestDelayRepeatsDarken(t *testing.T) {
	rate := 44100
	energy := func(freq float64) float64 {
		d := newDelay(rate)
		d.SetTime(0.01)
		out := &recorder{}
		d.Connect(out)
		burst := int(0.01 * float64(rate))
		var sum float64
		for i := 0; i < burst*6; i++ {
			if i < burst {
				d.Send(math.Sin(2 * math.Pi * freq * float64(i) / float64(rate)))
			}
			d.process()
			y := out.take()
			// Second repeat onward has passed the feedback filter
			if i >= burst*2+burst/2 {
				sum += y * y
			}
		}
		return sum
	}

	low := energy(200)
	high := energy(12000)
	if high >= low {
		t.Errorf("Expected darker repeats, low=%g high=%g", low, high)
	}
}

// TestDistortionBounded verifies the shaper output stays within unity for unit input
func TestDistortionBounded(t *testing.T) {
	d := newDistortion()
	out := &recorder{}
	d.Connect(out)
	for _, x := range []float64{-1, -0.5, 0, 0.5, 1} {
		d.Send(x)
		d.process()
		if y := out.take(); math.Abs(y) > 1.0+1e-9 {
			t.Errorf("Distortion(%f) = %f exceeds unity", x, y)
		}
	}
}

// TestVolumeHelpers verifies linear and dB volume mapping onto beep's Volume
func TestVolumeHelpers(t *testing.T) {
	src := beep.Silence(-1)
	v := NewVolume(src, 1.0)
	if v.Silent || v.Volume != 0 || v.Base != 10 {
		t.Errorf("Unity volume wrong: %+v", v)
	}

	SetLinearVolume(v, 0)
	if !v.Silent {
		t.Error("Expected zero volume to be silent")
	}

	SetLinearVolume(v, 0.1)
	if math.Abs(v.Volume+1) > 1e-9 || v.Silent {
		t.Errorf("Expected log10(0.1) = -1, got %f", v.Volume)
	}

	SetDBVolume(v, -20)
	if math.Abs(v.Volume+1) > 1e-9 {
		t.Errorf("Expected -20dB = -1, got %f", v.Volume)
	}

	SetDBVolume(v, math.Inf(-1))
	if !v.Silent {
		t.Error("Expected -Inf dB to be silent")
	}
}

// TestSoftLimit verifies limiter bounds and transparency below threshold
func TestSoftLimit(t *testing.T) {
	if softLimit(0.5) != 0.5 {
		t.Error("Expected transparency below 0.8")
	}
	for _, v := range []float64{1.5, 10, -3} {
		if y := softLimit(v); math.Abs(y) > 1 {
			t.Errorf("softLimit(%f) = %f exceeds unity", v, y)
		}
	}
}
