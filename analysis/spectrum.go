package analysis

import (
	"fmt"
	"math/cmplx"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/viterin/vek"
	"github.com/viterin/vek/vek32"

	"github.com/lixenwraith/geosym/parameter"
)

// Source supplies the latest output samples, see Tap
type Source interface {
	Read(dst []float32) int
}

// Analyzer reduces the latest output window to a fixed number of linear magnitude bins
type Analyzer struct {
	mu   sync.Mutex
	src  Source
	bins int

	window     []float32 // Hann weighting
	normFactor float32   // Window sum, amplitude normalization
	plan       *algofft.Plan[complex128]
	samples    []float32
	in, out    []complex128
}

// NewAnalyzer creates an analyzer of parameter.FFTSize points and parameter.SpectrumBins bins
// src may be nil until the engine attaches a tap
func NewAnalyzer(src Source) (*Analyzer, error) {
	return newAnalyzer(src, parameter.FFTSize, parameter.SpectrumBins)
}

func newAnalyzer(src Source, n, bins int) (*Analyzer, error) {
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("analyzer fft plan: %w", err)
	}
	a := &Analyzer{
		src:     src,
		bins:    bins,
		window:  make([]float32, n),
		plan:    plan,
		samples: make([]float32, n),
		in:      make([]complex128, n),
		out:     make([]complex128, n),
	}
	for i, w := range window.Generate(window.TypeHann, n, window.WithPeriodic()) {
		a.window[i] = float32(w)
	}
	a.normFactor = vek32.Sum(a.window)
	return a, nil
}

// Attach sets the sample source; nil detaches
func (a *Analyzer) Attach(src Source) {
	a.mu.Lock()
	a.src = src
	a.mu.Unlock()
}

// Bins returns the number of output bins
func (a *Analyzer) Bins() int {
	return a.bins
}

// SampleSpectrum returns magnitude bins from lowest to highest frequency
// Magnitudes are normalized so a full-scale sine peaks near 1 in its FFT bin
// With no source or no rendered audio the result is all zeros
func (a *Analyzer) SampleSpectrum() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]float64, a.bins)
	if a.src == nil || a.src.Read(a.samples) == 0 {
		return out
	}

	vek32.Mul_Inplace(a.samples, a.window)
	for i, x := range a.samples {
		a.in[i] = complex(float64(x), 0)
	}
	if err := a.plan.Forward(a.out, a.in); err != nil {
		return out
	}

	// Magnitudes of the first half, excluding DC, including Nyquist
	m := len(a.out) / 2
	mag := a.samples[:m]
	for i := range m {
		mag[i] = float32(cmplx.Abs(a.out[1+i]))
	}
	vek32.MulNumber_Inplace(mag, 2/a.normFactor)

	per := m / a.bins
	for b := range a.bins {
		out[b] = float64(vek32.Mean(mag[b*per : (b+1)*per]))
	}
	return out
}

// BassEnergy is the mean magnitude over the lowest quarter of bins
func BassEnergy(bins []float64) float64 {
	q := len(bins) / 4
	if q == 0 {
		return 0
	}
	return vek.Mean(vek.Abs(bins[:q]))
}

// HighEnergy is the mean magnitude over the highest quarter of bins
func HighEnergy(bins []float64) float64 {
	q := len(bins) / 4
	if q == 0 {
		return 0
	}
	return vek.Mean(vek.Abs(bins[len(bins)-q:]))
}
