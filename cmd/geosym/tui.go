package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/geosym/analysis"
	"github.com/lixenwraith/geosym/audio"
	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/engine"
	"github.com/lixenwraith/geosym/parameter"
)

const (
	frameInterval = 33 * time.Millisecond
	volumeStep    = 0.1
	tempoStep     = 2.0
	spectrumFloor = -60.0 // dB mapped to an empty bar
)

// visualizer draws the published parameters and maps keys to engine calls
type visualizer struct {
	screen        tcell.Screen
	engine        *engine.Engine
	ctx           context.Context
	width, height int

	snap     analysis.Snapshot
	progress float64
	message  string
}

func newVisualizer(ctx context.Context, screen tcell.Screen, e *engine.Engine) *visualizer {
	v := &visualizer{screen: screen, engine: e, ctx: ctx, snap: analysis.Default()}
	v.width, v.height = screen.Size()
	return v
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	// Panic recovery: restore the terminal before printing the trace
	core.SetCrashCleanup(screen.Fini)
	defer core.SetCrashCleanup(nil)
	defer func() {
		core.HandleCrash(recover())
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snaps, unsubscribe := a.engine.Subscribe(parameter.SubscriberBuffer)
	defer unsubscribe()
	progs, unsubscribeProg := a.engine.SubscribeProgress(parameter.SubscriberBuffer)
	defer unsubscribeProg()

	v := newVisualizer(ctx, screen, a.engine)
	if err := a.hub.StartAll(ctx); err != nil {
		v.message = err.Error()
	}
	v.run(snaps, progs)
	return nil
}

func (v *visualizer) run(snaps <-chan analysis.Snapshot, progs <-chan float64) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	core.Go(func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	})

	for {
		select {
		case <-v.ctx.Done():
			return
		case ev := <-eventChan:
			if !v.handleEvent(ev) {
				return
			}
		case s := <-snaps:
			v.snap = s
		case p := <-progs:
			v.progress = p
		case <-ticker.C:
			v.draw()
		}
	}
}

// handleEvent applies one terminal event; false means quit
func (v *visualizer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.handleKey(ev)
	case *tcell.EventResize:
		v.width, v.height = v.screen.Size()
		v.screen.Sync()
	}
	return true
}

func (v *visualizer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
	default:
		return true
	}

	e := v.engine
	switch r := ev.Rune(); r {
	case 'q':
		return false
	case ' ':
		v.togglePlay()
	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		ids := e.Catalog().IDs()
		if i := int(r - '1'); i < len(ids) {
			if err := e.SetPattern(ids[i]); err != nil {
				v.message = err.Error()
			} else {
				v.message = ""
			}
		}
	case '+', '=':
		e.SetVolume(e.Volume() + volumeStep)
	case '-', '_':
		e.SetVolume(e.Volume() - volumeStep)
	case 'm':
		e.ToggleMute()
	case '[':
		e.SetTempo(e.BPM() - tempoStep)
	case ']':
		e.SetTempo(e.BPM() + tempoStep)
	}
	return true
}

func (v *visualizer) togglePlay() {
	e := v.engine
	if e.Playing() {
		e.Pause()
		v.snap = analysis.Default()
		v.progress = 0
		return
	}
	err := e.Play(v.ctx)
	if errors.Is(err, audio.ErrActivationFailed) {
		err = e.PlaySilent(v.ctx)
		v.message = "audio unavailable, playing silent"
	}
	if err != nil {
		v.message = err.Error()
	}
}

func (v *visualizer) text(x, y int, s string, style tcell.Style) int {
	for _, r := range s {
		if x >= v.width {
			break
		}
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

// hueColor maps a 0-1 intensity onto a blue to magenta ramp
func hueColor(intensity float64) tcell.Color {
	t := min(max(intensity, 0), 1)
	r := int32(60 + 195*t)
	g := int32(80 * (1 - t))
	b := int32(255 - 80*t)
	return tcell.NewRGBColor(r, g, b)
}

func (v *visualizer) draw() {
	v.screen.Clear()
	e := v.engine
	s := v.snap
	base := tcell.StyleDefault
	dim := base.Foreground(tcell.ColorGray)
	accent := base.Foreground(hueColor(s.ColorIntensity))

	// Header
	state := "stopped"
	if e.Playing() {
		state = "playing"
	}
	vol := fmt.Sprintf("vol %3.0f%%", e.Volume()*100)
	if e.Muted() {
		vol = "muted"
	}
	x := v.text(0, 0, "geosym ", base.Bold(true))
	x = v.text(x, 0, fmt.Sprintf("%s  %.1f bpm  %s  %s", state, e.BPM(), vol, e.Output().Name()), dim)

	// Pattern list
	x = 0
	current := e.PatternID()
	for i, d := range e.Patterns() {
		style := dim
		if d.ID == current {
			style = base.Foreground(tcell.ColorWhite).Reverse(true)
		}
		x = v.text(x, 2, fmt.Sprintf(" %d %s ", i+1, d.Name), style)
		x++
	}

	// Progress bar and beat
	barWidth := max(v.width-10, 1)
	filled := int(v.progress * float64(barWidth))
	for i := 0; i < barWidth; i++ {
		r := '░'
		if i < filled {
			r = '█'
		}
		v.screen.SetContent(i, 4, r, nil, accent)
	}
	if s.BeatActive {
		v.text(barWidth+2, 4, "● BEAT", base.Foreground(tcell.ColorRed).Bold(true))
	}

	// Spectrum
	top, bottom := 6, v.height-4
	if bottom > top {
		v.drawSpectrum(e.Spectrum(), top, bottom, accent)
	}

	// Parameters and help
	if v.height > 2 {
		v.text(0, v.height-3, fmt.Sprintf("bass %.3f  high %.3f  color %.2f  rot %.2f  intensity %.2f  acid %.2f  depth %.2f  tempo %.2f",
			s.BassEnergy, s.HighFrequencyEnergy, s.ColorIntensity, s.RotationSpeed,
			s.PatternIntensity, s.AcidResonance, s.SpatialDepth, s.VisualTempo), base)
		v.text(0, v.height-2, "space play/pause  1-4 pattern  +/- volume  m mute  [/] tempo  q quit", dim)
	}
	if v.message != "" {
		v.text(0, v.height-1, v.message, base.Foreground(tcell.ColorYellow))
	}
	v.screen.Show()
}

// drawSpectrum renders bins as vertical bars on a dB scale between rows top and bottom
func (v *visualizer) drawSpectrum(bins []float64, top, bottom int, style tcell.Style) {
	if len(bins) == 0 {
		return
	}
	rows := bottom - top
	colWidth := max(v.width/len(bins), 1)
	for i, mag := range bins {
		db := 20 * math.Log10(mag+1e-9)
		h := int(min(max((db-spectrumFloor)/-spectrumFloor, 0), 1) * float64(rows))
		for c := 0; c < colWidth-1 || c == 0; c++ {
			x := i*colWidth + c
			if x >= v.width {
				return
			}
			for y := 0; y < h; y++ {
				v.screen.SetContent(x, bottom-1-y, '▮', nil, style)
			}
		}
	}
}
