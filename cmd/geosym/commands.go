package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/geosym/analysis"
	"github.com/lixenwraith/geosym/engine"
	"github.com/lixenwraith/geosym/midiout"
	"github.com/lixenwraith/geosym/parameter"
	"github.com/lixenwraith/geosym/pattern"
)

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(duration)*time.Second)
		defer cancel()
	}

	snaps, unsubscribe := a.engine.Subscribe(parameter.SubscriberBuffer)
	defer unsubscribe()

	if err := a.hub.StartAll(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "playing %s on %s\n", a.engine.PatternID(), a.engine.Output().Name())
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, strings.Join(a.stats.Dump(), " "))
			return nil
		case s, ok := <-snaps:
			if !ok {
				return nil
			}
			printSnapshot(out, s)
		}
	}
}

func printSnapshot(w io.Writer, s analysis.Snapshot) {
	beat := " "
	if s.BeatActive {
		beat = "*"
	}
	fmt.Fprintf(w, "%s %-8s prog=%.3f bass=%.4f high=%.4f tempo=%.2f color=%.3f rot=%.2f int=%.2f acid=%.3f depth=%.2f\n",
		beat, s.Pattern, s.Progress, s.BassEnergy, s.HighFrequencyEnergy,
		s.VisualTempo, s.ColorIntensity, s.RotationSpeed, s.PatternIntensity, s.AcidResonance, s.SpatialDepth)
}

func runPatterns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	catalog, err := engine.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}
	return listPatterns(cmd.OutOrStdout(), catalog)
}

func listPatterns(w io.Writer, c *pattern.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tID\tNAME\tBPM\tGENRE\tVOICES")
	for i, d := range c.All() {
		voices := make([]string, 0, len(d.Tracks))
		for _, t := range d.Tracks {
			voices = append(voices, t.Voice.String())
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.0f\t%s\t%s\n", i+1, d.ID, d.Name, d.BPM, d.Genre, strings.Join(voices, ","))
	}
	return tw.Flush()
}

func runMIDIPorts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if midiDriver == "" {
		fmt.Fprintln(out, "MIDI unavailable: built without cgo")
		return nil
	}
	defer midiout.CloseDriver()

	ports := midiout.Ports()
	if len(ports) == 0 {
		fmt.Fprintln(out, "no MIDI output ports")
		return nil
	}
	for i, name := range ports {
		fmt.Fprintf(out, "%d: %s\n", i, name)
	}
	return nil
}
