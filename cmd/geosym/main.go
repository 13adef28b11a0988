package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/geosym/core"
	"github.com/lixenwraith/geosym/engine"
)

var version = "0.1.0"

var (
	configPath string
	debugMode  bool
	backend    string
	midiPort   string
	patternID  string
	duration   int

	logFile *os.File
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "geosym",
	Short: "Generative minimal techno with live audio parameters",
	Long: `geosym plays looping minimal-techno patterns from a small built-in
catalog and publishes beat, progress and spectral parameters for visuals.

Without a subcommand it starts the terminal visualizer.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runPlay,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play with the terminal visualizer",
	Long: `Play the selected pattern and show beat, progress and spectrum.

Keys:
  space   play / pause
  1-4     select pattern
  + -     volume
  m       mute
  [ ]     tempo
  q       quit`,
	RunE: runPlay,
}

var headlessCmd = &cobra.Command{
	Use:   "headless",
	Short: "Play without a UI and print snapshots",
	Long: `Play the selected pattern and print one audio-parameter snapshot per
publish tick until the duration elapses or the process is interrupted.

Example:
  geosym headless --backend silent --duration 10 -p pattern4`,
	RunE: runHeadless,
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the pattern catalog",
	RunE:  runPatterns,
}

var midiPortsCmd = &cobra.Command{
	Use:   "midi-ports",
	Short: "List MIDI output ports",
	RunE:  runMIDIPorts,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.BoolVar(&debugMode, "debug", false, "Write debug log to logs/geosym.log")
	pf.StringVar(&backend, "backend", "", "Audio backend (auto, speaker, pipe, silent)")
	pf.StringVar(&midiPort, "midi-port", "", "Mirror triggers to the MIDI output matching this name")
	pf.StringVarP(&patternID, "pattern", "p", "", "Initial pattern id")

	headlessCmd.Flags().IntVarP(&duration, "duration", "d", 0, "Seconds to play, 0 until interrupted")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logFile = setupLogging(debugMode)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	}
	rootCmd.AddCommand(playCmd, headlessCmd, patternsCmd, midiPortsCmd)
}

// loadConfig resolves defaults, file, environment, then flags
func loadConfig(cmd *cobra.Command) (*engine.Config, error) {
	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("midi-port") {
		cfg.MIDIPort = midiPort
	}
	if flags.Changed("pattern") {
		cfg.Pattern = core.PatternID(patternID)
	}
	return cfg, cfg.Validate()
}
