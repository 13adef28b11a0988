package main

import (
	"fmt"
	"log"
	"os"

	"github.com/lixenwraith/geosym/audio"
	"github.com/lixenwraith/geosym/engine"
	"github.com/lixenwraith/geosym/event"
	"github.com/lixenwraith/geosym/midiout"
	"github.com/lixenwraith/geosym/parameter"
	"github.com/lixenwraith/geosym/service"
	"github.com/lixenwraith/geosym/status"
)

// app is the wired process: engine, optional MIDI mirror, and the hub running them
type app struct {
	engine *engine.Engine
	mirror *midiout.Mirror
	hub    *service.Hub
	stats  *status.Registry
}

// newOutput picks the audio output for cfg.Backend
func newOutput(cfg *engine.Config) audio.Output {
	switch cfg.Backend {
	case engine.BackendSilent:
		return audio.NewSilentOutput(cfg.SampleRate)
	case engine.BackendSpeaker:
		return audio.NewSpeakerOutput(cfg.SampleRate, parameter.SpeakerBufferDuration)
	case engine.BackendPipe:
		return audio.NewPipeOutput(cfg.SampleRate)
	default:
		if be, err := audio.DetectBackend(cfg.SampleRate); err == nil {
			log.Printf("audio: using %s", be.Name)
			return audio.NewPipeOutput(cfg.SampleRate)
		}
		return audio.NewSpeakerOutput(cfg.SampleRate, parameter.SpeakerBufferDuration)
	}
}

// newApp builds the engine and registers services; nothing plays until hub.StartAll
func newApp(cfg *engine.Config) (*app, error) {
	stats := status.NewRegistry()
	opts := []engine.Option{engine.WithStats(stats), engine.WithSilentFailover()}

	var queue *event.Queue
	if cfg.MIDIPort != "" {
		queue = event.NewQueue()
		opts = append(opts, engine.WithQueue(queue))
	}

	eng, err := engine.New(cfg, newOutput(cfg), opts...)
	if err != nil {
		return nil, err
	}

	a := &app{engine: eng, hub: service.NewHub(), stats: stats}
	if err := a.hub.Register(engine.NewService(eng, true)); err != nil {
		eng.Close()
		return nil, err
	}

	if queue != nil {
		send, name, err := midiout.OpenPort(cfg.MIDIPort)
		if err != nil {
			fmt.Fprintf(os.Stderr, "MIDI mirror disabled: %v\n", err)
			log.Printf("midi: %v", err)
		} else {
			log.Printf("midi: mirroring to %s", name)
			a.mirror = midiout.NewMirror(queue, send, nil, stats)
			if err := a.hub.Register(a.mirror); err != nil {
				log.Printf("midi: %v", err)
				a.mirror = nil
				midiout.CloseDriver()
			}
		}
	}
	return a, nil
}

// close stops every started service; the engine is closed even if it never started
func (a *app) close() {
	a.hub.StopAll()
	a.engine.Close()
	if a.mirror != nil {
		midiout.CloseDriver()
	}
}
