package service

import "context"

// Service is a long-lived subsystem driven by the CLI: the engine, the
// snapshot publisher loop and the MIDI mirror
//
// Lifecycle: construct, Start(ctx) once dependencies are running, Stop on shutdown
type Service interface {
	// Name returns the unique identifier for this service
	Name() string

	// Dependencies returns names of services that must start before this one
	Dependencies() []string

	// Start begins operation; background work ends when ctx is done or Stop is called
	Start(ctx context.Context) error

	// Stop halts the service and releases resources
	// Must be idempotent
	Stop() error
}

// Func adapts a pair of functions into a Service
type Func struct {
	ID       string
	Requires []string
	OnStart  func(ctx context.Context) error
	OnStop   func() error
}

func (f *Func) Name() string           { return f.ID }
func (f *Func) Dependencies() []string { return f.Requires }

func (f *Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

func (f *Func) Stop() error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop()
}
