package engine

import (
	"context"
	"errors"
	"log"

	"github.com/lixenwraith/geosym/audio"
)

// Service runs an Engine under a service.Hub
// With SilentFallback a failed activation degrades to the silent pump instead of failing
type Service struct {
	engine         *Engine
	SilentFallback bool
}

// NewService wraps e
func NewService(e *Engine, silentFallback bool) *Service {
	return &Service{engine: e, SilentFallback: silentFallback}
}

// Name implements service.Service
func (s *Service) Name() string { return "engine" }

// Dependencies implements service.Service
func (s *Service) Dependencies() []string { return nil }

// Start implements service.Service
func (s *Service) Start(ctx context.Context) error {
	err := s.engine.Play(ctx)
	if err == nil || !s.SilentFallback || !errors.Is(err, audio.ErrActivationFailed) {
		return err
	}
	log.Printf("engine: audio unavailable, continuing silent: %v", err)
	return s.engine.PlaySilent(ctx)
}

// Stop implements service.Service
func (s *Service) Stop() error {
	return s.engine.Close()
}

// Engine returns the wrapped engine
func (s *Service) Engine() *Engine {
	return s.engine
}
