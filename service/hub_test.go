package service

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type recorder struct {
	log []string
}

func (r *recorder) svc(name string, deps []string, failStart bool) *Func {
	return &Func{
		ID:       name,
		Requires: deps,
		OnStart: func(context.Context) error {
			if failStart {
				return errors.New("boom")
			}
			r.log = append(r.log, "start "+name)
			return nil
		},
		OnStop: func() error {
			r.log = append(r.log, "stop "+name)
			return nil
		},
	}
}

// TestHubStartsInDependencyOrder verifies dependencies start first and stop last
func TestHubStartsInDependencyOrder(t *testing.T) {
	r := &recorder{}
	h := NewHub()
	for _, s := range []*Func{
		r.svc("midi", []string{"engine"}, false),
		r.svc("publisher", []string{"engine"}, false),
		r.svc("engine", nil, false),
	} {
		if err := h.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	if err := h.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if got, want := h.Started(), []string{"engine", "midi", "publisher"}; !slices.Equal(got, want) {
		t.Errorf("Started = %v, want %v", got, want)
	}

	h.StopAll()
	want := []string{"start engine", "start midi", "start publisher", "stop publisher", "stop midi", "stop engine"}
	if !slices.Equal(r.log, want) {
		t.Errorf("log = %v, want %v", r.log, want)
	}

	h.StopAll()
	if len(r.log) != len(want) {
		t.Error("Second StopAll should not stop again")
	}
}

// TestHubRollback verifies a failed start stops what already started
func TestHubRollback(t *testing.T) {
	r := &recorder{}
	h := NewHub()
	h.Register(r.svc("engine", nil, false))
	h.Register(r.svc("midi", []string{"engine"}, true))

	if err := h.StartAll(context.Background()); err == nil {
		t.Fatal("Expected start failure")
	}
	want := []string{"start engine", "stop engine"}
	if !slices.Equal(r.log, want) {
		t.Errorf("log = %v, want %v", r.log, want)
	}
	if len(h.Started()) != 0 {
		t.Error("Nothing should remain started")
	}
}

// TestHubErrors verifies duplicate names, unknown dependencies and cycles are rejected
func TestHubErrors(t *testing.T) {
	r := &recorder{}

	h := NewHub()
	h.Register(r.svc("a", nil, false))
	if err := h.Register(r.svc("a", nil, false)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate err = %v", err)
	}

	h = NewHub()
	h.Register(r.svc("a", []string{"missing"}, false))
	if err := h.StartAll(context.Background()); !errors.Is(err, ErrUnknownDep) {
		t.Errorf("unknown dep err = %v", err)
	}

	h = NewHub()
	h.Register(r.svc("a", []string{"b"}, false))
	h.Register(r.svc("b", []string{"a"}, false))
	if err := h.StartAll(context.Background()); !errors.Is(err, ErrCycle) {
		t.Errorf("cycle err = %v", err)
	}
	if len(r.log) != 0 {
		t.Errorf("No service should start, got %v", r.log)
	}
}

// TestMustGet verifies typed lookup
func TestMustGet(t *testing.T) {
	h := NewHub()
	h.Register(&Func{ID: "x"})
	if got := MustGet[*Func](h, "x"); got.ID != "x" {
		t.Errorf("MustGet = %v", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for missing service")
		}
	}()
	MustGet[*Func](h, "y")
}
