// Package supervisor runs replaceable units of work.
//
// A Slot holds at most one unit of work at a time. Launching a new unit
// cancels the current occupant and starts the new one only after the old one
// has fully returned, deferred cleanup included:
//
//	Launch(A) ─► A running
//	Launch(B) ─► A cancelled ─► A returns ─► B running
//
// Units observe cancellation through their context; the slot never abandons
// a unit that ignores it.
package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/lunch-locator-service/internal/observability"
)

// Work is a unit of work. It must return promptly once ctx is cancelled.
type Work func(ctx context.Context) error

// ErrorHandler receives errors returned by a unit of work that was not
// cancelled. It runs on the unit's goroutine.
type ErrorHandler func(slot string, err error)

// Option configures a Slot.
type Option func(*Slot)

// WithErrorHandler overrides the default handler, which logs at error level.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Slot) { s.onError = h }
}

// WithLogger sets the slot logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Slot) { s.logger = l }
}

// WithMetrics records launches, replacements and errors.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Slot) { s.metrics = m }
}

// Slot serializes units of work into a single logical slot.
type Slot struct {
	name    string
	parent  context.Context
	onError ErrorHandler
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	current *occupant
}

type occupant struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a slot bound to ctx. Cancelling ctx cancels every unit.
func New(ctx context.Context, name string, opts ...Option) *Slot {
	s := &Slot{
		name:   name,
		parent: ctx,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onError == nil {
		s.onError = func(slot string, err error) {
			s.logger.Error("slot work failed", "slot", slot, "error", err)
		}
	}
	return s
}

// Name returns the slot name.
func (s *Slot) Name() string { return s.name }

// Launch submits work and returns immediately. Any current occupant is
// cancelled before Launch returns; work starts once that occupant (and every
// earlier one) has returned. Work replaced before it started never runs.
func (s *Slot) Launch(work Work) {
	ctx, cancel := context.WithCancel(s.parent)
	occ := &occupant{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.current
	s.current = occ
	if prev != nil {
		prev.cancel()
	}
	s.observeLaunch(prev != nil)
	s.mu.Unlock()

	go s.run(ctx, occ, prev, work)
}

func (s *Slot) run(ctx context.Context, occ, prev *occupant, work Work) {
	// Cleanup runs on every exit path, panics included.
	defer close(occ.done)
	defer s.release(occ)

	if prev != nil {
		<-prev.done
	}
	if ctx.Err() != nil {
		return
	}
	s.report(ctx, work(ctx))
}

// release clears the slot if occ still holds it.
func (s *Slot) release(occ *occupant) {
	occ.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == occ {
		s.current = nil
		if s.metrics != nil {
			s.metrics.SlotActive.WithLabelValues(s.name).Set(0)
		}
	}
}

// observeLaunch must be called with s.mu held.
func (s *Slot) observeLaunch(replaced bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.SlotLaunches.WithLabelValues(s.name).Inc()
	s.metrics.SlotActive.WithLabelValues(s.name).Set(1)
	if replaced {
		s.metrics.SlotReplacements.WithLabelValues(s.name).Inc()
	}
}

func (s *Slot) report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		s.logger.Debug("slot work cancelled", "slot", s.name)
		return
	}
	if s.metrics != nil {
		s.metrics.SlotErrors.WithLabelValues(s.name).Inc()
	}
	s.onError(s.name, err)
}

// Cancel cancels the current occupant, if any, without replacing it.
func (s *Slot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
	}
}

// Active reports whether the slot currently has an occupant.
func (s *Slot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Wait blocks until the slot has no occupant or ctx is done.
func (s *Slot) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		occ := s.current
		s.mu.Unlock()
		if occ == nil {
			return nil
		}
		select {
		case <-occ.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
