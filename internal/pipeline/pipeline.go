// Package pipeline exports GeoState changes to snapshot stores and feeds.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/couchcryptid/lunch-locator-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// flushTimeout bounds the final delivery attempt made when Run stops.
	flushTimeout = 2 * time.Second
)

// SnapshotLoader persists or publishes one snapshot.
type SnapshotLoader interface {
	Name() string
	LoadSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// Pipeline delivers the latest GeoState to every loader. States offered while
// a delivery is in progress collapse into the newest one.
type Pipeline struct {
	loaders []SnapshotLoader
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu     sync.Mutex
	latest *domain.GeoState
	notify chan struct{}
}

// New creates a Pipeline delivering to loaders.
func New(loaders []SnapshotLoader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		loaders: loaders,
		logger:  logger,
		metrics: metrics,
		notify:  make(chan struct{}, 1),
	}
}

// Offer queues state for export, replacing any state not yet picked up. It
// never blocks, so it is safe to use as a state observer.
func (p *Pipeline) Offer(state domain.GeoState) {
	p.mu.Lock()
	p.latest = &state
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pipeline) take() (domain.GeoState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return domain.GeoState{}, false
	}
	state := *p.latest
	p.latest = nil
	return state, true
}

// CheckReadiness returns nil while Run is active.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("snapshot pipeline is not running")
	}
	return nil
}

// Run delivers offered states until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	names := make([]string, len(p.loaders))
	for i, l := range p.loaders {
		names[i] = l.Name()
	}
	p.logger.Info("snapshot pipeline started", "loaders", names)
	p.metrics.PipelineRunning.Set(1)
	p.ready.Store(true)
	defer func() {
		p.ready.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("snapshot pipeline stopping", "reason", ctx.Err())
			p.flush(ctx)
			return nil
		case <-p.notify:
		}

		for state, ok := p.take(); ok; state, ok = p.take() {
			if !p.export(ctx, state) && ctx.Err() != nil {
				p.requeue(state)
				break
			}
		}
	}
}

// export reports whether every loader accepted the state.
func (p *Pipeline) export(ctx context.Context, state domain.GeoState) bool {
	snap := domain.NewSnapshot(state)
	for _, l := range p.loaders {
		if !p.deliver(ctx, l, snap) {
			return false
		}
	}
	return true
}

// requeue puts back a state whose export was interrupted, unless a newer one
// has been offered since.
func (p *Pipeline) requeue(state domain.GeoState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		p.latest = &state
	}
}

// flush makes one delivery attempt per loader for the newest undelivered
// state, so a result that lands just before shutdown is still persisted.
func (p *Pipeline) flush(parent context.Context) {
	state, ok := p.take()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), flushTimeout)
	defer cancel()

	snap := domain.NewSnapshot(state)
	for _, l := range p.loaders {
		if err := l.LoadSnapshot(ctx, snap); err != nil {
			p.metrics.SnapshotLoads.WithLabelValues(l.Name(), "error").Inc()
			p.logger.Warn("final snapshot load failed", "loader", l.Name(), "snapshot_id", snap.ID, "error", err)
			continue
		}
		p.metrics.SnapshotLoads.WithLabelValues(l.Name(), "success").Inc()
	}
	p.logger.Info("flushed final snapshot", "snapshot_id", snap.ID)
}

// deliver retries one loader with exponential backoff. It returns false when
// the context ends or a newer state arrives, abandoning snap.
func (p *Pipeline) deliver(ctx context.Context, l SnapshotLoader, snap domain.Snapshot) bool {
	backoff := initialBackoff
	for {
		err := l.LoadSnapshot(ctx, snap)
		if err == nil {
			p.metrics.SnapshotLoads.WithLabelValues(l.Name(), "success").Inc()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.metrics.SnapshotLoads.WithLabelValues(l.Name(), "error").Inc()
		p.logger.Error("snapshot load failed",
			"loader", l.Name(),
			"snapshot_id", snap.ID,
			"retry_in", backoff,
			"error", err,
		)

		if !p.waitRetry(ctx, backoff) {
			return false
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// waitRetry sleeps for d. It returns false early if ctx ends or a newer state
// is offered; Run picks the newer state up from take.
func (p *Pipeline) waitRetry(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-p.notify:
		p.logger.Debug("abandoning snapshot retry for newer state")
		return false
	case <-timer.C:
		return true
	}
}
