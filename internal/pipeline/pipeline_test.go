package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/couchcryptid/lunch-locator-service/internal/observability"
	"github.com/couchcryptid/lunch-locator-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockLoader struct {
	name string
	// failFor makes every delivery of a snapshot whose search query matches fail.
	failFor   domain.SearchQuery
	failFirst int
	delay     time.Duration

	mu       sync.Mutex
	attempts int
	loaded   []domain.Snapshot
}

func (m *mockLoader) Name() string { return m.name }

func (m *mockLoader) LoadSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failFirst {
		return errors.New("store unavailable")
	}
	if m.failFor != "" && query(snap.State) == m.failFor {
		return errors.New("rejected")
	}
	m.loaded = append(m.loaded, snap)
	return nil
}

func (m *mockLoader) snapshot() (attempts int, loaded []domain.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts, append([]domain.Snapshot(nil), m.loaded...)
}

func query(s domain.GeoState) domain.SearchQuery {
	if s.LunchPlaces == nil {
		return ""
	}
	return s.LunchPlaces.Arg
}

func stateFor(q domain.SearchQuery) domain.GeoState {
	return domain.GeoState{}.WithPlaces(domain.Pending[domain.SearchQuery, []domain.Place](q))
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// start runs p in the background and returns a func that stops it.
func start(t *testing.T, p *pipeline.Pipeline) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, func() bool { return p.CheckReadiness(ctx) == nil }, time.Second, time.Millisecond)

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		require.NoError(t, <-done)
	}
	t.Cleanup(stop)
	return stop
}

// --- tests ---

func TestPipeline_DeliversToEveryLoader(t *testing.T) {
	a := &mockLoader{name: "a"}
	b := &mockLoader{name: "b"}
	metrics := newTestMetrics()
	p := pipeline.New([]pipeline.SnapshotLoader{a, b}, slog.Default(), metrics)
	start(t, p)

	p.Offer(stateFor("tacos"))

	require.Eventually(t, func() bool {
		_, la := a.snapshot()
		_, lb := b.snapshot()
		return len(la) == 1 && len(lb) == 1
	}, time.Second, 5*time.Millisecond)

	_, la := a.snapshot()
	_, lb := b.snapshot()
	assert.Equal(t, la[0].ID, lb[0].ID, "loaders receive the same snapshot")
	assert.Equal(t, domain.SnapshotVersion, la[0].Version)
	assert.Equal(t, domain.SearchQuery("tacos"), query(la[0].State))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SnapshotLoads.WithLabelValues("a", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_LatestWins(t *testing.T) {
	slow := &mockLoader{name: "slow", delay: 50 * time.Millisecond}
	p := pipeline.New([]pipeline.SnapshotLoader{slow}, slog.Default(), newTestMetrics())
	start(t, p)

	for _, q := range []domain.SearchQuery{"a", "b", "c", "d", "e"} {
		p.Offer(stateFor(q))
	}

	require.Eventually(t, func() bool {
		_, loaded := slow.snapshot()
		return len(loaded) > 0 && query(loaded[len(loaded)-1].State) == "e"
	}, 2*time.Second, 5*time.Millisecond)

	_, loaded := slow.snapshot()
	assert.Less(t, len(loaded), 5, "intermediate states collapse")
}

func TestPipeline_RetriesWithBackoff(t *testing.T) {
	flaky := &mockLoader{name: "flaky", failFirst: 2}
	metrics := newTestMetrics()
	p := pipeline.New([]pipeline.SnapshotLoader{flaky}, slog.Default(), metrics)
	start(t, p)

	p.Offer(stateFor("ramen"))

	require.Eventually(t, func() bool {
		_, loaded := flaky.snapshot()
		return len(loaded) == 1
	}, 3*time.Second, 10*time.Millisecond)

	attempts, _ := flaky.snapshot()
	assert.Equal(t, 3, attempts)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SnapshotLoads.WithLabelValues("flaky", "error")), 0)
}

func TestPipeline_NewerStateAbandonsRetry(t *testing.T) {
	ldr := &mockLoader{name: "picky", failFor: "bad"}
	p := pipeline.New([]pipeline.SnapshotLoader{ldr}, slog.Default(), newTestMetrics())
	start(t, p)

	p.Offer(stateFor("bad"))
	require.Eventually(t, func() bool {
		attempts, _ := ldr.snapshot()
		return attempts >= 1
	}, time.Second, time.Millisecond)

	p.Offer(stateFor("good"))

	require.Eventually(t, func() bool {
		_, loaded := ldr.snapshot()
		return len(loaded) == 1
	}, time.Second, 5*time.Millisecond)

	attempts, loaded := ldr.snapshot()
	assert.Equal(t, domain.SearchQuery("good"), query(loaded[0].State))
	assert.LessOrEqual(t, attempts, 3)
}

func TestPipeline_StopsOnCancel(t *testing.T) {
	failing := &mockLoader{name: "down", failFirst: 1_000}
	metrics := newTestMetrics()
	p := pipeline.New([]pipeline.SnapshotLoader{failing}, slog.Default(), metrics)
	stop := start(t, p)

	p.Offer(stateFor("pho"))
	require.Eventually(t, func() bool {
		attempts, _ := failing.snapshot()
		return attempts >= 1
	}, time.Second, time.Millisecond)

	stop()
	require.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_FlushesLatestStateOnStop(t *testing.T) {
	slow := &mockLoader{name: "slow", delay: 50 * time.Millisecond}
	p := pipeline.New([]pipeline.SnapshotLoader{slow}, slog.Default(), newTestMetrics())
	stop := start(t, p)

	p.Offer(stateFor("first"))
	p.Offer(stateFor("last"))
	stop()

	_, loaded := slow.snapshot()
	require.NotEmpty(t, loaded, "the newest state is delivered before Run returns")
	assert.Equal(t, domain.SearchQuery("last"), query(loaded[len(loaded)-1].State))
}

func TestPipeline_InterruptedExportIsFlushed(t *testing.T) {
	slow := &mockLoader{name: "slow", delay: 100 * time.Millisecond}
	p := pipeline.New([]pipeline.SnapshotLoader{slow}, slog.Default(), newTestMetrics())
	stop := start(t, p)

	p.Offer(stateFor("tacos"))
	// Let Run pick the state up so the cancel lands mid-delivery.
	time.Sleep(20 * time.Millisecond)
	stop()

	_, loaded := slow.snapshot()
	require.Len(t, loaded, 1)
	assert.Equal(t, domain.SearchQuery("tacos"), query(loaded[0].State))
}

func TestPipeline_NotReadyBeforeRun(t *testing.T) {
	p := pipeline.New(nil, slog.Default(), newTestMetrics())
	require.Error(t, p.CheckReadiness(context.Background()))

	// Offer never blocks, even with nobody draining.
	for range 10 {
		p.Offer(domain.GeoState{})
	}
}
