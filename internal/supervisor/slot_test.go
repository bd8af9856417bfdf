package supervisor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/observability"
	"github.com/couchcryptid/lunch-locator-service/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- helpers ---

type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) handle(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errorRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func waitIdle(t *testing.T, s *supervisor.Slot) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func blockUntilCancelled(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// --- tests ---

func TestSlot_AtMostOneOccupant(t *testing.T) {
	s := supervisor.New(context.Background(), "test")

	var running, maxRunning atomic.Int32
	var last atomic.Int32
	for i := range 50 {
		s.Launch(func(ctx context.Context) error {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			last.Store(int32(i))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
				return nil
			}
		})
	}

	waitIdle(t, s)
	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Equal(t, int32(49), last.Load(), "the newest unit always runs")
	assert.False(t, s.Active())
}

func TestSlot_CleanupCompletesBeforeReplacementStarts(t *testing.T) {
	s := supervisor.New(context.Background(), "test")

	var lock sync.Mutex
	started := make(chan struct{})
	s.Launch(func(ctx context.Context) error {
		lock.Lock()
		defer func() {
			time.Sleep(20 * time.Millisecond)
			lock.Unlock()
		}()
		close(started)
		return blockUntilCancelled(ctx)
	})
	<-started

	observed := make(chan bool, 1)
	s.Launch(func(context.Context) error {
		ok := lock.TryLock()
		if ok {
			lock.Unlock()
		}
		observed <- ok
		return nil
	})

	waitIdle(t, s)
	assert.True(t, <-observed, "replacement must see the predecessor's lock released")
}

func TestSlot_ReplacedBeforeStartNeverRuns(t *testing.T) {
	s := supervisor.New(context.Background(), "test")

	started := make(chan struct{})
	s.Launch(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return ctx.Err()
	})
	<-started

	var ranB, ranC atomic.Bool
	s.Launch(func(context.Context) error { ranB.Store(true); return nil })
	s.Launch(func(context.Context) error { ranC.Store(true); return nil })

	waitIdle(t, s)
	assert.False(t, ranB.Load())
	assert.True(t, ranC.Load())
}

func TestSlot_ReportsFailuresButNotCancellation(t *testing.T) {
	rec := &errorRecorder{}
	s := supervisor.New(context.Background(), "places", supervisor.WithErrorHandler(rec.handle))

	started := make(chan struct{})
	s.Launch(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return fmt.Errorf("search aborted: %w", ctx.Err())
	})
	<-started
	s.Launch(func(context.Context) error { return errors.New("boom") })

	waitIdle(t, s)
	errs := rec.all()
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "boom")
}

func TestSlot_ParentCancellationStopsWork(t *testing.T) {
	rec := &errorRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	s := supervisor.New(ctx, "test", supervisor.WithErrorHandler(rec.handle))

	started := make(chan struct{})
	s.Launch(func(ctx context.Context) error {
		close(started)
		return blockUntilCancelled(ctx)
	})
	<-started
	cancel()

	waitIdle(t, s)
	assert.False(t, s.Active())
	assert.Empty(t, rec.all())

	// Work launched after teardown never runs.
	var ran atomic.Bool
	s.Launch(func(context.Context) error { ran.Store(true); return nil })
	waitIdle(t, s)
	assert.False(t, ran.Load())
}

func TestSlot_ClearedAfterCompletion(t *testing.T) {
	s := supervisor.New(context.Background(), "test")

	done := make(chan struct{})
	s.Launch(func(context.Context) error {
		<-done
		return nil
	})
	assert.True(t, s.Active())

	close(done)
	waitIdle(t, s)
	assert.False(t, s.Active())

	var ran atomic.Bool
	s.Launch(func(context.Context) error { ran.Store(true); return nil })
	waitIdle(t, s)
	assert.True(t, ran.Load())
}

func TestSlot_Cancel(t *testing.T) {
	s := supervisor.New(context.Background(), "test")

	started := make(chan struct{})
	s.Launch(func(ctx context.Context) error {
		close(started)
		return blockUntilCancelled(ctx)
	})
	<-started

	s.Cancel()
	waitIdle(t, s)
	assert.False(t, s.Active())

	s.Cancel() // no occupant, no-op
}

func TestSlot_WaitRespectsContext(t *testing.T) {
	s := supervisor.New(context.Background(), "test")

	release := make(chan struct{})
	s.Launch(func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)

	close(release)
	waitIdle(t, s)
}

func TestSlot_Metrics(t *testing.T) {
	m := observability.NewMetricsForTesting()
	s := supervisor.New(context.Background(), "location", supervisor.WithMetrics(m))

	started := make(chan struct{})
	s.Launch(func(ctx context.Context) error {
		close(started)
		return blockUntilCancelled(ctx)
	})
	<-started
	s.Launch(func(context.Context) error { return errors.New("boom") })
	waitIdle(t, s)

	assert.InDelta(t, 2, testutil.ToFloat64(m.SlotLaunches.WithLabelValues("location")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SlotReplacements.WithLabelValues("location")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SlotErrors.WithLabelValues("location")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.SlotActive.WithLabelValues("location")), 0)
}
