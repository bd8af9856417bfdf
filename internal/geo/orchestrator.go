// Package geo drives the "where am I" and "what's for lunch nearby" requests
// and owns the GeoState they produce.
//
// Each request kind runs in its own supervisor slot, so a newer request always
// replaces an older one of the same kind. A search first resolves the current
// location through the location slot and waits for it to settle:
//
//	SearchLunchPlaces(q) ─► places: Pending(q)
//	                    └─► DetermineCurrentLocation ─► location: Pending ─► Success | Failure
//	                    ─► places: Success(q, ranked) | Failure(q, kind)
//
// State changes are published in order through Subscribe.
package geo

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/couchcryptid/lunch-locator-service/internal/observability"
	"github.com/couchcryptid/lunch-locator-service/internal/supervisor"
)

const (
	fieldLocation = "location"
	fieldPlaces   = "places"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger. It is shared with both slots.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records status transitions and collaborator latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRankBy sets how search results are ordered. Defaults to distance.
func WithRankBy(r domain.RankBy) Option {
	return func(o *Orchestrator) { o.rankBy = r }
}

// WithInitialState seeds the state, typically from a restored snapshot.
// Requests that were still pending are issued again by New.
func WithInitialState(s domain.GeoState) Option {
	return func(o *Orchestrator) { o.initial = s }
}

// Orchestrator sequences location and place search requests.
type Orchestrator struct {
	locator  domain.LocationSource
	searcher domain.PlaceSearcher
	rankBy   domain.RankBy
	logger   *slog.Logger
	metrics  *observability.Metrics
	initial  domain.GeoState

	state    *store[domain.GeoState]
	location *supervisor.Slot
	places   *supervisor.Slot

	// launchMu orders generation bumps with their launches so slot order
	// always matches generation order.
	launchMu sync.Mutex

	// Guarded by the state store lock; only touched inside Update.
	locationGen uint64
	placesGen   uint64
}

// New creates an orchestrator whose work is bound to ctx.
func New(ctx context.Context, locator domain.LocationSource, searcher domain.PlaceSearcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		locator:  locator,
		searcher: searcher,
		rankBy:   domain.RankByDistance,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.state = newStore(o.initial)
	slotOpts := []supervisor.Option{supervisor.WithLogger(o.logger)}
	if o.metrics != nil {
		slotOpts = append(slotOpts, supervisor.WithMetrics(o.metrics))
	}
	o.location = supervisor.New(ctx, fieldLocation, slotOpts...)
	o.places = supervisor.New(ctx, fieldPlaces, slotOpts...)

	o.resume()
	return o
}

func (o *Orchestrator) resume() {
	if o.initial.CurrentLocation.IsPending() {
		o.logger.Info("resuming pending location request")
		o.DetermineCurrentLocation()
	}
	if o.initial.LunchPlaces.IsPending() {
		o.logger.Info("resuming pending search", "query", o.initial.LunchPlaces.Arg)
		o.SearchLunchPlaces(o.initial.LunchPlaces.Arg)
	}
}

// State returns the current state.
func (o *Orchestrator) State() domain.GeoState {
	return o.state.Get()
}

// Subscribe delivers the current state to fn, then every later state in
// order. fn runs synchronously with the change and must not block or call
// back into the orchestrator's commands.
func (o *Orchestrator) Subscribe(fn func(domain.GeoState)) (unsubscribe func()) {
	return o.state.Subscribe(fn)
}

// Wait blocks until no request is running or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	// A search may start a location request, never the other way around.
	if err := o.places.Wait(ctx); err != nil {
		return err
	}
	return o.location.Wait(ctx)
}

// DetermineCurrentLocation replaces any running location request with a new
// one. The location status is Pending when the call returns.
func (o *Orchestrator) DetermineCurrentLocation() {
	o.launchMu.Lock()
	defer o.launchMu.Unlock()

	var gen uint64
	o.state.Update(func(s domain.GeoState) (domain.GeoState, bool) {
		o.locationGen++
		gen = o.locationGen
		return s.WithLocation(domain.Pending[domain.Unit, domain.LocationSnapshot](domain.Unit{})), true
	})
	o.observeTransition(fieldLocation, domain.PhasePending, "")

	o.location.Launch(func(ctx context.Context) error {
		return o.locate(ctx, gen)
	})
}

// SearchLunchPlaces replaces any running search with one for query. The
// places status is Pending(query) when the call returns.
func (o *Orchestrator) SearchLunchPlaces(query domain.SearchQuery) {
	o.launchMu.Lock()
	defer o.launchMu.Unlock()

	var gen uint64
	o.state.Update(func(s domain.GeoState) (domain.GeoState, bool) {
		o.placesGen++
		gen = o.placesGen
		return s.WithPlaces(domain.Pending[domain.SearchQuery, []domain.Place](query)), true
	})
	o.observeTransition(fieldPlaces, domain.PhasePending, "")

	o.places.Launch(func(ctx context.Context) error {
		return o.search(ctx, gen, query)
	})
}

// RefreshLunchPlaces repeats the last search. It does nothing when no search
// was issued or the last one was discarded.
func (o *Orchestrator) RefreshLunchPlaces() {
	places := o.state.Get().LunchPlaces
	if places == nil {
		return
	}
	o.SearchLunchPlaces(places.Arg)
}

// DiscardLunchPlaces clears the places status and cancels any running search.
func (o *Orchestrator) DiscardLunchPlaces() {
	o.launchMu.Lock()
	defer o.launchMu.Unlock()

	o.state.Update(func(s domain.GeoState) (domain.GeoState, bool) {
		o.placesGen++
		if s.LunchPlaces == nil {
			return s, false
		}
		return s.WithPlaces(nil), true
	})
	o.places.Launch(func(context.Context) error { return nil })
}

func (o *Orchestrator) locate(ctx context.Context, gen uint64) error {
	start := time.Now()
	snap, err := o.locator.CurrentLocation(ctx)
	o.observeLatency(fieldLocation, start)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var st *domain.LocationStatus
	switch {
	case err != nil:
		kind := domain.ClassifyError(err)
		o.logFailure(fieldLocation, kind, err)
		st = domain.Failed[domain.Unit, domain.LocationSnapshot](domain.Unit{}, kind)
	case snap == nil:
		st = domain.Failed[domain.Unit, domain.LocationSnapshot](domain.Unit{}, domain.KindLocationServices)
	default:
		st = domain.Succeeded(domain.Unit{}, *snap)
	}

	o.commit(fieldLocation, st.Phase, st.Kind, func(s domain.GeoState) (domain.GeoState, bool) {
		if gen != o.locationGen {
			return s, false
		}
		return s.WithLocation(st), true
	})
	return nil
}

func (o *Orchestrator) search(ctx context.Context, gen uint64, query domain.SearchQuery) error {
	o.DetermineCurrentLocation()
	loc, err := o.awaitLocation(ctx)
	if err != nil {
		return err
	}

	var st *domain.PlacesStatus
	if loc.Phase == domain.PhaseFailure {
		st = domain.Failed[domain.SearchQuery, []domain.Place](query, loc.Kind)
	} else {
		origin := loc.Result.Point
		start := time.Now()
		places, err := o.searcher.SearchPlaces(ctx, query, origin)
		o.observeLatency("search", start)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			kind := domain.ClassifyError(err)
			o.logFailure(fieldPlaces, kind, err)
			st = domain.Failed[domain.SearchQuery, []domain.Place](query, kind)
		} else {
			st = domain.Succeeded(query, domain.RankPlaces(places, origin, o.rankBy))
		}
	}

	o.commit(fieldPlaces, st.Phase, st.Kind, func(s domain.GeoState) (domain.GeoState, bool) {
		if gen != o.placesGen {
			return s, false
		}
		return s.WithPlaces(st), true
	})
	return nil
}

// awaitLocation waits until the location status is terminal.
func (o *Orchestrator) awaitLocation(ctx context.Context) (*domain.LocationStatus, error) {
	// Latest value wins; only the newest location status matters.
	updates := make(chan *domain.LocationStatus, 1)
	unsubscribe := o.state.Subscribe(func(s domain.GeoState) {
		select {
		case <-updates:
		default:
		}
		updates <- s.CurrentLocation
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case st := <-updates:
			if st.IsTerminal() {
				return st, nil
			}
		}
	}
}

func (o *Orchestrator) commit(field string, phase domain.Phase, kind domain.ErrorKind, fn func(domain.GeoState) (domain.GeoState, bool)) {
	if _, ok := o.state.Update(fn); !ok {
		o.logger.Debug("dropped stale result", "field", field, "phase", phase)
		return
	}
	o.observeTransition(field, phase, kind)
}

func (o *Orchestrator) logFailure(field string, kind domain.ErrorKind, err error) {
	if kind == domain.KindUnknown {
		o.logger.Warn("unrecognized collaborator error", "field", field, "error", err)
		return
	}
	o.logger.Info("request failed", "field", field, "kind", kind, "error", err)
}

func (o *Orchestrator) observeTransition(field string, phase domain.Phase, kind domain.ErrorKind) {
	if o.metrics == nil {
		return
	}
	o.metrics.StatusTransitions.WithLabelValues(field, string(phase)).Inc()
	if phase == domain.PhaseFailure {
		o.metrics.FailureKinds.WithLabelValues(field, string(kind)).Inc()
	}
}

func (o *Orchestrator) observeLatency(collaborator string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.CollaboratorLatency.WithLabelValues(collaborator).Observe(time.Since(start).Seconds())
}
