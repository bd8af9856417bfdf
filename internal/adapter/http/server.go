package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GeoService is the orchestrator surface exposed over HTTP.
type GeoService interface {
	State() domain.GeoState
	Subscribe(fn func(domain.GeoState)) (unsubscribe func())
	DetermineCurrentLocation()
	SearchLunchPlaces(query domain.SearchQuery)
	RefreshLunchPlaces()
	DiscardLunchPlaces()
}

// Server exposes the geo API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        GeoService
	logger     *slog.Logger

	// keepAlive is the interval between SSE comment lines on idle streams.
	keepAlive time.Duration

	// closing is closed when Shutdown starts; open streams end on it.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates an HTTP server. Command routes allow apiRateLimit
// requests per minute per client IP; zero disables the limit.
func NewServer(addr string, svc GeoService, ready sharedobs.ReadinessChecker, apiRateLimit int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:       svc,
		logger:    logger,
		keepAlive: 15 * time.Second,
		closing:   make(chan struct{}),
	}
	// Shutdown does not cancel request contexts, so long-lived streams need
	// their own signal to let the server drain.
	s.httpServer.RegisterOnShutdown(func() {
		s.closeOnce.Do(func() { close(s.closing) })
	})

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/state/stream", s.handleStream)

	limit := commandLimiter(apiRateLimit)
	mux.Handle("POST /api/location", limit(http.HandlerFunc(s.handleLocate)))
	mux.Handle("POST /api/places/search", limit(http.HandlerFunc(s.handleSearch)))
	mux.Handle("POST /api/places/refresh", limit(http.HandlerFunc(s.handleRefresh)))
	mux.Handle("DELETE /api/places", limit(http.HandlerFunc(s.handleDiscard)))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. Returns http.ErrServerClosed on graceful
// shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server starting", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully drains connections within the given context deadline.
// Open event streams are ended first.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func commandLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Minute.Seconds())))
			sharedobs.WriteJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		}),
	)
}
