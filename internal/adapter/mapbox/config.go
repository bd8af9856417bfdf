package mapbox

import (
	"log/slog"

	"github.com/couchcryptid/lunch-locator-service/internal/config"
	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/couchcryptid/lunch-locator-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// FromConfig builds the cached place searcher. Without MAPBOX_TOKEN it
// returns Unconfigured and a nil geocoder. The geocoder is nil as well when
// REVERSE_GEOCODE is off.
func FromConfig(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (domain.PlaceSearcher, domain.ReverseGeocoder) {
	if cfg.MapboxToken == "" {
		logger.Warn("MAPBOX_TOKEN not set; searches will fail with INVALID_CONFIG")
		return Unconfigured{}, nil
	}

	client := NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.SearchLimit, cfg.SearchRatePerMinute, logger, metrics)
	searcher := NewCachedSearcher(client, cfg.SearchCacheSize, cfg.SearchCacheTTL, clockwork.NewRealClock(), metrics)
	logger.Info("mapbox search enabled",
		"cache_size", cfg.SearchCacheSize,
		"cache_ttl", cfg.SearchCacheTTL,
		"reverse_geocode", cfg.ReverseGeocode,
	)
	if !cfg.ReverseGeocode {
		return searcher, nil
	}
	return searcher, client
}
