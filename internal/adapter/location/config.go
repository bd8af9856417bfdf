package location

import (
	"log/slog"

	"github.com/couchcryptid/lunch-locator-service/internal/config"
	"github.com/couchcryptid/lunch-locator-service/internal/domain"
)

// FromConfig builds the location source selected by LOCATION_MODE. When
// geocoder is non-nil fixes are labeled with a place name.
func FromConfig(cfg *config.Config, geocoder domain.ReverseGeocoder, logger *slog.Logger) domain.LocationSource {
	var src domain.LocationSource
	switch cfg.LocationMode {
	case config.LocationModeFixed:
		logger.Info("using fixed location", "lat", cfg.LocationLat, "lon", cfg.LocationLon)
		src = Fixed{Lat: cfg.LocationLat, Lon: cfg.LocationLon, AccuracyMeters: cfg.LocationAccuracy}
	case config.LocationModeDenied:
		logger.Info("location access denied by configuration")
		return Denied{}
	default:
		logger.Info("using IP geolocation", "url", cfg.IPAPIURL)
		src = NewIPAPI(cfg.IPAPIURL, cfg.IPAPITimeout, logger)
	}
	if geocoder != nil {
		src = NewLabeled(src, geocoder, logger)
	}
	return src
}
