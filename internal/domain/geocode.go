package domain

import (
	"context"
	"log/slog"
)

// LabelLocation attempts to attach a reverse-geocoded place name to a fix.
// If geocoder is nil or geocoding fails, the fix is returned unchanged
// (graceful degradation). Cancellation is not treated as a failure and is
// returned so the caller can unwind.
func LabelLocation(ctx context.Context, loc LocationSnapshot, geocoder ReverseGeocoder, logger *slog.Logger) (LocationSnapshot, error) {
	if geocoder == nil || loc.Label != "" {
		return loc, nil
	}

	label, err := geocoder.ReverseGeocode(ctx, loc.Point)
	if err != nil {
		if ctx.Err() != nil {
			return loc, ctx.Err()
		}
		logger.Warn("reverse geocoding failed",
			"lat", loc.Point.Lat,
			"lon", loc.Point.Lon,
			"error", err,
		)
		return loc, nil
	}
	loc.Label = label
	return loc, nil
}
