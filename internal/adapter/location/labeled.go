package location

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
)

// Labeled decorates a LocationSource with a reverse-geocoded label. Fixes that
// already carry a label are passed through, and geocoding failures leave the
// fix unlabeled.
type Labeled struct {
	inner    domain.LocationSource
	geocoder domain.ReverseGeocoder
	logger   *slog.Logger
}

// NewLabeled wraps inner. A nil geocoder disables labeling.
func NewLabeled(inner domain.LocationSource, geocoder domain.ReverseGeocoder, logger *slog.Logger) *Labeled {
	return &Labeled{inner: inner, geocoder: geocoder, logger: logger}
}

// CurrentLocation implements domain.LocationSource.
func (l *Labeled) CurrentLocation(ctx context.Context) (*domain.LocationSnapshot, error) {
	snap, err := l.inner.CurrentLocation(ctx)
	if err != nil || snap == nil {
		return snap, err
	}
	labeled, err := domain.LabelLocation(ctx, *snap, l.geocoder, l.logger)
	if err != nil {
		return nil, err
	}
	return &labeled, nil
}
