package location

import (
	"context"
	"fmt"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
)

// Fixed always reports the same configured coordinates.
type Fixed struct {
	Lat, Lon       float64
	AccuracyMeters float64
}

// CurrentLocation implements domain.LocationSource.
func (f Fixed) CurrentLocation(ctx context.Context) (*domain.LocationSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := domain.NewLocationSnapshot(f.Lat, f.Lon, f.AccuracyMeters, domain.SourceFixed)
	return &snap, nil
}

// Denied models a device whose location access has been revoked.
type Denied struct{}

// CurrentLocation implements domain.LocationSource.
func (Denied) CurrentLocation(context.Context) (*domain.LocationSnapshot, error) {
	return nil, fmt.Errorf("location access revoked: %w", domain.ErrLocationPermission)
}
