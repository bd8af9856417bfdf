package domain

import (
	"context"
	"time"
)

// Point is a WGS-84 latitude/longitude coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LocationSnapshot is an immutable location fix.
type LocationSnapshot struct {
	Point          Point     `json:"point"`
	AccuracyMeters float64   `json:"accuracy_m"` // horizontal accuracy radius
	FixedAt        time.Time `json:"fixed_at"`
	Source         string    `json:"source,omitempty"` // "ip", "fixed", ...
	Label          string    `json:"label,omitempty"`  // reverse-geocoded place name
}

// Location sources recorded on snapshots.
const (
	SourceIP    = "ip"
	SourceFixed = "fixed"
)

// NewLocationSnapshot stamps a fix with the domain clock.
func NewLocationSnapshot(lat, lon, accuracyMeters float64, source string) LocationSnapshot {
	return LocationSnapshot{
		Point:          Point{Lat: lat, Lon: lon},
		AccuracyMeters: accuracyMeters,
		FixedAt:        clock.Now(),
		Source:         source,
	}
}

// LocationSource determines the caller's current location.
type LocationSource interface {
	// CurrentLocation returns nil with a nil error when no location is
	// available. Permission problems are reported with ErrLocationPermission.
	CurrentLocation(ctx context.Context) (*LocationSnapshot, error)
}

// ReverseGeocoder converts a point into a human-readable place name.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, p Point) (string, error)
}
