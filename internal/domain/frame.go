package domain

import "math"

// metersPerDegreeLat is the approximate length of one degree of latitude.
const metersPerDegreeLat = 111320.0

// Bounds is an axis-aligned lat/lon box used to frame a map view.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Point {
	return Point{Lat: (b.South + b.North) / 2, Lon: (b.West + b.East) / 2}
}

// FrameFor returns the smallest box containing the accuracy circle of loc and
// every place. Boxes crossing the antimeridian are not handled.
func FrameFor(loc LocationSnapshot, places []Place) Bounds {
	dLat := loc.AccuracyMeters / metersPerDegreeLat
	dLon := 0.0
	if c := math.Cos(loc.Point.Lat * math.Pi / 180); c > 1e-9 {
		dLon = loc.AccuracyMeters / (metersPerDegreeLat * c)
	}

	b := Bounds{
		South: loc.Point.Lat - dLat,
		North: loc.Point.Lat + dLat,
		West:  loc.Point.Lon - dLon,
		East:  loc.Point.Lon + dLon,
	}
	for _, p := range places {
		b.South = math.Min(b.South, p.Point.Lat)
		b.North = math.Max(b.North, p.Point.Lat)
		b.West = math.Min(b.West, p.Point.Lon)
		b.East = math.Max(b.East, p.Point.Lon)
	}
	b.South = math.Max(b.South, -90)
	b.North = math.Min(b.North, 90)
	return b
}

// FrameState frames a GeoState. It returns false until a location is known.
func FrameState(s GeoState) (Bounds, bool) {
	if s.CurrentLocation == nil || s.CurrentLocation.Phase != PhaseSuccess {
		return Bounds{}, false
	}
	var places []Place
	if s.LunchPlaces != nil && s.LunchPlaces.Phase == PhaseSuccess {
		places = s.LunchPlaces.Result
	}
	return FrameFor(s.CurrentLocation.Result, places), true
}
