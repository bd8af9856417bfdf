package domain

import (
	"fmt"
	"math"
	"slices"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371008.8

// RankBy selects the ordering of search results.
type RankBy string

const (
	RankByRelevance RankBy = "relevance" // provider order
	RankByDistance  RankBy = "distance"
)

// ParseRankBy validates a ranking preference.
func ParseRankBy(s string) (RankBy, error) {
	switch RankBy(s) {
	case RankByRelevance, RankByDistance:
		return RankBy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown rank preference %q", ErrInvalidConfig, s)
	}
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// RankPlaces returns a new slice with DistanceMeters filled in relative to
// origin. With RankByDistance the result is stable-sorted nearest first;
// otherwise provider order is kept. The input slice is not modified.
func RankPlaces(places []Place, origin Point, rankBy RankBy) []Place {
	ranked := make([]Place, len(places))
	for i, p := range places {
		p.DistanceMeters = math.Round(Distance(origin, p.Point))
		ranked[i] = p
	}
	if rankBy == RankByDistance {
		slices.SortStableFunc(ranked, func(a, b Place) int {
			switch {
			case a.DistanceMeters < b.DistanceMeters:
				return -1
			case a.DistanceMeters > b.DistanceMeters:
				return 1
			default:
				return 0
			}
		})
	}
	return ranked
}
