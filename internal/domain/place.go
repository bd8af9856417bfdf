package domain

import (
	"context"
	"strings"
)

// SearchQuery is a free-text place search, e.g. "sushi".
type SearchQuery string

// MaxQueryLength bounds accepted search queries.
const MaxQueryLength = 200

// NormalizeQuery trims surrounding whitespace and collapses inner runs of spaces.
func NormalizeQuery(q string) SearchQuery {
	return SearchQuery(strings.Join(strings.Fields(q), " "))
}

// Place is a single search result.
type Place struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address,omitempty"`
	Point          Point    `json:"point"`
	Categories     []string `json:"categories,omitempty"`
	Relevance      float64  `json:"relevance,omitempty"` // 0.0–1.0 provider score
	DistanceMeters float64  `json:"distance_m"`
}

// PlaceSearcher finds places matching a query around an origin.
type PlaceSearcher interface {
	SearchPlaces(ctx context.Context, query SearchQuery, origin Point) ([]Place, error)
}
