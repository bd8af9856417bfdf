package domain

import "time"

type (
	LocationStatus = Status[Unit, LocationSnapshot]
	PlacesStatus   = Status[SearchQuery, []Place]
)

// GeoState is the observable snapshot owned by the geo orchestrator.
// A nil CurrentLocation means a location was never requested; a nil
// LunchPlaces means no search was issued or the last one was discarded.
type GeoState struct {
	CurrentLocation *LocationStatus `json:"current_location,omitempty"`
	LunchPlaces     *PlacesStatus   `json:"lunch_places,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// WithLocation returns a copy of s with the location status replaced.
func (s GeoState) WithLocation(st *LocationStatus) GeoState {
	s.CurrentLocation = st
	s.UpdatedAt = clock.Now()
	return s
}

// WithPlaces returns a copy of s with the places status replaced.
func (s GeoState) WithPlaces(st *PlacesStatus) GeoState {
	s.LunchPlaces = st
	s.UpdatedAt = clock.Now()
	return s
}
