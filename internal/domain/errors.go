package domain

import "errors"

// ErrorKind classifies a terminal failure. It is the only failure detail that
// reaches GeoState; raw collaborator errors never do.
type ErrorKind string

const (
	KindInvalidConfig       ErrorKind = "INVALID_CONFIG"
	KindLocationServices    ErrorKind = "LOCATION_SERVICES"
	KindLocationPermissions ErrorKind = "LOCATION_PERMISSIONS"
	KindCurrentLocation     ErrorKind = "CURRENT_LOCATION"
	KindInternetConnection  ErrorKind = "INTERNET_CONNECTION"
	KindQueryLimit          ErrorKind = "QUERY_LIMIT"
	KindUnknown             ErrorKind = "UNKNOWN"
)

// Sentinel errors returned (usually wrapped) by collaborators.
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrLocationServices   = errors.New("location services unavailable")
	ErrLocationPermission = errors.New("location permission denied")
	ErrCurrentLocation    = errors.New("current location unobtainable")
	ErrInternetConnection = errors.New("internet connection failure")
	ErrQueryLimit         = errors.New("query limit exceeded")
)

var kindBySentinel = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidConfig, KindInvalidConfig},
	{ErrLocationServices, KindLocationServices},
	{ErrLocationPermission, KindLocationPermissions},
	{ErrCurrentLocation, KindCurrentLocation},
	{ErrInternetConnection, KindInternetConnection},
	{ErrQueryLimit, KindQueryLimit},
}

// ClassifyError maps a collaborator error onto an ErrorKind. Unrecognized
// errors map to KindUnknown. Callers must handle context cancellation before
// classifying; it is not a failure.
func ClassifyError(err error) ErrorKind {
	for _, s := range kindBySentinel {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindUnknown
}

// Valid reports whether k is one of the declared kinds.
func (k ErrorKind) Valid() bool {
	if k == KindUnknown {
		return true
	}
	for _, s := range kindBySentinel {
		if s.kind == k {
			return true
		}
	}
	return false
}
