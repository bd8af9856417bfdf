// Package domain models the lunch-place lookup: location fixes, place search
// results and the asynchronous request lifecycle that ties them together.
//
// # Request lifecycle
//
// Every asynchronous request is described by a [Status] keyed by its input:
//
//	pending(arg) ─► success(arg, result)
//	             └► failure(arg, kind)
//
// success and failure are terminal. The argument identifies the request, so a
// consumer can tell a result for "sushi" from one for "pizza".
//
// # Errors
//
// Collaborators report failures by wrapping one of the sentinel errors
// (ErrLocationPermission, ErrQueryLimit, ...). [ClassifyError] maps them onto
// an [ErrorKind]; anything unrecognized becomes KindUnknown. Raw errors never
// reach [GeoState].
//
// # Coordinates
//
// Points are WGS-84 latitude/longitude in decimal degrees. Note that Mapbox
// and GeoJSON order coordinates as lon,lat; adapters convert at the boundary.
// Distances use the haversine formula with a mean Earth radius of 6371.0088 km,
// which is accurate to roughly 0.5% at lunch-walk scale.
package domain
