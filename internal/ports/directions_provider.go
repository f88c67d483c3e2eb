package ports

import (
	"context"
	"driver-dispatch-client/internal/domain"
)

// Contract for retrieving a driving route between two coordinates.
type DirectionsProvider interface {
	// Return the ordered waypoints from origin to destination.
	// A malformed or empty payload yields an empty route, not an error.
	GetRoute(ctx context.Context, origin, destination domain.Coordinates) (domain.Route, error)
}
