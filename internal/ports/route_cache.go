package ports

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("route cache miss")

// Port: persistent storage for previously fetched routes.
type RouteCache interface {
	// Return the cached route for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (domain.Route, error)
	// Store a route under key for at most ttl.
	Put(ctx context.Context, key string, route domain.Route, ttl time.Duration) error
}
