package cache

import (
	"context"
	"database/sql"
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/platform/obs"
	"driver-dispatch-client/internal/ports"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// SQLRouteCache is a Postgres-backed route cache shared by several drivers.
type SQLRouteCache struct {
	DB  *sql.DB
	Log hclog.Logger
}

func NewSQLRouteCache(db *sql.DB, log hclog.Logger) *SQLRouteCache {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &SQLRouteCache{DB: db, Log: log}
}

// Fetch the cached route for key.
func (s *SQLRouteCache) Get(ctx context.Context, key string) (_ domain.Route, err error) {
	defer obs.Time(ctx, s.Log, "route.cache.sql.Get", ports.ErrCacheMiss)(&err)

	if s.DB == nil {
		return domain.Route{}, errors.New("route cache: db is nil")
	}

	if strings.TrimSpace(key) == "" {
		return domain.Route{}, errors.New("get route cache: key must not be empty")
	}

	q := `
	SELECT waypoints
    FROM route_cache
    WHERE cache_key = $1
        AND expires_at > $2;
	`

	var raw string
	err = s.DB.QueryRowContext(ctx, q, key, time.Now().UnixMilli()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Route{}, ports.ErrCacheMiss
	}
	if err != nil {
		return domain.Route{}, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	return decodeRoute([]byte(raw))
}

// Store a route under key until now+ttl.
func (s *SQLRouteCache) Put(ctx context.Context, key string, route domain.Route, ttl time.Duration) error {
	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}

	if strings.TrimSpace(key) == "" {
		return errors.New("insert route cache: key must not be empty")
	}

	raw, err := encodeRoute(route)
	if err != nil {
		return fmt.Errorf("insert route cache: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO route_cache (cache_key, waypoints, expires_at)
    VALUES ($1, $2, $3)
	ON CONFLICT (cache_key) DO UPDATE
	SET waypoints = EXCLUDED.waypoints,
		expires_at = EXCLUDED.expires_at;
	`, key, string(raw), time.Now().Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("insert route cache key=%q: %w", key, err)
	}

	return nil
}
