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

// SQLite backed route cache. Expired rows are ignored on read and
// overwritten on the next write for the same key.
type SqliteRouteCache struct {
	DB  *sql.DB
	Log hclog.Logger
	now func() time.Time
}

func NewSqliteRouteCache(db *sql.DB, log hclog.Logger) *SqliteRouteCache {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &SqliteRouteCache{DB: db, Log: log, now: time.Now}
}

// Fetch the cached route for key.
func (s *SqliteRouteCache) Get(ctx context.Context, key string) (_ domain.Route, err error) {
	defer obs.Time(ctx, s.Log, "route.cache.sqlite.Get", ports.ErrCacheMiss)(&err)

	if s.DB == nil {
		return domain.Route{}, errors.New("route cache: db is nil")
	}

	if strings.TrimSpace(key) == "" {
		return domain.Route{}, errors.New("get route cache: key must not be empty")
	}

	q := `
	SELECT
        waypoints
    FROM route_cache
    WHERE cache_key = ?
        AND expires_at > ?;
	`

	var raw string
	err = s.DB.QueryRowContext(ctx, q, key, s.now().UnixMilli()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Route{}, ports.ErrCacheMiss
	}
	if err != nil {
		return domain.Route{}, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	return decodeRoute([]byte(raw))
}

// Store a route under key until now+ttl.
func (s *SqliteRouteCache) Put(ctx context.Context, key string, route domain.Route, ttl time.Duration) error {
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
	INSERT OR REPLACE INTO route_cache (
        cache_key,
        waypoints,
        expires_at
    )
    VALUES (?, ?, ?);
	`, key, string(raw), s.now().Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("insert route cache key=%q: %w", key, err)
	}

	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *SqliteRouteCache) Purge(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("route cache: db is nil")
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM route_cache WHERE expires_at <= ?;`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge route cache: %w", err)
	}
	return res.RowsAffected()
}
