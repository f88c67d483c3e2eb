package directions

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/ports"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
)

// CachedProvider consults a RouteCache before delegating to the wrapped
// provider. Cache failures are logged and never fail a routing request.
type CachedProvider struct {
	next    ports.DirectionsProvider
	cache   ports.RouteCache
	profile string
	ttl     time.Duration
	log     hclog.Logger
}

func NewCachedProvider(
	next ports.DirectionsProvider,
	cache ports.RouteCache,
	profile string,
	ttl time.Duration,
	log hclog.Logger,
) *CachedProvider {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &CachedProvider{
		next:    next,
		cache:   cache,
		profile: profile,
		ttl:     ttl,
		log:     log.Named("route-cache"),
	}
}

func (c *CachedProvider) GetRoute(ctx context.Context, origin, destination domain.Coordinates) (domain.Route, error) {
	key := CacheKey(c.profile, origin, destination)

	route, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		c.log.Debug("route cache hit", "key", key, "waypoints", route.Len())
		return route, nil
	case !errors.Is(err, ports.ErrCacheMiss):
		c.log.Warn("route cache read failed", "key", key, "error", err)
	}

	route, err = c.next.GetRoute(ctx, origin, destination)
	if err != nil {
		return domain.Route{}, err
	}

	// An empty route means the service answered with nothing usable; asking
	// again later may give a real route.
	if route.Empty() {
		return route, nil
	}

	if err := c.cache.Put(ctx, key, route, c.ttl); err != nil {
		c.log.Warn("route cache write failed", "key", key, "error", err)
	}

	return route, nil
}

// CacheKey identifies a leg. Coordinates are rounded to 5 decimals (about a
// metre) so repeated clicks on the same spot share an entry.
func CacheKey(profile string, origin, destination domain.Coordinates) string {
	return fmt.Sprintf("%s:%s,%s;%s,%s",
		profile,
		round5(origin.Lon), round5(origin.Lat),
		round5(destination.Lon), round5(destination.Lat),
	)
}

func round5(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e5)/1e5, 'f', -1, 64)
}
