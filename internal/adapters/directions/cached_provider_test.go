package directions

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/ports"
	"errors"
	"testing"
	"time"
)

type memCache struct {
	entries map[string]domain.Route
	getErr  error
	puts    int
}

func (m *memCache) Get(_ context.Context, key string) (domain.Route, error) {
	if m.getErr != nil {
		return domain.Route{}, m.getErr
	}
	r, ok := m.entries[key]
	if !ok {
		return domain.Route{}, ports.ErrCacheMiss
	}
	return r, nil
}

func (m *memCache) Put(_ context.Context, key string, r domain.Route, _ time.Duration) error {
	m.puts++
	m.entries[key] = r
	return nil
}

type countingProvider struct {
	inner ports.DirectionsProvider
	calls int
}

func (c *countingProvider) GetRoute(ctx context.Context, o, d domain.Coordinates) (domain.Route, error) {
	c.calls++
	return c.inner.GetRoute(ctx, o, d)
}

func TestCachedProviderServesSecondLookupFromCache(t *testing.T) {
	wps := []domain.Coordinates{origin, {Lon: -73.995, Lat: 40.717}, dest}
	inner := &countingProvider{inner: NewMockDirectionsProvider([]MockLeg{{From: origin, To: dest, Route: wps}})}
	cache := &memCache{entries: map[string]domain.Route{}}

	p := NewCachedProvider(inner, cache, DefaultProfile, time.Minute, nil)

	for i := 0; i < 2; i++ {
		r, err := p.GetRoute(context.Background(), origin, dest)
		if err != nil {
			t.Fatalf("lookup %d: unexpected error: %v", i, err)
		}
		if r.Len() != 3 {
			t.Fatalf("lookup %d: len = %d, want 3", i, r.Len())
		}
	}

	if inner.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", inner.calls)
	}
	if cache.puts != 1 {
		t.Fatalf("cache puts = %d, want 1", cache.puts)
	}
}

func TestCachedProviderBypassesBrokenCache(t *testing.T) {
	inner := &countingProvider{inner: NewMockDirectionsProvider([]MockLeg{{From: origin, To: dest, Route: []domain.Coordinates{dest}}})}
	cache := &memCache{entries: map[string]domain.Route{}, getErr: errors.New("connection refused")}

	r, err := NewCachedProvider(inner, cache, DefaultProfile, time.Minute, nil).GetRoute(context.Background(), origin, dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 1 || inner.calls != 1 {
		t.Fatalf("expected provider fallback, got len=%d calls=%d", r.Len(), inner.calls)
	}
}

func TestCachedProviderDoesNotCacheEmptyRoutesOrErrors(t *testing.T) {
	other := domain.Coordinates{Lon: 1, Lat: 1}
	inner := NewMockDirectionsProvider([]MockLeg{{From: origin, To: dest, Route: nil}})
	cache := &memCache{entries: map[string]domain.Route{}}
	p := NewCachedProvider(inner, cache, DefaultProfile, time.Minute, nil)

	if _, err := p.GetRoute(context.Background(), origin, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.GetRoute(context.Background(), origin, other); err == nil {
		t.Fatalf("expected error for unknown leg")
	}
	if cache.puts != 0 {
		t.Fatalf("cache puts = %d, want 0", cache.puts)
	}
}

func TestCacheKeyRounding(t *testing.T) {
	a := CacheKey("driving-traffic", domain.Coordinates{Lon: -73.9962001, Lat: 40.7175999}, dest)
	b := CacheKey("driving-traffic", domain.Coordinates{Lon: -73.9962, Lat: 40.7176}, dest)

	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if want := "driving-traffic:-73.9962,40.7176;-73.99,40.72"; b != want {
		t.Fatalf("key = %q, want %q", b, want)
	}
}
