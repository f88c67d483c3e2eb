package services

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/platform/obs"
	"driver-dispatch-client/internal/ports"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	pollAt  = 5 * time.Millisecond
)

type pendingRoute struct {
	origin, dest domain.Coordinates
	reqID        string
	resp         chan routeOrErr
}

type routeOrErr struct {
	route domain.Route
	err   error
}

// scriptedDirections hands every request to the test, which answers it
// explicitly and in any order.
type scriptedDirections struct {
	requests chan *pendingRoute
}

func newScriptedDirections() *scriptedDirections {
	return &scriptedDirections{requests: make(chan *pendingRoute, 8)}
}

func (s *scriptedDirections) GetRoute(ctx context.Context, origin, dest domain.Coordinates) (domain.Route, error) {
	p := &pendingRoute{origin: origin, dest: dest, reqID: obs.RequestID(ctx), resp: make(chan routeOrErr, 1)}
	s.requests <- p
	select {
	case r := <-p.resp:
		return r.route, r.err
	case <-ctx.Done():
		return domain.Route{}, ctx.Err()
	}
}

func (s *scriptedDirections) next(t *testing.T) *pendingRoute {
	t.Helper()
	select {
	case p := <-s.requests:
		return p
	case <-time.After(waitFor):
		t.Fatal("no routing request issued")
		return nil
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []domain.LocationUpdate
}

func (p *recordingPublisher) Publish(u domain.LocationUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
}

func (p *recordingPublisher) all() []domain.LocationUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.LocationUpdate(nil), p.updates...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (e *recordingEvents) PublishJobEvent(_ context.Context, ev domain.JobEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingEvents) types() []domain.JobEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.JobEventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingRenderer struct {
	mu     sync.Mutex
	points map[string]domain.Coordinates
	lines  map[string]domain.Route
	layers map[string]ports.Layer
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		points: map[string]domain.Coordinates{},
		lines:  map[string]domain.Route{},
		layers: map[string]ports.Layer{},
	}
}

func (r *recordingRenderer) SetPointSource(id string, c domain.Coordinates) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points[id] = c
}

func (r *recordingRenderer) SetLineSource(id string, route domain.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[id] = route
}

func (r *recordingRenderer) AddLayer(l ports.Layer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers[l.ID] = l
}

func (r *recordingRenderer) RemoveLayer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.layers, id)
}

func (r *recordingRenderer) hasLayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.layers[id]
	return ok
}

func (r *recordingRenderer) line(id string) domain.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines[id]
}

func (r *recordingRenderer) point(id string) domain.Coordinates {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points[id]
}

type harness struct {
	client     *DispatchClient
	directions *scriptedDirections
	publisher  *recordingPublisher
	events     *recordingEvents
	renderer   *recordingRenderer
	pubClock   *clockwork.FakeClock
	jobClock   *clockwork.FakeClock
	cancel     context.CancelFunc
}

func startHarness(t *testing.T, origin domain.Coordinates, driverID int) *harness {
	t.Helper()

	h := &harness{
		directions: newScriptedDirections(),
		publisher:  &recordingPublisher{},
		events:     &recordingEvents{},
		renderer:   newRecordingRenderer(),
		pubClock:   clockwork.NewFakeClock(),
		jobClock:   clockwork.NewFakeClock(),
	}

	machine := NewJobMachine(NewPositionSource(origin), DefaultTickInterval, h.jobClock)
	h.client = NewDispatchClient(machine, h.directions, h.publisher, h.events, h.renderer, DispatchOptions{
		Driver: domain.NewDriverIdentity(driverID),
		Clock:  h.pubClock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { _ = h.client.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-h.client.Done()
	})

	require.Eventually(t, func() bool { return h.client.Snapshot().Ready }, waitFor, pollAt)
	requireTickers(t, h.pubClock, 1)

	return h
}

// tick fires the advancement ticker once and waits until the loop has
// consumed it.
func (h *harness) tick(t *testing.T, done func(s ClientSnapshot) bool) {
	t.Helper()
	h.jobClock.Advance(DefaultTickInterval)
	h.eventually(t, done)
}

// publish fires the publication ticker once and waits for the update.
func (h *harness) publish(t *testing.T) {
	t.Helper()
	want := len(h.publisher.all()) + 1
	h.pubClock.Advance(DefaultPublishInterval)
	require.Eventually(t, func() bool { return len(h.publisher.all()) == want }, waitFor, pollAt)
}

func (h *harness) eventually(t *testing.T, cond func(s ClientSnapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.client.Snapshot()) }, waitFor, pollAt)
}

func TestDispatchClientScenario(t *testing.T) {
	origin := domain.Coordinates{Lon: -73.9962, Lat: 40.7176}
	dest := domain.Coordinates{Lon: -73.99, Lat: 40.72}
	route := domain.NewRoute([]domain.Coordinates{
		{Lon: -73.9962, Lat: 40.7176},
		{Lon: -73.995, Lat: 40.717},
		{Lon: -73.99, Lat: 40.72},
	})

	h := startHarness(t, origin, 42)

	snap := h.client.Snapshot()
	assert.True(t, snap.Accepting)
	assert.Equal(t, domain.Available, snap.State)
	assert.Equal(t, 42, snap.DriverID)

	seq, err := h.client.SelectDestination(context.Background(), dest, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	req := h.directions.next(t)
	assert.Equal(t, origin, req.origin)
	assert.Equal(t, dest, req.dest)
	req.resp <- routeOrErr{route: route}

	h.eventually(t, func(s ClientSnapshot) bool { return s.State == domain.EnRoute })
	snap = h.client.Snapshot()
	assert.False(t, snap.Accepting)
	assert.Equal(t, 3, snap.RoutePoints)
	assert.True(t, h.renderer.hasLayer(SourceRoute))
	assert.True(t, h.renderer.hasLayer(SourceEnd))

	requireTickers(t, h.jobClock, 1)

	h.tick(t, func(s ClientSnapshot) bool { return s.Cursor == 1 })
	assert.Equal(t, route.At(0), h.client.Snapshot().Position)
	h.tick(t, func(s ClientSnapshot) bool { return s.Cursor == 2 })
	assert.Equal(t, route.At(1), h.client.Snapshot().Position)
	h.tick(t, func(s ClientSnapshot) bool { return s.State == domain.Available })

	snap = h.client.Snapshot()
	assert.Equal(t, dest, snap.Position)
	assert.True(t, snap.Accepting)
	assert.Equal(t, 0, snap.Cursor)
	requireTickers(t, h.jobClock, 0)

	assert.Equal(t, dest, h.renderer.point(SourceDriver))
	assert.False(t, h.renderer.hasLayer(SourceRoute))
	assert.False(t, h.renderer.hasLayer(SourceEnd))

	require.Eventually(t, func() bool { return len(h.events.types()) == 4 }, waitFor, pollAt)
	assert.Equal(t, []domain.JobEventType{
		domain.EventDriverAvailable,
		domain.EventDriverEnRoute,
		domain.EventDriverArrived,
		domain.EventDriverAvailable,
	}, h.events.types())

	h.publish(t)
	assert.Equal(t, "42|-73.99,40.72", h.publisher.all()[0].Payload())
}

func TestDispatchClientCarriesRequestIDToDirections(t *testing.T) {
	h := startHarness(t, domain.Coordinates{Lon: -73.9962, Lat: 40.7176}, 3)

	ctx := obs.WithRequestID(context.Background(), "req-1")
	_, err := h.client.SelectDestination(ctx, domain.Coordinates{Lon: -73.99, Lat: 40.72}, false)
	require.NoError(t, err)

	req := h.directions.next(t)
	assert.Equal(t, "req-1", req.reqID)
	req.resp <- routeOrErr{route: domain.NewRoute(nil)}
}

func TestDispatchClientRoutingFailureLeavesStateUnchanged(t *testing.T) {
	origin := domain.Coordinates{Lon: -73.9962, Lat: 40.7176}
	h := startHarness(t, origin, 7)

	_, err := h.client.SelectDestination(context.Background(), domain.Coordinates{Lon: -73.99, Lat: 40.72}, false)
	require.NoError(t, err)

	req := h.directions.next(t)
	req.resp <- routeOrErr{err: errors.New("directions: Code 503: unavailable")}

	require.Eventually(t, func() bool { return !h.renderer.hasLayer(SourceEnd) }, waitFor, pollAt)

	snap := h.client.Snapshot()
	assert.Equal(t, domain.Available, snap.State)
	assert.True(t, snap.Accepting)
	assert.Equal(t, origin, snap.Position)
	requireTickers(t, h.jobClock, 0)
}

func TestDispatchClientEmptyRouteCompletesImmediately(t *testing.T) {
	origin := domain.Coordinates{Lon: -73.9962, Lat: 40.7176}
	h := startHarness(t, origin, 1)

	_, err := h.client.SelectDestination(context.Background(), domain.Coordinates{Lon: -73.99, Lat: 40.72}, false)
	require.NoError(t, err)
	h.directions.next(t).resp <- routeOrErr{route: domain.NewRoute(nil)}

	h.eventually(t, func(s ClientSnapshot) bool { return s.State == domain.EnRoute })
	assert.False(t, h.client.Snapshot().Accepting)

	h.tick(t, func(s ClientSnapshot) bool { return s.State == domain.Available && s.Accepting })
	assert.Equal(t, origin, h.client.Snapshot().Position)
}

func TestDispatchClientGatesSelectionsWhileOnJob(t *testing.T) {
	origin := domain.Coordinates{Lon: -73.9962, Lat: 40.7176}
	h := startHarness(t, origin, 3)

	routeA := domain.NewRoute([]domain.Coordinates{
		{Lon: -73.995, Lat: 40.717},
		{Lon: -73.994, Lat: 40.718},
		{Lon: -73.993, Lat: 40.719},
	})
	routeB := domain.NewRoute([]domain.Coordinates{
		{Lon: -73.98, Lat: 40.73},
		{Lon: -73.97, Lat: 40.74},
	})

	_, err := h.client.SelectDestination(context.Background(), domain.Coordinates{Lon: -73.993, Lat: 40.719}, false)
	require.NoError(t, err)
	h.directions.next(t).resp <- routeOrErr{route: routeA}
	h.eventually(t, func(s ClientSnapshot) bool { return s.State == domain.EnRoute })

	h.tick(t, func(s ClientSnapshot) bool { return s.Cursor == 1 })

	_, err = h.client.SelectDestination(context.Background(), domain.Coordinates{Lon: -73.97, Lat: 40.74}, false)
	require.ErrorIs(t, err, ErrNotAcceptingJobs)

	seq, err := h.client.SelectDestination(context.Background(), domain.Coordinates{Lon: -73.97, Lat: 40.74}, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	req := h.directions.next(t)
	assert.Equal(t, routeA.At(0), req.origin, "reroute starts from the current position")
	req.resp <- routeOrErr{route: routeB}

	h.eventually(t, func(s ClientSnapshot) bool { return s.RoutePoints == 2 && s.Cursor == 0 })
	requireTickers(t, h.jobClock, 1)

	h.tick(t, func(s ClientSnapshot) bool { return s.Cursor == 1 })
	assert.Equal(t, routeB.At(0), h.client.Snapshot().Position)
	h.tick(t, func(s ClientSnapshot) bool { return s.State == domain.Available })
	assert.Equal(t, routeB.At(1), h.client.Snapshot().Position)
}

func TestDispatchClientFailedRerouteKeepsActiveRoute(t *testing.T) {
	h := startHarness(t, domain.Coordinates{Lon: -73.9962, Lat: 40.7176}, 5)
	destA := domain.Coordinates{Lon: -73.99, Lat: 40.72}
	destB := domain.Coordinates{Lon: -73.98, Lat: 40.71}

	_, err := h.client.SelectDestination(context.Background(), destA, false)
	require.NoError(t, err)
	h.directions.next(t).resp <- routeOrErr{route: testRoute(4)}
	h.eventually(t, func(s ClientSnapshot) bool { return s.State == domain.EnRoute })

	_, err = h.client.SelectDestination(context.Background(), destB, true)
	require.NoError(t, err)
	assert.Equal(t, destB, h.renderer.point(SourceEnd))
	assert.True(t, h.renderer.hasLayer(SourceRoute), "route stays drawn while the reroute is pending")

	h.directions.next(t).resp <- routeOrErr{err: errors.New("boom")}
	require.Eventually(t, func() bool { return h.renderer.point(SourceEnd) == destA }, waitFor, pollAt)

	assert.True(t, h.renderer.hasLayer(SourceRoute))
	assert.True(t, h.renderer.hasLayer(SourceEnd))
	assert.Equal(t, 4, h.renderer.line(SourceRoute).Len())

	snap := h.client.Snapshot()
	assert.False(t, snap.Accepting)
	assert.Equal(t, domain.EnRoute, snap.State)
	assert.Equal(t, 4, snap.RoutePoints)

	h.tick(t, func(s ClientSnapshot) bool { return s.Cursor == 1 })
	assert.True(t, h.renderer.hasLayer(SourceRoute), "old route keeps being drawn while followed")
}

func TestDispatchClientDiscardsStaleResponses(t *testing.T) {
	h := startHarness(t, domain.Coordinates{Lon: -73.9962, Lat: 40.7176}, 9)

	destA := domain.Coordinates{Lon: -73.99, Lat: 40.72}
	destB := domain.Coordinates{Lon: -73.98, Lat: 40.73}

	seqA, err := h.client.SelectDestination(context.Background(), destA, false)
	require.NoError(t, err)
	seqB, err := h.client.SelectDestination(context.Background(), destB, false)
	require.NoError(t, err)
	assert.Less(t, seqA, seqB)

	pending := map[domain.Coordinates]*pendingRoute{}
	for i := 0; i < 2; i++ {
		p := h.directions.next(t)
		pending[p.dest] = p
	}
	require.Contains(t, pending, destA)
	require.Contains(t, pending, destB)

	pending[destB].resp <- routeOrErr{route: testRoute(2)}
	h.eventually(t, func(s ClientSnapshot) bool { return s.State == domain.EnRoute })

	pending[destA].resp <- routeOrErr{route: testRoute(6)}
	require.Eventually(t, func() bool { return h.client.StaleResponses() == 1 }, waitFor, pollAt)

	snap := h.client.Snapshot()
	assert.Equal(t, 2, snap.RoutePoints)
	requireTickers(t, h.jobClock, 1)
}

func TestDispatchClientPublishesRegardlessOfState(t *testing.T) {
	origin := domain.Coordinates{Lon: -73.9962, Lat: 40.7176}
	h := startHarness(t, origin, 11)

	h.pubClock.Advance(DefaultPublishInterval - time.Millisecond)
	assert.Empty(t, h.publisher.all(), "nothing is published before the first period")
	h.pubClock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return len(h.publisher.all()) == 1 }, waitFor, pollAt)

	h.publish(t)

	_, err := h.client.SelectDestination(context.Background(), domain.Coordinates{Lon: -73.99, Lat: 40.72}, false)
	require.NoError(t, err)
	h.directions.next(t).resp <- routeOrErr{route: testRoute(3)}
	h.eventually(t, func(s ClientSnapshot) bool { return s.State == domain.EnRoute })

	h.publish(t)
	h.tick(t, func(s ClientSnapshot) bool { return s.Cursor == 1 })
	h.publish(t)

	updates := h.publisher.all()
	require.Len(t, updates, 4)
	assert.Equal(t, "11|-73.9962,40.7176", updates[0].Payload())
	assert.Equal(t, "11|-73.9962,40.7176", updates[2].Payload())
	assert.Equal(t, testRoute(3).At(0), updates[3].Position)
	assert.Equal(t, int64(4), h.client.Published())
	requireTickers(t, h.pubClock, 1)
}

func TestDispatchClientRejectsInvalidCoordinates(t *testing.T) {
	h := startHarness(t, domain.Coordinates{Lon: 0, Lat: 0}, 2)

	_, err := h.client.SelectDestination(context.Background(), domain.Coordinates{Lon: 200, Lat: 0}, false)
	require.ErrorIs(t, err, domain.ErrInvalidCoordinates)
	assert.Equal(t, uint64(0), h.client.Snapshot().LastSeq)
}

func TestDispatchClientStopped(t *testing.T) {
	h := startHarness(t, domain.Coordinates{Lon: 0, Lat: 0}, 2)

	h.cancel()
	<-h.client.Done()

	_, err := h.client.SelectDestination(context.Background(), domain.Coordinates{Lon: 1, Lat: 1}, false)
	require.ErrorIs(t, err, ErrClientStopped)
	assert.False(t, h.client.Snapshot().Ready)
}
