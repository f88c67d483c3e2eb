package services

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/platform/obs"
	"driver-dispatch-client/internal/ports"
	"errors"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
)

// DefaultPublishInterval is the period of the location publication tick.
const DefaultPublishInterval = 2000 * time.Millisecond

const (
	SourceDriver = "driver"
	SourceEnd    = "end"
	SourceRoute  = "route"
)

var (
	ErrNotAcceptingJobs = errors.New("driver is not accepting new jobs")
	ErrClientStopped    = errors.New("dispatch client is not running")
)

const eventQueueSize = 32

// ClientSnapshot is the read-only view of the client published after every
// loop iteration.
type ClientSnapshot struct {
	DriverID    int
	Ready       bool
	State       domain.JobState
	Position    domain.Coordinates
	Cursor      int
	RoutePoints int
	Accepting   bool
	LastSeq     uint64
}

// DispatchOptions configures a DispatchClient. Clock drives the publication
// ticker and event timestamps and defaults to the real clock.
type DispatchOptions struct {
	Driver          domain.DriverIdentity
	PublishInterval time.Duration
	Clock           clockwork.Clock
	Logger          hclog.Logger
}

type selection struct {
	dest    domain.Coordinates
	reroute bool
	reqID   string
	reply   chan selectionReply
}

type selectionReply struct {
	seq uint64
	err error
}

type routeResult struct {
	seq   uint64
	dest  domain.Coordinates
	route domain.Route
	err   error
}

// DispatchClient runs the driver's outer loop: it turns destination
// selections into routing requests, hands successful routes to the job
// machine, publishes the driver's position on a fixed period and re-arms
// job acceptance when a route completes.
//
// All state changes happen on the goroutine executing Run. Routing requests
// run on their own goroutines and only report back to the loop.
type DispatchClient struct {
	machine    *JobMachine
	directions ports.DirectionsProvider
	publisher  ports.LocationPublisher
	events     ports.EventPublisher
	renderer   ports.Renderer

	driver          domain.DriverIdentity
	publishInterval time.Duration
	clock           clockwork.Clock
	log             hclog.Logger

	selections chan selection
	results    chan routeResult
	eventQueue chan domain.JobEvent
	done       chan struct{}

	// loop-owned
	accepting bool
	seq       uint64
	// activeDest is the destination of the route being followed.
	activeDest domain.Coordinates

	snapshot  *atomic.Pointer[ClientSnapshot]
	published *atomic.Int64
	stale     *atomic.Int64
	running   *atomic.Bool
}

func NewDispatchClient(
	machine *JobMachine,
	directions ports.DirectionsProvider,
	publisher ports.LocationPublisher,
	events ports.EventPublisher,
	renderer ports.Renderer,
	opts DispatchOptions,
) *DispatchClient {
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = DefaultPublishInterval
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	c := &DispatchClient{
		machine:         machine,
		directions:      directions,
		publisher:       publisher,
		events:          events,
		renderer:        renderer,
		driver:          opts.Driver,
		publishInterval: opts.PublishInterval,
		clock:           opts.Clock,
		log:             opts.Logger.Named("dispatch"),
		selections:      make(chan selection),
		results:         make(chan routeResult),
		eventQueue:      make(chan domain.JobEvent, eventQueueSize),
		done:            make(chan struct{}),
		snapshot:        atomic.NewPointer(&ClientSnapshot{DriverID: opts.Driver.ID()}),
		published:       atomic.NewInt64(0),
		stale:           atomic.NewInt64(0),
		running:         atomic.NewBool(false),
	}

	return c
}

// Run executes the dispatch loop until ctx is cancelled. It may be called once.
func (c *DispatchClient) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("dispatch client: already running")
	}
	defer close(c.done)

	go c.drainEvents(ctx)

	c.ready()

	publishTicker := c.clock.NewTicker(c.publishInterval)
	defer publishTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if c.machine.Cancel() {
				c.log.Info("active route abandoned on shutdown")
			}
			c.storeSnapshot(false)
			return nil

		case <-publishTicker.Chan():
			c.publishLocation()

		case <-c.machine.Ticks():
			c.advance()

		case sel := <-c.selections:
			sel.reply <- c.handleSelection(ctx, sel)

		case res := <-c.results:
			c.handleRouteResult(res)
		}

		c.storeSnapshot(true)
	}
}

// SelectDestination requests a route from the driver's current position to
// dest. It returns the sequence number of the routing request; the route
// itself is applied asynchronously when the directions service answers.
//
// Unless reroute is set, the selection is rejected with ErrNotAcceptingJobs
// while the driver is on a job. A reroute replaces the active route once the
// new one arrives.
func (c *DispatchClient) SelectDestination(ctx context.Context, dest domain.Coordinates, reroute bool) (uint64, error) {
	if err := dest.Validate(); err != nil {
		return 0, err
	}

	sel := selection{
		dest:    dest,
		reroute: reroute,
		reqID:   obs.RequestID(ctx),
		reply:   make(chan selectionReply, 1),
	}

	select {
	case c.selections <- sel:
	case <-c.done:
		return 0, ErrClientStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	r := <-sel.reply
	return r.seq, r.err
}

// Snapshot returns the latest state published by the loop.
func (c *DispatchClient) Snapshot() ClientSnapshot {
	return *c.snapshot.Load()
}

// Published is the number of location messages handed to the publisher.
func (c *DispatchClient) Published() int64 { return c.published.Load() }

// StaleResponses is the number of routing responses discarded because a
// newer request had been issued.
func (c *DispatchClient) StaleResponses() int64 { return c.stale.Load() }

// Done is closed when Run returns.
func (c *DispatchClient) Done() <-chan struct{} { return c.done }

// ready is the map-load equivalent: draw the driver, arm job acceptance and
// announce availability.
func (c *DispatchClient) ready() {
	pos := c.machine.Position()
	c.renderer.SetPointSource(SourceDriver, pos)
	c.renderer.AddLayer(driverLayer())

	c.accepting = true
	c.emit(domain.EventDriverAvailable, pos, 0)
	c.storeSnapshot(true)

	c.log.Info("driver ready", "driver_id", c.driver.ID(), "position", pos.String())
}

func (c *DispatchClient) publishLocation() {
	c.publisher.Publish(domain.LocationUpdate{
		Driver:   c.driver,
		Position: c.machine.Position(),
	})
	c.published.Inc()
}

func (c *DispatchClient) advance() {
	res := c.machine.Tick()

	if res.Moved {
		c.renderer.SetPointSource(SourceDriver, res.Position)
	}

	if !res.Completed {
		return
	}

	c.clearRouteLayers()
	c.accepting = true

	c.log.Info("route completed", "position", res.Position.String(), "waypoints", res.RoutePoints)
	c.emit(domain.EventDriverArrived, res.Position, res.RoutePoints)
	c.emit(domain.EventDriverAvailable, res.Position, 0)
}

func (c *DispatchClient) handleSelection(ctx context.Context, sel selection) selectionReply {
	if !c.accepting && !sel.reroute {
		return selectionReply{err: ErrNotAcceptingJobs}
	}

	c.seq++
	seq := c.seq
	origin := c.machine.Position()

	// The active route stays drawn until a replacement arrives.
	c.renderer.SetPointSource(SourceEnd, sel.dest)
	c.renderer.AddLayer(endLayer())

	c.log.Debug("routing request issued",
		"seq", seq, "req_id", sel.reqID, "origin", origin.String(), "destination", sel.dest.String(), "reroute", sel.reroute)

	go c.fetchRoute(obs.WithRequestID(ctx, sel.reqID), seq, origin, sel.dest)

	return selectionReply{seq: seq}
}

func (c *DispatchClient) fetchRoute(ctx context.Context, seq uint64, origin, dest domain.Coordinates) {
	route, err := c.directions.GetRoute(ctx, origin, dest)

	select {
	case c.results <- routeResult{seq: seq, dest: dest, route: route, err: err}:
	case <-ctx.Done():
	}
}

func (c *DispatchClient) handleRouteResult(res routeResult) {
	if res.seq != c.seq {
		c.stale.Inc()
		c.log.Debug("discarding stale routing response", "seq", res.seq, "latest", c.seq)
		return
	}

	if res.err != nil {
		if c.machine.State() == domain.EnRoute {
			c.renderer.SetPointSource(SourceEnd, c.activeDest)
		} else {
			c.renderer.RemoveLayer(SourceEnd)
		}
		c.log.Error("routing request failed", "seq", res.seq, "destination", res.dest.String(), "error", res.err)
		return
	}

	c.accepting = false
	c.activeDest = res.dest
	replaced := c.machine.AssignRoute(res.route)

	c.renderer.SetLineSource(SourceRoute, res.route)
	c.renderer.AddLayer(routeLayer())

	c.log.Info("route assigned",
		"seq", res.seq,
		"waypoints", res.route.Len(),
		"meters", int(res.route.LengthMeters()),
		"replaced", replaced,
	)
	c.emit(domain.EventDriverEnRoute, c.machine.Position(), res.route.Len())
}

func (c *DispatchClient) clearRouteLayers() {
	c.renderer.RemoveLayer(SourceRoute)
	c.renderer.RemoveLayer(SourceEnd)
}

func (c *DispatchClient) emit(t domain.JobEventType, pos domain.Coordinates, routePoints int) {
	if c.events == nil {
		return
	}

	ev := domain.NewJobEvent(t, c.driver, pos, routePoints, c.clock.Now())
	select {
	case c.eventQueue <- ev:
	default:
		c.log.Warn("job event dropped, queue full", "type", string(t))
	}
}

// drainEvents forwards lifecycle events off the loop goroutine so a slow
// broker never delays a tick.
func (c *DispatchClient) drainEvents(ctx context.Context) {
	if c.events == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.eventQueue:
			if err := c.events.PublishJobEvent(ctx, ev); err != nil {
				c.log.Warn("job event publish failed", "type", string(ev.Type), "error", err)
			}
		}
	}
}

func (c *DispatchClient) storeSnapshot(ready bool) {
	js := c.machine.Snapshot()
	c.snapshot.Store(&ClientSnapshot{
		DriverID:    c.driver.ID(),
		Ready:       ready,
		State:       js.State,
		Position:    js.Position,
		Cursor:      js.Cursor,
		RoutePoints: js.RoutePoints,
		Accepting:   c.accepting,
		LastSeq:     c.seq,
	})
}

func driverLayer() ports.Layer {
	return ports.Layer{
		ID:     SourceDriver,
		Source: SourceDriver,
		Kind:   ports.LayerCircle,
		Paint:  map[string]any{"circle-radius": 12, "circle-color": "#b5563e"},
	}
}

func endLayer() ports.Layer {
	return ports.Layer{
		ID:     SourceEnd,
		Source: SourceEnd,
		Kind:   ports.LayerCircle,
		Paint:  map[string]any{"circle-radius": 12, "circle-color": "#b5563e"},
	}
}

func routeLayer() ports.Layer {
	return ports.Layer{
		ID:     SourceRoute,
		Source: SourceRoute,
		Kind:   ports.LayerLine,
		Paint:  map[string]any{"line-color": "#b5563e", "line-width": 6},
	}
}
