package services

import (
	"driver-dispatch-client/internal/domain"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTickInterval is the period between two waypoint advancements.
const DefaultTickInterval = 2000 * time.Millisecond

// TickResult describes what a single advancement tick did.
type TickResult struct {
	// Moved is true when the position was written on this tick.
	Moved    bool
	Position domain.Coordinates
	// Completed is true on the tick that exhausted the route.
	Completed bool
	// RoutePoints is the length of the route that was being followed.
	RoutePoints int
}

// JobSnapshot is a read-only copy of the machine's state.
type JobSnapshot struct {
	State       domain.JobState
	Position    domain.Coordinates
	Cursor      int
	RoutePoints int
}

// JobMachine tracks whether the driver is available or following a route and
// moves the driver one waypoint per tick while en route.
//
// The machine owns its advancement ticker: AssignRoute starts it, completion
// and Cancel stop it, and a second AssignRoute stops the previous one before
// starting a new one, so at most one advancement activity exists at a time.
// It is not safe for concurrent use; the dispatch loop serializes all calls.
type JobMachine struct {
	position *PositionSource
	clock    clockwork.Clock
	interval time.Duration

	state  domain.JobState
	route  domain.Route
	cursor int
	ticker clockwork.Ticker
}

// NewJobMachine returns an available machine. A nil clk means the real clock.
func NewJobMachine(position *PositionSource, interval time.Duration, clk clockwork.Clock) *JobMachine {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	return &JobMachine{
		position: position,
		clock:    clk,
		interval: interval,
		state:    domain.Available,
	}
}

// AssignRoute starts following route from its first waypoint.
// It reports whether an active route was cancelled and replaced.
func (m *JobMachine) AssignRoute(route domain.Route) (replaced bool) {
	replaced = m.state == domain.EnRoute
	m.stopTicker()

	m.route = route
	m.cursor = 0
	m.state = domain.EnRoute
	m.ticker = m.clock.NewTicker(m.interval)

	return replaced
}

// Ticks returns the advancement tick channel, or nil while available.
// Receiving from a nil channel blocks forever, so it is safe to select on.
func (m *JobMachine) Ticks() <-chan time.Time {
	if m.ticker == nil {
		return nil
	}
	return m.ticker.Chan()
}

// Tick performs one advancement step.
//
// Tick k (1-indexed) writes route[k-1] to the position; the tick on which the
// cursor reaches the route length completes the route. An empty route
// therefore completes on its first tick without moving the driver.
func (m *JobMachine) Tick() TickResult {
	if m.state != domain.EnRoute {
		return TickResult{Position: m.position.Get()}
	}

	res := TickResult{RoutePoints: m.route.Len()}

	if m.cursor < m.route.Len() {
		next := m.route.At(m.cursor)
		m.position.Set(next)
		m.cursor++
		res.Moved = true
	}

	if m.cursor == m.route.Len() {
		m.complete()
		res.Completed = true
	}

	res.Position = m.position.Get()
	return res
}

// Cancel abandons the active route without completing it.
// It reports whether a route was active.
func (m *JobMachine) Cancel() bool {
	if m.state != domain.EnRoute {
		return false
	}
	m.complete()
	return true
}

func (m *JobMachine) State() domain.JobState { return m.state }

func (m *JobMachine) Position() domain.Coordinates { return m.position.Get() }

func (m *JobMachine) Cursor() int { return m.cursor }

func (m *JobMachine) Snapshot() JobSnapshot {
	return JobSnapshot{
		State:       m.state,
		Position:    m.position.Get(),
		Cursor:      m.cursor,
		RoutePoints: m.route.Len(),
	}
}

func (m *JobMachine) complete() {
	m.stopTicker()
	m.cursor = 0
	m.route = domain.Route{}
	m.state = domain.Available
}

func (m *JobMachine) stopTicker() {
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
}
