package domain

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Route is the ordered sequence of waypoints returned by the directions service.
// It is immutable once received and is consumed index-by-index.
type Route struct {
	waypoints []Coordinates
}

// NewRoute copies the waypoints so later changes to the caller's slice
// cannot reach a route that is already being followed.
func NewRoute(waypoints []Coordinates) Route {
	if len(waypoints) == 0 {
		return Route{}
	}
	cp := make([]Coordinates, len(waypoints))
	copy(cp, waypoints)
	return Route{waypoints: cp}
}

func (r Route) Len() int { return len(r.waypoints) }

func (r Route) Empty() bool { return len(r.waypoints) == 0 }

// At returns the i-th waypoint. i must be in [0, Len()).
func (r Route) At(i int) Coordinates { return r.waypoints[i] }

// Waypoints returns a copy of the route's coordinates.
func (r Route) Waypoints() []Coordinates {
	out := make([]Coordinates, len(r.waypoints))
	copy(out, r.waypoints)
	return out
}

func (r Route) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(r.waypoints))
	for _, c := range r.waypoints {
		ls = append(ls, c.Point())
	}
	return ls
}

// LengthMeters is the geodesic length of the route.
func (r Route) LengthMeters() float64 {
	if len(r.waypoints) < 2 {
		return 0
	}
	return geo.Length(r.LineString())
}
