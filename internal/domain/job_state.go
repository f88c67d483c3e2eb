package domain

// JobState is the driver's job lifecycle state.
type JobState int

const (
	// Available: the driver accepts a new destination.
	Available JobState = iota
	// EnRoute: a route is actively being followed.
	EnRoute
)

func (s JobState) String() string {
	switch s {
	case Available:
		return "available"
	case EnRoute:
		return "en_route"
	default:
		return "unknown"
	}
}
