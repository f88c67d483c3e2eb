package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobEventType string

const (
	EventDriverAvailable JobEventType = "driver.available"
	EventDriverEnRoute   JobEventType = "driver.en_route"
	EventDriverArrived   JobEventType = "driver.arrived"
)

// JobEvent is a lifecycle notification emitted when the driver's job status changes.
type JobEvent struct {
	ID          string       `json:"id"`
	Type        JobEventType `json:"type"`
	DriverID    int          `json:"driver_id"`
	Lon         float64      `json:"lon"`
	Lat         float64      `json:"lat"`
	RoutePoints int          `json:"route_points,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

func NewJobEvent(t JobEventType, driver DriverIdentity, pos Coordinates, routePoints int, at time.Time) JobEvent {
	return JobEvent{
		ID:          uuid.NewString(),
		Type:        t,
		DriverID:    driver.ID(),
		Lon:         pos.Lon,
		Lat:         pos.Lat,
		RoutePoints: routePoints,
		OccurredAt:  at.UTC(),
	}
}
