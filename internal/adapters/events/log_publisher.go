package events

import (
	"context"
	"driver-dispatch-client/internal/domain"

	"github.com/hashicorp/go-hclog"
)

// LogPublisher records job events in the log only. Used when no broker is
// configured.
type LogPublisher struct {
	log hclog.Logger
}

func NewLogPublisher(log hclog.Logger) *LogPublisher {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) PublishJobEvent(_ context.Context, ev domain.JobEvent) error {
	p.log.Info("job event",
		"type", string(ev.Type),
		"id", ev.ID,
		"driver_id", ev.DriverID,
		"position", domain.Coordinates{Lon: ev.Lon, Lat: ev.Lat}.String(),
		"route_points", ev.RoutePoints,
	)
	return nil
}
