package ports

import "driver-dispatch-client/internal/domain"

// Outbound real-time channel for position reports.
// Publish must never block the caller and never fail; undeliverable
// messages are dropped.
type LocationPublisher interface {
	Publish(update domain.LocationUpdate)
}
