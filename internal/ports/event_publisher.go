package ports

import (
	"context"
	"driver-dispatch-client/internal/domain"
)

// Best-effort sink for driver job lifecycle events.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event domain.JobEvent) error
}
