package obs

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-hclog"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// WithRequestID stores a correlation id on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time logs the duration of op when the returned func is called, along with
// the error errp points to, if any. Errors matching one of expected (a cache
// miss, say) are logged at debug level like a success. Typical use:
//
//	defer obs.Time(ctx, log, "directions.GetRoute")(&err)
func Time(ctx context.Context, log hclog.Logger, name string, expected ...error) func(errp *error) {
	start := time.Now()
	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp == nil || *errp == nil {
			log.Debug("op done", "req_id", reqID, "op", name, "dur_ms", dur.Milliseconds())
			return
		}

		for _, e := range expected {
			if errors.Is(*errp, e) {
				log.Debug("op done", "req_id", reqID, "op", name, "dur_ms", dur.Milliseconds(), "result", (*errp).Error())
				return
			}
		}
		log.Warn("op failed", "req_id", reqID, "op", name, "dur_ms", dur.Milliseconds(), "error", *errp)
	}
}
