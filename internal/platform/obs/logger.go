package obs

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

type LogOptions struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// NewLogger builds the root logger for the process. Components derive their
// own loggers from it with Named.
func NewLogger(name string, opts LogOptions) hclog.InterceptLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:            name,
		Level:           level,
		Output:          out,
		JSONFormat:      opts.JSON,
		IncludeLocation: false,
		Color:           hclog.AutoColor,
	})
}
