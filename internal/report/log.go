package report

import (
	"context"

	"github.com/oshokin/installtool/internal/logger"
)

// LogSink writes events through the context logger.
type LogSink struct{}

// NewLogSink returns a sink logging every event.
func NewLogSink() *LogSink {
	return new(LogSink)
}

// Emit logs event at info level, or error level when it carries a failure.
func (*LogSink) Emit(ctx context.Context, event Event) {
	kvs := []any{"kind", string(event.Kind)}

	if event.RunID != "" {
		kvs = append(kvs, "run_id", event.RunID)
	}

	if event.Host != "" {
		kvs = append(kvs, "host", string(event.Host))
	}

	if event.Artifact != "" {
		kvs = append(kvs, "artifact", event.Artifact)
	}

	if event.Kind == KindRemoteCommand {
		kvs = append(kvs,
			"command", event.Command,
			"privileged", event.Privileged,
			"exit_status", event.ExitStatus,
			"stdout", event.Stdout,
			"stderr", event.Stderr,
		)
	}

	if event.State != "" {
		kvs = append(kvs, "state", string(event.State))
	}

	kvs = append(kvs, "ok", event.OK)

	message := event.Message
	if message == "" {
		message = string(event.Kind)
	}

	if event.Err != nil || !event.OK {
		if event.Err != nil {
			kvs = append(kvs, "error", event.Err)
		}

		logger.ErrorKV(ctx, message, kvs...)

		return
	}

	logger.InfoKV(ctx, message, kvs...)
}
