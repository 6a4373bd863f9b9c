package notifications

import (
	"context"
	"log/slog"

	"podshare/internal/middleware"
)

// LogSink writes every event to the structured log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Deliver(ctx context.Context, e Event) error {
	middleware.Logger.InfoContext(ctx, "pod event",
		slog.String("event_id", e.ID),
		slog.String("event_type", string(e.Type)),
		slog.Uint64("pod_id", uint64(e.PodID)),
		slog.Uint64("request_id", uint64(e.RequestID)),
		slog.Uint64("recipient_id", uint64(e.Recipient().UserID)),
	)
	return nil
}
