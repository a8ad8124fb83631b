package service

import (
	"context"
	"log/slog"
	"time"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/metrics"
)

// publish sends ev on topic, stamping At when unset. Failures are logged only.
func publish(ctx context.Context, f feed.Feed, logger *slog.Logger, topic string, ev feed.Event) {
	if f == nil {
		return
	}
	if ev.At == 0 {
		ev.At = time.Now().UnixMilli()
	}
	if err := f.Publish(ctx, topic, ev); err != nil {
		logger.Warn("Failed to publish change event", "topic", topic, "kind", ev.Kind, "error", err)
		return
	}
	metrics.FeedEvents.WithLabelValues(string(ev.Kind)).Inc()
}
