// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// Stream retention and deduplication settings.
const (
	webhookStreamMaxAge = 7 * 24 * time.Hour
	taskStreamMaxAge    = 7 * 24 * time.Hour
	duplicateWindow     = 10 * time.Minute

	// taskDuplicateWindow covers the backfill delay so a second meeting.ended
	// inside it cannot queue another fetch for the same session.
	taskDuplicateWindow = 2 * time.Hour
)

// IJetStreamStreams is the JetStream management interface needed at startup.
type IJetStreamStreams interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamConfigs returns the streams the service owns.
func StreamConfigs() []jetstream.StreamConfig {
	return []jetstream.StreamConfig{
		{
			Name:        models.WebhookStreamName,
			Description: "Verified Zoom webhook deliveries awaiting the lifecycle controller",
			Subjects:    []string{models.ZoomWebhookSubjectWildcard},
			Retention:   jetstream.WorkQueuePolicy,
			Storage:     jetstream.FileStorage,
			MaxAge:      webhookStreamMaxAge,
			Duplicates:  duplicateWindow,
		},
		{
			Name:        models.TaskStreamName,
			Description: "Delayed live session tasks such as the participant backfill",
			Subjects:    []string{models.TaskSubjectWildcard},
			Retention:   jetstream.WorkQueuePolicy,
			Storage:     jetstream.FileStorage,
			MaxAge:      taskStreamMaxAge,
			Duplicates:  taskDuplicateWindow,
		},
	}
}

// EnsureStreams creates the service's streams or brings their config up to date.
func EnsureStreams(ctx context.Context, js IJetStreamStreams) error {
	for _, cfg := range StreamConfigs() {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("failed to create or update stream %s: %w", cfg.Name, err)
		}
		slog.DebugContext(ctx, "JetStream stream ready", "stream", cfg.Name, "subjects", cfg.Subjects)
	}
	return nil
}
