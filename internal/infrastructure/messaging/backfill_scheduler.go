// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// BackfillMsgID is the JetStream deduplication id of a session's backfill task.
func BackfillMsgID(sessionID string) string {
	return "backfill-" + sessionID
}

// BackfillScheduler queues participant backfill tasks on the task stream.
// The consumer holds a task back until its not_before time.
type BackfillScheduler struct {
	publisher *MessageBuilder
	now       func() time.Time
}

// Ensure BackfillScheduler implements BackfillScheduler
var _ domain.BackfillScheduler = (*BackfillScheduler)(nil)

// NewBackfillScheduler creates a scheduler publishing through the given builder.
func NewBackfillScheduler(publisher *MessageBuilder) *BackfillScheduler {
	return &BackfillScheduler{
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Schedule enqueues the participant fetch for sessionID to run after delay.
func (s *BackfillScheduler) Schedule(ctx context.Context, sessionID string, delay time.Duration) error {
	if sessionID == "" {
		return domain.NewValidationError("session ID is required")
	}
	if delay < 0 {
		delay = 0
	}

	now := s.now()
	task := models.ParticipantBackfillTask{
		SessionID:   sessionID,
		NotBefore:   now.Add(delay),
		ScheduledAt: now,
	}

	data, err := json.Marshal(task)
	if err != nil {
		return domain.NewInternalError("failed to encode backfill task", err)
	}

	if err := s.publisher.publishDurable(ctx, models.ParticipantBackfillSubject, data, BackfillMsgID(sessionID)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "scheduled participant backfill",
		logging.SessionIDKey, sessionID,
		"not_before", task.NotBefore,
	)
	return nil
}
