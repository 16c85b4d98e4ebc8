// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// NotificationPublisher announces stored notification records.
type NotificationPublisher interface {
	SendNotificationCreated(ctx context.Context, record *models.NotificationRecord) error
}

// NotificationSink persists notification records and announces them on NATS.
type NotificationSink struct {
	repo      domain.NotificationRepository
	publisher NotificationPublisher
}

// Ensure NotificationSink implements NotificationSink
var _ domain.NotificationSink = (*NotificationSink)(nil)

// NewNotificationSink creates a sink. publisher may be nil to only persist.
func NewNotificationSink(repo domain.NotificationRepository, publisher NotificationPublisher) *NotificationSink {
	return &NotificationSink{repo: repo, publisher: publisher}
}

// Emit stores the record, then publishes it. A failed store skips the publish
// so consumers never see a record that does not exist.
func (s *NotificationSink) Emit(ctx context.Context, record *models.NotificationRecord) error {
	if record == nil || record.UserID == "" {
		return domain.NewValidationError("notification user ID is required")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.IsRead = false

	if err := s.repo.Create(ctx, record); err != nil {
		return err
	}

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.SendNotificationCreated(ctx, record); err != nil {
		slog.WarnContext(ctx, "notification stored but not announced",
			"notification_id", record.ID,
			"user_id", record.UserID,
			logging.ErrKey, err,
		)
		return errors.Join(domain.ErrNotificationNotAnnounced, err)
	}
	return nil
}
