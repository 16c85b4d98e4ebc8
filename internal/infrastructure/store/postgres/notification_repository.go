// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// NotificationRepository implements domain.NotificationRepository on PostgreSQL.
type NotificationRepository struct {
	db Querier
}

// Ensure NotificationRepository implements NotificationRepository
var _ domain.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a notification repository.
func NewNotificationRepository(db Querier) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification record.
func (r *NotificationRepository) Create(ctx context.Context, record *models.NotificationRecord) error {
	if record == nil || record.UserID == "" {
		return domain.NewValidationError("notification user ID is required")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return domain.NewInternalError("failed to encode notification payload", err)
	}

	ctx, span := startSpan(ctx, "insert", "notifications")
	defer span.End()

	_, err = r.db.Exec(ctx, `INSERT INTO notifications (id, user_id, kind, title, body, payload, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
		record.ID, record.UserID, string(record.Kind), record.Title, record.Body, payload, record.CreatedAt)
	if err != nil {
		return mapError(span, err, "failed to store notification")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
