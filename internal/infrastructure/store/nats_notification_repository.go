// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// NatsNotificationRepository is the NATS KV store repository for notification records.
type NatsNotificationRepository struct {
	*NatsBaseRepository[models.NotificationRecord]
	keyBuilder *KeyBuilder
}

// Ensure NatsNotificationRepository implements NotificationRepository
var _ domain.NotificationRepository = (*NatsNotificationRepository)(nil)

// NewNatsNotificationRepository creates a new NATS KV store repository for notifications.
func NewNatsNotificationRepository(kvStore INatsKeyValue) *NatsNotificationRepository {
	return &NatsNotificationRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.NotificationRecord](kvStore, "notification"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

// Create stores a notification record with a per-user index
func (r *NatsNotificationRepository) Create(ctx context.Context, record *models.NotificationRecord) error {
	if record == nil || record.UserID == "" {
		return domain.NewValidationError("notification user ID is required")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if err := r.Put(ctx, r.keyBuilder.EntityKey(KeyPrefixNotification, record.ID), record); err != nil {
		return err
	}
	return r.PutIndex(ctx, r.keyBuilder.IndexKey(KeyPrefixIndexUser, record.UserID, record.ID))
}
