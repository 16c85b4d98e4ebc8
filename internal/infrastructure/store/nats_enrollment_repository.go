// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// NatsEnrollmentRepository is the NATS KV store repository for class enrollments.
type NatsEnrollmentRepository struct {
	*NatsBaseRepository[models.Enrollment]
	keyBuilder *KeyBuilder
}

// Ensure NatsEnrollmentRepository implements EnrollmentRepository
var _ domain.EnrollmentRepository = (*NatsEnrollmentRepository)(nil)

// NewNatsEnrollmentRepository creates a new NATS KV store repository for enrollments.
func NewNatsEnrollmentRepository(kvStore INatsKeyValue) *NatsEnrollmentRepository {
	return &NatsEnrollmentRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Enrollment](kvStore, "enrollment"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

// ListApprovedByClass returns the approved enrollments of a class
func (r *NatsEnrollmentRepository) ListApprovedByClass(ctx context.Context, classID string) ([]*models.Enrollment, error) {
	if classID == "" {
		return nil, domain.NewValidationError("class ID is required")
	}

	indexKeys, err := r.ListKeys(ctx, r.keyBuilder.IndexPrefix(KeyPrefixIndexClass, classID))
	if err != nil {
		return nil, err
	}

	enrollments := make([]*models.Enrollment, 0, len(indexKeys))
	for _, indexKey := range indexKeys {
		enrollmentID, err := IndexEntityID(indexKey)
		if err != nil {
			continue
		}

		enrollment, err := r.Get(ctx, r.keyBuilder.EntityKey(KeyPrefixEnrollment, enrollmentID))
		if err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
				continue
			}
			return nil, err
		}
		if enrollment.ClassID != classID || !enrollment.IsApproved() {
			continue
		}
		enrollments = append(enrollments, enrollment)
	}

	return enrollments, nil
}

// Put stores an enrollment and its class index
func (r *NatsEnrollmentRepository) Put(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment == nil || enrollment.ID == "" {
		return domain.NewValidationError("enrollment ID is required")
	}
	if enrollment.ClassID == "" || enrollment.UserID == "" {
		return domain.NewValidationError("enrollment class ID and user ID are required")
	}

	key := r.keyBuilder.EntityKey(KeyPrefixEnrollment, enrollment.ID)

	previous, err := r.Get(ctx, key)
	if err != nil && domain.GetErrorType(err) != domain.ErrorTypeNotFound {
		return err
	}

	if enrollment.UpdatedAt == nil {
		now := time.Now().UTC()
		enrollment.UpdatedAt = &now
	}
	if err := r.NatsBaseRepository.Put(ctx, key, enrollment); err != nil {
		return err
	}

	if previous != nil && previous.ClassID != enrollment.ClassID {
		if err := r.DeleteIndex(ctx, r.keyBuilder.IndexKey(KeyPrefixIndexClass, previous.ClassID, enrollment.ID)); err != nil {
			slog.WarnContext(ctx, "failed to delete stale class index",
				"enrollment_id", enrollment.ID, logging.ErrKey, err)
		}
	}
	return r.PutIndex(ctx, r.keyBuilder.IndexKey(KeyPrefixIndexClass, enrollment.ClassID, enrollment.ID))
}
