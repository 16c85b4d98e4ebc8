// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// EnrollmentRepository implements domain.EnrollmentRepository on PostgreSQL.
type EnrollmentRepository struct {
	db Querier
}

// Ensure EnrollmentRepository implements EnrollmentRepository
var _ domain.EnrollmentRepository = (*EnrollmentRepository)(nil)

// NewEnrollmentRepository creates an enrollment repository.
func NewEnrollmentRepository(db Querier) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListApprovedByClass returns the approved enrollments of a class.
func (r *EnrollmentRepository) ListApprovedByClass(ctx context.Context, classID string) ([]*models.Enrollment, error) {
	if classID == "" {
		return nil, domain.NewValidationError("class ID is required")
	}

	ctx, span := startSpan(ctx, "select", "enrollments")
	defer span.End()

	rows, err := r.db.Query(ctx, `SELECT id, class_id, user_id, status, updated_at
		FROM enrollments WHERE class_id = $1 AND status = $2 ORDER BY id`,
		classID, string(models.EnrollmentStatusApproved))
	if err != nil {
		return nil, mapError(span, err, "failed to list enrollments")
	}
	defer rows.Close()

	var enrollments []*models.Enrollment
	for rows.Next() {
		var (
			enrollment models.Enrollment
			status     string
			updatedAt  time.Time
		)
		if err := rows.Scan(&enrollment.ID, &enrollment.ClassID, &enrollment.UserID, &status, &updatedAt); err != nil {
			return nil, mapError(span, err, "failed to read enrollment")
		}
		enrollment.Status = models.EnrollmentStatus(status)
		enrollment.UpdatedAt = &updatedAt
		enrollments = append(enrollments, &enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(span, err, "failed to list enrollments")
	}

	span.SetStatus(codes.Ok, "")
	return enrollments, nil
}

// Put inserts or replaces an enrollment.
func (r *EnrollmentRepository) Put(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment == nil || enrollment.ID == "" {
		return domain.NewValidationError("enrollment ID is required")
	}
	if enrollment.ClassID == "" || enrollment.UserID == "" {
		return domain.NewValidationError("enrollment class ID and user ID are required")
	}

	ctx, span := startSpan(ctx, "upsert", "enrollments")
	defer span.End()

	_, err := r.db.Exec(ctx, `INSERT INTO enrollments (id, class_id, user_id, status, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			class_id = EXCLUDED.class_id,
			user_id = EXCLUDED.user_id,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		enrollment.ID, enrollment.ClassID, enrollment.UserID, string(enrollment.Status))
	if err != nil {
		return mapError(span, err, "failed to store enrollment")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
