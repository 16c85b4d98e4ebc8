// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// SessionSyncService mirrors sessions and enrollments published by the class
// platform into the service's own store.
type SessionSyncService struct {
	sessions    domain.LiveSessionRepository
	enrollments domain.EnrollmentRepository
	now         func() time.Time
}

// NewSessionSyncService creates a new SessionSyncService
func NewSessionSyncService(sessions domain.LiveSessionRepository, enrollments domain.EnrollmentRepository) *SessionSyncService {
	return &SessionSyncService{
		sessions:    sessions,
		enrollments: enrollments,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ServiceReady checks if the service is ready for use.
func (s *SessionSyncService) ServiceReady() bool {
	return s.sessions != nil && s.enrollments != nil
}

// SyncScheduledSession creates or replaces a scheduled session. Sessions that
// already started are left untouched by the store.
func (s *SessionSyncService) SyncScheduledSession(ctx context.Context, session *models.LiveSession) error {
	if session == nil || session.ID == "" {
		return domain.NewValidationError("session id is required")
	}
	if session.ProviderMeetingID == "" {
		return domain.NewValidationError("provider meeting id is required")
	}
	if session.Status != "" && session.Status != models.SessionStatusScheduled {
		return domain.NewValidationError("only scheduled sessions can be synced")
	}
	ctx = logging.WithSession(ctx, session.ID, session.ProviderMeetingID)

	if err := s.sessions.Upsert(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to sync scheduled session", logging.ErrKey, err)
		return err
	}
	slog.InfoContext(ctx, "scheduled session synced", "class_id", session.ClassID)
	return nil
}

// SyncEnrollment mirrors an enrollment change.
func (s *SessionSyncService) SyncEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment == nil || enrollment.ID == "" || enrollment.ClassID == "" || enrollment.UserID == "" {
		return domain.NewValidationError("enrollment is missing required ids")
	}
	switch enrollment.Status {
	case models.EnrollmentStatusApproved, models.EnrollmentStatusPending, models.EnrollmentStatusRejected:
	default:
		return domain.NewValidationError("unknown enrollment status: " + string(enrollment.Status))
	}
	if enrollment.UpdatedAt == nil {
		now := s.now()
		enrollment.UpdatedAt = &now
	}

	if err := s.enrollments.Put(ctx, enrollment); err != nil {
		slog.ErrorContext(ctx, "failed to sync enrollment", logging.ErrKey, err, "enrollment_id", enrollment.ID)
		return err
	}
	slog.DebugContext(ctx, "enrollment synced",
		"enrollment_id", enrollment.ID,
		"class_id", enrollment.ClassID,
		"status", enrollment.Status,
	)
	return nil
}
