// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// LiveSessionRepository is the session store adapter.
// Implementations must make ConditionalUpdate and RecordParticipants atomic
// compare-and-set writes; the lifecycle controller relies on that for idempotency.
type LiveSessionRepository interface {
	// Get returns the session by id or a NotFound error.
	Get(ctx context.Context, sessionID string) (*models.LiveSession, error)

	// FindByProviderMeetingID returns the session correlated with the provider meeting id.
	// When statuses are given, only sessions currently in one of them match.
	// A NotFound error is returned when nothing matches.
	FindByProviderMeetingID(ctx context.Context, providerMeetingID string, statuses ...models.SessionStatus) (*models.LiveSession, error)

	// ConditionalUpdate applies patch only when the session is in expectedStatus and
	// the patch's write-once fields are unset. It reports whether the write happened.
	ConditionalUpdate(ctx context.Context, sessionID string, expectedStatus models.SessionStatus, patch models.SessionPatch) (bool, error)

	// RecordParticipants writes attendance once. It reports false when attendance was already recorded.
	RecordParticipants(ctx context.Context, sessionID string, count int, snapshot []models.ParticipantRecord) (bool, error)

	// Upsert stores a scheduled session coming from the class platform.
	// Sessions that already left the scheduled state are not overwritten.
	Upsert(ctx context.Context, session *models.LiveSession) error

	IsReady(ctx context.Context) error
}

// EnrollmentRepository reads class enrollments.
type EnrollmentRepository interface {
	// ListApprovedByClass returns the APPROVED enrollments of a class as of now.
	ListApprovedByClass(ctx context.Context, classID string) ([]*models.Enrollment, error)

	// Put mirrors an upstream enrollment change.
	Put(ctx context.Context, enrollment *models.Enrollment) error
}

// NotificationRepository persists notification records.
type NotificationRepository interface {
	Create(ctx context.Context, record *models.NotificationRecord) error
}
