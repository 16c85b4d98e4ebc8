// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/utils"
)

func TestSessionSyncService_SyncScheduledSession(t *testing.T) {
	tests := []struct {
		name     string
		session  *models.LiveSession
		wantType *domain.ErrorType
	}{
		{name: "scheduled session", session: scheduledSession()},
		{name: "status defaults to scheduled", session: func() *models.LiveSession {
			s := scheduledSession()
			s.Status = ""
			return s
		}()},
		{name: "nil session", wantType: utils.Ptr(domain.ErrorTypeValidation)},
		{name: "missing provider id", session: func() *models.LiveSession {
			s := scheduledSession()
			s.ProviderMeetingID = ""
			return s
		}(), wantType: utils.Ptr(domain.ErrorTypeValidation)},
		{name: "non scheduled status", session: endedSession(), wantType: utils.Ptr(domain.ErrorTypeValidation)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := newMemSessions()
			svc := NewSessionSyncService(sessions, new(domain.MockEnrollmentRepository))

			err := svc.SyncScheduledSession(context.Background(), tt.session)

			if tt.wantType != nil {
				require.Error(t, err)
				assert.Equal(t, *tt.wantType, domain.GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.SessionStatusScheduled, sessions.snapshot("sess-1").Status)
		})
	}
}

func TestSessionSyncService_SyncDoesNotRewindStartedSession(t *testing.T) {
	active := scheduledSession()
	active.Status = models.SessionStatusActive
	sessions := newMemSessions(active)
	svc := NewSessionSyncService(sessions, new(domain.MockEnrollmentRepository))

	require.NoError(t, svc.SyncScheduledSession(context.Background(), scheduledSession()))
	assert.Equal(t, models.SessionStatusActive, sessions.snapshot("sess-1").Status)
}

func TestSessionSyncService_SyncEnrollment(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stores the enrollment", func(t *testing.T) {
		repo := new(domain.MockEnrollmentRepository)
		repo.On("Put", mock.Anything, mock.MatchedBy(func(e *models.Enrollment) bool {
			return e.ID == "enr-1" && e.UpdatedAt != nil && e.UpdatedAt.Equal(now)
		})).Return(nil)

		svc := NewSessionSyncService(newMemSessions(), repo)
		svc.now = func() time.Time { return now }

		err := svc.SyncEnrollment(context.Background(), &models.Enrollment{
			ID:      "enr-1",
			ClassID: "class-1",
			UserID:  "u1",
			Status:  models.EnrollmentStatusApproved,
		})

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("store failure", func(t *testing.T) {
		repo := new(domain.MockEnrollmentRepository)
		repo.On("Put", mock.Anything, mock.Anything).Return(domain.NewUnavailableError("kv down"))

		err := NewSessionSyncService(newMemSessions(), repo).SyncEnrollment(context.Background(),
			enrollment("u1", models.EnrollmentStatusPending))
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})

	invalid := []struct {
		name       string
		enrollment *models.Enrollment
	}{
		{name: "nil", enrollment: nil},
		{name: "missing user", enrollment: &models.Enrollment{ID: "enr-1", ClassID: "class-1", Status: models.EnrollmentStatusApproved}},
		{name: "unknown status", enrollment: &models.Enrollment{ID: "enr-1", ClassID: "class-1", UserID: "u1", Status: "waitlisted"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(domain.MockEnrollmentRepository)
			err := NewSessionSyncService(newMemSessions(), repo).SyncEnrollment(context.Background(), tt.enrollment)

			assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
			repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
		})
	}
}
