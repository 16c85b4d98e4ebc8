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
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/utils"
)

// ParticipantBackfillService records the attendance of ended sessions.
// It never touches the session status.
type ParticipantBackfillService struct {
	sessions domain.LiveSessionRepository
	provider domain.ConferencingProvider
	now      func() time.Time
}

// NewParticipantBackfillService creates a new ParticipantBackfillService
func NewParticipantBackfillService(sessions domain.LiveSessionRepository, provider domain.ConferencingProvider) *ParticipantBackfillService {
	return &ParticipantBackfillService{
		sessions: sessions,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ServiceReady checks if the service is ready for use.
func (s *ParticipantBackfillService) ServiceReady() bool {
	return s.sessions != nil && s.provider != nil
}

// ProcessTask runs a backfill task. A task that is not due yet comes back as a
// domain.DeferredError. Provider failures are returned so the queue retries them.
func (s *ParticipantBackfillService) ProcessTask(ctx context.Context, task models.ParticipantBackfillTask) error {
	if task.SessionID == "" {
		return domain.NewValidationError("backfill task has no session id")
	}
	ctx = logging.WithSession(ctx, task.SessionID, "")

	now := s.now()
	if !task.Due(now) {
		return domain.NewDeferredError("participant backfill not due yet", task.NotBefore.Sub(now))
	}

	session, err := s.sessions.Get(ctx, task.SessionID)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			slog.InfoContext(ctx, "session of backfill task not found, dropping task")
			return nil
		}
		return err
	}
	if session.HasParticipants() {
		slog.DebugContext(ctx, "participants already recorded, skipping backfill")
		return nil
	}

	meetingID := utils.FirstNonEmpty(session.ProviderMeetingUUID, session.ProviderMeetingID)
	if meetingID == "" {
		slog.WarnContext(ctx, "session has no provider meeting id, cannot fetch participants")
		return nil
	}

	report, err := s.provider.FetchParticipants(ctx, meetingID)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeValidation {
			slog.WarnContext(ctx, "participants cannot be fetched for this session", logging.ErrKey, err)
			return nil
		}
		slog.WarnContext(ctx, "failed to fetch participants", logging.ErrKey, err)
		return err
	}
	if report.IsEmpty() {
		slog.InfoContext(ctx, "participant report not available yet, nothing recorded")
		return nil
	}

	return s.record(ctx, session.ID, report.Count(), report.Records)
}

// ForceParticipants records an explicit attendance count when none is recorded yet.
func (s *ParticipantBackfillService) ForceParticipants(ctx context.Context, sessionID string, count int) (bool, error) {
	if sessionID == "" {
		return false, domain.NewValidationError("session id is required")
	}
	if count < 0 {
		return false, domain.NewValidationError("participant count cannot be negative")
	}
	ctx = logging.WithSession(ctx, sessionID, "")

	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return false, err
	}

	recorded, err := s.sessions.RecordParticipants(ctx, sessionID, count, nil)
	if err != nil {
		return false, err
	}
	slog.InfoContext(ctx, "operator recorded participants", "participant_count", count, "recorded", recorded)
	return recorded, nil
}

func (s *ParticipantBackfillService) record(ctx context.Context, sessionID string, count int, records []models.ParticipantRecord) error {
	recorded, err := s.sessions.RecordParticipants(ctx, sessionID, count, records)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record participants", logging.ErrKey, err)
		return err
	}
	if !recorded {
		slog.DebugContext(ctx, "participants were recorded concurrently, nothing written")
		return nil
	}
	slog.InfoContext(ctx, "participants recorded", "participant_count", count, "records", len(records))
	return nil
}
