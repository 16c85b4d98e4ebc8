// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// NatsLiveSessionRepository is the NATS KV store repository for live sessions.
// Sessions live under session/{id}; index/provider_meeting/{meetingID}/{id}
// correlates provider webhooks with sessions.
type NatsLiveSessionRepository struct {
	*NatsBaseRepository[models.LiveSession]
	keyBuilder *KeyBuilder
	now        func() time.Time
}

// Ensure NatsLiveSessionRepository implements LiveSessionRepository
var _ domain.LiveSessionRepository = (*NatsLiveSessionRepository)(nil)

// NewNatsLiveSessionRepository creates a new NATS KV store repository for live sessions.
func NewNatsLiveSessionRepository(kvStore INatsKeyValue) *NatsLiveSessionRepository {
	return &NatsLiveSessionRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.LiveSession](kvStore, "live session"),
		keyBuilder:         NewKeyBuilder(""),
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// IsReady checks if the repository is ready
func (r *NatsLiveSessionRepository) IsReady(ctx context.Context) error {
	if !r.NatsBaseRepository.IsReady() {
		return domain.NewUnavailableError("live session store is not available")
	}
	return nil
}

func (r *NatsLiveSessionRepository) sessionKey(sessionID string) string {
	return r.keyBuilder.EntityKey(KeyPrefixSession, sessionID)
}

// Get returns a session by id
func (r *NatsLiveSessionRepository) Get(ctx context.Context, sessionID string) (*models.LiveSession, error) {
	if sessionID == "" {
		return nil, domain.NewValidationError("session ID is required")
	}
	return r.NatsBaseRepository.Get(ctx, r.sessionKey(sessionID))
}

// FindByProviderMeetingID resolves the provider meeting index. Several
// sessions may share a recurring meeting id; the most recent one among
// those in an allowed status wins.
func (r *NatsLiveSessionRepository) FindByProviderMeetingID(ctx context.Context, providerMeetingID string, statuses ...models.SessionStatus) (*models.LiveSession, error) {
	if providerMeetingID == "" {
		return nil, domain.NewValidationError("provider meeting ID is required")
	}

	indexKeys, err := r.ListKeys(ctx, r.keyBuilder.IndexPrefix(KeyPrefixIndexProviderMeeting, providerMeetingID))
	if err != nil {
		return nil, err
	}

	var found *models.LiveSession
	for _, indexKey := range indexKeys {
		sessionID, err := IndexEntityID(indexKey)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed index key", "index_key", indexKey, logging.ErrKey, err)
			continue
		}

		session, err := r.NatsBaseRepository.Get(ctx, r.sessionKey(sessionID))
		if err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
				slog.DebugContext(ctx, "provider meeting index points at a missing session", "index_key", indexKey)
				continue
			}
			return nil, err
		}

		// the index may be stale after a reschedule moved the session to another meeting
		if session.ProviderMeetingID != providerMeetingID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, session.Status) {
			continue
		}
		if found == nil || moreRecent(session, found) {
			found = session
		}
	}

	if found == nil {
		return nil, domain.NewNotFoundError(fmt.Sprintf("no live session for provider meeting '%s'", providerMeetingID))
	}
	return found, nil
}

// moreRecent orders sessions by start time, then creation time.
func moreRecent(a, b *models.LiveSession) bool {
	at, bt := recency(a), recency(b)
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return a.ID > b.ID
}

func recency(s *models.LiveSession) time.Time {
	if s.StartedAt != nil {
		return *s.StartedAt
	}
	if s.CreatedAt != nil {
		return *s.CreatedAt
	}
	return time.Time{}
}

// ConditionalUpdate applies patch in a compare-and-set write guarded by the
// expected status and the write-once fields.
func (r *NatsLiveSessionRepository) ConditionalUpdate(ctx context.Context, sessionID string, expectedStatus models.SessionStatus, patch models.SessionPatch) (bool, error) {
	if sessionID == "" {
		return false, domain.NewValidationError("session ID is required")
	}

	return r.Mutate(ctx, r.sessionKey(sessionID), func(session *models.LiveSession) bool {
		if session.Status != expectedStatus {
			return false
		}
		return patch.ApplyTo(session, r.now())
	})
}

// RecordParticipants stores the attendance snapshot unless one is already recorded.
func (r *NatsLiveSessionRepository) RecordParticipants(ctx context.Context, sessionID string, count int, snapshot []models.ParticipantRecord) (bool, error) {
	if sessionID == "" {
		return false, domain.NewValidationError("session ID is required")
	}
	if count < 0 {
		return false, domain.NewValidationError("participant count cannot be negative")
	}

	return r.Mutate(ctx, r.sessionKey(sessionID), func(session *models.LiveSession) bool {
		if session.HasParticipants() {
			return false
		}
		now := r.now()
		session.ParticipantCount = &count
		session.ParticipantsSnapshot = snapshot
		session.ParticipantsFetchedAt = &now
		session.UpdatedAt = &now
		return true
	})
}

// Upsert stores a scheduled session pushed by the class platform and keeps
// the provider meeting index in step. Sessions past scheduled are left alone.
func (r *NatsLiveSessionRepository) Upsert(ctx context.Context, session *models.LiveSession) error {
	if session == nil || session.ID == "" {
		return domain.NewValidationError("session ID is required")
	}
	if session.ProviderMeetingID == "" {
		return domain.NewValidationError("provider meeting ID is required")
	}
	if session.Status == "" {
		session.Status = models.SessionStatusScheduled
	}
	if session.Status != models.SessionStatusScheduled {
		return domain.NewValidationError(fmt.Sprintf("only scheduled sessions can be synced, got '%s'", session.Status))
	}

	key := r.sessionKey(session.ID)
	now := r.now()

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		existing, revision, err := r.GetWithRevision(ctx, key)
		if err != nil && domain.GetErrorType(err) != domain.ErrorTypeNotFound {
			return err
		}

		incoming := *session
		incoming.UpdatedAt = &now

		if existing == nil {
			incoming.CreatedAt = &now
			err = r.Create(ctx, key, &incoming)
			if err == nil {
				return r.reindex(ctx, "", &incoming)
			}
			if domain.GetErrorType(err) != domain.ErrorTypeConflict {
				return err
			}
			// created concurrently; re-read and apply the scheduled-only rule
			continue
		}

		if existing.Status != models.SessionStatusScheduled {
			slog.InfoContext(ctx, "session already left scheduled, ignoring sync",
				logging.SessionIDKey, session.ID,
				"status", existing.Status,
			)
			return nil
		}

		incoming.CreatedAt = existing.CreatedAt
		err = r.Update(ctx, key, &incoming, revision)
		if err == nil {
			return r.reindex(ctx, existing.ProviderMeetingID, &incoming)
		}
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			return err
		}
	}

	return domain.NewConflictError("live session is under heavy concurrent modification")
}

func (r *NatsLiveSessionRepository) reindex(ctx context.Context, previousMeetingID string, session *models.LiveSession) error {
	if previousMeetingID != "" && previousMeetingID != session.ProviderMeetingID {
		oldKey := r.keyBuilder.IndexKey(KeyPrefixIndexProviderMeeting, previousMeetingID, session.ID)
		if err := r.DeleteIndex(ctx, oldKey); err != nil {
			// FindByProviderMeetingID re-checks the session's meeting id, so a stale entry is harmless
			slog.WarnContext(ctx, "failed to delete stale provider meeting index",
				logging.SessionIDKey, session.ID, logging.ErrKey, err)
		}
	}
	return r.PutIndex(ctx, r.keyBuilder.IndexKey(KeyPrefixIndexProviderMeeting, session.ProviderMeetingID, session.ID))
}
