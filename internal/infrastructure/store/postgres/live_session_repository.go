// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

const sessionColumns = `id, provider_meeting_id, COALESCE(provider_meeting_uuid, ''), class_id, owner_id, title, status,
	started_at, ended_at, recording_media_id, COALESCE(recording_error, ''),
	participant_count, participants_fetched_at, participants_snapshot, created_at, updated_at`

// LiveSessionRepository implements domain.LiveSessionRepository on PostgreSQL.
type LiveSessionRepository struct {
	db  Querier
	now func() time.Time
}

// Ensure LiveSessionRepository implements LiveSessionRepository
var _ domain.LiveSessionRepository = (*LiveSessionRepository)(nil)

// NewLiveSessionRepository creates a live session repository.
func NewLiveSessionRepository(db Querier) *LiveSessionRepository {
	return &LiveSessionRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// IsReady pings the database.
func (r *LiveSessionRepository) IsReady(ctx context.Context) error {
	if r.db == nil {
		return domain.NewUnavailableError("live session database is not configured")
	}
	if err := r.db.Ping(ctx); err != nil {
		return domain.NewUnavailableError("live session database is not reachable", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.LiveSession, error) {
	var (
		session  models.LiveSession
		status   string
		snapshot []byte
	)
	err := row.Scan(
		&session.ID, &session.ProviderMeetingID, &session.ProviderMeetingUUID,
		&session.ClassID, &session.OwnerID, &session.Title, &status,
		&session.StartedAt, &session.EndedAt, &session.RecordingMediaID, &session.RecordingError,
		&session.ParticipantCount, &session.ParticipantsFetchedAt, &snapshot,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.Status = models.SessionStatus(status)
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &session.ParticipantsSnapshot); err != nil {
			return nil, fmt.Errorf("decode participants snapshot: %w", err)
		}
	}
	return &session, nil
}

// Get returns a session by id
func (r *LiveSessionRepository) Get(ctx context.Context, sessionID string) (*models.LiveSession, error) {
	if sessionID == "" {
		return nil, domain.NewValidationError("session ID is required")
	}

	ctx, span := startSpan(ctx, "select", "live_sessions")
	defer span.End()

	session, err := scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM live_sessions WHERE id = $1`, sessionID))
	if err != nil {
		return nil, mapError(span, err, fmt.Sprintf("live session '%s'", sessionID))
	}
	span.SetStatus(codes.Ok, "")
	return session, nil
}

// FindByProviderMeetingID returns the most recent session of the provider meeting
// whose status is one of statuses (any status when none are given).
func (r *LiveSessionRepository) FindByProviderMeetingID(ctx context.Context, providerMeetingID string, statuses ...models.SessionStatus) (*models.LiveSession, error) {
	if providerMeetingID == "" {
		return nil, domain.NewValidationError("provider meeting ID is required")
	}

	ctx, span := startSpan(ctx, "select", "live_sessions")
	defer span.End()

	query, args := buildFindByProviderMeeting(providerMeetingID, statuses)
	session, err := scanSession(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(span, err, fmt.Sprintf("no live session for provider meeting '%s'", providerMeetingID))
	}
	span.SetStatus(codes.Ok, "")
	return session, nil
}

func buildFindByProviderMeeting(providerMeetingID string, statuses []models.SessionStatus) (string, []any) {
	query := `SELECT ` + sessionColumns + ` FROM live_sessions WHERE provider_meeting_id = $1`
	args := []any{providerMeetingID}
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, status := range statuses {
			values = append(values, string(status))
		}
		query += ` AND status = ANY($2)`
		args = append(args, values)
	}
	query += ` ORDER BY COALESCE(started_at, created_at) DESC, id DESC LIMIT 1`
	return query, args
}

// buildConditionalUpdate renders the compare-and-set UPDATE for a patch.
// ok is false when the patch can never apply from expectedStatus.
func buildConditionalUpdate(sessionID string, expectedStatus models.SessionStatus, patch models.SessionPatch, now time.Time) (query string, args []any, ok bool) {
	if patch.Status != nil && !expectedStatus.CanTransitionTo(*patch.Status) {
		return "", nil, false
	}

	args = []any{sessionID, string(expectedStatus)}
	var sets []string
	where := []string{"id = $1", "status = $2"}

	add := func(column string, value any) string {
		args = append(args, value)
		placeholder := fmt.Sprintf("$%d", len(args))
		sets = append(sets, fmt.Sprintf("%s = %s", column, placeholder))
		return placeholder
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
		where = append(where, "started_at IS NULL")
	}
	if patch.EndedAt != nil {
		add("ended_at", *patch.EndedAt)
		where = append(where, "ended_at IS NULL")
	}
	if patch.RecordingMediaID != nil {
		add("recording_media_id", *patch.RecordingMediaID)
		where = append(where, "(recording_media_id IS NULL OR recording_media_id = '')")
	}
	if patch.RecordingError != nil {
		add("recording_error", *patch.RecordingError)
	}
	if patch.ProviderMeetingUUID != nil {
		args = append(args, *patch.ProviderMeetingUUID)
		sets = append(sets, fmt.Sprintf("provider_meeting_uuid = COALESCE(NULLIF(provider_meeting_uuid, ''), $%d)", len(args)))
	}
	add("updated_at", now)

	query = fmt.Sprintf("UPDATE live_sessions SET %s WHERE %s",
		strings.Join(sets, ", "), strings.Join(where, " AND "))
	return query, args, true
}

// ConditionalUpdate applies patch in one guarded UPDATE.
func (r *LiveSessionRepository) ConditionalUpdate(ctx context.Context, sessionID string, expectedStatus models.SessionStatus, patch models.SessionPatch) (bool, error) {
	if sessionID == "" {
		return false, domain.NewValidationError("session ID is required")
	}

	query, args, ok := buildConditionalUpdate(sessionID, expectedStatus, patch, r.now())
	if !ok {
		return false, nil
	}

	ctx, span := startSpan(ctx, "update", "live_sessions")
	defer span.End()
	span.SetAttributes(attribute.String("live_session.expected_status", string(expectedStatus)))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, mapError(span, err, "failed to update live session")
	}
	if tag.RowsAffected() == 0 {
		return false, r.ensureExists(ctx, sessionID)
	}
	span.SetStatus(codes.Ok, "")
	return true, nil
}

// RecordParticipants stores attendance unless it is already recorded.
func (r *LiveSessionRepository) RecordParticipants(ctx context.Context, sessionID string, count int, snapshot []models.ParticipantRecord) (bool, error) {
	if sessionID == "" {
		return false, domain.NewValidationError("session ID is required")
	}
	if count < 0 {
		return false, domain.NewValidationError("participant count cannot be negative")
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return false, domain.NewInternalError("failed to encode participants snapshot", err)
	}

	ctx, span := startSpan(ctx, "update", "live_sessions")
	defer span.End()

	tag, err := r.db.Exec(ctx, `UPDATE live_sessions
		SET participant_count = $2, participants_snapshot = $3, participants_fetched_at = $4, updated_at = $4
		WHERE id = $1 AND participants_fetched_at IS NULL`,
		sessionID, count, snapshotJSON, r.now())
	if err != nil {
		return false, mapError(span, err, "failed to record participants")
	}
	if tag.RowsAffected() == 0 {
		return false, r.ensureExists(ctx, sessionID)
	}
	span.SetStatus(codes.Ok, "")
	return true, nil
}

// ensureExists distinguishes a lost precondition from a missing row.
func (r *LiveSessionRepository) ensureExists(ctx context.Context, sessionID string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM live_sessions WHERE id = $1)`, sessionID).Scan(&exists); err != nil {
		return domain.NewInternalError("failed to check live session", err)
	}
	if !exists {
		return domain.NewNotFoundError(fmt.Sprintf("live session '%s' not found", sessionID))
	}
	return nil
}

// Upsert inserts a scheduled session or refreshes one that is still scheduled.
func (r *LiveSessionRepository) Upsert(ctx context.Context, session *models.LiveSession) error {
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

	ctx, span := startSpan(ctx, "upsert", "live_sessions")
	defer span.End()

	_, err := r.db.Exec(ctx, `INSERT INTO live_sessions (id, provider_meeting_id, class_id, owner_id, title, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'scheduled', $6, $6)
		ON CONFLICT (id) DO UPDATE SET
			provider_meeting_id = EXCLUDED.provider_meeting_id,
			class_id = EXCLUDED.class_id,
			owner_id = EXCLUDED.owner_id,
			title = EXCLUDED.title,
			updated_at = EXCLUDED.updated_at
		WHERE live_sessions.status = 'scheduled'`,
		session.ID, session.ProviderMeetingID, session.ClassID, session.OwnerID, session.Title, r.now())
	if err != nil {
		return mapError(span, err, "failed to upsert live session")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
