// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/utils"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeDB records statements and answers them from canned results.
type fakeDB struct {
	execs    []string
	execArgs [][]any
	execTag  string
	execErr  error
	rowScan  func(dest ...any) error
	pingErr  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag(f.execTag), f.execErr
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{scan: f.rowScan}
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func existsRow(exists bool) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*bool)) = exists
		return nil
	}
}

func TestBuildConditionalUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	active := models.SessionStatusActive
	failed := models.SessionStatusRecordingFailed
	scheduled := models.SessionStatusScheduled

	tests := []struct {
		name     string
		expected models.SessionStatus
		patch    models.SessionPatch
		query    string
		args     int
		ok       bool
	}{
		{
			name:     "start",
			expected: models.SessionStatusScheduled,
			patch:    models.SessionPatch{Status: &active, StartedAt: &now, ProviderMeetingUUID: utils.Ptr("uuid==")},
			query: "UPDATE live_sessions SET status = $3, started_at = $4, " +
				"provider_meeting_uuid = COALESCE(NULLIF(provider_meeting_uuid, ''), $5), updated_at = $6 " +
				"WHERE id = $1 AND status = $2 AND started_at IS NULL",
			args: 6,
			ok:   true,
		},
		{
			name:     "media id",
			expected: models.SessionStatusEnded,
			patch:    models.SessionPatch{RecordingMediaID: utils.Ptr("media-1")},
			query: "UPDATE live_sessions SET recording_media_id = $3, updated_at = $4 " +
				"WHERE id = $1 AND status = $2 AND (recording_media_id IS NULL OR recording_media_id = '')",
			args: 4,
			ok:   true,
		},
		{
			name:     "recording failure",
			expected: models.SessionStatusActive,
			patch:    models.SessionPatch{Status: &failed, RecordingError: utils.Ptr("timeout")},
			query:    "UPDATE live_sessions SET status = $3, recording_error = $4, updated_at = $5 WHERE id = $1 AND status = $2",
			args:     5,
			ok:       true,
		},
		{
			name:     "backward transition",
			expected: models.SessionStatusEnded,
			patch:    models.SessionPatch{Status: &scheduled},
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, ok := buildConditionalUpdate("sess-1", tt.expected, tt.patch, now)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.query, query)
			require.Len(t, args, tt.args)
			assert.Equal(t, "sess-1", args[0])
			assert.Equal(t, string(tt.expected), args[1])
		})
	}
}

func TestBuildFindByProviderMeeting(t *testing.T) {
	query, args := buildFindByProviderMeeting("111", nil)
	assert.NotContains(t, query, "ANY")
	assert.Equal(t, []any{"111"}, args)

	query, args = buildFindByProviderMeeting("111", []models.SessionStatus{models.SessionStatusScheduled, models.SessionStatusActive})
	assert.Contains(t, query, "status = ANY($2)")
	assert.True(t, strings.HasSuffix(query, "ORDER BY COALESCE(started_at, created_at) DESC, id DESC LIMIT 1"))
	assert.Equal(t, []any{"111", []string{"scheduled", "active"}}, args)
}

func TestLiveSessionRepository_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	active := models.SessionStatusActive
	patch := models.SessionPatch{Status: &active, StartedAt: utils.Ptr(time.Now())}

	tests := []struct {
		name        string
		execTag     string
		execErr     error
		exists      bool
		updated     bool
		wantErr     bool
		wantErrType domain.ErrorType
	}{
		{name: "row updated", execTag: "UPDATE 1", updated: true},
		{name: "precondition lost", execTag: "UPDATE 0", exists: true},
		{name: "missing session", execTag: "UPDATE 0", wantErr: true, wantErrType: domain.ErrorTypeNotFound},
		{name: "database error", execErr: errors.New("boom"), wantErr: true, wantErrType: domain.ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{execTag: tt.execTag, execErr: tt.execErr, rowScan: existsRow(tt.exists)}
			repo := NewLiveSessionRepository(db)

			updated, err := repo.ConditionalUpdate(ctx, "sess-1", models.SessionStatusScheduled, patch)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrType, domain.GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.updated, updated)
		})
	}

	t.Run("impossible transition skips the database", func(t *testing.T) {
		db := &fakeDB{}
		updated, err := NewLiveSessionRepository(db).ConditionalUpdate(ctx, "sess-1", models.SessionStatusEnded, patch)
		require.NoError(t, err)
		assert.False(t, updated)
		assert.Empty(t, db.execs)
	})
}

func TestLiveSessionRepository_RecordParticipants(t *testing.T) {
	ctx := context.Background()

	db := &fakeDB{execTag: "UPDATE 1"}
	recorded, err := NewLiveSessionRepository(db).RecordParticipants(ctx, "sess-1", 2, []models.ParticipantRecord{{Name: "Ada"}})
	require.NoError(t, err)
	assert.True(t, recorded)
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "participants_fetched_at IS NULL")
	assert.Equal(t, 2, db.execArgs[0][1])

	db = &fakeDB{execTag: "UPDATE 0", rowScan: existsRow(true)}
	recorded, err = NewLiveSessionRepository(db).RecordParticipants(ctx, "sess-1", 2, nil)
	require.NoError(t, err)
	assert.False(t, recorded)
}

func TestLiveSessionRepository_GetNotFound(t *testing.T) {
	db := &fakeDB{rowScan: func(...any) error { return pgx.ErrNoRows }}

	_, err := NewLiveSessionRepository(db).Get(context.Background(), "sess-1")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

	_, err = NewLiveSessionRepository(db).FindByProviderMeetingID(context.Background(), "111", models.SessionStatusActive)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestLiveSessionRepository_Upsert(t *testing.T) {
	db := &fakeDB{execTag: "INSERT 0 1"}
	repo := NewLiveSessionRepository(db)

	require.NoError(t, repo.Upsert(context.Background(), &models.LiveSession{ID: "sess-1", ProviderMeetingID: "111"}))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "WHERE live_sessions.status = 'scheduled'")

	err := repo.Upsert(context.Background(), &models.LiveSession{ID: "sess-1", ProviderMeetingID: "111", Status: models.SessionStatusActive})
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestLiveSessionRepository_IsReady(t *testing.T) {
	assert.NoError(t, NewLiveSessionRepository(&fakeDB{}).IsReady(context.Background()))

	err := NewLiveSessionRepository(&fakeDB{pingErr: errors.New("refused")}).IsReady(context.Background())
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, Migrate(context.Background(), db))
	require.NotEmpty(t, db.execs)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS live_sessions")

	db = &fakeDB{execErr: errors.New("syntax error")}
	assert.Error(t, Migrate(context.Background(), db))
}

func TestMapError(t *testing.T) {
	_, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "test")

	tests := []struct {
		name     string
		err      error
		expected domain.ErrorType
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrorTypeNotFound},
		{"unique violation", &pgconn.PgError{Code: uniqueViolation}, domain.ErrorTypeConflict},
		{"deadline", context.DeadlineExceeded, domain.ErrorTypeUnavailable},
		{"other", errors.New("boom"), domain.ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, domain.GetErrorType(mapError(span, tt.err, "msg")))
		})
	}
}

func TestEnrollmentRepository_Put(t *testing.T) {
	db := &fakeDB{execTag: "INSERT 0 1"}
	repo := NewEnrollmentRepository(db)

	require.NoError(t, repo.Put(context.Background(), &models.Enrollment{ID: "e1", ClassID: "c1", UserID: "u1", Status: models.EnrollmentStatusApproved}))
	assert.Equal(t, []any{"e1", "c1", "u1", "APPROVED"}, db.execArgs[0])

	err := repo.Put(context.Background(), &models.Enrollment{ID: "e1"})
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestNotificationRepository_Create(t *testing.T) {
	db := &fakeDB{execTag: "INSERT 0 1"}
	record := &models.NotificationRecord{UserID: "u1", Kind: models.NotificationKindRecordingReady, Payload: map[string]any{"session_id": "s1"}}

	require.NoError(t, NewNotificationRepository(db).Create(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.JSONEq(t, `{"session_id":"s1"}`, string(db.execArgs[0][5].([]byte)))
}
