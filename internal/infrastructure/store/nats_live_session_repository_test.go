// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/utils"
)

var fixedNow = time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

func newTestSessionRepo(t *testing.T) (*NatsLiveSessionRepository, *mockNatsKeyValue) {
	t.Helper()
	kv := newMockNatsKeyValue()
	repo := NewNatsLiveSessionRepository(kv)
	repo.now = func() time.Time { return fixedNow }
	return repo, kv
}

func scheduledSession(id, meetingID string) *models.LiveSession {
	return &models.LiveSession{
		ID:                id,
		ProviderMeetingID: meetingID,
		ClassID:           "class-1",
		OwnerID:           "owner-1",
		Title:             "Intro to Go",
		Status:            models.SessionStatusScheduled,
	}
}

// putSession writes a session and its index directly.
func putSession(t *testing.T, repo *NatsLiveSessionRepository, session *models.LiveSession) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, repo.sessionKey(session.ID), session))
	require.NoError(t, repo.PutIndex(ctx, repo.keyBuilder.IndexKey(KeyPrefixIndexProviderMeeting, session.ProviderMeetingID, session.ID)))
}

func TestNatsLiveSessionRepository_IsReady(t *testing.T) {
	repo, _ := newTestSessionRepo(t)
	assert.NoError(t, repo.IsReady(context.Background()))

	err := NewNatsLiveSessionRepository(nil).IsReady(context.Background())
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}

func TestNatsLiveSessionRepository_Get(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestSessionRepo(t)
	putSession(t, repo, scheduledSession("sess-1", "111"))

	session, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "111", session.ProviderMeetingID)

	_, err = repo.Get(ctx, "missing")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

	_, err = repo.Get(ctx, "")
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestNatsLiveSessionRepository_FindByProviderMeetingID(t *testing.T) {
	ctx := context.Background()
	earlier := fixedNow.Add(-24 * time.Hour)

	repo, kv := newTestSessionRepo(t)

	past := scheduledSession("sess-past", "111")
	past.Status = models.SessionStatusEnded
	past.StartedAt = &earlier
	putSession(t, repo, past)

	recent := scheduledSession("sess-recent", "111")
	recent.Status = models.SessionStatusEnded
	recent.StartedAt = &fixedNow
	putSession(t, repo, recent)

	upcoming := scheduledSession("sess-upcoming", "111")
	putSession(t, repo, upcoming)

	putSession(t, repo, scheduledSession("sess-other", "1112"))

	// a stale index entry left behind by a reschedule
	moved := scheduledSession("sess-moved", "222")
	putSession(t, repo, moved)
	require.NoError(t, repo.PutIndex(ctx, repo.keyBuilder.IndexKey(KeyPrefixIndexProviderMeeting, "111", "sess-moved")))

	// an index entry pointing at nothing
	require.NoError(t, repo.PutIndex(ctx, repo.keyBuilder.IndexKey(KeyPrefixIndexProviderMeeting, "111", "sess-gone")))
	require.NotEmpty(t, kv.keys())

	tests := []struct {
		name     string
		statuses []models.SessionStatus
		expected string
		wantErr  bool
	}{
		{
			name:     "scheduled only",
			statuses: []models.SessionStatus{models.SessionStatusScheduled},
			expected: "sess-upcoming",
		},
		{
			name:     "most recent ended",
			statuses: []models.SessionStatus{models.SessionStatusEnded},
			expected: "sess-recent",
		},
		{
			name:     "no match for status",
			statuses: []models.SessionStatus{models.SessionStatusActive},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := repo.FindByProviderMeetingID(ctx, "111", tt.statuses...)
			if tt.wantErr {
				assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, session.ID)
		})
	}

	t.Run("unknown meeting", func(t *testing.T) {
		_, err := repo.FindByProviderMeetingID(ctx, "999")
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})

	t.Run("any status", func(t *testing.T) {
		session, err := repo.FindByProviderMeetingID(ctx, "111")
		require.NoError(t, err)
		assert.Equal(t, "sess-recent", session.ID)
	})
}

func TestNatsLiveSessionRepository_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	started := fixedNow.Add(-time.Minute)
	active := models.SessionStatusActive
	ended := models.SessionStatusEnded

	tests := []struct {
		name     string
		expected models.SessionStatus
		patch    models.SessionPatch
		updated  bool
		status   models.SessionStatus
	}{
		{
			name:     "precondition holds",
			expected: models.SessionStatusScheduled,
			patch:    models.SessionPatch{Status: &active, StartedAt: &started},
			updated:  true,
			status:   models.SessionStatusActive,
		},
		{
			name:     "precondition lost",
			expected: models.SessionStatusActive,
			patch:    models.SessionPatch{Status: &ended, EndedAt: &started},
			updated:  false,
			status:   models.SessionStatusScheduled,
		},
		{
			name:     "backward transition rejected",
			expected: models.SessionStatusScheduled,
			patch:    models.SessionPatch{Status: &ended},
			updated:  false,
			status:   models.SessionStatusScheduled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := newTestSessionRepo(t)
			putSession(t, repo, scheduledSession("sess-1", "111"))

			updated, err := repo.ConditionalUpdate(ctx, "sess-1", tt.expected, tt.patch)
			require.NoError(t, err)
			assert.Equal(t, tt.updated, updated)

			stored, err := repo.Get(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, stored.Status)
		})
	}

	t.Run("missing session", func(t *testing.T) {
		repo, _ := newTestSessionRepo(t)
		_, err := repo.ConditionalUpdate(ctx, "nope", models.SessionStatusScheduled, models.SessionPatch{Status: &active})
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})
}

func TestNatsLiveSessionRepository_RecordingMediaIDWrittenOnce(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestSessionRepo(t)

	session := scheduledSession("sess-1", "111")
	session.Status = models.SessionStatusEnded
	session.StartedAt = &fixedNow
	putSession(t, repo, session)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			updated, err := repo.ConditionalUpdate(ctx, "sess-1", models.SessionStatusEnded,
				models.SessionPatch{RecordingMediaID: utils.Ptr("media-" + string(rune('a'+i)))})
			assert.NoError(t, err)
			results[i] = updated
		}(i)
	}
	wg.Wait()

	writes := 0
	for _, updated := range results {
		if updated {
			writes++
		}
	}
	assert.Equal(t, 1, writes)

	stored, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, stored.HasRecording())
}

func TestNatsLiveSessionRepository_RecordParticipants(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestSessionRepo(t)
	putSession(t, repo, scheduledSession("sess-1", "111"))

	snapshot := []models.ParticipantRecord{{Name: "Ada"}, {Name: "Grace"}}

	recorded, err := repo.RecordParticipants(ctx, "sess-1", 2, snapshot)
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = repo.RecordParticipants(ctx, "sess-1", 5, nil)
	require.NoError(t, err)
	assert.False(t, recorded)

	stored, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, stored.ParticipantCount)
	assert.Equal(t, 2, *stored.ParticipantCount)
	assert.Len(t, stored.ParticipantsSnapshot, 2)
	assert.True(t, fixedNow.Equal(*stored.ParticipantsFetchedAt))

	_, err = repo.RecordParticipants(ctx, "sess-1", -1, nil)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestNatsLiveSessionRepository_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("creates session and index", func(t *testing.T) {
		repo, kv := newTestSessionRepo(t)

		require.NoError(t, repo.Upsert(ctx, scheduledSession("sess-1", "111")))

		stored, err := repo.Get(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusScheduled, stored.Status)
		assert.NotNil(t, stored.CreatedAt)
		assert.Contains(t, kv.keys(), "index/provider_meeting/111/sess-1")
	})

	t.Run("defaults status to scheduled", func(t *testing.T) {
		repo, _ := newTestSessionRepo(t)
		session := scheduledSession("sess-1", "111")
		session.Status = ""

		require.NoError(t, repo.Upsert(ctx, session))

		stored, err := repo.Get(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusScheduled, stored.Status)
	})

	t.Run("reschedule moves the index", func(t *testing.T) {
		repo, kv := newTestSessionRepo(t)
		require.NoError(t, repo.Upsert(ctx, scheduledSession("sess-1", "111")))

		moved := scheduledSession("sess-1", "222")
		moved.Title = "Renamed"
		require.NoError(t, repo.Upsert(ctx, moved))

		keys := kv.keys()
		assert.Contains(t, keys, "index/provider_meeting/222/sess-1")
		assert.NotContains(t, keys, "index/provider_meeting/111/sess-1")

		stored, err := repo.FindByProviderMeetingID(ctx, "222")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", stored.Title)
	})

	t.Run("does not overwrite a started session", func(t *testing.T) {
		repo, _ := newTestSessionRepo(t)
		started := scheduledSession("sess-1", "111")
		started.Status = models.SessionStatusActive
		started.StartedAt = &fixedNow
		putSession(t, repo, started)

		require.NoError(t, repo.Upsert(ctx, scheduledSession("sess-1", "111")))

		stored, err := repo.Get(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusActive, stored.Status)
	})

	t.Run("session started between read and create is not rewound", func(t *testing.T) {
		repo, kv := newTestSessionRepo(t)
		kv.beforeCreate = func(string) {
			kv.beforeCreate = nil
			started := scheduledSession("sess-1", "111")
			started.Status = models.SessionStatusActive
			started.StartedAt = &fixedNow
			putSession(t, repo, started)
		}

		require.NoError(t, repo.Upsert(ctx, scheduledSession("sess-1", "111")))

		stored, err := repo.Get(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusActive, stored.Status)
		require.NotNil(t, stored.StartedAt)
		assert.True(t, fixedNow.Equal(*stored.StartedAt))
	})

	t.Run("concurrent create falls through to update", func(t *testing.T) {
		repo, kv := newTestSessionRepo(t)
		kv.beforeCreate = func(string) {
			kv.beforeCreate = nil
			putSession(t, repo, scheduledSession("sess-1", "111"))
		}

		renamed := scheduledSession("sess-1", "111")
		renamed.Title = "Renamed"
		require.NoError(t, repo.Upsert(ctx, renamed))

		stored, err := repo.Get(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", stored.Title)
	})

	t.Run("validation", func(t *testing.T) {
		repo, _ := newTestSessionRepo(t)

		tests := []*models.LiveSession{
			nil,
			{ProviderMeetingID: "111"},
			{ID: "sess-1"},
			{ID: "sess-1", ProviderMeetingID: "111", Status: models.SessionStatusEnded},
		}
		for _, session := range tests {
			err := repo.Upsert(ctx, session)
			assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
		}
	})
}
