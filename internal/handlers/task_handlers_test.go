// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/service"
)

func TestTaskHandler_ProcessTask(t *testing.T) {
	t.Run("backfill task runs", func(t *testing.T) {
		sessions := new(domain.MockLiveSessionRepository)
		provider := new(domain.MockConferencingProvider)
		sessions.On("Get", mock.Anything, "sess-1").Return(&models.LiveSession{
			ID:                  "sess-1",
			ProviderMeetingID:   "111",
			ProviderMeetingUUID: "uuid-1",
			Status:              models.SessionStatusEnded,
		}, nil)
		provider.On("FetchParticipants", mock.Anything, "uuid-1").Return(&models.ParticipantReport{Total: 5}, nil)
		sessions.On("RecordParticipants", mock.Anything, "sess-1", 5, []models.ParticipantRecord(nil)).Return(true, nil)

		handler := NewTaskHandler(service.NewParticipantBackfillService(sessions, provider))
		data, err := json.Marshal(models.ParticipantBackfillTask{
			SessionID: "sess-1",
			NotBefore: time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)

		require.NoError(t, handler.ProcessTask(context.Background(), models.ParticipantBackfillSubject, data))
		sessions.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("early task is deferred", func(t *testing.T) {
		handler := NewTaskHandler(service.NewParticipantBackfillService(new(domain.MockLiveSessionRepository), new(domain.MockConferencingProvider)))
		data, err := json.Marshal(models.ParticipantBackfillTask{
			SessionID: "sess-1",
			NotBefore: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)

		err = handler.ProcessTask(context.Background(), models.ParticipantBackfillSubject, data)
		delay, ok := domain.GetDeferDelay(err)
		assert.True(t, ok)
		assert.Greater(t, delay, 59*time.Minute)
	})

	t.Run("invalid task is terminal", func(t *testing.T) {
		handler := NewTaskHandler(service.NewParticipantBackfillService(new(domain.MockLiveSessionRepository), new(domain.MockConferencingProvider)))
		err := handler.ProcessTask(context.Background(), models.ParticipantBackfillSubject, []byte("nope"))
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
	})

	t.Run("unknown task subject is dropped", func(t *testing.T) {
		handler := NewTaskHandler(nil)
		assert.NoError(t, handler.ProcessTask(context.Background(), "lfx.live-sessions.task.unknown", []byte("{}")))
		assert.False(t, handler.HandlerReady())
	})
}
