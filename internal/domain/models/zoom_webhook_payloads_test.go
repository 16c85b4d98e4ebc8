// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMeetingStartedPayload(t *testing.T) {
	tests := []struct {
		name       string
		event      ZoomWebhookEventMessage
		wantErr    bool
		expectedID string
	}{
		{
			name: "numeric meeting id is decoded as string",
			event: ZoomWebhookEventMessage{
				EventType: ZoomEventMeetingStarted,
				Payload: map[string]any{
					"account_id": "acct",
					"object": map[string]any{
						"uuid":       "4444AAAiAAAAAiAiAiiAii==",
						"id":         float64(85746065432),
						"topic":      "Algebra II",
						"start_time": "2026-03-10T15:00:00Z",
					},
				},
			},
			expectedID: "85746065432",
		},
		{
			name: "string meeting id is kept",
			event: ZoomWebhookEventMessage{
				EventType: ZoomEventMeetingStarted,
				Payload: map[string]any{
					"object": map[string]any{"id": "123456789"},
				},
			},
			expectedID: "123456789",
		},
		{
			name: "wrong event type",
			event: ZoomWebhookEventMessage{
				EventType: ZoomEventMeetingEnded,
				Payload:   map[string]any{"object": map[string]any{"id": "1"}},
			},
			wantErr: true,
		},
		{
			name:    "missing payload",
			event:   ZoomWebhookEventMessage{EventType: ZoomEventMeetingStarted},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.event.ToMeetingStartedPayload()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, payload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedID, payload.Object.ID)
		})
	}
}

func TestToMeetingStartedPayload_ParsesStartTime(t *testing.T) {
	event := ZoomWebhookEventMessage{
		EventType: ZoomEventMeetingStarted,
		Payload: map[string]any{
			"object": map[string]any{
				"id":         "1",
				"start_time": "2026-03-10T15:00:00Z",
			},
		},
	}

	payload, err := event.ToMeetingStartedPayload()
	require.NoError(t, err)
	assert.True(t, payload.Object.StartTime.Equal(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)))
}

func TestToRecordingCompletedPayload_Candidates(t *testing.T) {
	event := ZoomWebhookEventMessage{
		EventType:     ZoomEventRecordingCompleted,
		DownloadToken: "tok",
		Payload: map[string]any{
			"object": map[string]any{
				"uuid":  "uuid-1",
				"id":    float64(987654321),
				"topic": "Chemistry",
				"recording_files": []any{
					map[string]any{
						"id":             "file-1",
						"file_type":      "mp4",
						"file_size":      float64(1024),
						"recording_type": RecordingVariantActiveSpeaker,
						"download_url":   "https://zoom.us/rec/download/1",
					},
					map[string]any{
						"id":             "file-2",
						"file_type":      "CHAT",
						"recording_type": "chat_file",
						"download_url":   "https://zoom.us/rec/download/2",
					},
				},
			},
		},
	}

	payload, err := event.ToRecordingCompletedPayload()
	require.NoError(t, err)
	assert.Equal(t, "987654321", payload.Object.ID)
	require.Len(t, payload.Object.RecordingFiles, 2)

	candidates := payload.Candidates()
	require.Len(t, candidates, 2)
	assert.Equal(t, RecordingCandidate{
		ID:               "file-1",
		FileType:         RecordingFileTypeMP4,
		RecordingVariant: RecordingVariantActiveSpeaker,
		DownloadHandle:   "https://zoom.us/rec/download/1",
		SizeBytes:        1024,
	}, candidates[0])
	assert.Equal(t, RecordingFileTypeChat, candidates[1].FileType)
}

func TestZoomWebhookEventMessage_EventTime_Payloads(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	withTS := ZoomWebhookEventMessage{EventTS: 1767225600000}
	assert.True(t, withTS.EventTime(fallback).Equal(time.UnixMilli(1767225600000)))

	withoutTS := ZoomWebhookEventMessage{}
	assert.Equal(t, fallback, withoutTS.EventTime(fallback))
}

func TestZoomWebhookSubject_Payloads(t *testing.T) {
	assert.Equal(t, ZoomWebhookMeetingStartedSubject, ZoomWebhookSubject(ZoomEventMeetingStarted))
	assert.Equal(t, ZoomWebhookRecordingCompletedSubject, ZoomWebhookSubject(ZoomEventRecordingCompleted))
}

func TestParticipantBackfillTask_Due_Payloads(t *testing.T) {
	notBefore := time.Date(2026, 3, 10, 16, 30, 0, 0, time.UTC)
	task := ParticipantBackfillTask{SessionID: "s1", NotBefore: notBefore}

	assert.False(t, task.Due(notBefore.Add(-time.Second)))
	assert.True(t, task.Due(notBefore))
	assert.True(t, task.Due(notBefore.Add(time.Minute)))
}
