// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// ZoomMeetingObject is the meeting object shared by meeting.* webhook events.
// Zoom sends the meeting id as a number in some events and a string in others.
type ZoomMeetingObject struct {
	UUID      string    `json:"uuid"`
	ID        string    `json:"id"`
	HostID    string    `json:"host_id"`
	Topic     string    `json:"topic"`
	Type      int       `json:"type"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int       `json:"duration"`
	Timezone  string    `json:"timezone"`
}

// ZoomMeetingStartedPayload represents the payload for meeting.started webhook events
type ZoomMeetingStartedPayload struct {
	AccountID string            `json:"account_id"`
	Object    ZoomMeetingObject `json:"object"`
}

// ZoomMeetingEndedPayload represents the payload for meeting.ended webhook events
type ZoomMeetingEndedPayload struct {
	AccountID string            `json:"account_id"`
	Object    ZoomMeetingObject `json:"object"`
}

// ZoomRecordingObject is the object of recording.* webhook events.
type ZoomRecordingObject struct {
	UUID           string          `json:"uuid"`
	ID             string          `json:"id"`
	HostID         string          `json:"host_id"`
	Topic          string          `json:"topic"`
	Type           int             `json:"type"`
	StartTime      time.Time       `json:"start_time"`
	Timezone       string          `json:"timezone"`
	Duration       int             `json:"duration"`
	TotalSize      int64           `json:"total_size"`
	RecordingCount int             `json:"recording_count"`
	RecordingFiles []RecordingFile `json:"recording_files"`
}

// ZoomRecordingCompletedPayload represents the payload for recording.completed webhook events
type ZoomRecordingCompletedPayload struct {
	AccountID string              `json:"account_id"`
	Object    ZoomRecordingObject `json:"object"`
}

// ZoomTranscriptCompletedPayload represents the payload for recording.transcript_completed webhook events
type ZoomTranscriptCompletedPayload struct {
	AccountID string              `json:"account_id"`
	Object    ZoomRecordingObject `json:"object"`
}

// RecordingFile represents a recording file in webhook payloads
type RecordingFile struct {
	ID             string    `json:"id"`
	MeetingID      string    `json:"meeting_id"`
	RecordingStart time.Time `json:"recording_start"`
	RecordingEnd   time.Time `json:"recording_end"`
	FileType       string    `json:"file_type"`
	FileExtension  string    `json:"file_extension"`
	FileSize       int64     `json:"file_size"`
	PlayURL        string    `json:"play_url"`
	DownloadURL    string    `json:"download_url"`
	Status         string    `json:"status"`
	RecordingType  string    `json:"recording_type"`
}

// Candidates converts the recording files into selector candidates, keeping their order.
func (p *ZoomRecordingCompletedPayload) Candidates() []RecordingCandidate {
	candidates := make([]RecordingCandidate, 0, len(p.Object.RecordingFiles))
	for _, file := range p.Object.RecordingFiles {
		candidates = append(candidates, RecordingCandidate{
			ID:               file.ID,
			FileType:         strings.ToUpper(file.FileType),
			RecordingVariant: file.RecordingType,
			DownloadHandle:   file.DownloadURL,
			SizeBytes:        file.FileSize,
		})
	}
	return candidates
}

// Helper methods to convert from ZoomWebhookEventMessage to typed payloads

// ToMeetingStartedPayload converts the webhook event to a typed meeting started payload
func (z *ZoomWebhookEventMessage) ToMeetingStartedPayload() (*ZoomMeetingStartedPayload, error) {
	var payload ZoomMeetingStartedPayload
	if err := z.decodePayload(ZoomEventMeetingStarted, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ToMeetingEndedPayload converts the webhook event to a typed meeting ended payload
func (z *ZoomWebhookEventMessage) ToMeetingEndedPayload() (*ZoomMeetingEndedPayload, error) {
	var payload ZoomMeetingEndedPayload
	if err := z.decodePayload(ZoomEventMeetingEnded, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ToRecordingCompletedPayload converts the webhook event to a typed recording completed payload
func (z *ZoomWebhookEventMessage) ToRecordingCompletedPayload() (*ZoomRecordingCompletedPayload, error) {
	var payload ZoomRecordingCompletedPayload
	if err := z.decodePayload(ZoomEventRecordingCompleted, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ToTranscriptCompletedPayload converts the webhook event to a typed transcript completed payload
func (z *ZoomWebhookEventMessage) ToTranscriptCompletedPayload() (*ZoomTranscriptCompletedPayload, error) {
	var payload ZoomTranscriptCompletedPayload
	if err := z.decodePayload(ZoomEventRecordingTranscriptCompleted, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (z *ZoomWebhookEventMessage) decodePayload(expectedEvent string, out any) error {
	if z.EventType != expectedEvent {
		return fmt.Errorf("invalid event type: expected %s, got %s", expectedEvent, z.EventType)
	}
	if z.Payload == nil {
		return fmt.Errorf("%s event has no payload", expectedEvent)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to build payload decoder: %w", err)
	}

	if err := decoder.Decode(z.Payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", expectedEvent, err)
	}

	return nil
}
