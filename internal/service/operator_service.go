// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// storedWebhook is the body of a Zoom webhook delivery as Zoom sends it.
type storedWebhook struct {
	Event         string         `json:"event"`
	EventTS       int64          `json:"event_ts"`
	DownloadToken string         `json:"download_token"`
	Payload       map[string]any `json:"payload"`
}

// ReplayResult is the outcome of an operator recording replay.
type ReplayResult struct {
	SessionID        string
	RecordingMediaID string
}

// OperatorService exposes the manual recovery actions.
type OperatorService struct {
	controller *LiveSessionController
	backfill   *ParticipantBackfillService
}

// NewOperatorService creates a new OperatorService
func NewOperatorService(controller *LiveSessionController, backfill *ParticipantBackfillService) *OperatorService {
	return &OperatorService{
		controller: controller,
		backfill:   backfill,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *OperatorService) ServiceReady() bool {
	return s.controller != nil && s.controller.ServiceReady() &&
		s.backfill != nil && s.backfill.ServiceReady()
}

// ReplayRecording ingests the recording of a stored recording.completed
// webhook body synchronously. It is the only way out of recording_failed.
func (s *OperatorService) ReplayRecording(ctx context.Context, body []byte) (*ReplayResult, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("operator service not ready")
	}

	var webhook storedWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		return nil, domain.NewValidationError("replay body is not a Zoom webhook", err)
	}
	if webhook.Event != models.ZoomEventRecordingCompleted {
		return nil, domain.NewValidationError("only recording.completed events can be replayed")
	}

	session, mediaID, err := s.controller.ReplayRecording(ctx, models.ZoomWebhookEventMessage{
		EventType:     webhook.Event,
		EventTS:       webhook.EventTS,
		DownloadToken: webhook.DownloadToken,
		Payload:       webhook.Payload,
	})
	if err != nil {
		slog.WarnContext(ctx, "recording replay failed", logging.ErrKey, err)
		return nil, err
	}

	slog.InfoContext(ctx, "recording replay completed", "session_id", session.ID, "recording_media_id", mediaID)
	return &ReplayResult{SessionID: session.ID, RecordingMediaID: mediaID}, nil
}

// ForceParticipants records an explicit attendance count for a session.
func (s *OperatorService) ForceParticipants(ctx context.Context, sessionID string, count int) (bool, error) {
	if !s.ServiceReady() {
		return false, domain.NewUnavailableError("operator service not ready")
	}
	return s.backfill.ForceParticipants(ctx, sessionID, count)
}
