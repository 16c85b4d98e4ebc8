// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/utils"
)

// LiveSessionController applies verified Zoom events to live sessions.
//
// Every transition is one conditional update on the session store: the
// expected status is the precondition and write-once fields are checked in
// the same compare-and-set. A lost precondition is a no-op, so redelivered
// and out-of-order events never trigger side effects twice.
type LiveSessionController struct {
	sessions  domain.LiveSessionRepository
	ingestion *IngestionPipeline
	fanout    *NotificationFanout
	backfill  domain.BackfillScheduler
	config    ServiceConfig
	metrics   *metrics
	now       func() time.Time
}

// NewLiveSessionController creates the lifecycle controller
func NewLiveSessionController(
	sessions domain.LiveSessionRepository,
	ingestion *IngestionPipeline,
	fanout *NotificationFanout,
	backfill domain.BackfillScheduler,
	config ServiceConfig,
) *LiveSessionController {
	return &LiveSessionController{
		sessions:  sessions,
		ingestion: ingestion,
		fanout:    fanout,
		backfill:  backfill,
		config:    config.withDefaults(),
		metrics:   newMetrics(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ServiceReady checks if the controller has all of its collaborators
func (c *LiveSessionController) ServiceReady() bool {
	return c.sessions != nil &&
		c.ingestion != nil && c.ingestion.ServiceReady() &&
		c.fanout != nil && c.fanout.ServiceReady() &&
		c.backfill != nil
}

// HandleWebhookEvent dispatches a queued Zoom event to its transition.
// A nil error acknowledges the event. Validation errors mark events that can
// never be processed; any other error asks for a redelivery.
func (c *LiveSessionController) HandleWebhookEvent(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	ctx = logging.AppendCtx(ctx, slog.String(logging.EventTypeKey, event.EventType))

	switch event.EventType {
	case models.ZoomEventMeetingStarted:
		return c.HandleMeetingStarted(ctx, event)
	case models.ZoomEventMeetingEnded:
		return c.HandleMeetingEnded(ctx, event)
	case models.ZoomEventRecordingCompleted:
		return c.HandleRecordingCompleted(ctx, event)
	case models.ZoomEventRecordingTranscriptCompleted:
		return c.HandleTranscriptCompleted(ctx, event)
	default:
		slog.DebugContext(ctx, "ignoring unhandled Zoom event")
		return nil
	}
}

// HandleMeetingStarted moves the scheduled session of the meeting to active
// and notifies the approved enrollees of its class.
func (c *LiveSessionController) HandleMeetingStarted(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToMeetingStartedPayload()
	if err != nil {
		return domain.NewValidationError("invalid meeting.started payload", err)
	}
	if payload.Object.ID == "" {
		return domain.NewValidationError("meeting.started payload has no meeting id")
	}

	now := event.EventTime(c.now())
	session, ctx, err := c.findSession(ctx, payload.Object.ID, models.SessionStatusScheduled)
	if err != nil || session == nil {
		return err
	}

	patch := models.SessionPatch{
		Status:    utils.Ptr(models.SessionStatusActive),
		StartedAt: &now,
	}
	if payload.Object.UUID != "" {
		patch.ProviderMeetingUUID = utils.Ptr(payload.Object.UUID)
	}

	applied, err := c.transition(ctx, session, models.SessionStatusScheduled, patch)
	if err != nil || !applied {
		return err
	}
	c.metrics.transition(ctx, event.EventType, string(models.SessionStatusActive))

	session.Status = models.SessionStatusActive
	session.StartedAt = &now
	if session.ProviderMeetingUUID == "" {
		session.ProviderMeetingUUID = payload.Object.UUID
	}

	slog.InfoContext(ctx, "live session started", "started_at", now)
	c.fanout.NotifyLiveClass(ctx, session)
	return nil
}

// HandleMeetingEnded moves the active session of the meeting to ended and
// schedules the participant backfill.
func (c *LiveSessionController) HandleMeetingEnded(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToMeetingEndedPayload()
	if err != nil {
		return domain.NewValidationError("invalid meeting.ended payload", err)
	}
	if payload.Object.ID == "" {
		return domain.NewValidationError("meeting.ended payload has no meeting id")
	}

	now := event.EventTime(c.now())
	session, ctx, err := c.findSession(ctx, payload.Object.ID, models.SessionStatusActive)
	if err != nil || session == nil {
		return err
	}

	patch := models.SessionPatch{
		Status:  utils.Ptr(models.SessionStatusEnded),
		EndedAt: &now,
	}
	if payload.Object.UUID != "" {
		patch.ProviderMeetingUUID = utils.Ptr(payload.Object.UUID)
	}

	applied, err := c.transition(ctx, session, models.SessionStatusActive, patch)
	if err != nil || !applied {
		return err
	}
	c.metrics.transition(ctx, event.EventType, string(models.SessionStatusEnded))
	slog.InfoContext(ctx, "live session ended", "ended_at", now)

	if err := c.backfill.Schedule(ctx, session.ID, c.config.ParticipantBackfillDelay); err != nil {
		slog.ErrorContext(ctx, "failed to schedule participant backfill", logging.ErrKey, err)
	}
	return nil
}

// HandleRecordingCompleted ingests the recording of the meeting's session.
func (c *LiveSessionController) HandleRecordingCompleted(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToRecordingCompletedPayload()
	if err != nil {
		return domain.NewValidationError("invalid recording.completed payload", err)
	}
	if payload.Object.ID == "" {
		return domain.NewValidationError("recording.completed payload has no meeting id")
	}

	session, ctx, err := c.findSession(ctx, payload.Object.ID)
	if err != nil || session == nil {
		return err
	}

	_, err = c.ingestRecording(ctx, session, deliveryFromPayload(event, payload), false)
	return err
}

// HandleTranscriptCompleted only records that a transcript exists.
func (c *LiveSessionController) HandleTranscriptCompleted(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToTranscriptCompletedPayload()
	if err != nil {
		slog.InfoContext(ctx, "transcript completed event received", "decode_error", err.Error())
		return nil
	}
	slog.InfoContext(ctx, "transcript completed event received",
		logging.ProviderMeetingIDKey, payload.Object.ID,
		"files", len(payload.Object.RecordingFiles),
	)
	return nil
}

// ReplayRecording runs ingestion for a stored recording.completed event now.
// Unlike the automatic path it also ingests for recording_failed sessions.
func (c *LiveSessionController) ReplayRecording(ctx context.Context, event models.ZoomWebhookEventMessage) (*models.LiveSession, string, error) {
	payload, err := event.ToRecordingCompletedPayload()
	if err != nil {
		return nil, "", domain.NewValidationError("invalid recording.completed payload", err)
	}
	if payload.Object.ID == "" {
		return nil, "", domain.NewValidationError("recording.completed payload has no meeting id")
	}

	ctx = logging.AppendCtx(ctx, slog.String(logging.ProviderMeetingIDKey, payload.Object.ID))
	session, err := c.sessions.FindByProviderMeetingID(ctx, payload.Object.ID)
	if err != nil {
		return nil, "", err
	}
	ctx = logging.WithSession(ctx, session.ID, "")

	mediaID, err := c.ingestRecording(ctx, session, deliveryFromPayload(event, payload), true)
	if err != nil {
		return session, "", err
	}
	return session, mediaID, nil
}

func deliveryFromPayload(event models.ZoomWebhookEventMessage, payload *models.ZoomRecordingCompletedPayload) RecordingDelivery {
	return RecordingDelivery{
		MeetingUUID:   payload.Object.UUID,
		Candidates:    payload.Candidates(),
		DownloadToken: event.DownloadToken,
		StartTime:     payload.Object.StartTime,
	}
}

// findSession correlates a provider meeting id with a session. A miss is
// logged and returns a nil session and nil error.
func (c *LiveSessionController) findSession(ctx context.Context, providerMeetingID string, statuses ...models.SessionStatus) (*models.LiveSession, context.Context, error) {
	ctx = logging.AppendCtx(ctx, slog.String(logging.ProviderMeetingIDKey, providerMeetingID))

	session, err := c.sessions.FindByProviderMeetingID(ctx, providerMeetingID, statuses...)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			slog.InfoContext(ctx, "no matching live session, dropping event", "statuses", statuses)
			return nil, ctx, nil
		}
		slog.ErrorContext(ctx, "failed to look up live session", logging.ErrKey, err)
		return nil, ctx, err
	}

	return session, logging.WithSession(ctx, session.ID, ""), nil
}

// transition applies the conditional update and reports whether it happened.
// A lost precondition or a vanished session is logged and reported as false.
func (c *LiveSessionController) transition(ctx context.Context, session *models.LiveSession, expected models.SessionStatus, patch models.SessionPatch) (bool, error) {
	applied, err := c.sessions.ConditionalUpdate(ctx, session.ID, expected, patch)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			slog.InfoContext(ctx, "live session disappeared before the transition")
			return false, nil
		}
		slog.ErrorContext(ctx, "failed to update live session", logging.ErrKey, err)
		return false, err
	}
	if !applied {
		slog.InfoContext(ctx, "live session no longer matches the transition precondition, skipping",
			"expected_status", expected,
		)
	}
	return applied, nil
}

// ingestRecording runs the ingestion pipeline at most once per session and
// persists the outcome. It returns the session's media id.
func (c *LiveSessionController) ingestRecording(ctx context.Context, session *models.LiveSession, delivery RecordingDelivery, replay bool) (string, error) {
	if session.HasRecording() {
		slog.InfoContext(ctx, "recording already ingested, skipping duplicate",
			"recording_media_id", *session.RecordingMediaID)
		return *session.RecordingMediaID, nil
	}
	if session.Status == models.SessionStatusRecordingFailed && !replay {
		slog.InfoContext(ctx, "recording ingestion failed before, waiting for an operator replay",
			"recording_error", session.RecordingError)
		return "", nil
	}

	mediaID, err := c.ingestion.Ingest(ctx, session, delivery)
	if err != nil {
		c.metrics.ingestion(ctx, "failed")
		slog.WarnContext(ctx, "recording ingestion failed", logging.ErrKey, err)
		if persistErr := c.markRecordingFailed(ctx, session, err); persistErr != nil {
			return "", persistErr
		}
		if replay {
			return "", err
		}
		return "", nil
	}
	c.metrics.ingestion(ctx, "succeeded")

	persisted, err := c.persistMediaID(ctx, session, mediaID)
	if err != nil || !persisted {
		return "", err
	}

	session.RecordingMediaID = &mediaID
	slog.InfoContext(ctx, "recording ingested", "recording_media_id", mediaID)
	c.fanout.NotifyRecordingReady(ctx, session, mediaID)
	return mediaID, nil
}

// persistMediaID writes the media id with the status observed at read time
// as the precondition. A lost race re-reads once: a media id written by a
// concurrent worker makes this call a no-op.
func (c *LiveSessionController) persistMediaID(ctx context.Context, session *models.LiveSession, mediaID string) (bool, error) {
	current := session
	for attempt := 0; attempt < 2; attempt++ {
		patch := models.SessionPatch{RecordingMediaID: utils.Ptr(mediaID)}
		if current.Status == models.SessionStatusRecordingFailed {
			// a successful replay closes the failure
			patch.Status = utils.Ptr(models.SessionStatusEnded)
			patch.RecordingError = utils.Ptr("")
		}

		applied, err := c.sessions.ConditionalUpdate(ctx, current.ID, current.Status, patch)
		if err != nil {
			slog.ErrorContext(ctx, "recording ingested but the media id could not be saved",
				logging.ErrKey, err,
				"recording_media_id", mediaID,
				logging.PriorityCritical(),
			)
			return false, err
		}
		if applied {
			if patch.Status != nil {
				c.metrics.transition(ctx, models.ZoomEventRecordingCompleted, string(*patch.Status))
				session.Status = *patch.Status
			}
			return true, nil
		}

		fresh, err := c.sessions.Get(ctx, current.ID)
		if err != nil {
			return false, err
		}
		if fresh.HasRecording() {
			slog.InfoContext(ctx, "media id already written by a concurrent worker",
				"recording_media_id", *fresh.RecordingMediaID,
				"discarded_media_id", mediaID,
			)
			return false, nil
		}
		current = fresh
	}

	slog.ErrorContext(ctx, "recording ingested but the session kept changing, media id not saved",
		"recording_media_id", mediaID,
		logging.PriorityCritical(),
	)
	return false, nil
}

// markRecordingFailed persists the failure with the same re-read-once policy
// as persistMediaID. Only a failure to persist is returned.
func (c *LiveSessionController) markRecordingFailed(ctx context.Context, session *models.LiveSession, cause error) error {
	reason := failureReason(cause)

	current := session
	for attempt := 0; attempt < 2; attempt++ {
		patch, ok := recordingFailedPatch(current.Status, reason)
		if !ok {
			// recording_failed requires started_at, a session that never started keeps its status
			slog.WarnContext(ctx, "recording failed for a session that never started, status unchanged",
				"status", current.Status,
				"recording_error", reason,
			)
			return nil
		}

		applied, err := c.sessions.ConditionalUpdate(ctx, current.ID, current.Status, patch)
		if err != nil {
			slog.ErrorContext(ctx, "failed to persist recording failure",
				logging.ErrKey, err,
				"recording_error", reason,
				logging.PriorityCritical(),
			)
			return fmt.Errorf("failed to persist recording failure: %w", err)
		}
		if applied {
			if patch.Status != nil {
				c.metrics.transition(ctx, models.ZoomEventRecordingCompleted, string(*patch.Status))
				session.Status = *patch.Status
			}
			session.RecordingError = reason
			return nil
		}

		fresh, err := c.sessions.Get(ctx, current.ID)
		if err != nil {
			return err
		}
		if fresh.HasRecording() {
			slog.InfoContext(ctx, "a concurrent worker ingested the recording, failure not persisted",
				"recording_error", reason)
			return nil
		}
		current = fresh
	}

	slog.WarnContext(ctx, "session kept changing, recording failure not persisted", "recording_error", reason)
	return nil
}

// recordingFailedPatch returns the patch recording a failed ingestion from status.
func recordingFailedPatch(status models.SessionStatus, reason string) (models.SessionPatch, bool) {
	patch := models.SessionPatch{RecordingError: utils.Ptr(reason)}
	switch status {
	case models.SessionStatusActive, models.SessionStatusEnded:
		patch.Status = utils.Ptr(models.SessionStatusRecordingFailed)
		return patch, true
	case models.SessionStatusRecordingFailed:
		// a failed replay only refreshes the reason
		return patch, true
	}
	return patch, false
}
