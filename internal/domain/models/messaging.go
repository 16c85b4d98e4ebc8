// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// JetStream streams owned by the live session service.
const (
	// WebhookStreamName holds accepted provider webhook deliveries until the controller processes them.
	WebhookStreamName = "LIVE_SESSION_WEBHOOKS"

	// TaskStreamName holds delayed tasks such as the participant backfill.
	TaskStreamName = "LIVE_SESSION_TASKS"
)

// Zoom webhook event subjects - mirrors the actual Zoom webhook event names
const (
	ZoomWebhookSubjectPrefix                       = "lfx.webhook.zoom."
	ZoomWebhookSubjectWildcard                     = "lfx.webhook.zoom.>"
	ZoomWebhookMeetingStartedSubject               = "lfx.webhook.zoom.meeting.started"
	ZoomWebhookMeetingEndedSubject                 = "lfx.webhook.zoom.meeting.ended"
	ZoomWebhookRecordingCompletedSubject           = "lfx.webhook.zoom.recording.completed"
	ZoomWebhookRecordingTranscriptCompletedSubject = "lfx.webhook.zoom.recording.transcript_completed"
)

// Task subjects consumed from the task stream.
const (
	// TaskSubjectWildcard is the filter for every delayed task.
	TaskSubjectWildcard = "lfx.live-sessions.task.>"

	// ParticipantBackfillSubject carries [ParticipantBackfillTask] messages.
	// The subject is of the form: lfx.live-sessions.task.participant_backfill
	ParticipantBackfillSubject = "lfx.live-sessions.task.participant_backfill"
)

// Subjects the service publishes on core NATS.
const (
	// NotificationCreatedSubject announces each emitted notification record.
	// The subject is of the form: lfx.live-sessions.notification.created
	NotificationCreatedSubject = "lfx.live-sessions.notification.created"
)

// Subjects the service subscribes to for upstream data.
const (
	// LiveSessionsAPIQueue is the queue group for the live sessions API.
	LiveSessionsAPIQueue = "lfx.live-sessions-api.queue"

	// SessionScheduledSubject receives sessions scheduled by the class platform.
	SessionScheduledSubject = "lfx.live-sessions-api.session_scheduled"

	// EnrollmentUpdatedSubject receives enrollment changes from the class platform.
	EnrollmentUpdatedSubject = "lfx.live-sessions-api.enrollment_updated"
)

// Zoom webhook event types handled by the lifecycle controller.
const (
	ZoomEventEndpointURLValidation        = "endpoint.url_validation"
	ZoomEventMeetingStarted               = "meeting.started"
	ZoomEventMeetingEnded                 = "meeting.ended"
	ZoomEventRecordingCompleted           = "recording.completed"
	ZoomEventRecordingTranscriptCompleted = "recording.transcript_completed"
)

// ZoomWebhookSubject returns the JetStream subject a Zoom event is queued on.
func ZoomWebhookSubject(eventType string) string {
	return fmt.Sprintf("%s%s", ZoomWebhookSubjectPrefix, eventType)
}

// ZoomWebhookEventMessage is the schema for Zoom webhook events queued for async processing.
// DownloadToken is the one-time token Zoom includes with recording.completed deliveries.
type ZoomWebhookEventMessage struct {
	EventType     string         `json:"event_type"`
	EventTS       int64          `json:"event_ts"`
	DownloadToken string         `json:"download_token,omitempty"`
	Payload       map[string]any `json:"payload"`
}

// EventTime returns the time the provider reported for the event, or fallback when absent.
func (z *ZoomWebhookEventMessage) EventTime(fallback time.Time) time.Time {
	if z.EventTS <= 0 {
		return fallback
	}
	return time.UnixMilli(z.EventTS).UTC()
}

// ParticipantBackfillTask is the durable delayed task that fetches attendance for an ended session.
type ParticipantBackfillTask struct {
	SessionID   string    `json:"session_id"`
	NotBefore   time.Time `json:"not_before"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Due reports whether the task may run at now.
func (t *ParticipantBackfillTask) Due(now time.Time) bool {
	return !now.Before(t.NotBefore)
}

// SessionScheduledMessage is published upstream when a live class is scheduled.
type SessionScheduledMessage struct {
	Session LiveSession `json:"session"`
}

// EnrollmentUpdatedMessage is published upstream when an enrollment changes.
type EnrollmentUpdatedMessage struct {
	Enrollment Enrollment `json:"enrollment"`
}
