// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/concurrent"
)

// maxLoggedFailures caps the per-recipient errors included in a fan-out summary log.
const maxLoggedFailures = 10

// NotificationFanout creates one notification record per affected user.
// Delivery is best-effort: failures are logged and never returned.
type NotificationFanout struct {
	enrollments domain.EnrollmentRepository
	sink        domain.NotificationSink
	pool        *concurrent.WorkerPool
	metrics     *metrics
	now         func() time.Time
}

// NewNotificationFanout creates a fan-out emitting through sink with the given concurrency.
func NewNotificationFanout(enrollments domain.EnrollmentRepository, sink domain.NotificationSink, workers int) *NotificationFanout {
	if workers <= 0 {
		workers = DefaultNotificationWorkers
	}
	return &NotificationFanout{
		enrollments: enrollments,
		sink:        sink,
		pool:        concurrent.NewWorkerPool(workers),
		metrics:     newMetrics(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ServiceReady checks if the fan-out can read recipients and emit records
func (f *NotificationFanout) ServiceReady() bool {
	return f.enrollments != nil && f.sink != nil
}

// NotifyLiveClass tells every approved enrollee of the session's class that it started.
// Enrollments are read at call time. It returns the number of records emitted.
func (f *NotificationFanout) NotifyLiveClass(ctx context.Context, session *models.LiveSession) int {
	if session.ClassID == "" {
		slog.WarnContext(ctx, "session has no class, skipping live class notifications")
		return 0
	}

	enrollments, err := f.enrollments.ListApprovedByClass(ctx, session.ClassID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list class enrollments, no live class notifications sent",
			logging.ErrKey, err,
			"class_id", session.ClassID,
		)
		return 0
	}

	recipients := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		if enrollment.IsApproved() {
			recipients = append(recipients, enrollment.UserID)
		}
	}

	return f.Notify(ctx, session, models.NotificationKindLiveClass, recipients, nil)
}

// NotifyRecordingReady tells the session owner the recording was ingested.
func (f *NotificationFanout) NotifyRecordingReady(ctx context.Context, session *models.LiveSession, mediaID string) int {
	if session.OwnerID == "" {
		slog.WarnContext(ctx, "session has no owner, skipping recording ready notification")
		return 0
	}
	return f.Notify(ctx, session, models.NotificationKindRecordingReady, []string{session.OwnerID},
		map[string]any{"recording_media_id": mediaID})
}

// Notify emits one record of kind to each distinct recipient concurrently.
// Per-recipient failures never stop the others. It returns the number of records emitted.
func (f *NotificationFanout) Notify(ctx context.Context, session *models.LiveSession, kind models.NotificationKind, recipients []string, extra map[string]any) int {
	recipients = distinctUsers(recipients)
	if len(recipients) == 0 {
		slog.DebugContext(ctx, "no notification recipients", "kind", kind)
		return 0
	}

	createdAt := f.now()
	failures := concurrent.ForEach(ctx, f.pool, recipients, func(ctx context.Context, userID string) error {
		err := f.sink.Emit(ctx, newNotificationRecord(session, kind, userID, createdAt, extra))
		if errors.Is(err, domain.ErrNotificationNotAnnounced) {
			// stored; the sink already logged the failed announcement
			return nil
		}
		return err
	})

	sent := len(recipients) - len(failures)
	f.metrics.notification(ctx, string(kind), "sent", sent)
	f.metrics.notification(ctx, string(kind), "failed", len(failures))

	if len(failures) > 0 {
		errs := make([]error, 0, min(len(failures), maxLoggedFailures))
		for _, failure := range failures[:min(len(failures), maxLoggedFailures)] {
			errs = append(errs, fmt.Errorf("user %s: %w", failure.Item, failure.Err))
		}
		slog.WarnContext(ctx, "some notifications could not be emitted",
			"kind", kind,
			"recipients", len(recipients),
			"failed", len(failures),
			logging.ErrKey, errors.Join(errs...),
		)
	}

	slog.InfoContext(ctx, "notifications emitted", "kind", kind, "sent", sent, "recipients", len(recipients))
	return sent
}

func newNotificationRecord(session *models.LiveSession, kind models.NotificationKind, userID string, createdAt time.Time, extra map[string]any) *models.NotificationRecord {
	payload := map[string]any{
		"session_id": session.ID,
		"class_id":   session.ClassID,
		"kind":       string(kind),
	}
	for k, v := range extra {
		payload[k] = v
	}

	title, body := notificationText(session, kind)
	return &models.NotificationRecord{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: createdAt,
	}
}

func notificationText(session *models.LiveSession, kind models.NotificationKind) (string, string) {
	name := session.Title
	if name == "" {
		name = "Your live class"
	}
	switch kind {
	case models.NotificationKindLiveClass:
		return fmt.Sprintf("%s is live", name), "The session has started. Join now."
	case models.NotificationKindRecordingReady:
		return fmt.Sprintf("Recording ready: %s", name), "The recording of your session is now available."
	}
	return name, ""
}

func distinctUsers(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
