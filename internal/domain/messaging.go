// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// WebhookEventSender queues verified webhook events for asynchronous processing.
// A nil error means the event is durably accepted.
type WebhookEventSender interface {
	PublishZoomWebhookEvent(ctx context.Context, subject string, message models.ZoomWebhookEventMessage) error
}

// NotificationSink receives notification records. Delivery is best-effort.
type NotificationSink interface {
	Emit(ctx context.Context, record *models.NotificationRecord) error
}

// BackfillScheduler enqueues the delayed participant fetch for a session.
type BackfillScheduler interface {
	Schedule(ctx context.Context, sessionID string, delay time.Duration) error
}

// DeferredError asks the queue to redeliver a message after Delay without
// counting it as a failure.
type DeferredError struct {
	Reason string
	Delay  time.Duration
}

func (e *DeferredError) Error() string {
	return fmt.Sprintf("deferred for %s: %s", e.Delay, e.Reason)
}

// NewDeferredError returns a DeferredError
func NewDeferredError(reason string, delay time.Duration) *DeferredError {
	return &DeferredError{Reason: reason, Delay: delay}
}

// GetDeferDelay reports whether err asks for a delayed redelivery, and after how long.
func GetDeferDelay(err error) (time.Duration, bool) {
	var deferred *DeferredError
	if errors.As(err, &deferred) {
		return deferred.Delay, true
	}
	return 0, false
}
