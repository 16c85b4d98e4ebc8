// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/service"
)

// ZoomWebhookHandler feeds queued Zoom webhook events into the lifecycle controller.
type ZoomWebhookHandler struct {
	controller *service.LiveSessionController
}

// NewZoomWebhookHandler creates a new ZoomWebhookHandler
func NewZoomWebhookHandler(controller *service.LiveSessionController) *ZoomWebhookHandler {
	return &ZoomWebhookHandler{
		controller: controller,
	}
}

// HandlerReady reports whether the controller can process events.
func (h *ZoomWebhookHandler) HandlerReady() bool {
	return h.controller != nil && h.controller.ServiceReady()
}

// ProcessEvent decodes a queued event and applies it. It is the processor of
// the webhook stream consumer: a nil error acknowledges the message.
func (h *ZoomWebhookHandler) ProcessEvent(ctx context.Context, subject string, data []byte) error {
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))

	var event models.ZoomWebhookEventMessage
	if err := json.Unmarshal(data, &event); err != nil {
		slog.ErrorContext(ctx, "error unmarshaling Zoom webhook event", logging.ErrKey, err)
		return domain.NewValidationError("queued webhook event is not valid JSON", err)
	}

	// older publishers left the event type to the subject
	if event.EventType == "" {
		event.EventType = eventTypeFromSubject(subject)
	}
	if event.EventType == "" {
		return domain.NewValidationError("queued webhook event has no event type")
	}

	slog.DebugContext(ctx, "processing Zoom webhook event", logging.EventTypeKey, event.EventType)
	return h.controller.HandleWebhookEvent(ctx, event)
}

func eventTypeFromSubject(subject string) string {
	if !strings.HasPrefix(subject, models.ZoomWebhookSubjectPrefix) {
		return ""
	}
	return strings.TrimPrefix(subject, models.ZoomWebhookSubjectPrefix)
}
