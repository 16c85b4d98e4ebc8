// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/service"
)

// syncAck is the reply sent to requesters once a message has been stored.
var syncAck = []byte("OK")

// SyncHandlers mirrors sessions and enrollments published by the class platform.
type SyncHandlers struct {
	syncService *service.SessionSyncService
}

// NewSyncHandlers creates a new sync handlers instance.
func NewSyncHandlers(syncService *service.SessionSyncService) *SyncHandlers {
	return &SyncHandlers{
		syncService: syncService,
	}
}

func (h *SyncHandlers) HandlerReady() bool {
	return h.syncService != nil && h.syncService.ServiceReady()
}

// HandleMessage implements domain.MessageHandler interface
func (h *SyncHandlers) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling sync NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		models.SessionScheduledSubject:  h.HandleSessionScheduled,
		models.EnrollmentUpdatedSubject: h.HandleEnrollmentUpdated,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown sync message subject")
		respond(ctx, msg, nil)
		return
	}

	response, err := handler(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "error handling sync message", logging.ErrKey, err)
		respond(ctx, msg, nil)
		return
	}

	respond(ctx, msg, response)
}

// HandleSessionScheduled stores a session scheduled by the class platform.
func (h *SyncHandlers) HandleSessionScheduled(ctx context.Context, msg domain.Message) ([]byte, error) {
	var message models.SessionScheduledMessage
	if err := json.Unmarshal(msg.Data(), &message); err != nil {
		return nil, domain.NewValidationError("invalid session scheduled message", err)
	}

	if err := h.syncService.SyncScheduledSession(ctx, &message.Session); err != nil {
		return nil, err
	}
	return syncAck, nil
}

// HandleEnrollmentUpdated stores an enrollment change.
func (h *SyncHandlers) HandleEnrollmentUpdated(ctx context.Context, msg domain.Message) ([]byte, error) {
	var message models.EnrollmentUpdatedMessage
	if err := json.Unmarshal(msg.Data(), &message); err != nil {
		return nil, domain.NewValidationError("invalid enrollment updated message", err)
	}

	if err := h.syncService.SyncEnrollment(ctx, &message.Enrollment); err != nil {
		return nil, err
	}
	return syncAck, nil
}

// respond replies when the sender asked for one.
func respond(ctx context.Context, msg domain.Message, response []byte) {
	if !msg.HasReply() {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
		return
	}
	if err := msg.Respond(response); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
	}
}
