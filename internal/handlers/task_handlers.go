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

// TaskHandler runs delayed tasks from the task stream.
type TaskHandler struct {
	backfill *service.ParticipantBackfillService
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(backfill *service.ParticipantBackfillService) *TaskHandler {
	return &TaskHandler{
		backfill: backfill,
	}
}

func (h *TaskHandler) HandlerReady() bool {
	return h.backfill != nil && h.backfill.ServiceReady()
}

// ProcessTask is the processor of the task stream consumer.
func (h *TaskHandler) ProcessTask(ctx context.Context, subject string, data []byte) error {
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))

	switch subject {
	case models.ParticipantBackfillSubject:
		var task models.ParticipantBackfillTask
		if err := json.Unmarshal(data, &task); err != nil {
			slog.ErrorContext(ctx, "error unmarshaling participant backfill task", logging.ErrKey, err)
			return domain.NewValidationError("invalid participant backfill task", err)
		}
		return h.backfill.ProcessTask(ctx, task)
	default:
		slog.WarnContext(ctx, "unknown task subject, dropping task")
		return nil
	}
}
