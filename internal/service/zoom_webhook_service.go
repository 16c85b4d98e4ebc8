// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/utils"
)

// ZoomWebhookService accepts Zoom webhook deliveries and queues them for the lifecycle controller
type ZoomWebhookService struct {
	messageSender    domain.WebhookEventSender
	webhookValidator domain.WebhookValidator
}

// WebhookRequest is a raw webhook delivery with its signature headers.
type WebhookRequest struct {
	Signature string
	Timestamp string
	RawBody   []byte
}

// webhookEnvelope is the JSON envelope of a Zoom webhook delivery.
type webhookEnvelope struct {
	Event         string `json:"event"`
	EventTS       int64  `json:"event_ts"`
	DownloadToken string `json:"download_token"`
	Payload       any    `json:"payload"`
}

// WebhookResponse represents the webhook processing response.
// Handshake responses carry the tokens, every other accepted delivery sets Received.
type WebhookResponse struct {
	Received       bool
	PlainToken     *string
	EncryptedToken *string
}

// queuedEvents are the event types the lifecycle controller acts on.
var queuedEvents = map[string]bool{
	models.ZoomEventMeetingStarted:               true,
	models.ZoomEventMeetingEnded:                 true,
	models.ZoomEventRecordingCompleted:           true,
	models.ZoomEventRecordingTranscriptCompleted: true,
}

// NewZoomWebhookService creates a new ZoomWebhookService
func NewZoomWebhookService(
	messageSender domain.WebhookEventSender,
	webhookValidator domain.WebhookValidator,
) *ZoomWebhookService {
	return &ZoomWebhookService{
		messageSender:    messageSender,
		webhookValidator: webhookValidator,
	}
}

// ServiceReady checks if the service is ready to process requests
func (s *ZoomWebhookService) ServiceReady() bool {
	return s.messageSender != nil && s.webhookValidator != nil
}

// ProcessWebhookEvent answers the endpoint validation handshake, or verifies
// and durably queues an ordinary event. A nil error means Zoom may consider
// the delivery done. The body is only parsed once its signature checks out,
// except to recognize the handshake, which Zoom may send unsigned.
func (s *ZoomWebhookService) ProcessWebhookEvent(ctx context.Context, req WebhookRequest) (*WebhookResponse, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("webhook service not ready")
	}
	if len(req.RawBody) == 0 {
		return nil, domain.NewValidationError("missing request body")
	}

	if err := s.webhookValidator.ValidateSignature(req.RawBody, req.Signature, req.Timestamp); err != nil {
		var envelope webhookEnvelope
		if json.Unmarshal(req.RawBody, &envelope) == nil && envelope.Event == models.ZoomEventEndpointURLValidation {
			ctx = logging.AppendCtx(ctx, slog.String(logging.EventTypeKey, envelope.Event))
			return s.handleEndpointValidation(ctx, envelope)
		}

		slog.WarnContext(ctx, "rejecting Zoom webhook delivery", logging.ErrKey, err)
		if domain.GetErrorType(err) == domain.ErrorTypeUnauthorized {
			return nil, err
		}
		return nil, domain.NewUnauthorizedError("invalid webhook signature", err)
	}

	envelope, err := parseEnvelope(req.RawBody)
	if err != nil {
		return nil, err
	}
	ctx = logging.AppendCtx(ctx, slog.String(logging.EventTypeKey, envelope.Event))

	if envelope.Event == models.ZoomEventEndpointURLValidation {
		return s.handleEndpointValidation(ctx, envelope)
	}
	return s.processRegularEvent(ctx, envelope)
}

// parseEnvelope decodes a verified delivery body.
func parseEnvelope(body []byte) (webhookEnvelope, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return envelope, domain.NewValidationError("webhook body is not valid JSON", err)
	}
	if envelope.Event == "" {
		return envelope, domain.NewValidationError("missing event field")
	}
	return envelope, nil
}

// handleEndpointValidation handles the special endpoint.url_validation event
func (s *ZoomWebhookService) handleEndpointValidation(ctx context.Context, req webhookEnvelope) (*WebhookResponse, error) {
	payloadMap, ok := req.Payload.(map[string]any)
	if !ok {
		slog.ErrorContext(ctx, "webhook payload is not a valid map for validation", "payload_type", fmt.Sprintf("%T", req.Payload))
		return nil, domain.NewValidationError("invalid validation payload format")
	}

	plainToken, ok := payloadMap["plainToken"].(string)
	if !ok || plainToken == "" {
		return nil, domain.NewValidationError("missing plainToken in validation payload")
	}

	encryptedToken, err := s.webhookValidator.EncryptToken(plainToken)
	if err != nil {
		slog.ErrorContext(ctx, "Zoom webhook endpoint validation failed", logging.ErrKey, err)
		return nil, err
	}

	slog.InfoContext(ctx, "Zoom webhook endpoint validation completed successfully")
	return &WebhookResponse{
		PlainToken:     utils.Ptr(plainToken),
		EncryptedToken: utils.Ptr(encryptedToken),
	}, nil
}

// processRegularEvent queues a verified event on JetStream
func (s *ZoomWebhookService) processRegularEvent(ctx context.Context, req webhookEnvelope) (*WebhookResponse, error) {
	if !queuedEvents[req.Event] {
		slog.DebugContext(ctx, "ignoring Zoom webhook event type")
		return &WebhookResponse{Received: true}, nil
	}

	payloadMap, ok := req.Payload.(map[string]any)
	if !ok {
		slog.ErrorContext(ctx, "webhook payload is not a valid map", "payload_type", fmt.Sprintf("%T", req.Payload))
		return nil, domain.NewValidationError("invalid webhook payload format")
	}

	subject := models.ZoomWebhookSubject(req.Event)
	webhookMessage := models.ZoomWebhookEventMessage{
		EventType:     req.Event,
		EventTS:       req.EventTS,
		DownloadToken: req.DownloadToken,
		Payload:       payloadMap,
	}

	if err := s.messageSender.PublishZoomWebhookEvent(ctx, subject, webhookMessage); err != nil {
		slog.ErrorContext(ctx, "failed to queue Zoom webhook event", logging.ErrKey, err, "subject", subject)
		return nil, domain.NewUnavailableError("failed to queue webhook event", err)
	}

	slog.InfoContext(ctx, "Zoom webhook event queued for processing", "subject", subject)
	return &WebhookResponse{Received: true}, nil
}
