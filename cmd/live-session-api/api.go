// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/constants"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// LiveSessionAPI serves the webhook, health and operator routes.
type LiveSessionAPI struct {
	webhooks  *service.ZoomWebhookService
	operator  *service.OperatorService
	auth      *service.AuthService
	readiness []ReadinessCheck
	vars      func(*http.Request) map[string]string
}

// NewLiveSessionAPI creates a new LiveSessionAPI.
func NewLiveSessionAPI(
	webhooks *service.ZoomWebhookService,
	operator *service.OperatorService,
	auth *service.AuthService,
	readiness ...ReadinessCheck,
) *LiveSessionAPI {
	return &LiveSessionAPI{
		webhooks:  webhooks,
		operator:  operator,
		auth:      auth,
		readiness: readiness,
	}
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// zoomWebhookReceived is the reply to an accepted delivery.
type zoomWebhookReceived struct {
	Received bool `json:"received"`
}

// zoomValidationResponse is the reply to the endpoint validation handshake.
type zoomValidationResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

type replayResponse struct {
	SessionID        string `json:"session_id"`
	RecordingMediaID string `json:"recording_media_id"`
}

type forceParticipantsRequest struct {
	Count *int `json:"count"`
}

type forceParticipantsResponse struct {
	Recorded bool `json:"recorded"`
}

// statusFor maps a domain error to its HTTP status code.
func statusFor(err error) int {
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes body with the goa response encoder.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := goahttp.ResponseEncoder(ctx, w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "error encoding response", logging.ErrKey, err)
	}
}

// writeError writes the error body for err. Internal details are not exposed.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeJSON(ctx, w, status, ErrorResponse{Code: strconv.Itoa(status), Message: message})
}

// ZoomWebhook accepts a Zoom webhook delivery.
func (a *LiveSessionAPI) ZoomWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rawBody, ok := middleware.GetRawBodyFromContext(ctx)
	if !ok {
		writeError(ctx, w, domain.NewValidationError("missing request body"))
		return
	}

	resp, err := a.webhooks.ProcessWebhookEvent(ctx, service.WebhookRequest{
		Signature: r.Header.Get(constants.ZoomSignatureHeader),
		Timestamp: r.Header.Get(constants.ZoomTimestampHeader),
		RawBody:   rawBody,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if resp.EncryptedToken != nil && resp.PlainToken != nil {
		writeJSON(ctx, w, http.StatusOK, zoomValidationResponse{
			PlainToken:     *resp.PlainToken,
			EncryptedToken: *resp.EncryptedToken,
		})
		return
	}
	writeJSON(ctx, w, http.StatusOK, zoomWebhookReceived{Received: resp.Received})
}

// Livez checks if the service is alive.
func (a *LiveSessionAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	_, _ = w.Write([]byte("OK\n"))
}

// Readyz checks if the service is able to take inbound requests.
func (a *LiveSessionAPI) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !a.webhooks.ServiceReady() {
		writeError(ctx, w, domain.NewUnavailableError("webhook service not ready"))
		return
	}
	for _, check := range a.readiness {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "readiness check failed", logging.ErrKey, err)
			writeError(ctx, w, domain.NewUnavailableError("service not ready", err))
			return
		}
	}
	_, _ = w.Write([]byte("OK\n"))
}

// ReplayRecording runs ingestion for a stored recording.completed webhook body.
func (a *LiveSessionAPI) ReplayRecording(w http.ResponseWriter, r *http.Request) {
	ctx, ok := a.authorize(w, r)
	if !ok {
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := a.operator.ReplayRecording(ctx, body)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, replayResponse{
		SessionID:        result.SessionID,
		RecordingMediaID: result.RecordingMediaID,
	})
}

// ForceParticipants records an explicit participant count for a session.
func (a *LiveSessionAPI) ForceParticipants(w http.ResponseWriter, r *http.Request) {
	ctx, ok := a.authorize(w, r)
	if !ok {
		return
	}

	var sessionID string
	if a.vars != nil {
		sessionID = a.vars(r)["id"]
	}
	ctx = logging.WithSession(ctx, sessionID, "")

	var req forceParticipantsRequest
	if err := goahttp.RequestDecoder(r).Decode(&req); err != nil {
		writeError(ctx, w, domain.NewValidationError("invalid request body", err))
		return
	}
	if req.Count == nil {
		writeError(ctx, w, domain.NewValidationError("count is required"))
		return
	}

	recorded, err := a.operator.ForceParticipants(ctx, sessionID, *req.Count)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, forceParticipantsResponse{Recorded: recorded})
}

// authorize validates the operator bearer token and returns a context that
// carries the principal.
func (a *LiveSessionAPI) authorize(w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	ctx := r.Context()
	if a.auth == nil || !a.auth.ServiceReady() || a.operator == nil {
		writeError(ctx, w, domain.NewUnavailableError("operator endpoints not ready"))
		return ctx, false
	}

	// An empty token still reaches the validator so the local mock principal works.
	token, _ := middleware.GetBearerTokenFromContext(ctx)
	principal, err := a.auth.ParsePrincipal(ctx, token, slog.Default())
	if err != nil {
		if domain.GetErrorType(err) != domain.ErrorTypeUnavailable {
			err = domain.NewUnauthorizedError("invalid bearer token", err)
		}
		writeError(ctx, w, err)
		return ctx, false
	}

	ctx = context.WithValue(ctx, constants.PrincipalContextID, principal)
	ctx = logging.AppendCtx(ctx, slog.String("principal", principal))
	return ctx, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer func() { _ = r.Body.Close() }()
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, middleware.MaxWebhookBodyBytes)).Decode(&raw); err != nil {
		return nil, domain.NewValidationError("request body must be a JSON document", err)
	}
	return raw, nil
}
