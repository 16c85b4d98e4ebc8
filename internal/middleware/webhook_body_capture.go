// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/logging"
)

// ZoomWebhookPath is the route Zoom delivers webhooks to.
const ZoomWebhookPath = "/webhooks/zoom"

// MaxWebhookBodyBytes bounds the size of a captured webhook body.
const MaxWebhookBodyBytes int64 = 1 << 20

// WebhookBodyContextKey is the context key for storing raw webhook body
type WebhookBodyContextKey struct{}

// WebhookBodyCaptureMiddleware keeps the exact bytes of a Zoom webhook request
// in the request context. The signature is computed over these bytes, so they
// must be captured before any decoder touches the body.
func WebhookBodyCaptureMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != ZoomWebhookPath {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBodyBytes))
			_ = r.Body.Close()
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					slog.WarnContext(r.Context(), "webhook body too large", "limit", maxErr.Limit)
					http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				slog.WarnContext(r.Context(), "failed to read webhook body", logging.ErrKey, err)
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r = r.WithContext(context.WithValue(r.Context(), WebhookBodyContextKey{}, body))

			next.ServeHTTP(w, r)
		})
	}
}

// GetRawBodyFromContext extracts the raw body from the context
func GetRawBodyFromContext(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(WebhookBodyContextKey{}).([]byte)
	return body, ok
}
