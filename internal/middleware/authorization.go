// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/constants"
)

// AuthorizationMiddleware stores the bearer token of the Authorization header
// in the request context for the operator endpoints.
func AuthorizationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(constants.AuthorizationHeader)
			if token, ok := bearerToken(header); ok {
				ctx := context.WithValue(r.Context(), constants.AuthorizationContextID, token)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetBearerTokenFromContext returns the bearer token captured by AuthorizationMiddleware.
func GetBearerTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(constants.AuthorizationContextID).(string)
	return token, ok && token != ""
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
