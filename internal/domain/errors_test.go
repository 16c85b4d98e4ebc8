// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"validation", NewValidationError("bad payload"), ErrorTypeValidation},
		{"unauthorized", NewUnauthorizedError("bad signature", ErrInvalidSignature), ErrorTypeUnauthorized},
		{"not found", NewNotFoundError("session not found"), ErrorTypeNotFound},
		{"conflict", NewConflictError("session has been modified"), ErrorTypeConflict},
		{"internal", NewInternalError("boom"), ErrorTypeInternal},
		{"unavailable", NewUnavailableError("nats down"), ErrorTypeUnavailable},
		{"wrapped domain error", fmt.Errorf("outer: %w", NewNotFoundError("inner")), ErrorTypeNotFound},
		{"plain error falls back to internal", errors.New("plain"), ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorType(tt.err))
		})
	}
}

func TestDomainError_MessageAndUnwrap(t *testing.T) {
	err := NewInternalError("failed to ingest recording", ErrMissingMediaID)

	assert.Equal(t, "failed to ingest recording: "+ErrMissingMediaID.Error(), err.Error())
	assert.ErrorIs(t, err, ErrMissingMediaID)

	bare := NewValidationError("event type is required")
	assert.Equal(t, "event type is required", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNoRecordingFound,
		ErrMissingMediaID,
		ErrInvalidSignature,
		ErrWebhookSecretNotConfigured,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}

func TestGetDeferDelay(t *testing.T) {
	delay, ok := GetDeferDelay(fmt.Errorf("wrapped: %w", NewDeferredError("not due", 2*time.Minute)))
	assert.True(t, ok)
	assert.Equal(t, 2*time.Minute, delay)

	_, ok = GetDeferDelay(NewInternalError("boom"))
	assert.False(t, ok)
}
