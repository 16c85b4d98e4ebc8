// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package webhook verifies Zoom webhook deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/constants"
)

// DefaultMaxClockSkew is how far a delivery timestamp may drift from now.
const DefaultMaxClockSkew = 5 * time.Minute

// WebhookValidatorConfig configures the Zoom webhook validator.
type WebhookValidatorConfig struct {
	// SecretToken is the webhook secret token of the Zoom app.
	SecretToken string
	// InsecureSkipVerify accepts unsigned deliveries when no secret is configured.
	InsecureSkipVerify bool
	// MaxClockSkew bounds the age of a delivery. Zero disables the check.
	MaxClockSkew time.Duration
}

// ZoomWebhookValidator handles validation of Zoom webhook signatures
type ZoomWebhookValidator struct {
	config WebhookValidatorConfig
	now    func() time.Time
}

// NewZoomWebhookValidator creates a new Zoom webhook validator
func NewZoomWebhookValidator(config WebhookValidatorConfig) *ZoomWebhookValidator {
	if config.SecretToken == "" {
		if config.InsecureSkipVerify {
			slog.Warn("zoom webhook secret token is not configured, signature verification is DISABLED")
		} else {
			slog.Warn("zoom webhook secret token is not configured, all webhook deliveries will be rejected")
		}
	}
	return &ZoomWebhookValidator{
		config: config,
		now:    time.Now,
	}
}

// ValidateSignature validates the Zoom webhook signature
func (v *ZoomWebhookValidator) ValidateSignature(body []byte, signature, timestamp string) error {
	if v.config.SecretToken == "" {
		if v.config.InsecureSkipVerify {
			slog.Warn("skipping zoom webhook signature verification")
			return nil
		}
		return domain.NewUnauthorizedError("webhook secret token not configured", domain.ErrWebhookSecretNotConfigured)
	}

	if signature == "" {
		return domain.NewUnauthorizedError("missing webhook signature", domain.ErrInvalidSignature)
	}
	if timestamp == "" {
		return domain.NewUnauthorizedError("missing webhook timestamp", domain.ErrInvalidSignature)
	}

	if v.config.MaxClockSkew > 0 {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return domain.NewUnauthorizedError("invalid webhook timestamp", domain.ErrInvalidSignature)
		}
		skew := v.now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.config.MaxClockSkew {
			return domain.NewUnauthorizedError(
				fmt.Sprintf("webhook timestamp outside the allowed window of %s", v.config.MaxClockSkew),
				domain.ErrInvalidSignature,
			)
		}
	}

	message := fmt.Sprintf("%s:%s:%s", constants.ZoomSignaturePrefix, timestamp, body)
	expected := v.sign(message)

	provided := strings.TrimPrefix(signature, constants.ZoomSignaturePrefix+"=")
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return domain.NewUnauthorizedError("zoom webhook signature does not match", domain.ErrInvalidSignature)
	}

	return nil
}

// EncryptToken answers the endpoint.url_validation handshake.
func (v *ZoomWebhookValidator) EncryptToken(plainToken string) (string, error) {
	if plainToken == "" {
		return "", domain.NewValidationError("plainToken is required")
	}
	if v.config.SecretToken == "" {
		return "", domain.NewUnavailableError("webhook secret token not configured", domain.ErrWebhookSecretNotConfigured)
	}
	return v.sign(plainToken), nil
}

func (v *ZoomWebhookValidator) sign(message string) string {
	h := hmac.New(sha256.New, []byte(v.config.SecretToken))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
