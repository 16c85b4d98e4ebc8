// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package platforms wires the conferencing provider integrations.
package platforms

import (
	"log/slog"
	"os"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/zoom"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/zoom/api"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/zoom/webhook"
)

// ZoomConfig holds Zoom-specific configuration
type ZoomConfig struct {
	AccountID          string
	ClientID           string
	ClientSecret       string
	WebhookSecretToken string
	// InsecureSkipVerify accepts unsigned webhooks when no secret is set. Local development only.
	InsecureSkipVerify bool
	MaxClockSkew       time.Duration
}

// NewZoomConfigFromEnv creates a ZoomConfig from environment variables
func NewZoomConfigFromEnv() ZoomConfig {
	maxSkew := webhook.DefaultMaxClockSkew
	if raw := os.Getenv("ZOOM_WEBHOOK_MAX_CLOCK_SKEW"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			slog.Warn("invalid ZOOM_WEBHOOK_MAX_CLOCK_SKEW, using default", "value", raw)
		} else {
			maxSkew = parsed
		}
	}

	return ZoomConfig{
		AccountID:          os.Getenv("ZOOM_ACCOUNT_ID"),
		ClientID:           os.Getenv("ZOOM_CLIENT_ID"),
		ClientSecret:       os.Getenv("ZOOM_CLIENT_SECRET"),
		WebhookSecretToken: os.Getenv("ZOOM_WEBHOOK_SECRET_TOKEN"),
		InsecureSkipVerify: os.Getenv("ZOOM_WEBHOOK_INSECURE_SKIP_VERIFY") == "true",
		MaxClockSkew:       maxSkew,
	}
}

// IsConfigured returns true if all required Zoom credentials are provided
func (z ZoomConfig) IsConfigured() bool {
	return z.AccountID != "" && z.ClientID != "" && z.ClientSecret != ""
}

// ToAPIConfig converts the ZoomConfig to an api.Config
func (z ZoomConfig) ToAPIConfig() api.Config {
	return api.Config{
		AccountID:    z.AccountID,
		ClientID:     z.ClientID,
		ClientSecret: z.ClientSecret,
	}
}

// ToValidatorConfig converts the ZoomConfig to a webhook.WebhookValidatorConfig
func (z ZoomConfig) ToValidatorConfig() webhook.WebhookValidatorConfig {
	return webhook.WebhookValidatorConfig{
		SecretToken:        z.WebhookSecretToken,
		InsecureSkipVerify: z.InsecureSkipVerify,
		MaxClockSkew:       z.MaxClockSkew,
	}
}

// SetupZoom builds the Zoom conferencing provider and webhook validator.
// The provider is nil when the API credentials are missing. The validator is
// always returned and rejects every delivery until a secret is configured.
func SetupZoom(config ZoomConfig) (domain.ConferencingProvider, domain.WebhookValidator) {
	var provider domain.ConferencingProvider
	if config.IsConfigured() {
		provider = zoom.NewProvider(api.NewClient(config.ToAPIConfig()))

		slog.Info("Zoom platform integration configured",
			"account_id", config.AccountID,
			"client_id", config.ClientID)
	} else {
		slog.Warn("Zoom platform integration not configured - missing required environment variables",
			"has_account_id", config.AccountID != "",
			"has_client_id", config.ClientID != "",
			"has_client_secret", config.ClientSecret != "")
	}

	return provider, webhook.NewZoomWebhookValidator(config.ToValidatorConfig())
}
