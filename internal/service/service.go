// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import "time"

type Service interface {
	ServiceReady() bool
}

// Defaults for ServiceConfig.
const (
	DefaultParticipantBackfillDelay = 30 * time.Minute
	DefaultIngestionTimeout         = 30 * time.Minute
	DefaultNotificationWorkers      = 10
)

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// ParticipantBackfillDelay is how long after meeting.ended the attendance report is fetched.
	ParticipantBackfillDelay time.Duration
	// IngestionTimeout bounds a whole recording ingestion.
	IngestionTimeout time.Duration
	// NotificationWorkers is the fan-out concurrency.
	NotificationWorkers int
}

// withDefaults fills zero values.
func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.ParticipantBackfillDelay <= 0 {
		c.ParticipantBackfillDelay = DefaultParticipantBackfillDelay
	}
	if c.IngestionTimeout <= 0 {
		c.IngestionTimeout = DefaultIngestionTimeout
	}
	if c.NotificationWorkers <= 0 {
		c.NotificationWorkers = DefaultNotificationWorkers
	}
	return c
}
