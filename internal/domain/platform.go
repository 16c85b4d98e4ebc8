// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// ConferencingProvider defines the calls the controller makes back to the video-conferencing provider
type ConferencingProvider interface {
	// ResolveDownloadURL mints an authenticated, short-lived download URL for a recording file.
	// meetingUUID identifies the meeting instance the recording belongs to.
	ResolveDownloadURL(ctx context.Context, meetingUUID string, candidate models.RecordingCandidate) (string, error)

	// FetchParticipants returns the attendance report of an ended meeting.
	// A nil or empty report means the provider has not finalized the roster yet.
	FetchParticipants(ctx context.Context, meetingID string) (*models.ParticipantReport, error)
}

// VideoHost is the video-hosting backend recordings are ingested into
type VideoHost interface {
	// IngestFromURL asks the backend to pull the file at url. The returned result must carry a media id.
	IngestFromURL(ctx context.Context, url string, title string) (*models.IngestResult, error)
}

// WebhookValidator verifies provider webhook deliveries
type WebhookValidator interface {
	// ValidateSignature returns nil when the signature over body matches.
	ValidateSignature(body []byte, signature, timestamp string) error

	// EncryptToken signs the endpoint-validation nonce.
	EncryptToken(plainToken string) (string, error)
}
