// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package zoom adapts the Zoom REST API to the conferencing provider the
// lifecycle controller depends on.
package zoom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/zoom/api"
)

// maxParticipantPages bounds pagination of a single participants report.
const maxParticipantPages = 100

// Provider implements domain.ConferencingProvider over the Zoom API client.
type Provider struct {
	client api.ClientAPI
}

// Ensure Provider implements ConferencingProvider
var _ domain.ConferencingProvider = (*Provider)(nil)

// NewProvider creates a Zoom conferencing provider
func NewProvider(client api.ClientAPI) *Provider {
	return &Provider{client: client}
}

// ResolveDownloadURL mints a download access token for the meeting instance
// and returns the candidate's download URL authorized with it.
func (p *Provider) ResolveDownloadURL(ctx context.Context, meetingUUID string, candidate models.RecordingCandidate) (string, error) {
	if meetingUUID == "" {
		return "", domain.NewValidationError("meeting UUID is required to resolve a recording download")
	}

	recordings, err := p.client.GetMeetingRecordings(ctx, meetingUUID)
	if err != nil {
		return "", mapAPIError(err, "failed to get meeting recordings")
	}
	if recordings.DownloadAccessToken == "" {
		return "", domain.NewUnavailableError("zoom returned no download access token")
	}

	downloadURL := candidate.DownloadHandle
	if file, ok := recordings.FileByID(candidate.ID); ok && file.DownloadURL != "" {
		downloadURL = file.DownloadURL
	}

	authorized, err := models.AuthorizeDownloadURL(downloadURL, recordings.DownloadAccessToken)
	if err != nil {
		return "", domain.NewValidationError("recording candidate has no usable download url", err)
	}
	return authorized, nil
}

// FetchParticipants reads the full participants report of an ended meeting.
// A report Zoom has not produced yet comes back empty, not as an error.
func (p *Provider) FetchParticipants(ctx context.Context, meetingID string) (*models.ParticipantReport, error) {
	if meetingID == "" {
		return nil, domain.NewValidationError("meeting ID is required to fetch participants")
	}

	report := &models.ParticipantReport{}
	nextPageToken := ""

	for page := 0; page < maxParticipantPages; page++ {
		resp, err := p.client.ListPastMeetingParticipants(ctx, meetingID, api.MaxParticipantsPageSize, nextPageToken)
		if err != nil {
			if api.IsNotFound(err) {
				slog.InfoContext(ctx, "zoom participants report not available yet", "meeting_id", meetingID)
				return &models.ParticipantReport{}, nil
			}
			return nil, mapAPIError(err, "failed to list past meeting participants")
		}

		if page == 0 {
			report.Total = resp.TotalRecords
		}
		for _, participant := range resp.Participants {
			report.Records = append(report.Records, toParticipantRecord(participant))
		}

		if resp.NextPageToken == "" {
			return report, nil
		}
		nextPageToken = resp.NextPageToken
	}

	slog.WarnContext(ctx, "zoom participants report truncated",
		"meeting_id", meetingID,
		"pages", maxParticipantPages,
		"records", len(report.Records),
	)
	return report, nil
}

func toParticipantRecord(p api.PastMeetingParticipant) models.ParticipantRecord {
	return models.ParticipantRecord{
		ID:              p.ID,
		UserID:          p.UserID,
		Name:            p.Name,
		Email:           p.UserEmail,
		JoinTime:        nonZeroTime(p.JoinTime),
		LeaveTime:       nonZeroTime(p.LeaveTime),
		DurationSeconds: p.Duration,
	}
}

func nonZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// mapAPIError converts Zoom client failures into domain errors.
func mapAPIError(err error, message string) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return domain.NewNotFoundError(message, err)
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return domain.NewUnauthorizedError(message, err)
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError:
			return domain.NewUnavailableError(message, err)
		default:
			return domain.NewInternalError(fmt.Sprintf("%s (status %d)", message, apiErr.StatusCode), err)
		}
	}
	// transport failures, timeouts and exhausted retries
	return domain.NewUnavailableError(message, err)
}
