// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/utils"
)

// ingestTitleDateLayout is the date format of the video title suffix.
const ingestTitleDateLayout = "2006-01-02"

// RecordingDelivery is the recording data carried by a recording.completed event.
type RecordingDelivery struct {
	// MeetingUUID identifies the meeting instance that produced the files.
	MeetingUUID string
	// Candidates are the files of the recording, in payload order.
	Candidates []models.RecordingCandidate
	// DownloadToken is the one-time token delivered with the webhook, if any.
	DownloadToken string
	// StartTime is the recording start reported by the provider.
	StartTime time.Time
}

// IngestionPipeline moves a finished recording from the conferencing provider
// into the video host by remote URL. The file never passes through this process
// unless the video host itself streams it.
type IngestionPipeline struct {
	provider  domain.ConferencingProvider
	videoHost domain.VideoHost
	timeout   time.Duration
}

// NewIngestionPipeline creates a pipeline. A zero timeout uses DefaultIngestionTimeout.
func NewIngestionPipeline(provider domain.ConferencingProvider, videoHost domain.VideoHost, timeout time.Duration) *IngestionPipeline {
	if timeout <= 0 {
		timeout = DefaultIngestionTimeout
	}
	return &IngestionPipeline{
		provider:  provider,
		videoHost: videoHost,
		timeout:   timeout,
	}
}

// ServiceReady checks if the pipeline has its collaborators
func (p *IngestionPipeline) ServiceReady() bool {
	return p.provider != nil && p.videoHost != nil
}

// Ingest selects the best recording file and transfers it into the video host.
// It returns the media id assigned by the host.
func (p *IngestionPipeline) Ingest(ctx context.Context, session *models.LiveSession, delivery RecordingDelivery) (string, error) {
	candidate, err := SelectRecording(delivery.Candidates)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	slog.DebugContext(ctx, "ingesting recording",
		"recording_id", candidate.ID,
		"recording_variant", candidate.RecordingVariant,
		"size_bytes", candidate.SizeBytes,
	)

	downloadURL, err := p.resolveDownloadURL(ctx, session, delivery, candidate)
	if err != nil {
		return "", p.wrapTimeout(ctx, err)
	}

	result, err := p.videoHost.IngestFromURL(ctx, downloadURL, ingestTitle(session, delivery.StartTime))
	if err != nil {
		return "", p.wrapTimeout(ctx, err)
	}
	if result == nil || result.MediaID == "" {
		return "", domain.ErrMissingMediaID
	}

	return result.MediaID, nil
}

// resolveDownloadURL reuses the webhook's download token when present,
// otherwise asks the provider for a fresh authorized URL.
func (p *IngestionPipeline) resolveDownloadURL(ctx context.Context, session *models.LiveSession, delivery RecordingDelivery, candidate models.RecordingCandidate) (string, error) {
	if delivery.DownloadToken != "" {
		downloadURL, err := candidate.DownloadURLWithToken(delivery.DownloadToken)
		if err == nil {
			return downloadURL, nil
		}
		slog.WarnContext(ctx, "webhook download token unusable, asking the provider", "error", err)
	}

	meetingUUID := utils.FirstNonEmpty(delivery.MeetingUUID, session.ProviderMeetingUUID)
	return p.provider.ResolveDownloadURL(ctx, meetingUUID, candidate)
}

func (p *IngestionPipeline) wrapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewUnavailableError(fmt.Sprintf("ingestion timed out after %s", p.timeout), err)
	}
	return err
}

// ingestTitle is "{title} – {date}". The date is the session start, falling
// back to the recording start.
func ingestTitle(session *models.LiveSession, recordingStart time.Time) string {
	title := session.Title
	if title == "" {
		title = "Live session"
	}

	var date time.Time
	switch {
	case session.StartedAt != nil:
		date = *session.StartedAt
	case !recordingStart.IsZero():
		date = recordingStart
	default:
		return title
	}
	return fmt.Sprintf("%s – %s", title, date.UTC().Format(ingestTitleDateLayout))
}

// failureReason is the short reason stored as recording_error.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoRecordingFound):
		return "no MP4 recording in the delivery"
	case errors.Is(err, domain.ErrMissingMediaID):
		return "video host returned no media id"
	}
	reason := strings.ToValidUTF8(err.Error(), "\uFFFD")
	const maxReason = 500
	if len(reason) > maxReason {
		cut := maxReason
		for cut > 0 && !utf8.RuneStart(reason[cut]) {
			cut--
		}
		reason = reason[:cut]
	}
	return reason
}
