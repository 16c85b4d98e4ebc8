// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

func TestIngestionPipeline_Ingest(t *testing.T) {
	started := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	session := &models.LiveSession{
		ID:                  "sess-1",
		Title:               "Intro to Go",
		ProviderMeetingUUID: "uuid-from-start",
		StartedAt:           &started,
	}
	candidates := []models.RecordingCandidate{
		mp4("a", models.RecordingVariantActiveSpeaker),
		mp4("g", models.RecordingVariantGalleryView),
	}

	t.Run("reuses the webhook download token", func(t *testing.T) {
		provider := new(domain.MockConferencingProvider)
		host := new(domain.MockVideoHost)
		host.On("IngestFromURL", mock.Anything, "https://zoom.us/rec/download/g?access_token=tok", "Intro to Go – 2026-03-01").
			Return(&models.IngestResult{MediaID: "media-1"}, nil)

		mediaID, err := NewIngestionPipeline(provider, host, time.Minute).Ingest(context.Background(), session, RecordingDelivery{
			Candidates:    candidates,
			DownloadToken: "tok",
		})

		require.NoError(t, err)
		assert.Equal(t, "media-1", mediaID)
		provider.AssertNotCalled(t, "ResolveDownloadURL", mock.Anything, mock.Anything, mock.Anything)
		host.AssertExpectations(t)
	})

	t.Run("asks the provider without a token", func(t *testing.T) {
		provider := new(domain.MockConferencingProvider)
		host := new(domain.MockVideoHost)
		provider.On("ResolveDownloadURL", mock.Anything, "uuid-from-webhook", mock.MatchedBy(func(c models.RecordingCandidate) bool {
			return c.ID == "g"
		})).Return("https://zoom.us/rec/download/g?access_token=fresh", nil)
		host.On("IngestFromURL", mock.Anything, "https://zoom.us/rec/download/g?access_token=fresh", mock.Anything).
			Return(&models.IngestResult{MediaID: "media-2"}, nil)

		mediaID, err := NewIngestionPipeline(provider, host, time.Minute).Ingest(context.Background(), session, RecordingDelivery{
			MeetingUUID: "uuid-from-webhook",
			Candidates:  candidates,
		})

		require.NoError(t, err)
		assert.Equal(t, "media-2", mediaID)
		provider.AssertExpectations(t)
	})

	t.Run("falls back to the session meeting uuid", func(t *testing.T) {
		provider := new(domain.MockConferencingProvider)
		host := new(domain.MockVideoHost)
		provider.On("ResolveDownloadURL", mock.Anything, "uuid-from-start", mock.Anything).Return("https://example.com/x", nil)
		host.On("IngestFromURL", mock.Anything, mock.Anything, mock.Anything).Return(&models.IngestResult{MediaID: "m"}, nil)

		_, err := NewIngestionPipeline(provider, host, time.Minute).Ingest(context.Background(), session, RecordingDelivery{Candidates: candidates})
		require.NoError(t, err)
		provider.AssertExpectations(t)
	})

	t.Run("no mp4 never calls the host", func(t *testing.T) {
		provider := new(domain.MockConferencingProvider)
		host := new(domain.MockVideoHost)

		_, err := NewIngestionPipeline(provider, host, time.Minute).Ingest(context.Background(), session, RecordingDelivery{
			Candidates: []models.RecordingCandidate{{ID: "chat", FileType: models.RecordingFileTypeChat}},
		})

		assert.ErrorIs(t, err, domain.ErrNoRecordingFound)
		host.AssertNotCalled(t, "IngestFromURL", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing media id", func(t *testing.T) {
		host := new(domain.MockVideoHost)
		host.On("IngestFromURL", mock.Anything, mock.Anything, mock.Anything).Return(&models.IngestResult{}, nil)

		_, err := NewIngestionPipeline(new(domain.MockConferencingProvider), host, time.Minute).Ingest(context.Background(), session, RecordingDelivery{
			Candidates:    candidates,
			DownloadToken: "tok",
		})
		assert.ErrorIs(t, err, domain.ErrMissingMediaID)
	})

	t.Run("video host failure", func(t *testing.T) {
		host := new(domain.MockVideoHost)
		host.On("IngestFromURL", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.NewUnavailableError("host down"))

		_, err := NewIngestionPipeline(new(domain.MockConferencingProvider), host, time.Minute).Ingest(context.Background(), session, RecordingDelivery{
			Candidates:    candidates,
			DownloadToken: "tok",
		})
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})

	t.Run("timeout is a failure", func(t *testing.T) {
		host := new(domain.MockVideoHost)
		host.On("IngestFromURL", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(nil, context.DeadlineExceeded)

		_, err := NewIngestionPipeline(new(domain.MockConferencingProvider), host, 20*time.Millisecond).Ingest(context.Background(), session, RecordingDelivery{
			Candidates:    candidates,
			DownloadToken: "tok",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestIngestTitle(t *testing.T) {
	started := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	recorded := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "Intro – 2026-03-01", ingestTitle(&models.LiveSession{Title: "Intro", StartedAt: &started}, recorded))
	assert.Equal(t, "Intro – 2026-02-27", ingestTitle(&models.LiveSession{Title: "Intro"}, recorded))
	assert.Equal(t, "Live session", ingestTitle(&models.LiveSession{}, time.Time{}))
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "no MP4 recording in the delivery", failureReason(domain.ErrNoRecordingFound))
	assert.Equal(t, "video host returned no media id", failureReason(domain.ErrMissingMediaID))
	assert.Equal(t, "boom", failureReason(errors.New("boom")))
	assert.Len(t, failureReason(errors.New(strings.Repeat("x", 600))), 500)

	multiByte := failureReason(errors.New(strings.Repeat("a", 499) + "é…"))
	assert.True(t, utf8.ValidString(multiByte))
	assert.Equal(t, strings.Repeat("a", 499), multiByte)

	invalid := failureReason(errors.New("video host said \xff\xfe"))
	assert.True(t, utf8.ValidString(invalid))
}
