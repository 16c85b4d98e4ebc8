// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"net/url"
)

// Recording file types delivered in recording.completed payloads.
const (
	RecordingFileTypeMP4        = "MP4"
	RecordingFileTypeM4A        = "M4A"
	RecordingFileTypeChat       = "CHAT"
	RecordingFileTypeTranscript = "TRANSCRIPT"
)

// Recording variants, the camera/screen-share composition of a file.
const (
	RecordingVariantSharedScreenWithSpeakerView = "shared_screen_with_speaker_view"
	RecordingVariantGalleryView                 = "gallery_view"
	RecordingVariantActiveSpeaker               = "active_speaker"
)

// RecordingCandidate is one file from a recording.completed webhook.
type RecordingCandidate struct {
	ID               string `json:"id"`
	FileType         string `json:"file_type"`
	RecordingVariant string `json:"recording_variant"`
	DownloadHandle   string `json:"download_handle"`
	SizeBytes        int64  `json:"size_bytes"`
}

// IngestResult is what the video host returns for an accepted transfer.
type IngestResult struct {
	MediaID string `json:"media_id"`
}

// DownloadURLWithToken returns the download handle authorized with an access token.
func (c RecordingCandidate) DownloadURLWithToken(token string) (string, error) {
	return AuthorizeDownloadURL(c.DownloadHandle, token)
}

// AuthorizeDownloadURL adds the access_token query parameter to a recording download URL.
func AuthorizeDownloadURL(downloadURL, token string) (string, error) {
	if downloadURL == "" {
		return "", fmt.Errorf("download url is empty")
	}
	if token == "" {
		return "", fmt.Errorf("access token is empty")
	}

	u, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("invalid download url: %w", err)
	}
	query := u.Query()
	query.Set("access_token", token)
	u.RawQuery = query.Encode()
	return u.String(), nil
}
