// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// RecordingFile is one artifact of a cloud recording.
type RecordingFile struct {
	ID             string    `json:"id"`
	MeetingID      string    `json:"meeting_id"`
	RecordingStart time.Time `json:"recording_start"`
	RecordingEnd   time.Time `json:"recording_end"`
	FileType       string    `json:"file_type"`
	FileExtension  string    `json:"file_extension"`
	FileSize       int64     `json:"file_size"`
	PlayURL        string    `json:"play_url"`
	DownloadURL    string    `json:"download_url"`
	Status         string    `json:"status"`
	RecordingType  string    `json:"recording_type"`
}

// MeetingRecordings is the response of GET /meetings/{meetingId}/recordings.
type MeetingRecordings struct {
	UUID                string          `json:"uuid"`
	ID                  int64           `json:"id"`
	Topic               string          `json:"topic"`
	StartTime           time.Time       `json:"start_time"`
	RecordingCount      int             `json:"recording_count"`
	RecordingFiles      []RecordingFile `json:"recording_files"`
	DownloadAccessToken string          `json:"download_access_token"`
}

// FileByID returns the recording file with the given id.
func (r *MeetingRecordings) FileByID(id string) (RecordingFile, bool) {
	for _, f := range r.RecordingFiles {
		if f.ID == id {
			return f, true
		}
	}
	return RecordingFile{}, false
}

// GetMeetingRecordings lists the cloud recordings of a meeting instance and
// mints a download access token valid for its files.
func (c *Client) GetMeetingRecordings(ctx context.Context, meetingUUID string) (*MeetingRecordings, error) {
	if meetingUUID == "" {
		return nil, fmt.Errorf("meeting UUID is required")
	}

	query := url.Values{}
	query.Set("include_fields", "download_access_token")

	var recordings MeetingRecordings
	path := fmt.Sprintf("/meetings/%s/recordings", escapeMeetingID(meetingUUID))
	if err := c.getJSON(ctx, path, query, &recordings); err != nil {
		return nil, fmt.Errorf("failed to get meeting recordings: %w", err)
	}
	return &recordings, nil
}
