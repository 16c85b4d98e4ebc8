// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// MaxParticipantsPageSize is the largest page the participants report accepts.
const MaxParticipantsPageSize = 300

// PastMeetingParticipant is one attendance record of an ended meeting.
// A user who rejoins appears once per join.
type PastMeetingParticipant struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	UserEmail     string    `json:"user_email"`
	JoinTime      time.Time `json:"join_time"`
	LeaveTime     time.Time `json:"leave_time"`
	Duration      int       `json:"duration"`
	RegistrantID  string    `json:"registrant_id"`
	Status        string    `json:"status"`
	InternalUser  bool      `json:"internal_user"`
	FailoverCount int       `json:"failover"`
}

// ParticipantsPage is one page of GET /past_meetings/{meetingId}/participants.
type ParticipantsPage struct {
	PageCount     int                      `json:"page_count"`
	PageSize      int                      `json:"page_size"`
	TotalRecords  int                      `json:"total_records"`
	NextPageToken string                   `json:"next_page_token"`
	Participants  []PastMeetingParticipant `json:"participants"`
}

// ListPastMeetingParticipants fetches one page of the participants report.
func (c *Client) ListPastMeetingParticipants(ctx context.Context, meetingID string, pageSize int, nextPageToken string) (*ParticipantsPage, error) {
	if meetingID == "" {
		return nil, fmt.Errorf("meeting ID is required")
	}
	if pageSize <= 0 || pageSize > MaxParticipantsPageSize {
		pageSize = MaxParticipantsPageSize
	}

	query := url.Values{}
	query.Set("page_size", strconv.Itoa(pageSize))
	if nextPageToken != "" {
		query.Set("next_page_token", nextPageToken)
	}

	var page ParticipantsPage
	path := fmt.Sprintf("/past_meetings/%s/participants", escapeMeetingID(meetingID))
	if err := c.getJSON(ctx, path, query, &page); err != nil {
		return nil, fmt.Errorf("failed to list past meeting participants: %w", err)
	}
	return &page, nil
}
