// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/infrastructure/zoom/api"
)

// MockClient is a function-field implementation of the Zoom API client for testing.
// Unset functions return empty results.
type MockClient struct {
	GetMeetingRecordingsFunc        func(ctx context.Context, meetingUUID string) (*api.MeetingRecordings, error)
	ListPastMeetingParticipantsFunc func(ctx context.Context, meetingID string, pageSize int, nextPageToken string) (*api.ParticipantsPage, error)

	// ParticipantCalls records the page tokens requested, in order.
	ParticipantCalls []string
}

// NewMockClient creates a new mock client with default implementations
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements ClientAPI interface
var _ api.ClientAPI = (*MockClient)(nil)

// GetMeetingRecordings mocks the GetMeetingRecordings API call
func (m *MockClient) GetMeetingRecordings(ctx context.Context, meetingUUID string) (*api.MeetingRecordings, error) {
	if m.GetMeetingRecordingsFunc != nil {
		return m.GetMeetingRecordingsFunc(ctx, meetingUUID)
	}
	return &api.MeetingRecordings{UUID: meetingUUID}, nil
}

// ListPastMeetingParticipants mocks the ListPastMeetingParticipants API call
func (m *MockClient) ListPastMeetingParticipants(ctx context.Context, meetingID string, pageSize int, nextPageToken string) (*api.ParticipantsPage, error) {
	m.ParticipantCalls = append(m.ParticipantCalls, nextPageToken)
	if m.ListPastMeetingParticipantsFunc != nil {
		return m.ListPastMeetingParticipantsFunc(ctx, meetingID, pageSize, nextPageToken)
	}
	return &api.ParticipantsPage{}, nil
}
