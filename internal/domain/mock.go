// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// MockLiveSessionRepository implements LiveSessionRepository for testing
type MockLiveSessionRepository struct {
	mock.Mock
}

func (m *MockLiveSessionRepository) Get(ctx context.Context, sessionID string) (*models.LiveSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveSession), args.Error(1)
}

func (m *MockLiveSessionRepository) FindByProviderMeetingID(ctx context.Context, providerMeetingID string, statuses ...models.SessionStatus) (*models.LiveSession, error) {
	args := m.Called(ctx, providerMeetingID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveSession), args.Error(1)
}

func (m *MockLiveSessionRepository) ConditionalUpdate(ctx context.Context, sessionID string, expectedStatus models.SessionStatus, patch models.SessionPatch) (bool, error) {
	args := m.Called(ctx, sessionID, expectedStatus, patch)
	return args.Bool(0), args.Error(1)
}

func (m *MockLiveSessionRepository) RecordParticipants(ctx context.Context, sessionID string, count int, snapshot []models.ParticipantRecord) (bool, error) {
	args := m.Called(ctx, sessionID, count, snapshot)
	return args.Bool(0), args.Error(1)
}

func (m *MockLiveSessionRepository) Upsert(ctx context.Context, session *models.LiveSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockLiveSessionRepository) IsReady(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEnrollmentRepository implements EnrollmentRepository for testing
type MockEnrollmentRepository struct {
	mock.Mock
}

func (m *MockEnrollmentRepository) ListApprovedByClass(ctx context.Context, classID string) ([]*models.Enrollment, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Enrollment), args.Error(1)
}

func (m *MockEnrollmentRepository) Put(ctx context.Context, enrollment *models.Enrollment) error {
	args := m.Called(ctx, enrollment)
	return args.Error(0)
}

// MockNotificationRepository implements NotificationRepository for testing
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, record *models.NotificationRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockConferencingProvider implements ConferencingProvider for testing
type MockConferencingProvider struct {
	mock.Mock
}

func (m *MockConferencingProvider) ResolveDownloadURL(ctx context.Context, meetingUUID string, candidate models.RecordingCandidate) (string, error) {
	args := m.Called(ctx, meetingUUID, candidate)
	return args.String(0), args.Error(1)
}

func (m *MockConferencingProvider) FetchParticipants(ctx context.Context, meetingID string) (*models.ParticipantReport, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ParticipantReport), args.Error(1)
}

// MockVideoHost implements VideoHost for testing
type MockVideoHost struct {
	mock.Mock
}

func (m *MockVideoHost) IngestFromURL(ctx context.Context, url string, title string) (*models.IngestResult, error) {
	args := m.Called(ctx, url, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IngestResult), args.Error(1)
}

// MockWebhookValidator implements WebhookValidator for testing
type MockWebhookValidator struct {
	mock.Mock
}

func (m *MockWebhookValidator) ValidateSignature(body []byte, signature, timestamp string) error {
	args := m.Called(body, signature, timestamp)
	return args.Error(0)
}

func (m *MockWebhookValidator) EncryptToken(plainToken string) (string, error) {
	args := m.Called(plainToken)
	return args.String(0), args.Error(1)
}

// MockWebhookEventSender implements WebhookEventSender for testing
type MockWebhookEventSender struct {
	mock.Mock
}

func (m *MockWebhookEventSender) PublishZoomWebhookEvent(ctx context.Context, subject string, message models.ZoomWebhookEventMessage) error {
	args := m.Called(ctx, subject, message)
	return args.Error(0)
}

// MockNotificationSink implements NotificationSink for testing
type MockNotificationSink struct {
	mock.Mock
}

func (m *MockNotificationSink) Emit(ctx context.Context, record *models.NotificationRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockBackfillScheduler implements BackfillScheduler for testing
type MockBackfillScheduler struct {
	mock.Mock
}

func (m *MockBackfillScheduler) Schedule(ctx context.Context, sessionID string, delay time.Duration) error {
	args := m.Called(ctx, sessionID, delay)
	return args.Error(0)
}

// MockMessage implements Message for testing
type MockMessage struct {
	mock.Mock
	data    []byte
	subject string
}

func (m *MockMessage) Subject() string {
	return m.subject
}

func (m *MockMessage) Data() []byte {
	return m.data
}

func (m *MockMessage) HasReply() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMessage) Respond(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

// NewMockMessage creates a mock message for testing
func NewMockMessage(data []byte, subject string) *MockMessage {
	return &MockMessage{
		data:    data,
		subject: subject,
	}
}
