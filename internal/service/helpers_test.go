// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// memSessions is an in-memory LiveSessionRepository with the same
// compare-and-set semantics as the real stores.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.LiveSession
	updates  int
}

func newMemSessions(sessions ...*models.LiveSession) *memSessions {
	m := &memSessions{sessions: map[string]*models.LiveSession{}}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return m
}

func (m *memSessions) snapshot(id string) models.LiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sessions[id]
}

func (m *memSessions) Get(_ context.Context, id string) (*models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.NewNotFoundError("live session not found")
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) FindByProviderMeetingID(_ context.Context, id string, statuses ...models.SessionStatus) (*models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ProviderMeetingID != id {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, s.Status) {
			continue
		}
		cp := *s
		return &cp, nil
	}
	return nil, domain.NewNotFoundError("no live session for provider meeting")
}

func (m *memSessions) ConditionalUpdate(_ context.Context, id string, expected models.SessionStatus, patch models.SessionPatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, domain.NewNotFoundError("live session not found")
	}
	if s.Status != expected {
		return false, nil
	}
	cp := *s
	if !patch.ApplyTo(&cp, time.Now().UTC()) {
		return false, nil
	}
	m.sessions[id] = &cp
	m.updates++
	return true, nil
}

func (m *memSessions) RecordParticipants(_ context.Context, id string, count int, snapshot []models.ParticipantRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, domain.NewNotFoundError("live session not found")
	}
	if s.HasParticipants() {
		return false, nil
	}
	now := time.Now().UTC()
	s.ParticipantCount = &count
	s.ParticipantsFetchedAt = &now
	s.ParticipantsSnapshot = snapshot
	return true, nil
}

func (m *memSessions) Upsert(_ context.Context, session *models.LiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[session.ID]; ok && existing.Status != models.SessionStatusScheduled {
		return nil
	}
	cp := *session
	cp.Status = models.SessionStatusScheduled
	m.sessions[session.ID] = &cp
	return nil
}

func (m *memSessions) IsReady(context.Context) error { return nil }

func containsStatus(statuses []models.SessionStatus, status models.SessionStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// fakeBackfill records scheduled backfills.
type fakeBackfill struct {
	mu    sync.Mutex
	calls []string
	delay time.Duration
	err   error
}

func (f *fakeBackfill) Schedule(_ context.Context, sessionID string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sessionID)
	f.delay = delay
	return f.err
}

// zoomEvent builds a queued event for meetingID with a Zoom-shaped payload.
func zoomEvent(eventType, meetingID string, eventTS int64, object map[string]any) models.ZoomWebhookEventMessage {
	obj := map[string]any{"id": meetingID, "uuid": "uuid-" + meetingID}
	for k, v := range object {
		obj[k] = v
	}
	return models.ZoomWebhookEventMessage{
		EventType: eventType,
		EventTS:   eventTS,
		Payload: map[string]any{
			"account_id": "acct",
			"object":     obj,
		},
	}
}

func recordingFiles(files ...map[string]any) map[string]any {
	list := make([]any, 0, len(files))
	for _, f := range files {
		list = append(list, f)
	}
	return map[string]any{"recording_files": list}
}

func mp4File(id, variant string) map[string]any {
	return map[string]any{
		"id":             id,
		"file_type":      "MP4",
		"recording_type": variant,
		"download_url":   "https://zoom.us/rec/download/" + id,
		"file_size":      1024,
	}
}
