// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// SessionStatus is the lifecycle state of a live session.
type SessionStatus string

// Live session statuses.
const (
	SessionStatusScheduled       SessionStatus = "scheduled"
	SessionStatusActive          SessionStatus = "active"
	SessionStatusEnded           SessionStatus = "ended"
	SessionStatusRecordingFailed SessionStatus = "recording_failed"
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusActive, SessionStatusEnded, SessionStatusRecordingFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the session can no longer move back to scheduled or active.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusEnded || s == SessionStatusRecordingFailed
}

// CanTransitionTo reports whether moving from s to next respects the lifecycle ordering.
// A status may always be rewritten to itself so that field-only patches can be applied.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case SessionStatusScheduled:
		return next == SessionStatusActive
	case SessionStatusActive:
		return next == SessionStatusEnded || next == SessionStatusRecordingFailed
	case SessionStatusEnded:
		return next == SessionStatusRecordingFailed
	case SessionStatusRecordingFailed:
		// Only reachable through an operator replay that succeeded.
		return next == SessionStatusEnded
	}
	return false
}

// LiveSession is one scheduled or occurred live class tracked by this service.
type LiveSession struct {
	ID                    string              `json:"id"`
	ProviderMeetingID     string              `json:"provider_meeting_id"`
	ProviderMeetingUUID   string              `json:"provider_meeting_uuid,omitempty"`
	ClassID               string              `json:"class_id"`
	OwnerID               string              `json:"owner_id"`
	Title                 string              `json:"title"`
	Status                SessionStatus       `json:"status"`
	StartedAt             *time.Time          `json:"started_at,omitempty"`
	EndedAt               *time.Time          `json:"ended_at,omitempty"`
	RecordingMediaID      *string             `json:"recording_media_id,omitempty"`
	RecordingError        string              `json:"recording_error,omitempty"`
	ParticipantCount      *int                `json:"participant_count,omitempty"`
	ParticipantsFetchedAt *time.Time          `json:"participants_fetched_at,omitempty"`
	ParticipantsSnapshot  []ParticipantRecord `json:"participants_snapshot,omitempty"`
	CreatedAt             *time.Time          `json:"created_at,omitempty"`
	UpdatedAt             *time.Time          `json:"updated_at,omitempty"`
}

// HasRecording reports whether a recording has already been ingested for the session.
func (s *LiveSession) HasRecording() bool {
	return s.RecordingMediaID != nil && *s.RecordingMediaID != ""
}

// HasParticipants reports whether attendance data has already been recorded.
func (s *LiveSession) HasParticipants() bool {
	return s.ParticipantsFetchedAt != nil
}

// SessionPatch is the set of fields a conditional update writes.
// StartedAt, EndedAt and RecordingMediaID are write-once: a patch that
// carries one of them is rejected when the session already holds a value.
type SessionPatch struct {
	Status              *SessionStatus
	StartedAt           *time.Time
	EndedAt             *time.Time
	RecordingMediaID    *string
	RecordingError      *string
	ProviderMeetingUUID *string
}

// ApplyTo mutates the session with the patch.
// It returns false, leaving the session untouched, when a write-once field
// is already set or the status change would move the lifecycle backwards.
func (p SessionPatch) ApplyTo(s *LiveSession, now time.Time) bool {
	if p.StartedAt != nil && s.StartedAt != nil {
		return false
	}
	if p.EndedAt != nil && s.EndedAt != nil {
		return false
	}
	if p.RecordingMediaID != nil && s.HasRecording() {
		return false
	}
	if p.Status != nil && !s.Status.CanTransitionTo(*p.Status) {
		return false
	}

	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.StartedAt != nil {
		startedAt := *p.StartedAt
		s.StartedAt = &startedAt
	}
	if p.EndedAt != nil {
		endedAt := *p.EndedAt
		s.EndedAt = &endedAt
	}
	if p.RecordingMediaID != nil {
		mediaID := *p.RecordingMediaID
		s.RecordingMediaID = &mediaID
	}
	if p.RecordingError != nil {
		s.RecordingError = *p.RecordingError
	}
	if p.ProviderMeetingUUID != nil && s.ProviderMeetingUUID == "" {
		s.ProviderMeetingUUID = *p.ProviderMeetingUUID
	}
	s.UpdatedAt = &now
	return true
}
