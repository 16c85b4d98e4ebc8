// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func statusPtr(s SessionStatus) *SessionStatus { return &s }
func timePtr(t time.Time) *time.Time           { return &t }
func strPtr(s string) *string                  { return &s }

func TestSessionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     SessionStatus
		to       SessionStatus
		expected bool
	}{
		{SessionStatusScheduled, SessionStatusActive, true},
		{SessionStatusScheduled, SessionStatusEnded, false},
		{SessionStatusScheduled, SessionStatusRecordingFailed, false},
		{SessionStatusActive, SessionStatusEnded, true},
		{SessionStatusActive, SessionStatusRecordingFailed, true},
		{SessionStatusActive, SessionStatusScheduled, false},
		{SessionStatusEnded, SessionStatusRecordingFailed, true},
		{SessionStatusEnded, SessionStatusActive, false},
		{SessionStatusEnded, SessionStatusScheduled, false},
		{SessionStatusRecordingFailed, SessionStatusActive, false},
		{SessionStatusRecordingFailed, SessionStatusScheduled, false},
		{SessionStatusRecordingFailed, SessionStatusEnded, true},
		{SessionStatusEnded, SessionStatusEnded, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSessionStatus_IsValid(t *testing.T) {
	assert.True(t, SessionStatusScheduled.IsValid())
	assert.True(t, SessionStatusRecordingFailed.IsValid())
	assert.False(t, SessionStatus("processing").IsValid())
	assert.False(t, SessionStatus("").IsValid())
}

func TestSessionPatch_ApplyTo(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	t.Run("start transition sets status and started_at", func(t *testing.T) {
		s := &LiveSession{ID: "s1", Status: SessionStatusScheduled}
		ok := SessionPatch{Status: statusPtr(SessionStatusActive), StartedAt: timePtr(now)}.ApplyTo(s, now)

		assert.True(t, ok)
		assert.Equal(t, SessionStatusActive, s.Status)
		assert.Equal(t, now, *s.StartedAt)
		assert.Equal(t, now, *s.UpdatedAt)
	})

	t.Run("started_at is write-once", func(t *testing.T) {
		first := now.Add(-time.Hour)
		s := &LiveSession{ID: "s1", Status: SessionStatusActive, StartedAt: &first}
		ok := SessionPatch{StartedAt: timePtr(now)}.ApplyTo(s, now)

		assert.False(t, ok)
		assert.Equal(t, first, *s.StartedAt)
	})

	t.Run("recording media id is write-once", func(t *testing.T) {
		s := &LiveSession{ID: "s1", Status: SessionStatusEnded, RecordingMediaID: strPtr("media-1")}
		ok := SessionPatch{RecordingMediaID: strPtr("media-2")}.ApplyTo(s, now)

		assert.False(t, ok)
		assert.Equal(t, "media-1", *s.RecordingMediaID)
	})

	t.Run("backward transition is rejected", func(t *testing.T) {
		s := &LiveSession{ID: "s1", Status: SessionStatusEnded}
		ok := SessionPatch{Status: statusPtr(SessionStatusActive)}.ApplyTo(s, now)

		assert.False(t, ok)
		assert.Equal(t, SessionStatusEnded, s.Status)
	})

	t.Run("failure records the reason", func(t *testing.T) {
		s := &LiveSession{ID: "s1", Status: SessionStatusEnded}
		ok := SessionPatch{
			Status:         statusPtr(SessionStatusRecordingFailed),
			RecordingError: strPtr("no recording found"),
		}.ApplyTo(s, now)

		assert.True(t, ok)
		assert.Equal(t, SessionStatusRecordingFailed, s.Status)
		assert.Equal(t, "no recording found", s.RecordingError)
		assert.Nil(t, s.RecordingMediaID)
	})

	t.Run("provider uuid is only captured once", func(t *testing.T) {
		s := &LiveSession{ID: "s1", Status: SessionStatusActive, ProviderMeetingUUID: "first"}
		ok := SessionPatch{ProviderMeetingUUID: strPtr("second")}.ApplyTo(s, now)

		assert.True(t, ok)
		assert.Equal(t, "first", s.ProviderMeetingUUID)
	})
}

func TestParticipantReport(t *testing.T) {
	var nilReport *ParticipantReport
	assert.True(t, nilReport.IsEmpty())
	assert.Equal(t, 0, nilReport.Count())

	empty := &ParticipantReport{}
	assert.True(t, empty.IsEmpty())

	withRecords := &ParticipantReport{Records: []ParticipantRecord{{Name: "a"}, {Name: "b"}}}
	assert.False(t, withRecords.IsEmpty())
	assert.Equal(t, 2, withRecords.Count())

	withTotal := &ParticipantReport{Total: 7, Records: []ParticipantRecord{{Name: "a"}}}
	assert.Equal(t, 7, withTotal.Count())
}

func TestEnrollment_IsApproved(t *testing.T) {
	assert.True(t, (&Enrollment{Status: EnrollmentStatusApproved}).IsApproved())
	assert.False(t, (&Enrollment{Status: EnrollmentStatusPending}).IsApproved())
}
