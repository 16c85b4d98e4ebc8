// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// ParticipantRecord is one attendee row from the provider's participant report.
type ParticipantRecord struct {
	ID              string     `json:"id,omitempty"`
	UserID          string     `json:"user_id,omitempty"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	JoinTime        *time.Time `json:"join_time,omitempty"`
	LeaveTime       *time.Time `json:"leave_time,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
}

// ParticipantReport is the attendance data fetched for an ended session.
type ParticipantReport struct {
	Total   int                 `json:"total"`
	Records []ParticipantRecord `json:"records"`
}

// IsEmpty reports whether the report carries no attendance.
// An empty report means the roster is not available yet, not that nobody attended.
func (r *ParticipantReport) IsEmpty() bool {
	return r == nil || (r.Total == 0 && len(r.Records) == 0)
}

// Count returns the attendance count, preferring the provider total.
func (r *ParticipantReport) Count() int {
	if r == nil {
		return 0
	}
	if r.Total > 0 {
		return r.Total
	}
	return len(r.Records)
}
