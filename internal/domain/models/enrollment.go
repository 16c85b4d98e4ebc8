// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// EnrollmentStatus is the approval state of a class enrollment.
type EnrollmentStatus string

// Enrollment statuses as stored upstream.
const (
	EnrollmentStatusApproved EnrollmentStatus = "APPROVED"
	EnrollmentStatusPending  EnrollmentStatus = "PENDING"
	EnrollmentStatusRejected EnrollmentStatus = "REJECTED"
)

// Enrollment links a user to a class.
type Enrollment struct {
	ID        string           `json:"id"`
	ClassID   string           `json:"class_id"`
	UserID    string           `json:"user_id"`
	Status    EnrollmentStatus `json:"status"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

// IsApproved reports whether the enrollment counts as an enrolled student.
func (e *Enrollment) IsApproved() bool {
	return e.Status == EnrollmentStatusApproved
}
