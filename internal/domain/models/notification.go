// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NotificationKind classifies a notification record.
type NotificationKind string

// Notification kinds emitted by the lifecycle controller.
const (
	NotificationKindLiveClass      NotificationKind = "live_class"
	NotificationKindRecordingReady NotificationKind = "recording_ready"
)

// NotificationRecord is one notification for one user about one session transition.
// Records are created here and never mutated by this service.
type NotificationRecord struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Payload   map[string]any   `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
	IsRead    bool             `json:"is_read"`
}
