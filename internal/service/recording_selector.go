// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"strings"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
)

// recordingVariantPriority is the preferred order of MP4 compositions.
var recordingVariantPriority = []string{
	models.RecordingVariantSharedScreenWithSpeakerView,
	models.RecordingVariantGalleryView,
	models.RecordingVariantActiveSpeaker,
}

// SelectRecording picks the file to ingest out of a recording.completed payload.
// Only MP4 files are eligible. Among them the highest priority variant wins,
// otherwise the first eligible file in payload order.
func SelectRecording(candidates []models.RecordingCandidate) (models.RecordingCandidate, error) {
	var eligible []models.RecordingCandidate
	for _, candidate := range candidates {
		if strings.EqualFold(candidate.FileType, models.RecordingFileTypeMP4) {
			eligible = append(eligible, candidate)
		}
	}
	if len(eligible) == 0 {
		return models.RecordingCandidate{}, domain.ErrNoRecordingFound
	}

	for _, variant := range recordingVariantPriority {
		for _, candidate := range eligible {
			if strings.EqualFold(candidate.RecordingVariant, variant) {
				return candidate, nil
			}
		}
	}
	return eligible[0], nil
}
