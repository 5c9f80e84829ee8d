package tracker

import "github.com/seekhub/translator/internal/model"

// IsValidTransition reports whether a job may move from one status to another.
// Reporting the current status again is a progress update, not a transition,
// and is handled by the caller.
func IsValidTransition(from, to model.JobStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case model.JobStatusFailed, model.JobStatusCancelled:
		return true
	}
	switch from {
	case model.JobStatusPending:
		return to == model.JobStatusQueued
	case model.JobStatusQueued:
		return to == model.JobStatusProcessing
	case model.JobStatusProcessing:
		return to == model.JobStatusTranslating || to == model.JobStatusCompleted
	case model.JobStatusTranslating:
		return to == model.JobStatusProcessing
	default:
		return false
	}
}
