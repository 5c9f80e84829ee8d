package model

import "time"

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// SecondsPerPercent drives the remaining-time estimate shown to subscribers.
const SecondsPerPercent = 3

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// ProgressEvent is the snapshot pushed to subscribers after every accepted update.
type ProgressEvent struct {
	Type                   string    `json:"type"`
	SubjectID              string    `json:"subjectId"`
	JobID                  string    `json:"jobId"`
	Status                 JobStatus `json:"status"`
	Progress               int       `json:"progress"`
	CurrentStep            string    `json:"currentStep,omitempty"`
	EstimatedTimeRemaining int       `json:"estimatedTimeRemaining"` // seconds
	ErrorMessage           string    `json:"errorMessage,omitempty"`
	ResultRef              string    `json:"resultRef,omitempty"`
	Timestamp              time.Time `json:"timestamp"`
}

// IsTerminal reports whether this event closes the subject's stream.
func (e ProgressEvent) IsTerminal() bool {
	return e.Status.IsTerminal()
}

// EstimateRemaining returns the linear remaining-time estimate for a progress value.
func EstimateRemaining(progress int) time.Duration {
	if progress >= 100 {
		return 0
	}
	if progress < 0 {
		progress = 0
	}
	return time.Duration(100-progress) * SecondsPerPercent * time.Second
}

// NewProgressEvent builds the subscriber event for a job snapshot.
func NewProgressEvent(job *TranslationJob, now time.Time) ProgressEvent {
	msgType := WSMessageTypeProgress
	switch job.Status {
	case JobStatusCompleted:
		msgType = WSMessageTypeComplete
	case JobStatusFailed, JobStatusCancelled:
		msgType = WSMessageTypeError
	}

	eta := EstimateRemaining(job.Progress)
	if job.Status.IsTerminal() {
		eta = 0
	}

	return ProgressEvent{
		Type:                   msgType,
		SubjectID:              job.SubjectID,
		JobID:                  job.ID,
		Status:                 job.Status,
		Progress:               job.Progress,
		CurrentStep:            job.CurrentStep,
		EstimatedTimeRemaining: int(eta / time.Second),
		ErrorMessage:           job.ErrorMessage,
		ResultRef:              job.ResultRef,
		Timestamp:              now,
	}
}
