package model

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// TranslationSettings are the language/style parameters a job was created with.
type TranslationSettings struct {
	SourceLanguage string         `json:"sourceLanguage" validate:"required"`
	TargetLanguage string         `json:"targetLanguage" validate:"required"`
	Style          Style          `json:"style" validate:"required,oneof=general formal casual academic business literary technical"`
	Specialization Specialization `json:"specialization,omitempty" validate:"omitempty,oneof=general legal medical technical finance academic marketing"`
}

// TranslationJob is the tracked unit of work for one translation request.
type TranslationJob struct {
	ID            string              `json:"id"`
	SubjectID     string              `json:"subjectId"`
	SubjectType   SubjectType         `json:"subjectType"`
	UserID        string              `json:"userId,omitempty"`
	Status        JobStatus           `json:"status"`
	Progress      int                 `json:"progress"`
	CurrentStep   string              `json:"currentStep,omitempty"`
	Settings      TranslationSettings `json:"settings"`
	CorrelationID string              `json:"correlationId,omitempty"`
	ErrorMessage  string              `json:"errorMessage,omitempty"`
	ResultRef     string              `json:"resultRef,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	StartedAt     *time.Time          `json:"startedAt,omitempty"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
}

// JobSpec is the input to JobStore.CreateJob.
type JobSpec struct {
	SubjectID   string              `json:"subjectId" validate:"required"`
	SubjectType SubjectType         `json:"subjectType" validate:"required,oneof=DOCUMENT TEXT IMPROVEMENT"`
	UserID      string              `json:"userId,omitempty"`
	Settings    TranslationSettings `json:"settings"`
}

// Validate checks the spec and returns a *ValidationError on failure.
func (s JobSpec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return NewValidationError(err)
	}
	return nil
}

// ValidateStruct runs the shared validator over a tagged request struct.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return NewValidationError(err)
	}
	return nil
}

// NewJob builds a PENDING job from a validated spec.
func NewJob(spec JobSpec, now time.Time) (*TranslationJob, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &TranslationJob{
		ID:          uuid.New().String(),
		SubjectID:   spec.SubjectID,
		SubjectType: spec.SubjectType,
		UserID:      spec.UserID,
		Status:      JobStatusPending,
		Progress:    0,
		Settings:    spec.Settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (j *TranslationJob) Clone() *TranslationJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobPatch is a partial update. Nil fields are left unchanged.
type JobPatch struct {
	Status        *JobStatus
	Progress      *int
	CurrentStep   *string
	CorrelationID *string
	ErrorMessage  *string
	ResultRef     *string
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Apply merges the patch into the job and reports whether anything was written.
// Terminal jobs are immutable, and a lower progress is rejected unless the
// patch moves the job to FAILED or CANCELLED.
func (j *TranslationJob) Apply(p JobPatch, now time.Time) bool {
	if j.Status.IsTerminal() {
		return false
	}

	next := j.Status
	if p.Status != nil {
		next = *p.Status
	}
	if p.Progress != nil && *p.Progress < j.Progress &&
		next != JobStatusFailed && next != JobStatusCancelled {
		return false
	}

	j.Status = next
	if p.Progress != nil {
		j.Progress = *p.Progress
	}
	if p.CurrentStep != nil {
		j.CurrentStep = *p.CurrentStep
	}
	if p.CorrelationID != nil {
		j.CorrelationID = *p.CorrelationID
	}
	if p.ErrorMessage != nil {
		j.ErrorMessage = *p.ErrorMessage
	}
	if p.ResultRef != nil {
		j.ResultRef = *p.ResultRef
	}
	if p.StartedAt != nil && j.StartedAt == nil {
		t := *p.StartedAt
		j.StartedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		j.CompletedAt = &t
	}
	j.UpdatedAt = now
	return true
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T {
	return &v
}
