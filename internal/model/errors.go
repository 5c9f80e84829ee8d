package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrValidation        = errors.New("validation failed")
	ErrDispatch          = errors.New("dispatch failed")
	ErrActiveJobExists   = errors.New("subject already has an active job")
	ErrSettingsConflict  = errors.New("subject has an active job with different settings")
	ErrInvalidProgress   = errors.New("progress must be between 0 and 100")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrJobTerminal       = errors.New("job already finished")
	ErrProvider          = errors.New("translation provider failed")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// ValidationError carries per-field messages for a rejected job spec or request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError converts validator field errors into a ValidationError.
func NewValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: map[string]string{"_": err.Error()}}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeTag(fe)
	}
	return &ValidationError{Fields: fields}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

// DispatchError is returned by the gateway when a job was created but could
// not be handed to the queue. The job stays queryable in FAILED state.
type DispatchError struct {
	JobID  string
	Reason string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s for job %s: %s", ErrDispatch, e.JobID, e.Reason)
}

func (e *DispatchError) Is(target error) bool {
	return target == ErrDispatch
}
