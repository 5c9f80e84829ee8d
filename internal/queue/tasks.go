// Package queue is the contract between the dispatcher and the workers:
// task names, payloads and the publishers that enqueue them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeDocumentTranslation = "translation:document"
	TaskTypeTextTranslation     = "translation:text"
	TaskTypeImprovement         = "translation:improve"
	TaskTypeMaintenanceSweep    = "maintenance:sweep"
)

const (
	QueueTranslation = "translation"
	QueueMaintenance = "maintenance"
)

// DocumentTranslationPayload asks a worker to translate a stored document.
type DocumentTranslationPayload struct {
	JobID          string `json:"jobId"`
	DocumentID     string `json:"documentId"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Style          string `json:"style"`
	Specialization string `json:"specialization,omitempty"`
}

// TextTranslationPayload asks a worker to translate a snippet.
type TextTranslationPayload struct {
	JobID          string `json:"jobId"`
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Style          string `json:"style"`
	Specialization string `json:"specialization,omitempty"`
}

// ImprovementPayload asks a worker to revise an existing translation.
type ImprovementPayload struct {
	JobID              string `json:"jobId"`
	OriginalText       string `json:"originalText"`
	CurrentTranslation string `json:"currentTranslation"`
	SourceLanguage     string `json:"sourceLanguage"`
	TargetLanguage     string `json:"targetLanguage"`
	Feedback           string `json:"feedback"`
}

// Publisher hands work to the queue and returns the message id.
type Publisher interface {
	PublishDocumentTranslation(ctx context.Context, p DocumentTranslationPayload) (string, error)
	PublishTextTranslation(ctx context.Context, p TextTranslationPayload) (string, error)
	PublishTranslationImprovement(ctx context.Context, p ImprovementPayload) (string, error)
}

// Decode unmarshals a task payload into v.
func Decode(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", t.Type(), err)
	}
	return nil
}
