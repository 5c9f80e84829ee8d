package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client the publisher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqPublisher enqueues translation tasks. Every call gets a fresh task id,
// so each dispatch attempt has its own correlation id.
type AsynqPublisher struct {
	client    Enqueuer
	maxRetry  int
	retention time.Duration
}

func NewAsynqPublisher(client Enqueuer, maxRetry int) *AsynqPublisher {
	return &AsynqPublisher{
		client:    client,
		maxRetry:  maxRetry,
		retention: 24 * time.Hour,
	}
}

func (p *AsynqPublisher) PublishDocumentTranslation(ctx context.Context, payload DocumentTranslationPayload) (string, error) {
	return p.enqueue(ctx, TaskTypeDocumentTranslation, payload)
}

func (p *AsynqPublisher) PublishTextTranslation(ctx context.Context, payload TextTranslationPayload) (string, error) {
	return p.enqueue(ctx, TaskTypeTextTranslation, payload)
}

func (p *AsynqPublisher) PublishTranslationImprovement(ctx context.Context, payload ImprovementPayload) (string, error) {
	return p.enqueue(ctx, TaskTypeImprovement, payload)
}

func (p *AsynqPublisher) enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	info, err := p.client.EnqueueContext(ctx, asynq.NewTask(taskType, data),
		asynq.Queue(QueueTranslation),
		asynq.MaxRetry(p.maxRetry),
		asynq.Retention(p.retention),
		asynq.TaskID(uuid.New().String()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return info.ID, nil
}
