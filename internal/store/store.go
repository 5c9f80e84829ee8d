// Package store persists translation jobs. A durable backend (Postgres or
// Redis) is preferred; MemoryStore takes over for jobs created while the
// durable backend is unreachable.
package store

import (
	"context"
	"time"

	"github.com/seekhub/translator/internal/model"
)

// JobStore is the persistence contract shared by every backend.
type JobStore interface {
	CreateJob(ctx context.Context, spec model.JobSpec) (*model.TranslationJob, error)
	GetJob(ctx context.Context, id string) (*model.TranslationJob, error)
	// UpdateJob merges the patch and returns the stored job. A rejected patch
	// (terminal job, progress regression) returns the job unchanged.
	UpdateJob(ctx context.Context, id string, patch model.JobPatch) (*model.TranslationJob, error)
	ListActiveJobsForSubject(ctx context.Context, subjectID string) ([]*model.TranslationJob, error)
	// ListStaleJobs returns non-terminal jobs not updated since before.
	ListStaleJobs(ctx context.Context, before time.Time) ([]*model.TranslationJob, error)
	// DeleteTerminalBefore removes finished jobs last updated before the cutoff.
	DeleteTerminalBefore(ctx context.Context, before time.Time) (int, error)
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DurableStore is a JobStore that survives restarts.
type DurableStore interface {
	JobStore
	Pinger
}

func hasActive(jobs []*model.TranslationJob) bool {
	for _, j := range jobs {
		if !j.Status.IsTerminal() {
			return true
		}
	}
	return false
}
