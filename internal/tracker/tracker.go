// Package tracker owns the job state machine. Every status or progress
// change goes through a Tracker, which serializes updates per job, drops
// illegal or regressive reports and publishes accepted ones.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/keylock"
	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/store"
)

const defaultUnknownError = "unknown error"

// Publisher receives one event per accepted update.
type Publisher interface {
	Publish(subjectID string, event model.ProgressEvent)
}

type Tracker struct {
	store     store.JobStore
	publisher Publisher
	locks     *keylock.Locker
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a Tracker. publisher may be nil when nobody listens.
func New(st store.JobStore, publisher Publisher, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:     st,
		publisher: publisher,
		locks:     keylock.New(),
		logger:    logger.With().Str("component", "tracker").Logger(),
		now:       time.Now,
	}
}

// GetJob reads the current snapshot of a job.
func (t *Tracker) GetJob(ctx context.Context, jobID string) (*model.TranslationJob, error) {
	return t.store.GetJob(ctx, jobID)
}

// MarkQueued records a successful dispatch: PENDING to QUEUED with the
// queue's correlation id.
func (t *Tracker) MarkQueued(ctx context.Context, jobID, correlationID string) (*model.TranslationJob, error) {
	unlock := t.locks.Lock(jobID)
	defer unlock()

	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusPending {
		return job, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, job.Status, model.JobStatusQueued)
	}

	return t.apply(ctx, job, model.JobPatch{
		Status:        model.Ptr(model.JobStatusQueued),
		CorrelationID: model.Ptr(correlationID),
	})
}

// ReportProgress applies a worker report. Progress outside 0..100 is an
// error; an illegal transition or a lower progress is ignored and the
// unchanged job is returned. A move to CANCELLED may lower the progress.
func (t *Tracker) ReportProgress(ctx context.Context, jobID string, status model.JobStatus, progress int, step string) (*model.TranslationJob, error) {
	if progress < 0 || progress > 100 {
		return nil, fmt.Errorf("%w: got %d", model.ErrInvalidProgress, progress)
	}

	switch status {
	case model.JobStatusFailed:
		return t.Fail(ctx, jobID, step)
	case model.JobStatusCompleted:
		return t.ReportCompletion(ctx, jobID, "")
	}

	unlock := t.locks.Lock(jobID)
	defer unlock()

	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	log := t.logger.With().Str("job_id", jobID).Logger()

	if job.Status.IsTerminal() {
		log.Debug().Str("status", string(job.Status)).Msg("report for finished job ignored")
		return job, nil
	}
	if status != job.Status && !IsValidTransition(job.Status, status) {
		log.Warn().
			Str("from", string(job.Status)).
			Str("to", string(status)).
			Msg("illegal transition ignored")
		return job, nil
	}
	if progress < job.Progress && status != model.JobStatusCancelled {
		log.Debug().
			Int("current", job.Progress).
			Int("reported", progress).
			Msg("stale progress ignored")
		return job, nil
	}

	patch := model.JobPatch{
		Status:      model.Ptr(status),
		Progress:    model.Ptr(progress),
		CurrentStep: model.Ptr(step),
	}
	if status == model.JobStatusProcessing && job.StartedAt == nil {
		patch.StartedAt = model.Ptr(t.now().UTC())
	}
	if status == model.JobStatusCancelled {
		patch.CompletedAt = model.Ptr(t.now().UTC())
	}

	return t.apply(ctx, job, patch)
}

// Finalize completes a PROCESSING job with its content reference.
// Finalizing an already completed job is a no-op.
func (t *Tracker) Finalize(ctx context.Context, jobID, resultRef string) (*model.TranslationJob, error) {
	unlock := t.locks.Lock(jobID)
	defer unlock()

	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		t.logger.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("finalize for finished job ignored")
		return job, nil
	}
	if job.Status != model.JobStatusProcessing {
		return job, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, job.Status, model.JobStatusCompleted)
	}

	return t.complete(ctx, job, resultRef)
}

// ReportCompletion is the lenient form of Finalize used for worker reports:
// a completion that arrives out of order is logged and the unchanged job is
// returned.
func (t *Tracker) ReportCompletion(ctx context.Context, jobID, resultRef string) (*model.TranslationJob, error) {
	unlock := t.locks.Lock(jobID)
	defer unlock()

	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		t.logger.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("completion for finished job ignored")
		return job, nil
	}
	if !IsValidTransition(job.Status, model.JobStatusCompleted) {
		t.logger.Warn().
			Str("job_id", jobID).
			Str("from", string(job.Status)).
			Str("to", string(model.JobStatusCompleted)).
			Msg("illegal transition ignored")
		return job, nil
	}

	return t.complete(ctx, job, resultRef)
}

func (t *Tracker) complete(ctx context.Context, job *model.TranslationJob, resultRef string) (*model.TranslationJob, error) {
	return t.apply(ctx, job, model.JobPatch{
		Status:      model.Ptr(model.JobStatusCompleted),
		Progress:    model.Ptr(100),
		CurrentStep: model.Ptr("completed"),
		ResultRef:   model.Ptr(resultRef),
		CompletedAt: model.Ptr(t.now().UTC()),
	})
}

// Fail moves any non-terminal job to FAILED. Failing a finished job is a no-op.
func (t *Tracker) Fail(ctx context.Context, jobID, message string) (*model.TranslationJob, error) {
	if message == "" {
		message = defaultUnknownError
	}

	unlock := t.locks.Lock(jobID)
	defer unlock()

	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		t.logger.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("fail for finished job ignored")
		return job, nil
	}

	t.logger.Warn().Str("job_id", jobID).Str("error", message).Msg("job failed")
	return t.apply(ctx, job, model.JobPatch{
		Status:       model.Ptr(model.JobStatusFailed),
		ErrorMessage: model.Ptr(message),
		CompletedAt:  model.Ptr(t.now().UTC()),
	})
}

// Cancel moves a non-terminal job to CANCELLED. Workers notice on their next
// check and stop. Cancelling a finished job returns ErrJobTerminal.
func (t *Tracker) Cancel(ctx context.Context, jobID string) (*model.TranslationJob, error) {
	unlock := t.locks.Lock(jobID)
	defer unlock()

	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, model.ErrJobTerminal
	}

	return t.apply(ctx, job, model.JobPatch{
		Status:      model.Ptr(model.JobStatusCancelled),
		CurrentStep: model.Ptr("cancelled"),
		CompletedAt: model.Ptr(t.now().UTC()),
	})
}

// AwaitDispatch waits until the job has left PENDING, or until timeout.
// Workers can receive a task before the dispatcher recorded QUEUED.
func (t *Tracker) AwaitDispatch(ctx context.Context, jobID string, timeout time.Duration) (*model.TranslationJob, error) {
	deadline := t.now().Add(timeout)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := t.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status != model.JobStatusPending || !t.now().Before(deadline) {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Tracker) apply(ctx context.Context, before *model.TranslationJob, patch model.JobPatch) (*model.TranslationJob, error) {
	updated, err := t.store.UpdateJob(ctx, before.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("update job %s: %w", before.ID, err)
	}

	// The store re-checks under its own lock; another process may have
	// finished the job in between.
	if (patch.Status != nil && updated.Status != *patch.Status) ||
		(patch.Progress != nil && updated.Progress != *patch.Progress) {
		t.logger.Debug().Str("job_id", before.ID).Str("status", string(updated.Status)).Msg("update rejected by store")
		return updated, nil
	}

	t.publish(updated)
	return updated, nil
}

func (t *Tracker) publish(job *model.TranslationJob) {
	if t.publisher == nil {
		return
	}
	t.publisher.Publish(job.SubjectID, model.NewProgressEvent(job, t.now().UTC()))
}
