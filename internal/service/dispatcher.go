package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/queue"
)

// DispatchTracker is the part of the tracker the dispatcher drives.
type DispatchTracker interface {
	MarkQueued(ctx context.Context, jobID, correlationID string) (*model.TranslationJob, error)
	Fail(ctx context.Context, jobID, message string) (*model.TranslationJob, error)
}

// Dispatcher hands PENDING jobs to the queue. A publish failure is recorded
// on the job (FAILED with the error message) and reported to the caller as
// an empty correlation id with a nil error.
type Dispatcher struct {
	publisher queue.Publisher
	tracker   DispatchTracker
	logger    zerolog.Logger
}

func NewDispatcher(publisher queue.Publisher, tracker DispatchTracker, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		tracker:   tracker,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

func (d *Dispatcher) DispatchDocumentTranslation(ctx context.Context, job *model.TranslationJob, documentID, sourceLanguage, targetLanguage string, style model.Style) (string, error) {
	return d.dispatch(ctx, job, func() (string, error) {
		return d.publisher.PublishDocumentTranslation(ctx, queue.DocumentTranslationPayload{
			JobID:          job.ID,
			DocumentID:     documentID,
			SourceLanguage: sourceLanguage,
			TargetLanguage: targetLanguage,
			Style:          string(style),
			Specialization: string(job.Settings.Specialization),
		})
	})
}

func (d *Dispatcher) DispatchTextTranslation(ctx context.Context, job *model.TranslationJob, text, sourceLanguage, targetLanguage string, style model.Style) (string, error) {
	return d.dispatch(ctx, job, func() (string, error) {
		return d.publisher.PublishTextTranslation(ctx, queue.TextTranslationPayload{
			JobID:          job.ID,
			Text:           text,
			SourceLanguage: sourceLanguage,
			TargetLanguage: targetLanguage,
			Style:          string(style),
			Specialization: string(job.Settings.Specialization),
		})
	})
}

func (d *Dispatcher) DispatchImprovement(ctx context.Context, job *model.TranslationJob, originalText, currentTranslation, sourceLanguage, targetLanguage, feedback string) (string, error) {
	return d.dispatch(ctx, job, func() (string, error) {
		return d.publisher.PublishTranslationImprovement(ctx, queue.ImprovementPayload{
			JobID:              job.ID,
			OriginalText:       originalText,
			CurrentTranslation: currentTranslation,
			SourceLanguage:     sourceLanguage,
			TargetLanguage:     targetLanguage,
			Feedback:           feedback,
		})
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, job *model.TranslationJob, publish func() (string, error)) (string, error) {
	log := d.logger.With().Str("job_id", job.ID).Str("subject_id", job.SubjectID).Logger()

	correlationID, err := publish()
	if err != nil {
		log.Error().Err(err).Msg("failed to publish job")
		if _, ferr := d.tracker.Fail(ctx, job.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record dispatch failure")
		}
		return "", nil
	}

	if _, err := d.tracker.MarkQueued(ctx, job.ID, correlationID); err != nil {
		// a cancel can land between publish and this transition; the worker
		// will see the terminal status and skip the task
		if errors.Is(err, model.ErrInvalidTransition) {
			log.Warn().Err(err).Str("correlation_id", correlationID).Msg("job left PENDING before it was queued")
			return correlationID, nil
		}
		return "", err
	}

	log.Info().Str("correlation_id", correlationID).Msg("job queued")
	return correlationID, nil
}
