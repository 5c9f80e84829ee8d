package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/client"
	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/queue"
	"github.com/seekhub/translator/internal/service"
	"github.com/seekhub/translator/internal/store"
	"github.com/seekhub/translator/internal/tracker"
)

// Step labels reported to subscribers.
const (
	stepParsing     = "文档解析中"
	stepSplitting   = "文档分割中"
	stepTranslating = "AI翻译中"
	stepImproving   = "AI润色中"
	stepRebuilding  = "格式重建中"
)

// errNotDispatched makes asynq retry a task that arrived before its job was
// marked QUEUED.
var errNotDispatched = errors.New("job not yet queued")

// Processor consumes translation tasks and drives jobs through the tracker.
type Processor struct {
	tracker       *tracker.Tracker
	documents     store.DocumentStore
	storage       client.StorageClient
	translator    client.Translator
	maintenance   *service.MaintenanceService
	maxChunkChars int
	dispatchWait  time.Duration
	logger        zerolog.Logger
}

type ProcessorDeps struct {
	Tracker       *tracker.Tracker
	Documents     store.DocumentStore
	Storage       client.StorageClient
	Translator    client.Translator
	Maintenance   *service.MaintenanceService
	MaxChunkChars int
	Logger        zerolog.Logger
}

func NewProcessor(d ProcessorDeps) *Processor {
	return &Processor{
		tracker:       d.Tracker,
		documents:     d.Documents,
		storage:       d.Storage,
		translator:    d.Translator,
		maintenance:   d.Maintenance,
		maxChunkChars: d.MaxChunkChars,
		dispatchWait:  5 * time.Second,
		logger:        d.Logger.With().Str("component", "worker").Logger(),
	}
}

// Register binds every task type to its handler.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TaskTypeDocumentTranslation, p.ProcessDocument)
	mux.HandleFunc(queue.TaskTypeTextTranslation, p.ProcessText)
	mux.HandleFunc(queue.TaskTypeImprovement, p.ProcessImprovement)
	if p.maintenance != nil {
		mux.HandleFunc(queue.TaskTypeMaintenanceSweep, p.ProcessSweep)
	}
}

func (p *Processor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentTranslationPayload
	if err := queue.Decode(t, &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	load := func(ctx context.Context) (string, error) {
		doc, err := p.documents.GetDocument(ctx, payload.DocumentID)
		if err != nil {
			return "", err
		}
		data, err := p.storage.Download(ctx, doc.StorageKey)
		if err != nil {
			return "", fmt.Errorf("download document: %w", err)
		}
		return string(data), nil
	}
	translate := func(ctx context.Context, chunk string) (string, error) {
		return p.translator.Translate(ctx, client.TranslateRequest{
			Text:           chunk,
			SourceLanguage: payload.SourceLanguage,
			TargetLanguage: payload.TargetLanguage,
			Style:          payload.Style,
			Specialization: payload.Specialization,
		})
	}
	return p.run(ctx, payload.JobID, load, translate, true)
}

func (p *Processor) ProcessText(ctx context.Context, t *asynq.Task) error {
	var payload queue.TextTranslationPayload
	if err := queue.Decode(t, &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	load := func(context.Context) (string, error) { return payload.Text, nil }
	translate := func(ctx context.Context, chunk string) (string, error) {
		return p.translator.Translate(ctx, client.TranslateRequest{
			Text:           chunk,
			SourceLanguage: payload.SourceLanguage,
			TargetLanguage: payload.TargetLanguage,
			Style:          payload.Style,
			Specialization: payload.Specialization,
		})
	}
	return p.run(ctx, payload.JobID, load, translate, true)
}

func (p *Processor) ProcessImprovement(ctx context.Context, t *asynq.Task) error {
	var payload queue.ImprovementPayload
	if err := queue.Decode(t, &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	load := func(context.Context) (string, error) { return payload.CurrentTranslation, nil }
	improve := func(ctx context.Context, current string) (string, error) {
		return p.translator.Improve(ctx, client.ImproveRequest{
			OriginalText:       payload.OriginalText,
			CurrentTranslation: current,
			SourceLanguage:     payload.SourceLanguage,
			TargetLanguage:     payload.TargetLanguage,
			Feedback:           payload.Feedback,
		})
	}
	return p.run(ctx, payload.JobID, load, improve, false)
}

func (p *Processor) ProcessSweep(ctx context.Context, t *asynq.Task) error {
	_, err := p.maintenance.Sweep(ctx)
	return err
}

type (
	loadFunc      func(ctx context.Context) (string, error)
	translateFunc func(ctx context.Context, chunk string) (string, error)
)

// run drives one job: parse, split, translate chunk by chunk, rebuild,
// store the result and finalize. A cancel observed between chunks stops it.
func (p *Processor) run(ctx context.Context, jobID string, load loadFunc, translate translateFunc, split bool) error {
	log := p.logger.With().Str("job_id", jobID).Logger()

	job, err := p.tracker.AwaitDispatch(ctx, jobID, p.dispatchWait)
	if errors.Is(err, model.ErrNotFound) {
		log.Warn().Msg("task for unknown job dropped")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		log.Info().Str("status", string(job.Status)).Msg("job already finished, task skipped")
		return nil
	}
	if job.Status == model.JobStatusPending {
		return errNotDispatched
	}

	log.Info().Msg("starting translation job")

	if job, err = p.report(ctx, jobID, model.JobStatusProcessing, 10, stepParsing); err != nil || job.Status.IsTerminal() {
		return err
	}

	source, err := load(ctx)
	if err != nil {
		return p.fail(ctx, jobID, fmt.Sprintf("failed to load source: %v", err))
	}

	chunks := []string{strings.TrimSpace(source)}
	label := stepImproving
	if split {
		chunks = SplitParagraphs(source, p.maxChunkChars)
		label = stepTranslating
	}
	if len(chunks) == 0 || chunks[0] == "" {
		return p.fail(ctx, jobID, "source text is empty")
	}

	if job, err = p.report(ctx, jobID, model.JobStatusProcessing, 30, stepSplitting); err != nil || job.Status.IsTerminal() {
		return err
	}

	out := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		progress := 30 + 60*i/len(chunks)
		step := fmt.Sprintf("%s (%d/%d)", label, i+1, len(chunks))
		if job, err = p.report(ctx, jobID, model.JobStatusTranslating, progress, step); err != nil || job.Status.IsTerminal() {
			return err
		}

		translated, err := translate(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return p.fail(ctx, jobID, fmt.Sprintf("%s: %v", model.ErrProvider, err))
		}
		out = append(out, translated)
	}

	if job, err = p.report(ctx, jobID, model.JobStatusProcessing, 90, stepRebuilding); err != nil || job.Status.IsTerminal() {
		return err
	}

	key := fmt.Sprintf("translations/%s.txt", jobID)
	if _, err := p.storage.Upload(ctx, key, strings.NewReader(JoinChunks(out)), "text/plain; charset=utf-8"); err != nil {
		return p.fail(ctx, jobID, fmt.Sprintf("failed to store result: %v", err))
	}

	if _, err := p.tracker.Finalize(ctx, jobID, key); err != nil {
		return err
	}
	log.Info().Int("chunks", len(chunks)).Msg("translation job completed")
	return nil
}

// report forwards a progress update; the returned job tells the caller
// whether the run was cancelled meanwhile.
func (p *Processor) report(ctx context.Context, jobID string, status model.JobStatus, progress int, step string) (*model.TranslationJob, error) {
	job, err := p.tracker.ReportProgress(ctx, jobID, status, progress, step)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		p.logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("job stopped")
	}
	return job, nil
}

// fail records a worker failure. The task is not retried.
func (p *Processor) fail(ctx context.Context, jobID, message string) error {
	if _, err := p.tracker.Fail(ctx, jobID, message); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w", message, asynq.SkipRetry)
}
