package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/model"
)

// ProgressReporter is the tracker surface a simulated run drives.
type ProgressReporter interface {
	AwaitDispatch(ctx context.Context, jobID string, timeout time.Duration) (*model.TranslationJob, error)
	ReportProgress(ctx context.Context, jobID string, status model.JobStatus, progress int, step string) (*model.TranslationJob, error)
	Finalize(ctx context.Context, jobID, resultRef string) (*model.TranslationJob, error)
	Fail(ctx context.Context, jobID, message string) (*model.TranslationJob, error)
}

// Step is one scripted progress report.
type Step struct {
	Status   model.JobStatus
	Progress int
	Label    string
}

// DefaultScript mirrors the stages a real document run goes through.
var DefaultScript = []Step{
	{model.JobStatusProcessing, 10, "文档解析中"},
	{model.JobStatusProcessing, 30, "文档分割中"},
	{model.JobStatusTranslating, 60, "AI翻译中"},
	{model.JobStatusProcessing, 90, "格式重建中"},
}

// SimulatedPublisher accepts every task and plays a fixed script through the
// tracker instead of running a worker. Used for demos and local development.
type SimulatedPublisher struct {
	reporter ProgressReporter
	script   []Step
	interval time.Duration
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

func NewSimulatedPublisher(reporter ProgressReporter, interval time.Duration, logger zerolog.Logger) *SimulatedPublisher {
	return &SimulatedPublisher{
		reporter: reporter,
		script:   DefaultScript,
		interval: interval,
		logger:   logger.With().Str("component", "simulated_queue").Logger(),
	}
}

func (p *SimulatedPublisher) PublishDocumentTranslation(ctx context.Context, payload DocumentTranslationPayload) (string, error) {
	return p.start(payload.JobID), nil
}

func (p *SimulatedPublisher) PublishTextTranslation(ctx context.Context, payload TextTranslationPayload) (string, error) {
	return p.start(payload.JobID), nil
}

func (p *SimulatedPublisher) PublishTranslationImprovement(ctx context.Context, payload ImprovementPayload) (string, error) {
	return p.start(payload.JobID), nil
}

// Wait blocks until every started run has finished.
func (p *SimulatedPublisher) Wait() {
	p.wg.Wait()
}

func (p *SimulatedPublisher) start(jobID string) string {
	messageID := "sim-" + uuid.New().String()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(context.Background(), jobID)
	}()
	return messageID
}

func (p *SimulatedPublisher) run(ctx context.Context, jobID string) {
	log := p.logger.With().Str("job_id", jobID).Logger()

	job, err := p.reporter.AwaitDispatch(ctx, jobID, 5*time.Second)
	if err != nil {
		log.Error().Err(err).Msg("simulated run could not load job")
		return
	}
	if job.Status != model.JobStatusQueued {
		log.Debug().Str("status", string(job.Status)).Msg("simulated run skipped")
		return
	}

	for _, step := range p.script {
		time.Sleep(p.interval)

		job, err = p.reporter.ReportProgress(ctx, jobID, step.Status, step.Progress, step.Label)
		if err != nil {
			log.Error().Err(err).Msg("simulated progress report failed")
			_, _ = p.reporter.Fail(ctx, jobID, err.Error())
			return
		}
		if job.Status.IsTerminal() {
			log.Info().Str("status", string(job.Status)).Msg("simulated run stopped")
			return
		}
	}

	time.Sleep(p.interval)
	if _, err := p.reporter.Finalize(ctx, jobID, "simulated/"+jobID); err != nil {
		log.Error().Err(err).Msg("simulated finalize failed")
	}
}
