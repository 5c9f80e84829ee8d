package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/store"
)

// JobFailer marks a job FAILED.
type JobFailer interface {
	Fail(ctx context.Context, jobID, message string) (*model.TranslationJob, error)
}

// MaintenanceService fails stalled jobs and prunes old terminal ones.
type MaintenanceService struct {
	jobs         store.JobStore
	tracker      JobFailer
	stallTimeout time.Duration
	retention    time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

func NewMaintenanceService(jobs store.JobStore, tracker JobFailer, stallTimeout, retention time.Duration, logger zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		jobs:         jobs,
		tracker:      tracker,
		stallTimeout: stallTimeout,
		retention:    retention,
		logger:       logger.With().Str("component", "maintenance").Logger(),
		now:          time.Now,
	}
}

// Sweep runs one maintenance pass. A zero stall timeout skips the stall
// check and a zero retention keeps finished jobs forever.
func (s *MaintenanceService) Sweep(ctx context.Context) (*model.SweepReport, error) {
	now := s.now()
	report := &model.SweepReport{}

	if s.stallTimeout > 0 {
		stale, err := s.jobs.ListStaleJobs(ctx, now.Add(-s.stallTimeout))
		if err != nil {
			return nil, fmt.Errorf("list stale jobs: %w", err)
		}
		for _, job := range stale {
			msg := fmt.Sprintf("stalled: no progress since %s", job.UpdatedAt.UTC().Format(time.RFC3339))
			updated, err := s.tracker.Fail(ctx, job.ID, msg)
			if err != nil {
				s.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to fail stalled job")
				continue
			}
			if updated.Status == model.JobStatusFailed && updated.ErrorMessage == msg {
				report.StalledFailed++
			}
		}
	}

	if s.retention > 0 {
		deleted, err := s.jobs.DeleteTerminalBefore(ctx, now.Add(-s.retention))
		if err != nil {
			return report, fmt.Errorf("delete old jobs: %w", err)
		}
		report.Deleted = deleted
	}

	s.logger.Info().
		Int("stalled_failed", report.StalledFailed).
		Int("deleted", report.Deleted).
		Msg("maintenance sweep finished")
	return report, nil
}
