package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/seekhub/translator/internal/model"
)

const defaultHealthCheckTimeout = 2 * time.Second

// FallbackStore prefers the durable backend and falls back to memory when the
// durable backend does not answer a health check at create time. A job stays
// in the backend it was created in; memory ownership is checked first.
type FallbackStore struct {
	durable     DurableStore
	memory      *MemoryStore
	logger      zerolog.Logger
	pingTimeout time.Duration
}

// NewFallbackStore wires the routing policy. durable may be nil, in which case
// every job lives in memory.
func NewFallbackStore(durable DurableStore, memory *MemoryStore, logger zerolog.Logger, pingTimeout time.Duration) *FallbackStore {
	if pingTimeout <= 0 {
		pingTimeout = defaultHealthCheckTimeout
	}
	return &FallbackStore{
		durable:     durable,
		memory:      memory,
		logger:      logger.With().Str("component", "job_store").Logger(),
		pingTimeout: pingTimeout,
	}
}

func (s *FallbackStore) CreateJob(ctx context.Context, spec model.JobSpec) (*model.TranslationJob, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// A job created in memory during an outage still blocks the subject.
	active, _ := s.memory.ListActiveJobsForSubject(ctx, spec.SubjectID)
	if len(active) > 0 {
		return nil, model.ErrActiveJobExists
	}

	if s.durable != nil {
		err := s.healthy(ctx)
		if err == nil {
			job, err := s.durable.CreateJob(ctx, spec)
			if err == nil || errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrActiveJobExists) {
				return job, err
			}
			s.logger.Warn().Err(err).Str("subject_id", spec.SubjectID).
				Msg("durable insert failed, creating job in memory")
		} else {
			s.logger.Warn().Err(err).Str("subject_id", spec.SubjectID).
				Msg("durable store unreachable, creating job in memory")
		}
	}

	return s.memory.CreateJob(ctx, spec)
}

func (s *FallbackStore) GetJob(ctx context.Context, id string) (*model.TranslationJob, error) {
	if s.memory.Has(id) || s.durable == nil {
		return s.memory.GetJob(ctx, id)
	}
	return s.durable.GetJob(ctx, id)
}

func (s *FallbackStore) UpdateJob(ctx context.Context, id string, patch model.JobPatch) (*model.TranslationJob, error) {
	if s.memory.Has(id) || s.durable == nil {
		return s.memory.UpdateJob(ctx, id, patch)
	}
	return s.durable.UpdateJob(ctx, id, patch)
}

func (s *FallbackStore) ListActiveJobsForSubject(ctx context.Context, subjectID string) ([]*model.TranslationJob, error) {
	jobs, _ := s.memory.ListActiveJobsForSubject(ctx, subjectID)
	if s.durable == nil {
		return jobs, nil
	}
	durable, err := s.durable.ListActiveJobsForSubject(ctx, subjectID)
	if err != nil {
		s.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("durable store lookup failed")
		return jobs, nil
	}
	return append(jobs, durable...), nil
}

func (s *FallbackStore) ListStaleJobs(ctx context.Context, before time.Time) ([]*model.TranslationJob, error) {
	jobs, _ := s.memory.ListStaleJobs(ctx, before)
	if s.durable == nil {
		return jobs, nil
	}
	durable, err := s.durable.ListStaleJobs(ctx, before)
	if err != nil {
		return jobs, err
	}
	return append(jobs, durable...), nil
}

func (s *FallbackStore) DeleteTerminalBefore(ctx context.Context, before time.Time) (int, error) {
	n, _ := s.memory.DeleteTerminalBefore(ctx, before)
	if s.durable == nil {
		return n, nil
	}
	m, err := s.durable.DeleteTerminalBefore(ctx, before)
	return n + m, err
}

// Ping reports the durable backend's health. Memory-only setups are always healthy.
func (s *FallbackStore) Ping(ctx context.Context) error {
	if s.durable == nil {
		return nil
	}
	return s.healthy(ctx)
}

func (s *FallbackStore) healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()
	return s.durable.Ping(ctx)
}
