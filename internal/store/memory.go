package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seekhub/translator/internal/model"
)

// MemoryStore keeps jobs in a process-local map. Jobs are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.TranslationJob
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*model.TranslationJob),
		now:  time.Now,
	}
}

func (s *MemoryStore) CreateJob(ctx context.Context, spec model.JobSpec) (*model.TranslationJob, error) {
	job, err := model.NewJob(spec, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		if existing.SubjectID == spec.SubjectID && !existing.Status.IsTerminal() {
			return nil, model.ErrActiveJobExists
		}
	}
	s.jobs[job.ID] = job
	return job.Clone(), nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (*model.TranslationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return job.Clone(), nil
}

// Has reports whether the job lives in this store.
func (s *MemoryStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.jobs[id]
	return ok
}

func (s *MemoryStore) UpdateJob(ctx context.Context, id string, patch model.JobPatch) (*model.TranslationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	job.Apply(patch, s.now().UTC())
	return job.Clone(), nil
}

func (s *MemoryStore) ListActiveJobsForSubject(ctx context.Context, subjectID string) ([]*model.TranslationJob, error) {
	return s.filter(func(j *model.TranslationJob) bool {
		return j.SubjectID == subjectID && !j.Status.IsTerminal()
	}), nil
}

func (s *MemoryStore) ListStaleJobs(ctx context.Context, before time.Time) ([]*model.TranslationJob, error) {
	return s.filter(func(j *model.TranslationJob) bool {
		return !j.Status.IsTerminal() && j.UpdatedAt.Before(before)
	}), nil
}

func (s *MemoryStore) DeleteTerminalBefore(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, j := range s.jobs {
		if j.Status.IsTerminal() && j.UpdatedAt.Before(before) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) filter(keep func(*model.TranslationJob) bool) []*model.TranslationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.TranslationJob
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}
