package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/seekhub/translator/internal/model"
)

const (
	jobKeyPrefix     = "job:"
	subjectKeyPrefix = "subject:"
	updatedIndexKey  = "jobs:updated"
	maxTxRetries     = 10
)

// RedisStore keeps each job as a JSON record under job:<id>, with a set per
// subject and a sorted set ordered by last update for the maintenance sweep.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) CreateJob(ctx context.Context, spec model.JobSpec) (*model.TranslationJob, error) {
	job, err := model.NewJob(spec, s.now().UTC())
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	subjKey := subjectKey(spec.SubjectID)
	create := func(tx *redis.Tx) error {
		ids, err := tx.SMembers(ctx, subjKey).Result()
		if err != nil {
			return err
		}
		existing, err := s.load(ctx, tx, ids)
		if err != nil {
			return err
		}
		if hasActive(existing) {
			return model.ErrActiveJobExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, jobKey(job.ID), payload, 0)
			pipe.SAdd(ctx, subjKey, job.ID)
			pipe.ZAdd(ctx, updatedIndexKey, redis.Z{Score: score(job.UpdatedAt), Member: job.ID})
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.rdb.Watch(ctx, create, subjKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return job, nil
	}
	return nil, fmt.Errorf("create job for subject %s: %w", spec.SubjectID, err)
}

func (s *RedisStore) GetJob(ctx context.Context, id string) (*model.TranslationJob, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	var job model.TranslationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStore) UpdateJob(ctx context.Context, id string, patch model.JobPatch) (*model.TranslationJob, error) {
	key := jobKey(id)

	var out *model.TranslationJob
	update := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrNotFound
			}
			return err
		}
		var job model.TranslationJob
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job %s: %w", id, err)
		}

		out = &job
		if !job.Apply(patch, s.now().UTC()) {
			return nil
		}

		payload, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.ZAdd(ctx, updatedIndexKey, redis.Z{Score: score(job.UpdatedAt), Member: job.ID})
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.rdb.Watch(ctx, update, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update job %s: %w", id, err)
}

func (s *RedisStore) ListActiveJobsForSubject(ctx context.Context, subjectID string) ([]*model.TranslationJob, error) {
	ids, err := s.rdb.SMembers(ctx, subjectKey(subjectID)).Result()
	if err != nil {
		return nil, err
	}
	jobs, err := s.load(ctx, s.rdb, ids)
	if err != nil {
		return nil, err
	}
	return keep(jobs, func(j *model.TranslationJob) bool { return !j.Status.IsTerminal() }), nil
}

func (s *RedisStore) ListStaleJobs(ctx context.Context, before time.Time) ([]*model.TranslationJob, error) {
	jobs, err := s.updatedBefore(ctx, before)
	if err != nil {
		return nil, err
	}
	return keep(jobs, func(j *model.TranslationJob) bool { return !j.Status.IsTerminal() }), nil
}

func (s *RedisStore) DeleteTerminalBefore(ctx context.Context, before time.Time) (int, error) {
	jobs, err := s.updatedBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	finished := keep(jobs, func(j *model.TranslationJob) bool { return j.Status.IsTerminal() })
	if len(finished) == 0 {
		return 0, nil
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, j := range finished {
			pipe.Del(ctx, jobKey(j.ID))
			pipe.SRem(ctx, subjectKey(j.SubjectID), j.ID)
			pipe.ZRem(ctx, updatedIndexKey, j.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(finished), nil
}

func (s *RedisStore) updatedBefore(ctx context.Context, before time.Time) ([]*model.TranslationJob, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, updatedIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.rdb, ids)
}

type multiGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// load fetches job records by id, skipping ids whose record is gone.
func (s *RedisStore) load(ctx context.Context, c multiGetter, ids []string) ([]*model.TranslationJob, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}

	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]*model.TranslationJob, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var job model.TranslationJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func keep(jobs []*model.TranslationJob, pred func(*model.TranslationJob) bool) []*model.TranslationJob {
	var out []*model.TranslationJob
	for _, j := range jobs {
		if pred(j) {
			out = append(out, j)
		}
	}
	return out
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func subjectKey(subjectID string) string {
	return subjectKeyPrefix + subjectID + ":jobs"
}
