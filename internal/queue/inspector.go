package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/seekhub/translator/internal/model"
)

// QueueInspector is the part of *asynq.Inspector used for stats.
type QueueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Stats collects a summary of every known queue.
type Stats struct {
	inspector QueueInspector
}

func NewStats(inspector QueueInspector) *Stats {
	return &Stats{inspector: inspector}
}

func (s *Stats) Collect() (*model.QueueStatsResponse, error) {
	names, err := s.inspector.Queues()
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}

	out := &model.QueueStatsResponse{Queues: []model.QueueStat{}, Timestamp: time.Now().UTC()}
	for _, name := range names {
		info, err := s.inspector.GetQueueInfo(name)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return nil, fmt.Errorf("queue %s: %w", name, err)
		}
		out.Queues = append(out.Queues, model.QueueStat{
			Queue:     info.Queue,
			Size:      info.Size,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Completed: info.Completed,
			Processed: info.Processed,
			Failed:    info.Failed,
			Paused:    info.Paused,
		})
	}
	return out, nil
}

// NewMaintenanceScheduler registers the periodic sweep task. The interval
// must be positive.
func NewMaintenanceScheduler(opt asynq.RedisConnOpt, interval time.Duration, logger asynq.Logger) (*asynq.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("maintenance sweep interval must be positive, got %s", interval)
	}
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: logger})
	_, err := scheduler.Register(
		fmt.Sprintf("@every %s", interval),
		asynq.NewTask(TaskTypeMaintenanceSweep, nil),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
		asynq.Unique(interval),
	)
	if err != nil {
		return nil, fmt.Errorf("register maintenance sweep: %w", err)
	}
	return scheduler, nil
}

// EnqueueSweep runs the maintenance sweep once, outside the schedule.
func EnqueueSweep(ctx context.Context, client Enqueuer) (string, error) {
	info, err := client.EnqueueContext(ctx, asynq.NewTask(TaskTypeMaintenanceSweep, nil),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue sweep: %w", err)
	}
	return info.ID, nil
}
