package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/config"
	"github.com/seekhub/translator/internal/logger"
	"github.com/seekhub/translator/internal/queue"
)

// RedisOpt builds the asynq connection options from config.
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewServer creates the asynq server that runs translation and maintenance tasks.
func NewServer(cfg *config.Config, log zerolog.Logger) *asynq.Server {
	concurrency := cfg.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(RedisOpt(&cfg.Redis), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue.QueueTranslation: 6,
			queue.QueueMaintenance: 1,
		},
		Logger:   logger.NewAsynqLogger(log),
		LogLevel: logger.AsynqLevel(cfg.Server.LogLevel),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Error().
				Err(err).
				Str("task_type", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("task failed")
		}),
	})
}

// NewMux returns a ServeMux with every processor handler registered.
func NewMux(p *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	p.Register(mux)
	return mux
}
