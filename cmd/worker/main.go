package main

import (
	"context"
	"os/signal"
	"syscall"

	stdlog "github.com/rs/zerolog/log"

	"github.com/seekhub/translator/internal/bootstrap"
	"github.com/seekhub/translator/internal/client"
	"github.com/seekhub/translator/internal/config"
	"github.com/seekhub/translator/internal/logger"
	"github.com/seekhub/translator/internal/queue"
	"github.com/seekhub/translator/internal/service"
	"github.com/seekhub/translator/internal/tracker"
	"github.com/seekhub/translator/internal/worker"
	ws "github.com/seekhub/translator/internal/websocket"
)

// The standalone worker runs translation tasks and the maintenance
// schedule. Progress reaches API processes through the Redis relay.
func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Jobs.Store == config.StoreMemory {
		stdlog.Fatal().Msg("standalone worker needs a shared job store (postgres or redis)")
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := bootstrap.NewRedisClient(ctx, &cfg.Redis, log)
	defer redisClient.Close()

	backends, err := bootstrap.OpenBackends(ctx, cfg, redisClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open job store")
	}
	defer backends.Close()

	storage, err := client.NewStorageClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create storage client")
	}

	jobTracker := tracker.New(backends.Jobs, ws.NewRedisRelay(redisClient, nil, log), log)

	processor := worker.NewProcessor(worker.ProcessorDeps{
		Tracker:       jobTracker,
		Documents:     backends.Documents,
		Storage:       storage,
		Translator:    client.NewTranslator(&cfg.Translator),
		Maintenance:   service.NewMaintenanceService(backends.Jobs, jobTracker, cfg.Jobs.StallTimeout, cfg.Jobs.Retention, log),
		MaxChunkChars: cfg.Translator.MaxChunkChars,
		Logger:        log,
	})

	if cfg.Jobs.SweepInterval > 0 {
		scheduler, err := queue.NewMaintenanceScheduler(worker.RedisOpt(&cfg.Redis), cfg.Jobs.SweepInterval, logger.NewAsynqLogger(log))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create maintenance scheduler")
		}
		if err := scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start maintenance scheduler")
		}
		defer scheduler.Shutdown()
	} else {
		log.Info().Msg("scheduled maintenance sweep disabled")
	}

	srv := worker.NewServer(cfg, log)
	if err := srv.Start(worker.NewMux(processor)); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker")
	}

	log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker started")
	<-ctx.Done()

	log.Info().Msg("shutting down worker")
	srv.Shutdown()
}
