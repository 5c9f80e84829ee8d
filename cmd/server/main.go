package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	stdlog "github.com/rs/zerolog/log"

	"github.com/seekhub/translator/internal/bootstrap"
	"github.com/seekhub/translator/internal/client"
	"github.com/seekhub/translator/internal/config"
	"github.com/seekhub/translator/internal/logger"
	"github.com/seekhub/translator/internal/middleware"
	"github.com/seekhub/translator/internal/queue"
	"github.com/seekhub/translator/internal/router"
	"github.com/seekhub/translator/internal/service"
	"github.com/seekhub/translator/internal/tracker"
	"github.com/seekhub/translator/internal/worker"
	ws "github.com/seekhub/translator/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

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
	translator := client.NewTranslator(&cfg.Translator)

	// Progress events reach local subscribers and other processes
	hub := ws.NewHub(log)
	relay := ws.NewRedisRelay(redisClient, hub, log)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("progress relay stopped")
		}
	}()

	jobTracker := tracker.New(backends.Jobs, relay, log)
	maintenance := service.NewMaintenanceService(backends.Jobs, jobTracker, cfg.Jobs.StallTimeout, cfg.Jobs.Retention, log)

	var (
		publisher queue.Publisher
		stats     *queue.Stats
		simulated *queue.SimulatedPublisher
	)
	redisOpt := worker.RedisOpt(&cfg.Redis)
	if cfg.Jobs.Simulate {
		simulated = queue.NewSimulatedPublisher(jobTracker, 2*time.Second, log)
		publisher = simulated
		log.Warn().Msg("simulated queue enabled, no worker will run")
	} else {
		asynqClient := asynq.NewClient(redisOpt)
		defer asynqClient.Close()
		publisher = queue.NewAsynqPublisher(asynqClient, cfg.Jobs.MaxRetry)

		inspector := asynq.NewInspector(redisOpt)
		defer inspector.Close()
		stats = queue.NewStats(inspector)
	}

	svc := service.NewTranslationService(service.Deps{
		Jobs:           backends.Jobs,
		Documents:      backends.Documents,
		Storage:        storage,
		Translator:     translator,
		Tracker:        jobTracker,
		Dispatcher:     service.NewDispatcher(publisher, jobTracker, log),
		Stats:          stats,
		QueueByDefault: cfg.Jobs.QueueByDefault,
		Logger:         log,
	})

	app := router.New(router.Deps{
		Config:      cfg,
		Service:     svc,
		Hub:         hub,
		RateLimiter: middleware.NewRateLimiter(redisClient, log),
		Health:      backends.Health,
		Logger:      log,
		AccessLog:   true,
	})

	// Start Asynq worker server
	var (
		srv       *asynq.Server
		scheduler *asynq.Scheduler
	)
	if !cfg.Jobs.Simulate && cfg.Worker.Embedded {
		processor := worker.NewProcessor(worker.ProcessorDeps{
			Tracker:       jobTracker,
			Documents:     backends.Documents,
			Storage:       storage,
			Translator:    translator,
			Maintenance:   maintenance,
			MaxChunkChars: cfg.Translator.MaxChunkChars,
			Logger:        log,
		})
		srv = worker.NewServer(cfg, log)
		if err := srv.Start(worker.NewMux(processor)); err != nil {
			log.Fatal().Err(err).Msg("failed to start worker")
		}

		if cfg.Jobs.SweepInterval > 0 {
			scheduler, err = queue.NewMaintenanceScheduler(redisOpt, cfg.Jobs.SweepInterval, logger.NewAsynqLogger(log))
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create maintenance scheduler")
			}
			if err := scheduler.Start(); err != nil {
				log.Fatal().Err(err).Msg("failed to start maintenance scheduler")
			}
		} else {
			log.Info().Msg("scheduled maintenance sweep disabled")
		}
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Str("env", cfg.Server.Env).Msg("server starting")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server error")
	}

	shutdownWorkers(log, srv, scheduler, simulated)
}

func shutdownWorkers(log zerolog.Logger, srv *asynq.Server, scheduler *asynq.Scheduler, simulated *queue.SimulatedPublisher) {
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if srv != nil {
		srv.Shutdown()
	}
	if simulated != nil {
		simulated.Wait()
	}
	log.Info().Msg("shutdown complete")
}
