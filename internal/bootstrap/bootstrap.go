// Package bootstrap opens the shared backends used by the server, the
// standalone worker and jobctl.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/config"
	"github.com/seekhub/translator/internal/store"
)

// Backends groups the persistence layer selected by jobs.store.
type Backends struct {
	Jobs      store.JobStore
	Documents store.DocumentStore
	// Health is nil for the memory store.
	Health store.Pinger
	close  []func()
}

// Close releases every opened connection.
func (b *Backends) Close() {
	for _, fn := range b.close {
		fn()
	}
}

// NewRedisClient creates the go-redis client and logs a warning when Redis
// is unreachable at startup.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, log zerolog.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis not available")
	}
	return rdb
}

// OpenBackends selects the job store. A durable backend is wrapped in a
// FallbackStore so job creation keeps working while it is down.
func OpenBackends(ctx context.Context, cfg *config.Config, rdb *redis.Client, log zerolog.Logger) (*Backends, error) {
	memory := store.NewMemoryStore()
	b := &Backends{Documents: store.NewRedisDocumentStore(rdb)}

	var durable store.DurableStore
	switch cfg.Jobs.Store {
	case config.StorePostgres:
		pool, err := store.NewPostgresPool(ctx, &cfg.Postgres)
		if err != nil {
			return nil, err
		}
		b.close = append(b.close, pool.Close)

		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		durable = pg
	case config.StoreRedis:
		durable = store.NewRedisStore(rdb)
	case config.StoreMemory:
		b.Jobs = memory
		b.Documents = store.NewMemoryDocumentStore()
		log.Warn().Msg("jobs are kept in memory only")
		return b, nil
	default:
		return nil, fmt.Errorf("unknown job store %q", cfg.Jobs.Store)
	}

	fallback := store.NewFallbackStore(durable, memory, log, cfg.Jobs.HealthCheckTimeout)
	b.Jobs = fallback
	b.Health = fallback
	log.Info().Str("store", cfg.Jobs.Store).Msg("job store ready")
	return b, nil
}
