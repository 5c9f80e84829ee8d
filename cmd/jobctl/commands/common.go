package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/seekhub/translator/internal/bootstrap"
	"github.com/seekhub/translator/internal/config"
	"github.com/seekhub/translator/internal/logger"
	"github.com/seekhub/translator/internal/tracker"
	ws "github.com/seekhub/translator/internal/websocket"
)

// AppContext holds the backends a command needs.
type AppContext struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Redis    *redis.Client
	Backends *bootstrap.Backends
	Tracker  *tracker.Tracker
}

// NewAppContext loads config and opens the job store. Tracker events are
// published through the Redis relay so API processes notify subscribers.
func NewAppContext(ctx context.Context) (*AppContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewWithWriter(os.Stderr, cfg.Server.Env, cfg.Server.LogLevel)
	rdb := bootstrap.NewRedisClient(ctx, &cfg.Redis, log)

	backends, err := bootstrap.OpenBackends(ctx, cfg, rdb, log)
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return &AppContext{
		Config:   cfg,
		Logger:   log,
		Redis:    rdb,
		Backends: backends,
		Tracker:  tracker.New(backends.Jobs, ws.NewRedisRelay(rdb, nil, log), log),
	}, nil
}

func (ac *AppContext) Close() {
	ac.Backends.Close()
	ac.Redis.Close()
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
