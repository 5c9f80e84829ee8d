package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

// Store backends
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Content storage drivers
const (
	StorageR2    = "r2"
	StorageLocal = "local"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	JWT        JWTConfig
	Internal   InternalConfig
	RateLimit  RateLimitConfig
	Translator TranslatorConfig
	R2         R2Config
	Storage    StorageConfig
	Jobs       JobsConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	ApiDomain   string
	BodyLimitMB int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

// InternalConfig protects the worker-facing callback routes.
type InternalConfig struct {
	Token string
}

type RateLimitConfig struct {
	TranslatePerMin  int
	DocumentsPerHour int
}

// TranslatorConfig points at an OpenAI-compatible chat completions endpoint.
type TranslatorConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       int // seconds
	MaxChunkChars int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	// Endpoint overrides the account endpoint (S3-compatible servers, tests)
	Endpoint string
}

type StorageConfig struct {
	Driver    string
	LocalDir  string
	PublicURL string
}

type JobsConfig struct {
	Store              string
	StallTimeout       time.Duration // 0 disables the stall check
	Retention          time.Duration // 0 keeps finished jobs
	SweepInterval      time.Duration // 0 disables the scheduled sweep
	HealthCheckTimeout time.Duration
	QueueByDefault     bool
	Simulate           bool
	MaxRetry           int
}

type WorkerConfig struct {
	Concurrency int
	Embedded    bool
}

// Load reads .env.local (if present), Docker secrets, config.yaml and the
// environment, in that order of increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("DATABASE_URL")
	readSecret("JWT_SECRET")
	readSecret("INTERNAL_TOKEN")
	readSecret("TRANSLATOR_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.api_domain", "API_DOMAIN")
	_ = v.BindEnv("server.body_limit_mb", "BODY_LIMIT_MB")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("postgres.url", "DATABASE_URL")
	_ = v.BindEnv("postgres.max_conns", "DATABASE_MAX_CONNS")
	_ = v.BindEnv("postgres.min_conns", "DATABASE_MIN_CONNS")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("internal.token", "INTERNAL_TOKEN")
	_ = v.BindEnv("ratelimit.translate_per_min", "RATELIMIT_TRANSLATE_PER_MIN")
	_ = v.BindEnv("ratelimit.documents_per_hour", "RATELIMIT_DOCUMENTS_PER_HOUR")
	_ = v.BindEnv("translator.api_key", "TRANSLATOR_API_KEY")
	_ = v.BindEnv("translator.base_url", "TRANSLATOR_BASE_URL")
	_ = v.BindEnv("translator.model", "TRANSLATOR_MODEL")
	_ = v.BindEnv("translator.timeout", "TRANSLATOR_TIMEOUT")
	_ = v.BindEnv("translator.max_chunk_chars", "TRANSLATOR_MAX_CHUNK_CHARS")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("r2.endpoint", "R2_ENDPOINT")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("storage.local_dir", "STORAGE_LOCAL_DIR")
	_ = v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = v.BindEnv("jobs.store", "JOBS_STORE")
	_ = v.BindEnv("jobs.stall_timeout", "JOBS_STALL_TIMEOUT")
	_ = v.BindEnv("jobs.retention", "JOBS_RETENTION")
	_ = v.BindEnv("jobs.sweep_interval", "JOBS_SWEEP_INTERVAL")
	_ = v.BindEnv("jobs.health_check_timeout", "JOBS_HEALTH_CHECK_TIMEOUT")
	_ = v.BindEnv("jobs.queue_by_default", "JOBS_QUEUE_BY_DEFAULT")
	_ = v.BindEnv("jobs.simulate", "JOBS_SIMULATE")
	_ = v.BindEnv("jobs.max_retry", "JOBS_MAX_RETRY")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = v.BindEnv("worker.embedded", "WORKER_EMBEDDED")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.body_limit_mb", 50)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 1)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("ratelimit.translate_per_min", 30)
	v.SetDefault("ratelimit.documents_per_hour", 20)

	// Translator defaults
	v.SetDefault("translator.base_url", "https://api.openai.com/v1")
	v.SetDefault("translator.model", "gpt-4o-mini")
	v.SetDefault("translator.timeout", 60)
	v.SetDefault("translator.max_chunk_chars", 2000)

	// Storage defaults
	v.SetDefault("storage.driver", StorageLocal)
	v.SetDefault("storage.local_dir", "./data/storage")

	// Job lifecycle defaults
	v.SetDefault("jobs.store", StorePostgres)
	v.SetDefault("jobs.stall_timeout", "15m")
	v.SetDefault("jobs.retention", "168h")
	v.SetDefault("jobs.sweep_interval", "5m")
	v.SetDefault("jobs.health_check_timeout", "2s")
	v.SetDefault("jobs.queue_by_default", false)
	v.SetDefault("jobs.simulate", false)
	v.SetDefault("jobs.max_retry", 3)

	// Worker defaults
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.embedded", true)

	// Try to read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    v.GetString("server.log_level"),
			ApiDomain:   v.GetString("server.api_domain"),
			BodyLimitMB: v.GetInt("server.body_limit_mb"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Postgres: PostgresConfig{
			URL:      v.GetString("postgres.url"),
			MaxConns: v.GetInt32("postgres.max_conns"),
			MinConns: v.GetInt32("postgres.min_conns"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		Internal: InternalConfig{
			Token: v.GetString("internal.token"),
		},
		RateLimit: RateLimitConfig{
			TranslatePerMin:  v.GetInt("ratelimit.translate_per_min"),
			DocumentsPerHour: v.GetInt("ratelimit.documents_per_hour"),
		},
		Translator: TranslatorConfig{
			APIKey:        v.GetString("translator.api_key"),
			BaseURL:       v.GetString("translator.base_url"),
			Model:         v.GetString("translator.model"),
			Timeout:       v.GetInt("translator.timeout"),
			MaxChunkChars: v.GetInt("translator.max_chunk_chars"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
			Endpoint:        v.GetString("r2.endpoint"),
		},
		Storage: StorageConfig{
			Driver:    v.GetString("storage.driver"),
			LocalDir:  v.GetString("storage.local_dir"),
			PublicURL: v.GetString("storage.public_url"),
		},
		Jobs: JobsConfig{
			Store:              v.GetString("jobs.store"),
			StallTimeout:       v.GetDuration("jobs.stall_timeout"),
			Retention:          v.GetDuration("jobs.retention"),
			SweepInterval:      v.GetDuration("jobs.sweep_interval"),
			HealthCheckTimeout: v.GetDuration("jobs.health_check_timeout"),
			QueueByDefault:     v.GetBool("jobs.queue_by_default"),
			Simulate:           v.GetBool("jobs.simulate"),
			MaxRetry:           v.GetInt("jobs.max_retry"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
			Embedded:    v.GetBool("worker.embedded"),
		},
	}

	if err := cfg.Jobs.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects negative lifecycle durations. Zero turns the matching
// maintenance step off.
func (j JobsConfig) validate() error {
	durations := []struct {
		key   string
		value time.Duration
	}{
		{"jobs.stall_timeout", j.StallTimeout},
		{"jobs.retention", j.Retention},
		{"jobs.sweep_interval", j.SweepInterval},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative, got %s", d.key, d.value)
		}
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}
