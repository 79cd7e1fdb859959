package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/reelcraft/api/internal/model"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Supabase      SupabaseConfig
	AIWorker      AIWorkerConfig
	Redis         RedisConfig
	Storage       StorageConfig
	Pipeline      PipelineConfig
	Kafka         KafkaConfig
	Outbox        OutboxConfig
	RateLimit     RateLimitConfig
	Quota         QuotaConfig
	PublicBaseURL string
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	Version  string
}

type DatabaseConfig struct {
	URL string
}

type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	AnonKey        string
	JWTSecret      string
	JWKSEnabled    bool
}

// JWKSURL is the Supabase auth JWKS endpoint for asymmetric signing keys
func (c SupabaseConfig) JWKSURL() string {
	return strings.TrimRight(c.URL, "/") + "/auth/v1/.well-known/jwks.json"
}

// Issuer is the iss claim Supabase puts on user access tokens
func (c SupabaseConfig) Issuer() string {
	return strings.TrimRight(c.URL, "/") + "/auth/v1"
}

type AIWorkerConfig struct {
	URL               string
	Timeout           time.Duration
	RequestsPerSecond float64
}

type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
	PresignExpiry   time.Duration
	RetentionDays   int
}

type PipelineConfig struct {
	StartDelay    time.Duration
	StageDelay    time.Duration
	FailurePolicy model.FailurePolicy
	MaxRetry      int
	Concurrency   int
	CleanupCron   string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether an event stream is configured
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type OutboxConfig struct {
	Interval  time.Duration
	BatchSize int
}

type RateLimitConfig struct {
	JobsPerHour    int
	UploadsPerHour int
}

type QuotaConfig struct {
	FreeJobsPerDay int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.version", "1.0.0")

	v.SetDefault("supabase.jwks_enabled", false)

	v.SetDefault("ai_worker.timeout", 60*time.Second)
	v.SetDefault("ai_worker.requests_per_second", 0)

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.bucket", "video-uploads")
	v.SetDefault("storage.presign_expiry", 2*time.Hour)
	v.SetDefault("storage.retention_days", 7)

	v.SetDefault("pipeline.start_delay", time.Second)
	v.SetDefault("pipeline.stage_delay", 3*time.Second)
	v.SetDefault("pipeline.failure_policy", string(model.FailurePolicyContinue))
	v.SetDefault("pipeline.max_retry", 3)
	v.SetDefault("pipeline.concurrency", 10)
	v.SetDefault("pipeline.cleanup_cron", "@daily")

	v.SetDefault("kafka.topic", "jobs.events")

	v.SetDefault("outbox.interval", 2*time.Second)
	v.SetDefault("outbox.batch_size", 100)

	v.SetDefault("ratelimit.jobs_per_hour", 30)
	v.SetDefault("ratelimit.uploads_per_hour", 100)

	v.SetDefault("quota.free_jobs_per_day", 5)
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.version", "APP_VERSION")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("supabase.url", "SUPABASE_URL")
	_ = v.BindEnv("supabase.service_role_key", "SUPABASE_SERVICE_ROLE_KEY")
	_ = v.BindEnv("supabase.anon_key", "SUPABASE_ANON_KEY")
	_ = v.BindEnv("supabase.jwt_secret", "SUPABASE_JWT_SECRET")
	_ = v.BindEnv("supabase.jwks_enabled", "SUPABASE_JWKS_ENABLED")
	_ = v.BindEnv("ai_worker.url", "AI_WORKER_URL")
	_ = v.BindEnv("ai_worker.timeout", "AI_WORKER_TIMEOUT")
	_ = v.BindEnv("ai_worker.requests_per_second", "AI_WORKER_RPS")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("public_base_url", "PUBLIC_BASE_URL")
	_ = v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = v.BindEnv("storage.region", "STORAGE_REGION")
	_ = v.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	_ = v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = v.BindEnv("storage.retention_days", "UPLOAD_RETENTION_DAYS")
	_ = v.BindEnv("pipeline.start_delay", "PIPELINE_START_DELAY")
	_ = v.BindEnv("pipeline.stage_delay", "PIPELINE_STAGE_DELAY")
	_ = v.BindEnv("pipeline.failure_policy", "PIPELINE_FAILURE_POLICY")
	_ = v.BindEnv("pipeline.max_retry", "PIPELINE_MAX_RETRY")
	_ = v.BindEnv("pipeline.concurrency", "PIPELINE_CONCURRENCY")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	_ = v.BindEnv("outbox.interval", "OUTBOX_INTERVAL")
	_ = v.BindEnv("outbox.batch_size", "OUTBOX_BATCH_SIZE")
	_ = v.BindEnv("ratelimit.jobs_per_hour", "RATELIMIT_JOBS_PER_HOUR")
	_ = v.BindEnv("ratelimit.uploads_per_hour", "RATELIMIT_UPLOADS_PER_HOUR")
	_ = v.BindEnv("quota.free_jobs_per_day", "QUOTA_FREE_JOBS_PER_DAY")
}

// Load reads config.yaml (optional) and the environment.
func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("DATABASE_URL")
	readSecret("SUPABASE_SERVICE_ROLE_KEY")
	readSecret("SUPABASE_JWT_SECRET")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("REDIS_URL")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	bindEnv(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
			Version:  v.GetString("server.version"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Supabase: SupabaseConfig{
			URL:            v.GetString("supabase.url"),
			ServiceRoleKey: v.GetString("supabase.service_role_key"),
			AnonKey:        v.GetString("supabase.anon_key"),
			JWTSecret:      v.GetString("supabase.jwt_secret"),
			JWKSEnabled:    v.GetBool("supabase.jwks_enabled"),
		},
		AIWorker: AIWorkerConfig{
			URL:               strings.TrimRight(v.GetString("ai_worker.url"), "/"),
			Timeout:           v.GetDuration("ai_worker.timeout"),
			RequestsPerSecond: v.GetFloat64("ai_worker.requests_per_second"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			Bucket:          v.GetString("storage.bucket"),
			PublicURL:       strings.TrimRight(v.GetString("storage.public_url"), "/"),
			PresignExpiry:   v.GetDuration("storage.presign_expiry"),
			RetentionDays:   v.GetInt("storage.retention_days"),
		},
		Pipeline: PipelineConfig{
			StartDelay:    v.GetDuration("pipeline.start_delay"),
			StageDelay:    v.GetDuration("pipeline.stage_delay"),
			FailurePolicy: model.FailurePolicy(strings.ToLower(v.GetString("pipeline.failure_policy"))),
			MaxRetry:      v.GetInt("pipeline.max_retry"),
			Concurrency:   v.GetInt("pipeline.concurrency"),
			CleanupCron:   v.GetString("pipeline.cleanup_cron"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Outbox: OutboxConfig{
			Interval:  v.GetDuration("outbox.interval"),
			BatchSize: v.GetInt("outbox.batch_size"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour:    v.GetInt("ratelimit.jobs_per_hour"),
			UploadsPerHour: v.GetInt("ratelimit.uploads_per_hour"),
		},
		Quota: QuotaConfig{
			FreeJobsPerDay: v.GetInt("quota.free_jobs_per_day"),
		},
		PublicBaseURL: strings.TrimRight(v.GetString("public_base_url"), "/"),
	}

	// Supabase Storage exposes an S3 compatible endpoint per project.
	if cfg.Storage.Endpoint == "" && cfg.Supabase.URL != "" {
		cfg.Storage.Endpoint = strings.TrimRight(cfg.Supabase.URL, "/") + "/storage/v1/s3"
	}
	if cfg.Storage.PublicURL == "" && cfg.Supabase.URL != "" {
		cfg.Storage.PublicURL = strings.TrimRight(cfg.Supabase.URL, "/") + "/storage/v1/object/public/" + cfg.Storage.Bucket
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Pipeline.FailurePolicy {
	case model.FailurePolicyContinue, model.FailurePolicyFail:
	default:
		return errors.Newf("pipeline.failure_policy must be %q or %q, got %q",
			model.FailurePolicyContinue, model.FailurePolicyFail, c.Pipeline.FailurePolicy)
	}
	if c.Pipeline.MaxRetry < 0 {
		return errors.Newf("pipeline.max_retry cannot be negative, got %d", c.Pipeline.MaxRetry)
	}
	if c.Pipeline.Concurrency <= 0 {
		return errors.Newf("pipeline.concurrency must be positive, got %d", c.Pipeline.Concurrency)
	}
	if c.Outbox.BatchSize <= 0 {
		return errors.Newf("outbox.batch_size must be positive, got %d", c.Outbox.BatchSize)
	}
	if c.Outbox.Interval <= 0 {
		return errors.Newf("outbox.interval must be positive, got %s", c.Outbox.Interval)
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Env, "development")
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
