package main

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/auth"
	"github.com/reelcraft/api/internal/client"
	"github.com/reelcraft/api/internal/config"
	"github.com/reelcraft/api/internal/events"
	"github.com/reelcraft/api/internal/queue"
	"github.com/reelcraft/api/internal/repository"
	"github.com/reelcraft/api/internal/service"
	"github.com/reelcraft/api/internal/storage/postgres"
)

// app holds the dependencies shared by serve and worker
type app struct {
	cfg *config.Config
	log zerolog.Logger

	db     *sqlx.DB
	rdb    *redis.Client
	queue  *asynq.Client
	outbox *postgres.OutboxRepo

	jobs     repository.JobRepository
	profiles repository.ProfileRepository
	uploads  repository.UploadRepository

	storage client.ObjectStorage
	ai      client.AIWorker
	bus     *events.RedisBus

	scheduler *queue.AsynqScheduler
	jobSvc    *service.JobService
	pipeline  *service.Pipeline
	uploadSvc *service.UploadService

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if err := a.initRepositories(ctx); err != nil {
		a.Close()
		return nil, err
	}

	redisOpt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "parse redis url")
	}
	a.rdb = redis.NewClient(redisOpt)
	a.closers = append(a.closers, a.rdb.Close)
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available")
	}

	a.queue = asynq.NewClient(asynqRedisOpt(redisOpt))
	a.closers = append(a.closers, a.queue.Close)

	a.initClients(ctx)

	a.bus = events.NewRedisBus(a.rdb, log)
	a.scheduler = queue.NewAsynqScheduler(a.queue, cfg.Pipeline.MaxRetry, log)

	a.jobSvc = service.NewJobService(a.jobs, a.profiles, a.scheduler, a.bus, service.JobServiceConfig{
		StartDelay:     cfg.Pipeline.StartDelay,
		FreeJobsPerDay: cfg.Quota.FreeJobsPerDay,
		MediaBaseURLs:  a.mediaBases(),
	}, log)
	a.pipeline = service.NewPipeline(a.jobs, a.ai, a.scheduler, a.bus, service.PipelineConfig{
		StageDelay:    cfg.Pipeline.StageDelay,
		FailurePolicy: cfg.Pipeline.FailurePolicy,
		PublicBaseURL: cfg.PublicBaseURL,
	}, log)
	a.uploadSvc = service.NewUploadService(a.storage, a.uploads, service.UploadServiceConfig{
		PresignExpiry: cfg.Storage.PresignExpiry,
		RetentionDays: cfg.Storage.RetentionDays,
	}, log)

	return a, nil
}

// initRepositories connects Postgres. Development without DATABASE_URL runs
// on in-memory repositories.
func (a *app) initRepositories(ctx context.Context) error {
	if a.cfg.Database.URL == "" {
		if !a.cfg.IsDevelopment() {
			return errors.New("DATABASE_URL is required outside development")
		}
		a.log.Warn().Msg("DATABASE_URL not set, using in-memory repositories")
		a.jobs = repository.NewMemoryJobRepository()
		a.profiles = repository.NewMemoryProfileRepository()
		a.uploads = repository.NewMemoryUploadRepository()
		return nil
	}

	db, err := postgres.Connect(ctx, a.cfg.Database.URL)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	a.outbox = postgres.NewOutboxRepo(db)
	a.jobs = postgres.NewJobRepo(db, a.outbox)
	a.profiles = postgres.NewProfileRepo(db)
	a.uploads = postgres.NewUploadRepo(db)
	return nil
}

// initClients sets up the optional external clients. Unconfigured ones stay
// nil so the services skip them.
func (a *app) initClients(ctx context.Context) {
	aiClient := client.NewAIWorkerClient(&a.cfg.AIWorker).AllowMedia(a.mediaBases()...)
	if aiClient.IsConfigured() {
		a.ai = aiClient
	} else {
		a.log.Info().Msg("AI worker not configured, stages run without analysis")
	}

	if a.cfg.Storage.AccessKeyID == "" || a.cfg.Storage.SecretAccessKey == "" {
		a.log.Info().Msg("object storage not configured")
		return
	}
	s3, err := client.NewS3Storage(ctx, &a.cfg.Storage)
	if err != nil {
		a.log.Warn().Err(err).Msg("object storage not initialized")
		return
	}
	a.storage = s3
}

// mediaBases lists the public storage roots job media must come from.
func (a *app) mediaBases() []string {
	if a.cfg.Storage.PublicURL == "" {
		return nil
	}
	return []string{a.cfg.Storage.PublicURL}
}

// verifier builds the user token verifier: HS256 with the project secret,
// and the JWKS endpoint when asymmetric keys are enabled.
func (a *app) verifier() (auth.TokenVerifier, error) {
	var chain auth.ChainVerifier
	if a.cfg.Supabase.JWKSEnabled {
		jwks, err := auth.NewJWKSVerifier(a.cfg.Supabase.JWKSURL(), a.cfg.Supabase.Issuer())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, jwks.Close)
		chain = append(chain, jwks)
	}
	if a.cfg.Supabase.JWTSecret != "" {
		issuer := ""
		if a.cfg.Supabase.URL != "" {
			issuer = a.cfg.Supabase.Issuer()
		}
		chain = append(chain, auth.NewSecretVerifier(a.cfg.Supabase.JWTSecret, issuer))
	}
	if len(chain) == 0 {
		return nil, errors.New("no token verifier configured: set SUPABASE_JWT_SECRET or SUPABASE_JWKS_ENABLED")
	}
	return chain, nil
}

// Close releases resources in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}

func asynqRedisOpt(o *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Network:   o.Network,
		Addr:      o.Addr,
		Username:  o.Username,
		Password:  o.Password,
		DB:        o.DB,
		TLSConfig: o.TLSConfig,
	}
}
