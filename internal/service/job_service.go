package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/model"
	"github.com/reelcraft/api/internal/queue"
	"github.com/reelcraft/api/internal/repository"
)

// CanceledByUser is the error text written when a user cancels a job.
const CanceledByUser = "canceled by user"

// JobServiceConfig holds job creation settings
type JobServiceConfig struct {
	// StartDelay is how long after creation the first stage runs.
	StartDelay time.Duration
	// FreeJobsPerDay caps job creation for the free plan. Zero disables the cap.
	FreeJobsPerDay int
	// MediaBaseURLs are the public storage roots media may be served from.
	// Each file URL must sit under <base>/uploads/<userID>/.
	MediaBaseURLs []string
}

// JobService handles job creation and the user-facing job lifecycle
type JobService struct {
	jobs      repository.JobRepository
	profiles  repository.ProfileRepository
	scheduler queue.Scheduler
	notifier  Notifier
	cfg       JobServiceConfig
	logger    zerolog.Logger

	clock func() time.Time
	idGen func() uuid.UUID
}

func NewJobService(
	jobs repository.JobRepository,
	profiles repository.ProfileRepository,
	scheduler queue.Scheduler,
	notifier Notifier,
	cfg JobServiceConfig,
	logger zerolog.Logger,
) *JobService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &JobService{
		jobs:      jobs,
		profiles:  profiles,
		scheduler: scheduler,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With().Str("component", "jobs").Logger(),
		clock:     time.Now,
		idGen:     uuid.New,
	}
}

// CreateJob checks the caller's plan and quota, stores a pending job and
// schedules its first stage.
func (s *JobService) CreateJob(ctx context.Context, userID string, req *model.CreateJobRequest) (*model.Job, error) {
	if userID == "" || req == nil {
		return nil, model.ErrInvalidArgument
	}
	if err := s.checkMedia(userID, req.Files); err != nil {
		return nil, err
	}

	plan, err := s.profiles.GetPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	free := plan == model.PlanFree
	if free && s.cfg.FreeJobsPerDay > 0 {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		n, err := s.jobs.CountCreatedSince(ctx, userID, dayStart)
		if err != nil {
			return nil, errors.Wrap(err, "count today's jobs")
		}
		if n >= s.cfg.FreeJobsPerDay {
			return nil, errors.Wrapf(model.ErrQuotaExceeded,
				"daily job limit reached (%d jobs per day for free tier)", s.cfg.FreeJobsPerDay)
		}
	}

	music := req.Music
	if music == "" {
		music = model.DefaultMusic
	}

	startAt := now.Add(s.cfg.StartDelay)
	status := model.JobStatusPending
	if req.StartAt != nil && req.StartAt.After(startAt) {
		startAt = req.StartAt.UTC()
		status = model.JobStatusScheduled
	}

	job := &model.Job{
		ID:          s.idGen().String(),
		UserID:      userID,
		TeamID:      req.TeamID,
		Name:        req.Name,
		Status:      status,
		Progress:    0,
		Files:       model.JobFiles{Media: req.Files, Music: music},
		StyleID:     req.StyleID,
		Duration:    req.Duration,
		Watermarked: free,
		CreatedAt:   now,
	}
	if job.Files.Media == nil {
		job.Files.Media = []model.MediaFile{}
	}

	ev := model.NewJobEvent(model.EventJobCreated, job.ID, "", now)
	if err := s.jobs.Create(ctx, job, ev); err != nil {
		return nil, errors.Wrap(err, "create job")
	}

	log := s.logger.With().Str("job_id", job.ID).Str("user_id", userID).Logger()
	log.Info().Str("plan", plan).Str("status", string(status)).Msg("job created")

	if status == model.JobStatusScheduled {
		err = s.scheduler.EnqueueStageAt(ctx, job.ID, model.StageBeats, startAt)
	} else {
		err = s.scheduler.EnqueueStage(ctx, job.ID, model.StageBeats, s.cfg.StartDelay)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to start job pipeline")
	}

	s.notifier.Notify(ctx, model.NotificationFor(job, ""))
	return job, nil
}

func (s *JobService) checkMedia(userID string, files []model.MediaFile) error {
	prefixes := make([]string, 0, len(s.cfg.MediaBaseURLs))
	for _, base := range s.cfg.MediaBaseURLs {
		prefixes = append(prefixes, model.UserUploadPrefix(base, userID))
	}
	for _, f := range files {
		if !model.MediaURLUnder(f.URL, prefixes...) {
			return errors.Wrapf(model.ErrInvalidArgument, "media url %q is not one of your uploads", f.URL)
		}
	}
	return nil
}

// GetJob returns a job owned by userID. Jobs of other users are reported as
// missing.
func (s *JobService) GetJob(ctx context.Context, userID, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, model.ErrInvalidArgument
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, model.ErrNotFound
	}
	return job, nil
}

// ListJobs returns the caller's newest jobs.
func (s *JobService) ListJobs(ctx context.Context, userID string, limit int) ([]*model.Job, error) {
	if limit <= 0 || limit > 100 {
		return nil, errors.Wrapf(model.ErrInvalidArgument, "limit %d out of range 1-100", limit)
	}
	jobs, err := s.jobs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	return jobs, nil
}

// CancelJob fails a running job on the owner's request. Stages already
// queued see the terminal status and stop.
func (s *JobService) CancelJob(ctx context.Context, userID, jobID string) (*model.Job, error) {
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return nil, err
	}

	ev := model.NewJobEvent(model.EventJobFailed, jobID, "", s.clock())
	job, err := s.jobs.Update(ctx, jobID, model.JobUpdate{
		Status: model.Ptr(model.JobStatusFailed),
		Error:  model.Ptr(CanceledByUser),
	}, ev)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("job_id", jobID).Str("user_id", userID).Msg("job canceled")
	s.notifier.Notify(ctx, model.NotificationFor(job, ""))
	return job, nil
}
