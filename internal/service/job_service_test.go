package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/reelcraft/api/internal/model"
	"github.com/reelcraft/api/internal/queue"
	"github.com/reelcraft/api/internal/repository"
)

type jobFixture struct {
	svc       *JobService
	jobs      *repository.MemoryJobRepository
	profiles  *repository.MemoryProfileRepository
	scheduler *queue.RecordingScheduler
	notifier  *RecordingNotifier
	now       time.Time
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	f := &jobFixture{
		jobs:      repository.NewMemoryJobRepository(),
		profiles:  repository.NewMemoryProfileRepository(),
		scheduler: &queue.RecordingScheduler{},
		notifier:  &RecordingNotifier{},
		now:       time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	f.svc = NewJobService(f.jobs, f.profiles, f.scheduler, f.notifier,
		JobServiceConfig{StartDelay: time.Second, FreeJobsPerDay: 5, MediaBaseURLs: []string{mediaBase}}, zerolog.Nop())
	f.svc.clock = func() time.Time { return f.now }
	return f
}

const mediaBase = "https://cdn.test/public"

func createRequest() *model.CreateJobRequest {
	return createRequestFor("u1")
}

func createRequestFor(userID string) *model.CreateJobRequest {
	url := mediaBase + "/uploads/" + userID + "/1_a.mp4"
	return &model.CreateJobRequest{
		Name:     "clip",
		Files:    []model.MediaFile{{Name: "a.mp4", Type: model.MediaTypeVideo, URL: url, Size: 10}},
		StyleID:  "hype",
		Duration: 10,
	}
}

func TestCreateJob_Pending(t *testing.T) {
	f := newJobFixture(t)
	f.profiles.SetPlan("u1", "pro")

	job, err := f.svc.CreateJob(context.Background(), "u1", createRequest())
	require.NoError(t, err)

	require.Equal(t, model.JobStatusPending, job.Status)
	require.Equal(t, 0, job.Progress)
	require.Equal(t, model.DefaultMusic, job.Files.Music)
	require.False(t, job.Watermarked)
	_, err = uuid.Parse(job.ID)
	require.NoError(t, err)

	calls := f.scheduler.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, queue.Scheduled{JobID: job.ID, Stage: model.StageBeats, Delay: time.Second}, calls[0])

	events := f.jobs.Events()
	require.Len(t, events, 1)
	require.Equal(t, model.EventJobCreated, events[0].Type)
	require.Equal(t, "u1", events[0].UserID)
	require.Len(t, f.notifier.Sent(), 1)
}

func TestCreateJob_FreePlanWatermarkAndQuota(t *testing.T) {
	f := newJobFixture(t)
	f.profiles.SetPlan("u1", model.PlanFree)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		job, err := f.svc.CreateJob(ctx, "u1", createRequest())
		require.NoError(t, err)
		require.True(t, job.Watermarked)
	}

	_, err := f.svc.CreateJob(ctx, "u1", createRequest())
	require.ErrorIs(t, err, model.ErrQuotaExceeded)

	// a new UTC day resets the count
	f.now = f.now.Add(10 * time.Hour)
	_, err = f.svc.CreateJob(ctx, "u1", createRequest())
	require.NoError(t, err)
}

func TestCreateJob_MissingProfile(t *testing.T) {
	f := newJobFixture(t)

	_, err := f.svc.CreateJob(context.Background(), "ghost", createRequestFor("ghost"))
	require.ErrorIs(t, err, model.ErrProfileNotFound)
	require.Empty(t, f.scheduler.Calls())
}

func TestCreateJob_RejectsForeignMedia(t *testing.T) {
	f := newJobFixture(t)
	f.profiles.SetPlan("u1", "pro")

	for _, url := range []string{
		"http://169.254.169.254/latest/meta-data/",
		mediaBase + "/uploads/u2/1_a.mp4",
		"https://elsewhere.test/uploads/u1/1_a.mp4",
	} {
		req := createRequest()
		req.Files[0].URL = url
		_, err := f.svc.CreateJob(context.Background(), "u1", req)
		require.ErrorIs(t, err, model.ErrInvalidArgument, url)
	}
	require.Empty(t, f.scheduler.Calls())
	require.Empty(t, f.jobs.Events())

	// no configured storage root means no media is accepted
	f.svc.cfg.MediaBaseURLs = nil
	_, err := f.svc.CreateJob(context.Background(), "u1", createRequest())
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestCreateJob_ScheduledStart(t *testing.T) {
	f := newJobFixture(t)
	f.profiles.SetPlan("u1", "pro")
	req := createRequest()
	req.StartAt = model.Ptr(f.now.Add(2 * time.Hour))

	job, err := f.svc.CreateJob(context.Background(), "u1", req)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusScheduled, job.Status)

	calls := f.scheduler.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, f.now.Add(2*time.Hour), calls[0].At)
}

func TestCreateJob_PastStartAtRunsNow(t *testing.T) {
	f := newJobFixture(t)
	f.profiles.SetPlan("u1", "pro")
	req := createRequest()
	req.StartAt = model.Ptr(f.now.Add(-time.Hour))

	job, err := f.svc.CreateJob(context.Background(), "u1", req)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusPending, job.Status)
	require.Equal(t, time.Second, f.scheduler.Calls()[0].Delay)
}

func TestGetJob_ScopedToOwner(t *testing.T) {
	f := newJobFixture(t)
	f.profiles.SetPlan("u1", "pro")
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, "u1", createRequest())
	require.NoError(t, err)

	got, err := f.svc.GetJob(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, got.ID)

	_, err = f.svc.GetJob(ctx, "u2", job.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestListJobs(t *testing.T) {
	f := newJobFixture(t)
	f.profiles.SetPlan("u1", "pro")
	ctx := context.Background()

	_, err := f.svc.ListJobs(ctx, "u1", 0)
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	jobs, err := f.svc.ListJobs(ctx, "u1", 10)
	require.NoError(t, err)
	require.NotNil(t, jobs)
	require.Empty(t, jobs)

	for i := 0; i < 3; i++ {
		f.now = f.now.Add(time.Minute)
		_, err := f.svc.CreateJob(ctx, "u1", createRequest())
		require.NoError(t, err)
	}
	jobs, err = f.svc.ListJobs(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.True(t, jobs[0].CreatedAt.After(jobs[1].CreatedAt))
}

func TestCancelJob(t *testing.T) {
	f := newJobFixture(t)
	f.profiles.SetPlan("u1", "pro")
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, "u1", createRequest())
	require.NoError(t, err)

	canceled, err := f.svc.CancelJob(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusFailed, canceled.Status)
	require.Equal(t, CanceledByUser, *canceled.Error)

	_, err = f.svc.CancelJob(ctx, "u1", job.ID)
	require.ErrorIs(t, err, model.ErrJobFinished)

	_, err = f.svc.CancelJob(ctx, "u2", job.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}
