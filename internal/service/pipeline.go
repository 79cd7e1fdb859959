package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/client"
	"github.com/reelcraft/api/internal/model"
	"github.com/reelcraft/api/internal/queue"
	"github.com/reelcraft/api/internal/repository"
)

const (
	defaultCaptionDuration = 15
	timelineFPS            = 30
	timelineWidth          = 1080
	timelineHeight         = 1920
)

// PipelineConfig holds stage execution settings
type PipelineConfig struct {
	StageDelay    time.Duration
	FailurePolicy model.FailurePolicy
	PublicBaseURL string
}

// Pipeline runs one stage of a job at a time and chains the next one
// through the scheduler.
type Pipeline struct {
	jobs      repository.JobRepository
	ai        client.AIWorker
	scheduler queue.Scheduler
	notifier  Notifier
	cfg       PipelineConfig
	logger    zerolog.Logger
	clock     func() time.Time
}

// NewPipeline creates a pipeline. A nil ai worker skips every AI call.
func NewPipeline(
	jobs repository.JobRepository,
	ai client.AIWorker,
	scheduler queue.Scheduler,
	notifier Notifier,
	cfg PipelineConfig,
	logger zerolog.Logger,
) *Pipeline {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = model.FailurePolicyContinue
	}
	return &Pipeline{
		jobs:      jobs,
		ai:        ai,
		scheduler: scheduler,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		clock:     time.Now,
	}
}

// FailurePolicy returns the configured stage failure policy.
func (p *Pipeline) FailurePolicy() model.FailurePolicy {
	return p.cfg.FailurePolicy
}

// ProcessStage runs stage for jobID. Under the continue policy AI worker
// errors are logged and the job still advances; under the fail policy the
// error is returned marked with model.ErrStageFailed and nothing is written
// past the running status.
func (p *Pipeline) ProcessStage(ctx context.Context, jobID string, stage model.PipelineStage) (*model.StageResponse, error) {
	if jobID == "" || !stage.IsValid() {
		return nil, errors.Wrapf(model.ErrInvalidArgument, "stage %q for job %q", stage, jobID)
	}
	log := p.logger.With().Str("job_id", jobID).Str("stage", string(stage)).Logger()

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, errors.Wrapf(model.ErrJobFinished, "job %s is %s", jobID, job.Status)
	}

	spec := stage.Spec()
	job, err = p.jobs.Update(ctx, jobID, model.JobUpdate{
		Status: model.Ptr(spec.Status),
		Stage:  model.Ptr(spec.Label),
	})
	if err != nil {
		return nil, err
	}
	p.notifier.Notify(ctx, model.NotificationFor(job, stage))
	log.Info().Msg("stage started")

	if err := p.runStage(ctx, job, stage); err != nil {
		if p.cfg.FailurePolicy == model.FailurePolicyFail {
			return nil, errors.Mark(errors.Wrapf(err, "stage %s", stage), model.ErrStageFailed)
		}
		log.Warn().Err(err).Msg("stage failed, continuing")
	}

	if stage.IsFinal() {
		return p.complete(ctx, jobID, stage, log)
	}

	ev := model.NewJobEvent(model.EventJobStageCompleted, jobID, stage, p.clock())
	job, err = p.jobs.Update(ctx, jobID, model.JobUpdate{Progress: model.Ptr(spec.Progress)}, ev)
	if err != nil {
		return nil, err
	}

	next := stage.Next()
	if err := p.scheduler.EnqueueStage(ctx, jobID, next, p.cfg.StageDelay); err != nil {
		return nil, errors.Wrapf(err, "queue %s", next)
	}

	job, err = p.jobs.Update(ctx, jobID, model.JobUpdate{Status: model.Ptr(model.JobStatusQueued)})
	if err != nil {
		return nil, err
	}
	p.notifier.Notify(ctx, model.NotificationFor(job, stage))

	log.Info().Int("progress", job.Progress).Str("next_stage", string(next)).Msg("stage completed")
	return &model.StageResponse{
		Success:   true,
		JobID:     jobID,
		Stage:     stage,
		Progress:  spec.Progress,
		NextStage: next,
	}, nil
}

func (p *Pipeline) complete(ctx context.Context, jobID string, stage model.PipelineStage, log zerolog.Logger) (*model.StageResponse, error) {
	spec := stage.Spec()
	ev := model.NewJobEvent(model.EventJobCompleted, jobID, stage, p.clock())
	job, err := p.jobs.Update(ctx, jobID, model.JobUpdate{
		Status:    model.Ptr(model.JobStatusCompleted),
		Progress:  model.Ptr(spec.Progress),
		OutputURL: model.Ptr(p.OutputURL(jobID)),
	}, ev)
	if err != nil {
		return nil, err
	}
	p.notifier.Notify(ctx, model.NotificationFor(job, stage))

	log.Info().Str("output_url", *job.OutputURL).Msg("job completed")
	return &model.StageResponse{
		Success:  true,
		JobID:    jobID,
		Stage:    stage,
		Progress: spec.Progress,
	}, nil
}

// FailJob marks the job failed after a stage gave up. It is a no-op for
// jobs that already finished.
func (p *Pipeline) FailJob(ctx context.Context, jobID string, stage model.PipelineStage, cause error) error {
	msg := cause.Error()
	ev := model.NewJobEvent(model.EventJobFailed, jobID, stage, p.clock())
	job, err := p.jobs.Update(ctx, jobID, model.JobUpdate{
		Status: model.Ptr(model.JobStatusFailed),
		Error:  model.Ptr(msg),
	}, ev)
	if errors.Is(err, model.ErrJobFinished) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "mark job failed")
	}

	p.logger.Error().Str("job_id", jobID).Str("stage", string(stage)).Str("error", msg).Msg("job failed")
	p.notifier.Notify(ctx, model.NotificationFor(job, stage))
	return nil
}

// PreviewURL is where the timeline stage's preview ends up.
func (p *Pipeline) PreviewURL(jobID string) string {
	return fmt.Sprintf("%s/previews/%s_preview.mp4", p.cfg.PublicBaseURL, jobID)
}

// OutputURL is where the final render ends up.
func (p *Pipeline) OutputURL(jobID string) string {
	return fmt.Sprintf("%s/outputs/%s_final.mp4", p.cfg.PublicBaseURL, jobID)
}

func (p *Pipeline) runStage(ctx context.Context, job *model.Job, stage model.PipelineStage) error {
	if p.ai == nil {
		if stage != model.StageRender {
			p.logger.Debug().Str("job_id", job.ID).Str("stage", string(stage)).Msg("ai worker not configured, skipping")
		}
		return nil
	}

	switch stage {
	case model.StageBeats:
		return p.analyzeBeats(ctx, job)
	case model.StageScenes:
		return p.analyzeScenes(ctx, job)
	case model.StageCaptions:
		return p.generateCaptions(ctx, job)
	case model.StageTimeline:
		return p.compileTimeline(ctx, job)
	}
	return nil
}

func (p *Pipeline) analyzeBeats(ctx context.Context, job *model.Job) error {
	for _, f := range job.Files.OfType(model.MediaTypeAudio) {
		res, err := p.ai.AnalyzeBeats(ctx, f)
		if err != nil {
			return errors.Wrapf(err, "analyze beats of %s", f.Name)
		}
		p.logger.Debug().Str("job_id", job.ID).Str("file", f.Name).
			Float64("bpm", res.BPM).Int("beats", len(res.Beats)).Msg("beat analysis complete")
	}
	return nil
}

func (p *Pipeline) analyzeScenes(ctx context.Context, job *model.Job) error {
	for _, f := range job.Files.OfType(model.MediaTypeVideo) {
		res, err := p.ai.AnalyzeScenes(ctx, f)
		if err != nil {
			return errors.Wrapf(err, "analyze scenes of %s", f.Name)
		}
		p.logger.Debug().Str("job_id", job.ID).Str("file", f.Name).
			Int("scenes", len(res.Scenes)).Msg("scene analysis complete")
	}
	return nil
}

func (p *Pipeline) generateCaptions(ctx context.Context, job *model.Job) error {
	res, err := p.ai.GenerateCaptions(ctx, CaptionRequestFor(job))
	if err != nil {
		return errors.Wrap(err, "generate captions")
	}

	files := job.Files
	files.Captions = res.Captions
	if _, err := p.jobs.Update(ctx, job.ID, model.JobUpdate{Files: &files}); err != nil {
		return errors.Wrap(err, "store captions")
	}
	return nil
}

func (p *Pipeline) compileTimeline(ctx context.Context, job *model.Job) error {
	if _, err := p.ai.CompileTimeline(ctx, TimelineRequestFor(job)); err != nil {
		return errors.Wrap(err, "compile timeline")
	}

	_, err := p.jobs.Update(ctx, job.ID, model.JobUpdate{
		PreviewURL: model.Ptr(p.PreviewURL(job.ID)),
		Progress:   model.Ptr(model.PreviewProgress),
	})
	return errors.Wrap(err, "store preview")
}

// CaptionRequestFor maps a job onto the caption generator's input.
func CaptionRequestFor(job *model.Job) *client.CaptionRequest {
	style := "lux"
	if job.StyleID == "rgb-gamer" {
		style = "rgb"
	}
	duration := job.Duration
	if duration == 0 {
		duration = defaultCaptionDuration
	}
	return &client.CaptionRequest{Style: style, Duration: duration, Context: job.Name}
}

// TimelineRequestFor builds the vertical 9:16 timeline request for a job.
func TimelineRequestFor(job *model.Job) *client.TimelineRequest {
	duration := job.Duration
	if duration == 0 {
		duration = defaultCaptionDuration
	}
	return &client.TimelineRequest{
		Items:      []client.TimelineItem{},
		Duration:   float64(duration),
		FPS:        timelineFPS,
		Resolution: client.Resolution{Width: timelineWidth, Height: timelineHeight},
	}
}
