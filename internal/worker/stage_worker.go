package worker

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/model"
	"github.com/reelcraft/api/internal/queue"
)

// StageRunner is the pipeline behavior the worker drives.
type StageRunner interface {
	ProcessStage(ctx context.Context, jobID string, stage model.PipelineStage) (*model.StageResponse, error)
	FailJob(ctx context.Context, jobID string, stage model.PipelineStage, cause error) error
}

// StageWorker processes job:stage tasks
type StageWorker struct {
	pipeline StageRunner
	logger   zerolog.Logger

	// retryInfo reads the attempt counters asynq stores on the context.
	retryInfo func(ctx context.Context) (retried, maxRetry int)
}

func NewStageWorker(pipeline StageRunner, logger zerolog.Logger) *StageWorker {
	return &StageWorker{
		pipeline:  pipeline,
		logger:    logger.With().Str("component", "stage_worker").Logger(),
		retryInfo: asynqRetryInfo,
	}
}

func asynqRetryInfo(ctx context.Context) (int, int) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried, maxRetry
}

// ProcessTask handles job:stage. Missing or finished jobs are dropped
// without retry. Any other error is retried by asynq and the job is marked
// failed on the last attempt, so it never stays at a running status.
func (w *StageWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := queue.ParseStagePayload(t.Payload())
	if err != nil {
		return errors.Wrap(asynq.SkipRetry, err.Error())
	}
	log := w.logger.With().Str("job_id", p.JobID).Str("stage", string(p.Stage)).Logger()

	_, err = w.pipeline.ProcessStage(ctx, p.JobID, p.Stage)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrJobFinished):
		log.Info().Err(err).Msg("dropping stage")
		return nil
	}

	retried, maxRetry := w.retryInfo(ctx)
	if retried < maxRetry {
		log.Warn().Err(err).Int("retry", retried).Int("max_retry", maxRetry).Msg("stage failed, will retry")
		return err
	}

	log.Error().Err(err).Msg("stage failed after last retry")
	if ferr := w.pipeline.FailJob(ctx, p.JobID, p.Stage, err); ferr != nil {
		log.Error().Err(ferr).Msg("failed to mark job as failed")
		return ferr
	}
	return errors.Wrap(asynq.SkipRetry, err.Error())
}
