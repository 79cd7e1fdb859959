package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/model"
)

const (
	TaskTypeStage   = "job:stage"
	TaskTypeCleanup = "uploads:cleanup"

	QueuePipeline    = "pipeline"
	QueueMaintenance = "maintenance"
)

// StagePayload is the asynq payload of a job:stage task.
type StagePayload struct {
	JobID string              `json:"jobId"`
	Stage model.PipelineStage `json:"stage"`
}

// Scheduler enqueues pipeline stages for later execution.
type Scheduler interface {
	// EnqueueStage runs stage for jobID after delay.
	EnqueueStage(ctx context.Context, jobID string, stage model.PipelineStage, delay time.Duration) error
	// EnqueueStageAt runs stage for jobID at the given time.
	EnqueueStageAt(ctx context.Context, jobID string, stage model.PipelineStage, at time.Time) error
}

// NewStageTask builds the job:stage task for jobID.
func NewStageTask(jobID string, stage model.PipelineStage) (*asynq.Task, error) {
	payload, err := json.Marshal(StagePayload{JobID: jobID, Stage: stage})
	if err != nil {
		return nil, errors.Wrap(err, "marshal stage payload")
	}
	return asynq.NewTask(TaskTypeStage, payload), nil
}

// ParseStagePayload decodes and checks a job:stage payload.
func ParseStagePayload(data []byte) (StagePayload, error) {
	var p StagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, errors.Mark(errors.Wrap(err, "unmarshal stage payload"), model.ErrInvalidArgument)
	}
	if p.JobID == "" || !p.Stage.IsValid() {
		return p, errors.Wrapf(model.ErrInvalidArgument, "stage payload %q/%q", p.JobID, p.Stage)
	}
	return p, nil
}

// StageTaskID deduplicates triggers of the same stage while one is pending.
func StageTaskID(jobID string, stage model.PipelineStage) string {
	return fmt.Sprintf("%s:%s", jobID, stage)
}

// Enqueuer is the part of asynq.Client the scheduler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqScheduler enqueues stages on the pipeline queue.
type AsynqScheduler struct {
	client   Enqueuer
	maxRetry int
	logger   zerolog.Logger
}

func NewAsynqScheduler(client Enqueuer, maxRetry int, logger zerolog.Logger) *AsynqScheduler {
	return &AsynqScheduler{
		client:   client,
		maxRetry: maxRetry,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

func (s *AsynqScheduler) EnqueueStage(ctx context.Context, jobID string, stage model.PipelineStage, delay time.Duration) error {
	return s.enqueue(ctx, jobID, stage, asynq.ProcessIn(delay))
}

func (s *AsynqScheduler) EnqueueStageAt(ctx context.Context, jobID string, stage model.PipelineStage, at time.Time) error {
	return s.enqueue(ctx, jobID, stage, asynq.ProcessAt(at))
}

func (s *AsynqScheduler) enqueue(ctx context.Context, jobID string, stage model.PipelineStage, when asynq.Option) error {
	task, err := NewStageTask(jobID, stage)
	if err != nil {
		return err
	}

	info, err := s.client.EnqueueContext(ctx, task,
		when,
		asynq.Queue(QueuePipeline),
		asynq.TaskID(StageTaskID(jobID, stage)),
		asynq.MaxRetry(s.maxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		s.logger.Info().Str("job_id", jobID).Str("stage", string(stage)).Msg("stage already queued")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "enqueue %s for job %s", stage, jobID)
	}

	s.logger.Debug().
		Str("job_id", jobID).
		Str("stage", string(stage)).
		Str("task_id", info.ID).
		Time("process_at", info.NextProcessAt).
		Msg("stage enqueued")
	return nil
}

// Registrar is the part of asynq.Scheduler used for periodic tasks.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// RegisterCleanup schedules uploads:cleanup on cronspec.
func RegisterCleanup(r Registrar, cronspec string) (string, error) {
	id, err := r.Register(cronspec, asynq.NewTask(TaskTypeCleanup, nil),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(1),
	)
	if err != nil {
		return "", errors.Wrapf(err, "register %s on %q", TaskTypeCleanup, cronspec)
	}
	return id, nil
}
