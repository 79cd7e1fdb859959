package queue

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reelcraft/api/internal/model"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if v := args.Get(0); v != nil {
		return v.(*asynq.TaskInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error) {
	args := m.Called(cronspec, task, opts)
	return args.String(0), args.Error(1)
}

func optionValues(opts []asynq.Option) map[asynq.OptionType]interface{} {
	out := make(map[asynq.OptionType]interface{}, len(opts))
	for _, o := range opts {
		out[o.Type()] = o.Value()
	}
	return out
}

func TestStagePayloadRoundTrip(t *testing.T) {
	task, err := NewStageTask("j1", model.StageCaptions)
	require.NoError(t, err)
	require.Equal(t, TaskTypeStage, task.Type())

	p, err := ParseStagePayload(task.Payload())
	require.NoError(t, err)
	require.Equal(t, StagePayload{JobID: "j1", Stage: model.StageCaptions}, p)
}

func TestParseStagePayload_Invalid(t *testing.T) {
	_, err := ParseStagePayload([]byte(`{`))
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = ParseStagePayload([]byte(`{"jobId":"j1","stage":"upload"}`))
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = ParseStagePayload([]byte(`{"stage":"beats"}`))
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestAsynqScheduler_EnqueueStage(t *testing.T) {
	enq := &mockEnqueuer{}
	s := NewAsynqScheduler(enq, 3, zerolog.Nop())
	ctx := context.Background()

	var got []asynq.Option
	enq.On("EnqueueContext", ctx, mock.AnythingOfType("*asynq.Task"), mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).([]asynq.Option) }).
		Return(&asynq.TaskInfo{ID: "j1:scenes"}, nil)

	require.NoError(t, s.EnqueueStage(ctx, "j1", model.StageScenes, 3*time.Second))

	vals := optionValues(got)
	require.Equal(t, QueuePipeline, vals[asynq.QueueOpt])
	require.Equal(t, "j1:scenes", vals[asynq.TaskIDOpt])
	require.Equal(t, 3, vals[asynq.MaxRetryOpt])
	require.Equal(t, 3*time.Second, vals[asynq.ProcessInOpt])
	// completed stage tasks release their ID so a re-run stage can enqueue
	// its successor
	require.NotContains(t, vals, asynq.RetentionOpt)
	enq.AssertExpectations(t)
}

func TestAsynqScheduler_EnqueueStageAt(t *testing.T) {
	enq := &mockEnqueuer{}
	s := NewAsynqScheduler(enq, 0, zerolog.Nop())
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	var got []asynq.Option
	enq.On("EnqueueContext", ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).([]asynq.Option) }).
		Return(&asynq.TaskInfo{ID: "j1:beats"}, nil)

	require.NoError(t, s.EnqueueStageAt(ctx, "j1", model.StageBeats, at))
	require.Equal(t, at, optionValues(got)[asynq.ProcessAtOpt])
}

func TestAsynqScheduler_ConflictIsNotAnError(t *testing.T) {
	enq := &mockEnqueuer{}
	s := NewAsynqScheduler(enq, 3, zerolog.Nop())
	ctx := context.Background()

	enq.On("EnqueueContext", ctx, mock.Anything, mock.Anything).Return(nil, asynq.ErrTaskIDConflict).Once()
	require.NoError(t, s.EnqueueStage(ctx, "j1", model.StageRender, time.Second))

	enq.On("EnqueueContext", ctx, mock.Anything, mock.Anything).Return(nil, errors.New("redis down")).Once()
	require.Error(t, s.EnqueueStage(ctx, "j1", model.StageRender, time.Second))
}

func TestRegisterCleanup(t *testing.T) {
	r := &mockRegistrar{}
	r.On("Register", "@daily", mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == TaskTypeCleanup
	}), mock.Anything).Return("entry-1", nil)

	id, err := RegisterCleanup(r, "@daily")
	require.NoError(t, err)
	require.Equal(t, "entry-1", id)
}

func TestRecordingScheduler(t *testing.T) {
	r := &RecordingScheduler{}
	ctx := context.Background()

	require.NoError(t, r.EnqueueStage(ctx, "j1", model.StageBeats, time.Second))
	require.NoError(t, r.EnqueueStage(ctx, "j1", model.StageScenes, 3*time.Second))
	require.Len(t, r.Calls(), 2)

	first, ok := r.Pop()
	require.True(t, ok)
	require.Equal(t, model.StageBeats, first.Stage)
	require.Len(t, r.Calls(), 1)

	r.Err = errors.New("boom")
	require.Error(t, r.EnqueueStage(ctx, "j1", model.StageCaptions, 0))
}
