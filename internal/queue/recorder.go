package queue

import (
	"context"
	"sync"
	"time"

	"github.com/reelcraft/api/internal/model"
)

// Scheduled is one call recorded by RecordingScheduler.
type Scheduled struct {
	JobID string
	Stage model.PipelineStage
	Delay time.Duration
	At    time.Time
}

// RecordingScheduler keeps enqueued stages in memory so tests can drive the
// pipeline by hand.
type RecordingScheduler struct {
	mu    sync.Mutex
	calls []Scheduled
	Err   error
}

func (r *RecordingScheduler) EnqueueStage(ctx context.Context, jobID string, stage model.PipelineStage, delay time.Duration) error {
	return r.record(Scheduled{JobID: jobID, Stage: stage, Delay: delay})
}

func (r *RecordingScheduler) EnqueueStageAt(ctx context.Context, jobID string, stage model.PipelineStage, at time.Time) error {
	return r.record(Scheduled{JobID: jobID, Stage: stage, At: at})
}

func (r *RecordingScheduler) record(s Scheduled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.calls = append(r.calls, s)
	return nil
}

// Calls returns a copy of everything enqueued so far.
func (r *RecordingScheduler) Calls() []Scheduled {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Scheduled, len(r.calls))
	copy(out, r.calls)
	return out
}

// Pop removes and returns the oldest enqueued stage.
func (r *RecordingScheduler) Pop() (Scheduled, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Scheduled{}, false
	}
	s := r.calls[0]
	r.calls = r.calls[1:]
	return s, true
}
