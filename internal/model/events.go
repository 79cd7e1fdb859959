package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a job lifecycle event published to the outbox.
type EventType string

const (
	EventJobCreated        EventType = "job.created"
	EventJobStageCompleted EventType = "job.stage_completed"
	EventJobCompleted      EventType = "job.completed"
	EventJobFailed         EventType = "job.failed"
)

// JobEvent is the payload written to job_outbox and relayed to Kafka.
type JobEvent struct {
	ID         string        `json:"event_id"`
	Type       EventType     `json:"event_type"`
	JobID      string        `json:"job_id"`
	UserID     string        `json:"user_id"`
	Stage      PipelineStage `json:"stage,omitempty"`
	Status     JobStatus     `json:"status"`
	Progress   int           `json:"progress"`
	Error      string        `json:"error,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewJobEvent starts an event for jobID. Repositories call Stamp with the
// row as written so the payload carries the post-update state.
func NewJobEvent(t EventType, jobID string, stage PipelineStage, at time.Time) JobEvent {
	return JobEvent{
		ID:         uuid.NewString(),
		Type:       t,
		JobID:      jobID,
		Stage:      stage,
		OccurredAt: at.UTC(),
	}
}

// Stamp copies owner, status, progress and error from job.
func (e JobEvent) Stamp(job *Job) JobEvent {
	e.JobID = job.ID
	e.UserID = job.UserID
	e.Status = job.Status
	e.Progress = job.Progress
	e.Error = ""
	if job.Error != nil {
		e.Error = *job.Error
	}
	return e
}

// JobNotification is a realtime snapshot of a job pushed to WebSocket
// subscribers, possibly across processes via Redis.
type JobNotification struct {
	JobID      string        `json:"job_id"`
	Status     JobStatus     `json:"status"`
	Stage      PipelineStage `json:"stage,omitempty"`
	Progress   int           `json:"progress"`
	PreviewURL *string       `json:"preview_url,omitempty"`
	OutputURL  *string       `json:"output_url,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// NotificationFor snapshots job after stage ran.
func NotificationFor(job *Job, stage PipelineStage) JobNotification {
	n := JobNotification{
		JobID:      job.ID,
		Status:     job.Status,
		Stage:      stage,
		Progress:   job.Progress,
		PreviewURL: job.PreviewURL,
		OutputURL:  job.OutputURL,
	}
	if job.Error != nil {
		n.Error = *job.Error
	}
	return n
}
