package model

import "time"

// CreateJobRequest is the body of POST /api/jobs
type CreateJobRequest struct {
	Name     string      `json:"name" validate:"required,max=200"`
	Files    []MediaFile `json:"files" validate:"required,min=1,max=50,dive"`
	StyleID  string      `json:"style_id" validate:"required,max=64"`
	Duration int         `json:"duration" validate:"required,min=1,max=600"`
	Music    string      `json:"music,omitempty" validate:"max=200"`
	TeamID   *string     `json:"team_id,omitempty" validate:"omitempty,uuid"`
	StartAt  *time.Time  `json:"startAt,omitempty"`
}

// CreateJobResponse is returned once the job row exists
type CreateJobResponse struct {
	Success bool `json:"success"`
	Job     *Job `json:"job"`
}

// StageRequest invokes one pipeline stage for a job
type StageRequest struct {
	JobID string        `json:"jobId" validate:"required"`
	Stage PipelineStage `json:"stage" validate:"required,oneof=beats scenes captions timeline render"`
}

// StageResponse reports the outcome of a stage invocation
type StageResponse struct {
	Success   bool          `json:"success"`
	JobID     string        `json:"jobId"`
	Stage     PipelineStage `json:"stage"`
	Progress  int           `json:"progress"`
	NextStage PipelineStage `json:"nextStage"`
}

// ListJobsResponse wraps the caller's jobs
type ListJobsResponse struct {
	Jobs []*Job `json:"jobs"`
}

// CancelJobResponse is returned after a job is canceled
type CancelJobResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}
