package model

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusScheduled  JobStatus = "scheduled"
	JobStatusQueued     JobStatus = "queued"
	JobStatusAnalyzing  JobStatus = "analyzing"
	JobStatusRendering  JobStatus = "rendering"
	JobStatusFinalizing JobStatus = "finalizing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

var ValidJobStatuses = []JobStatus{
	JobStatusPending, JobStatusProcessing, JobStatusScheduled, JobStatusQueued,
	JobStatusAnalyzing, JobStatusRendering, JobStatusFinalizing,
	JobStatusCompleted, JobStatusFailed,
}

// IsValid reports whether s is one of the known statuses.
func (s JobStatus) IsValid() bool {
	for _, v := range ValidJobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job stage label, shown by the client; loosely follows status
type JobStage string

const (
	JobStageUploading  JobStage = "uploading"
	JobStageProcessing JobStage = "processing"
	JobStageRendering  JobStage = "rendering"
	JobStageComplete   JobStage = "complete"
)

// Media types
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeImage MediaType = "image"
)

// Plans
const (
	PlanFree = "free"
)

// Default music selection when the client does not pick a track
const DefaultMusic = "auto"

// Failure policies for pipeline stages
type FailurePolicy string

const (
	FailurePolicyContinue FailurePolicy = "continue"
	FailurePolicyFail     FailurePolicy = "fail"
)
