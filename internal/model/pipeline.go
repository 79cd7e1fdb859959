package model

// PipelineStage is one named step of the job pipeline.
type PipelineStage string

const (
	StageBeats    PipelineStage = "beats"
	StageScenes   PipelineStage = "scenes"
	StageCaptions PipelineStage = "captions"
	StageTimeline PipelineStage = "timeline"
	StageRender   PipelineStage = "render"
)

// PipelineStages lists the stages in execution order.
var PipelineStages = []PipelineStage{
	StageBeats, StageScenes, StageCaptions, StageTimeline, StageRender,
}

// StageSpec describes what a stage writes to the job row.
type StageSpec struct {
	// Status is written when the stage starts running.
	Status JobStatus
	// Label is the informal stage label written alongside Status.
	Label JobStage
	// Progress is written once the stage has run.
	Progress int
	// Next is empty for the final stage.
	Next PipelineStage
}

var stageSpecs = map[PipelineStage]StageSpec{
	StageBeats:    {Status: JobStatusProcessing, Label: JobStageProcessing, Progress: 20, Next: StageScenes},
	StageScenes:   {Status: JobStatusAnalyzing, Label: JobStageProcessing, Progress: 40, Next: StageCaptions},
	StageCaptions: {Status: JobStatusProcessing, Label: JobStageProcessing, Progress: 60, Next: StageTimeline},
	StageTimeline: {Status: JobStatusRendering, Label: JobStageRendering, Progress: 80, Next: StageRender},
	StageRender:   {Status: JobStatusFinalizing, Label: JobStageComplete, Progress: 100},
}

// PreviewProgress is written by the timeline stage once a preview exists.
const PreviewProgress = 90

// IsValid reports whether s names a known stage.
func (s PipelineStage) IsValid() bool {
	_, ok := stageSpecs[s]
	return ok
}

// Spec returns the stage description. Unknown stages yield the zero value.
func (s PipelineStage) Spec() StageSpec {
	return stageSpecs[s]
}

// Next returns the following stage, or "" after render.
func (s PipelineStage) Next() PipelineStage {
	return stageSpecs[s].Next
}

// Progress returns the percentage written by the stage.
func (s PipelineStage) Progress() int {
	return stageSpecs[s].Progress
}

// IsFinal reports whether s is the last stage.
func (s PipelineStage) IsFinal() bool {
	return s.IsValid() && s.Next() == ""
}
