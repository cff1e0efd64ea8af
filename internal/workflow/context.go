package workflow

import (
	"time"
)

// Status is the outcome kind of a workflow run, carried in the published
// summary.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// StageName identifies one unit of the promotion pipeline.
type StageName string

const (
	StageDetect     StageName = "DETECTION"
	StageMergeBuild StageName = "MERGE"
	StageDeploy     StageName = "DEPLOY"
	StageSmokeTest  StageName = "SMOKE"
)

// Context is the record threaded through one workflow run.
// Each stage writes its sub-record exactly once and never mutates it
// afterwards, downstream stages and the final report read the fields of
// earlier stages from it.
// A Context is created fresh per run and discarded after reporting.
type Context struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	Detect       *DetectResult `json:"detect,omitempty"`
	Merge        *MergeResult  `json:"merge,omitempty"`
	Deploy       *DeployResult `json:"deploy,omitempty"`
	Smoke        *SmokeResult  `json:"smoke,omitempty"`
	Notification *Summary      `json:"notification,omitempty"`

	// Error is only set when a stage failed and carries the triggering
	// stage's raw error.
	Error *StageError `json:"error,omitempty"`
}

type DetectResult struct {
	UpdateRequired  bool   `json:"update_required"`
	CurrentVersion  string `json:"current_version"`
	UpstreamVersion string `json:"upstream_version"`
	ReleaseURL      string `json:"release_url,omitempty"`
	PublishedAt     string `json:"published_at,omitempty"`
	ReleaseNotes    string `json:"release_notes,omitempty"`
}

type MergeResult struct {
	UpstreamVersion string `json:"upstream_version"`
	ArtifactID      string `json:"artifact_id"`
	BuildID         string `json:"build_id"`
	LogGroup        string `json:"log_group,omitempty"`
	LogStream       string `json:"log_stream,omitempty"`
}

// DeployStatus distinguishes the ways a deploy stage can end without
// failing.
type DeployStatus string

const (
	// DeploySuccess means a stack update was submitted and completed.
	DeploySuccess DeployStatus = "success"
	// DeploySkipped means the stack was not in a stable state and no
	// update was submitted.
	DeploySkipped DeployStatus = "skipped"
	// DeployNoChanges means the backend reported that there was
	// nothing to apply. It is a success, not a failure.
	DeployNoChanges DeployStatus = "no_changes"
)

type DeployResult struct {
	UpstreamVersion string       `json:"upstream_version"`
	ArtifactID      string       `json:"artifact_id,omitempty"`
	ExecutionID     string       `json:"execution_id,omitempty"`
	Status          DeployStatus `json:"deployment_status"`
	StackStatus     string       `json:"stack_status"`
	Message         string       `json:"message,omitempty"`
}

type SmokeResult struct {
	UpstreamVersion string `json:"upstream_version"`
	ExecutionID     string `json:"execution_id"`
	Status          string `json:"status"`
	// Output is the execution output parsed as JSON when possible,
	// otherwise a map containing the raw string under "raw". It is
	// never discarded.
	Output any `json:"output,omitempty"`
	// Result is the value extracted from Output by the configured
	// result query, if any.
	Result any `json:"result,omitempty"`
}

// StageError annotates a stage failure with the originating stage name.
type StageError struct {
	Stage StageName
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + " stage failed: " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Summary is the human-readable record published for a finished run.
// Fields irrelevant for the outcome kind stay empty.
type Summary struct {
	Status Status `json:"status"`
	RunID  string `json:"run_id,omitempty"`

	// SUCCESS fields
	UpstreamVersion string `json:"upstream_version,omitempty"`
	SmokeExecution  string `json:"smoke_execution,omitempty"`
	SmokeResult     any    `json:"smoke_result,omitempty"`
	BuildID         string `json:"build_id,omitempty"`
	DeployID        string `json:"deploy_id,omitempty"`

	// FAILED fields
	Stage StageName `json:"stage,omitempty"`
	Error any       `json:"error,omitempty"`

	// SKIPPED fields
	Reason         string `json:"reason,omitempty"`
	CurrentVersion string `json:"current_version,omitempty"`
}
