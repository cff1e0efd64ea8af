// Package backend defines the interfaces of the external systems that run
// the asynchronous jobs of the promotion workflow: the build system, the
// sandbox deployment stack and the smoke-test runner.
// The systems are opaque, the workflow only submits jobs and queries their
// status.
package backend

import (
	"context"
	"errors"
)

//go:generate mockgen -source backend.go -destination mocks/mocks.go -package mocks

// ErrNoChanges is returned by Stack.Update when the backend reports that
// the stack is already in the desired state. The deploy stage treats it as
// success.
var ErrNoChanges = errors.New("no changes to apply")

// StableStackStates are the lifecycle states in which a stack update may
// be submitted. A stack outside of this set is mid-operation, submitting
// an update would race it.
var StableStackStates = map[string]struct{}{
	"CREATE_COMPLETE":          {},
	"UPDATE_COMPLETE":          {},
	"UPDATE_ROLLBACK_COMPLETE": {},
}

type BuildParams struct {
	Project       string `json:"project"`
	ForkRepo      string `json:"fork_repository"`
	TargetVersion string `json:"target_version"`
	ReleaseURL    string `json:"release_url"`
}

type BuildStatus struct {
	Status           string `json:"status"`
	ArtifactLocation string `json:"artifact_location"`
	LogGroup         string `json:"log_group"`
	LogStream        string `json:"log_stream"`
}

// Build is a system running merge-and-build jobs.
type Build interface {
	// StartBuild submits a build job and returns its identifier.
	StartBuild(ctx context.Context, params *BuildParams) (string, error)
	// BuildStatus returns the current status of the build.
	BuildStatus(ctx context.Context, id string) (*BuildStatus, error)
	// BuildFailures returns up to limit failure details of the build.
	BuildFailures(ctx context.Context, id string, limit int) ([]string, error)
}

type StackUpdateParams struct {
	TargetVersion string `json:"target_version"`
	ArtifactID    string `json:"artifact_id"`
}

type StackStatus struct {
	Status string `json:"status"`
}

// Stack is a deployment system managing the sandbox environment.
type Stack interface {
	// State returns the stack's current lifecycle state.
	State(ctx context.Context) (string, error)
	// Update submits a stack update and returns its execution
	// identifier. ErrNoChanges is returned when the stack is already in
	// the desired state.
	Update(ctx context.Context, params *StackUpdateParams) (string, error)
	// Status returns the stack's current status during an update.
	Status(ctx context.Context) (*StackStatus, error)
	// FailedResourceEvents returns up to limit failure events of the
	// most recent stack operation.
	FailedResourceEvents(ctx context.Context, limit int) ([]string, error)
}

type ExecutionParams struct {
	FixtureBucket string `json:"fixture_bucket"`
	FixtureKey    string `json:"fixture_key"`
	TargetVersion string `json:"target_version"`
	Trigger       string `json:"trigger"`
}

type ExecutionStatus struct {
	Status string `json:"status"`
	Output string `json:"output"`
}

// Execution is a system running smoke-test executions.
type Execution interface {
	// StartExecution submits an execution and returns its identifier.
	StartExecution(ctx context.Context, params *ExecutionParams) (string, error)
	// ExecutionStatus returns the current status and, for finished
	// executions, the raw output payload.
	ExecutionStatus(ctx context.Context, id string) (*ExecutionStatus, error)
}
