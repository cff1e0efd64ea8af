package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/backend"
	"github.com/simplesurance/forkpromoter/internal/jobpoll"
	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

// DeployExecutor promotes a built artifact to the sandbox environment by
// submitting one stack update to the deployment system.
type DeployExecutor struct {
	stack        backend.Stack
	poller       *jobpoll.Poller
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *zap.Logger
}

func NewDeployExecutor(stack backend.Stack, poller *jobpoll.Poller, pollInterval, maxWait time.Duration) *DeployExecutor {
	return &DeployExecutor{
		stack:        stack,
		poller:       poller,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		logger:       zap.L().Named("deploy"),
	}
}

// Run checks the stack's lifecycle state and submits an update when the
// stack is stable.
// When the stack is mid-operation no update is submitted and a skipped
// result is returned instead of racing the concurrent operation. A
// backend response reporting no changes to apply is treated as success.
func (e *DeployExecutor) Run(ctx context.Context, merge *MergeResult) (*DeployResult, error) {
	if merge == nil || merge.UpstreamVersion == "" {
		return nil, promoerr.NewMissingInputError("merge.upstream_version")
	}

	state, err := e.stack.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying stack state: %w", err)
	}

	if _, stable := backend.StableStackStates[state]; !stable {
		e.logger.Warn(
			"stack is not in a stable state, skipping update",
			logfields.Event("deploy_skipped_unstable_stack"),
			logfields.JobStatus(state),
			logfields.Version(merge.UpstreamVersion),
		)

		return &DeployResult{
			UpstreamVersion: merge.UpstreamVersion,
			ArtifactID:      merge.ArtifactID,
			Status:          DeploySkipped,
			StackStatus:     state,
			Message:         fmt.Sprintf("stack is in %s state, update skipped", state),
		}, nil
	}

	executionID, err := e.stack.Update(ctx, &backend.StackUpdateParams{
		TargetVersion: merge.UpstreamVersion,
		ArtifactID:    merge.ArtifactID,
	})
	if err != nil {
		if errors.Is(err, backend.ErrNoChanges) {
			e.logger.Info(
				"no stack updates needed, deployment considered successful",
				logfields.Event("deploy_no_changes"),
				logfields.Version(merge.UpstreamVersion),
			)

			return &DeployResult{
				UpstreamVersion: merge.UpstreamVersion,
				ArtifactID:      merge.ArtifactID,
				Status:          DeployNoChanges,
				StackStatus:     state,
				Message:         "no stack updates required",
			}, nil
		}

		return nil, fmt.Errorf("submitting stack update: %w", err)
	}

	e.logger.Info(
		"stack update submitted",
		logfields.Event("deploy_update_submitted"),
		logfields.JobID(executionID),
		logfields.Version(merge.UpstreamVersion),
	)

	result, err := e.poller.Await(ctx, &jobpoll.Job{
		Handle: jobpoll.Handle{ID: executionID, Kind: jobpoll.KindStack},
		Query: func(ctx context.Context) (*jobpoll.Result, error) {
			status, err := e.stack.Status(ctx)
			if err != nil {
				return nil, err
			}

			return &jobpoll.Result{Status: status.Status}, nil
		},
		Diagnostics: func(ctx context.Context, limit int) ([]string, error) {
			return e.stack.FailedResourceEvents(ctx, limit)
		},
		PollInterval: e.pollInterval,
		MaxWait:      e.maxWait,
	})
	if err != nil {
		return nil, err
	}

	return &DeployResult{
		UpstreamVersion: merge.UpstreamVersion,
		ArtifactID:      merge.ArtifactID,
		ExecutionID:     executionID,
		Status:          DeploySuccess,
		StackStatus:     result.Status,
		Message:         fmt.Sprintf("successfully deployed version %s", merge.UpstreamVersion),
	}, nil
}
