package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/backend"
	"github.com/simplesurance/forkpromoter/internal/jobpoll"
	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

// TriggerMarker is sent with every smoke-test submission so that
// executions triggered by the agent are distinguishable at the backend.
const TriggerMarker = "fork-promoter"

// SmokeTestExecutor verifies a deployed version by running one execution
// against a fixed test fixture.
type SmokeTestExecutor struct {
	executions    backend.Execution
	poller        *jobpoll.Poller
	fixtureBucket string
	fixtureKey    string
	resultQuery   *gojq.Query
	pollInterval  time.Duration
	maxWait       time.Duration
	logger        *zap.Logger
}

// NewSmokeTestExecutor returns a new executor.
// resultQuery is an optional jq expression that is applied to the parsed
// execution output to extract a concise result for the notification, an
// empty string disables the extraction.
func NewSmokeTestExecutor(executions backend.Execution, poller *jobpoll.Poller, fixtureBucket, fixtureKey, resultQuery string, pollInterval, maxWait time.Duration) (*SmokeTestExecutor, error) {
	executor := &SmokeTestExecutor{
		executions:    executions,
		poller:        poller,
		fixtureBucket: fixtureBucket,
		fixtureKey:    fixtureKey,
		pollInterval:  pollInterval,
		maxWait:       maxWait,
		logger:        zap.L().Named("smoke_test"),
	}

	if resultQuery != "" {
		query, err := gojq.Parse(resultQuery)
		if err != nil {
			return nil, fmt.Errorf("parsing smoke-test result query %q: %w", resultQuery, err)
		}

		executor.resultQuery = query
	}

	return executor, nil
}

// Run submits exactly one execution and awaits its completion.
// The raw execution output is always preserved: it is parsed as JSON when
// possible and otherwise carried under a "raw" key.
func (e *SmokeTestExecutor) Run(ctx context.Context, deploy *DeployResult) (*SmokeResult, error) {
	if deploy == nil || deploy.UpstreamVersion == "" {
		return nil, promoerr.NewMissingInputError("deploy.upstream_version")
	}

	if e.fixtureKey == "" {
		return nil, promoerr.NewMissingInputError("smoke_test.fixture_key")
	}

	executionID, err := e.executions.StartExecution(ctx, &backend.ExecutionParams{
		FixtureBucket: e.fixtureBucket,
		FixtureKey:    e.fixtureKey,
		TargetVersion: deploy.UpstreamVersion,
		Trigger:       TriggerMarker,
	})
	if err != nil {
		return nil, fmt.Errorf("submitting smoke-test execution: %w", err)
	}

	e.logger.Info(
		"smoke-test execution submitted",
		logfields.Event("smoke_test_submitted"),
		logfields.JobID(executionID),
		logfields.Version(deploy.UpstreamVersion),
	)

	result, err := e.poller.Await(ctx, &jobpoll.Job{
		Handle: jobpoll.Handle{ID: executionID, Kind: jobpoll.KindExecution},
		Query: func(ctx context.Context) (*jobpoll.Result, error) {
			status, err := e.executions.ExecutionStatus(ctx, executionID)
			if err != nil {
				return nil, err
			}

			return &jobpoll.Result{
				Status: status.Status,
				Output: status.Output,
			}, nil
		},
		PollInterval: e.pollInterval,
		MaxWait:      e.maxWait,
	})
	if err != nil {
		return nil, err
	}

	output := parseOutput(result.Output)

	return &SmokeResult{
		UpstreamVersion: deploy.UpstreamVersion,
		ExecutionID:     executionID,
		Status:          result.Status,
		Output:          output,
		Result:          e.applyResultQuery(output),
	}, nil
}

func parseOutput(raw string) any {
	if raw == "" {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return map[string]any{"raw": raw}
	}

	return parsed
}

func (e *SmokeTestExecutor) applyResultQuery(output any) any {
	if e.resultQuery == nil || output == nil {
		return nil
	}

	iter := e.resultQuery.Run(output)

	val, ok := iter.Next()
	if !ok {
		return nil
	}

	if err, isErr := val.(error); isErr {
		e.logger.Warn(
			"applying result query to smoke-test output failed",
			logfields.Event("smoke_test_result_query_failed"),
			zap.Error(err),
		)

		return nil
	}

	return val
}
