package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/forkpromoter/internal/backend"
	"github.com/simplesurance/forkpromoter/internal/backend/mocks"
	"github.com/simplesurance/forkpromoter/internal/jobpoll"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

const (
	testPollInterval = time.Millisecond
	testMaxWait      = time.Second
	testForkRepo     = "fork-org/service"
)

func replaceTestLogger(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))
}

func TestMergeBuildSubmitsOneJobAndRecordsArtifacts(t *testing.T) {
	replaceTestLogger(t)

	mockctrl := gomock.NewController(t)
	builds := mocks.NewMockBuild(mockctrl)

	builds.EXPECT().
		StartBuild(gomock.Any(), gomock.Eq(&backend.BuildParams{
			Project:       "fork-build",
			ForkRepo:      testForkRepo,
			TargetVersion: "v1.3.0",
			ReleaseURL:    "https://example.com/releases/v1.3.0",
		})).
		Return("build-1", nil)
	builds.EXPECT().
		BuildStatus(gomock.Any(), gomock.Eq("build-1")).
		Return(&backend.BuildStatus{
			Status:           "SUCCEEDED",
			ArtifactLocation: "bucket/artifacts/v1.3.0.zip",
			LogGroup:         "builds",
			LogStream:        "build-1",
		}, nil)

	executor := NewMergeBuildExecutor(builds, jobpoll.NewPoller(), "fork-build", testForkRepo, testPollInterval, testMaxWait)

	result, err := executor.Run(context.Background(), &DetectResult{
		UpdateRequired:  true,
		UpstreamVersion: "v1.3.0",
		ReleaseURL:      "https://example.com/releases/v1.3.0",
	})
	require.NoError(t, err)

	assert.Equal(t, "build-1", result.BuildID)
	assert.Equal(t, "bucket/artifacts/v1.3.0.zip", result.ArtifactID)
	assert.Equal(t, "v1.3.0", result.UpstreamVersion)
}

func TestMergeBuildFailureCarriesDiagnostics(t *testing.T) {
	replaceTestLogger(t)

	mockctrl := gomock.NewController(t)
	builds := mocks.NewMockBuild(mockctrl)

	builds.EXPECT().
		StartBuild(gomock.Any(), gomock.Any()).
		Return("build-2", nil)
	builds.EXPECT().
		BuildStatus(gomock.Any(), gomock.Eq("build-2")).
		Return(&backend.BuildStatus{Status: "FAILED"}, nil)
	builds.EXPECT().
		BuildFailures(gomock.Any(), gomock.Eq("build-2"), gomock.Eq(jobpoll.MaxDiagnostics)).
		Return([]string{"merge conflict in main.c"}, nil)

	executor := NewMergeBuildExecutor(builds, jobpoll.NewPoller(), "fork-build", testForkRepo, testPollInterval, testMaxWait)

	_, err := executor.Run(context.Background(), &DetectResult{UpstreamVersion: "v1.3.0"})

	var jobErr *promoerr.JobFailedError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "build-2", jobErr.JobID)
	assert.Equal(t, "FAILED", jobErr.Status)
	assert.Equal(t, []string{"merge conflict in main.c"}, jobErr.Diagnostics)
}

func TestMergeBuildRequiresDetectedVersion(t *testing.T) {
	replaceTestLogger(t)

	executor := NewMergeBuildExecutor(nil, jobpoll.NewPoller(), "fork-build", testForkRepo, testPollInterval, testMaxWait)

	_, err := executor.Run(context.Background(), &DetectResult{})

	var missing *promoerr.MissingInputError
	require.ErrorAs(t, err, &missing)
}

func TestDeploySkipsUnstableStack(t *testing.T) {
	replaceTestLogger(t)

	mockctrl := gomock.NewController(t)
	stack := mocks.NewMockStack(mockctrl)

	stack.EXPECT().
		State(gomock.Any()).
		Return("UPDATE_IN_PROGRESS", nil)

	executor := NewDeployExecutor(stack, jobpoll.NewPoller(), testPollInterval, testMaxWait)

	result, err := executor.Run(context.Background(), &MergeResult{
		UpstreamVersion: "v1.3.0",
		ArtifactID:      "artifact-1",
	})
	require.NoError(t, err)

	assert.Equal(t, DeploySkipped, result.Status)
	assert.Equal(t, "UPDATE_IN_PROGRESS", result.StackStatus)
}

func TestDeployTreatsNoChangesAsSuccess(t *testing.T) {
	replaceTestLogger(t)

	mockctrl := gomock.NewController(t)
	stack := mocks.NewMockStack(mockctrl)

	stack.EXPECT().
		State(gomock.Any()).
		Return("UPDATE_COMPLETE", nil)
	stack.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		Return("", backend.ErrNoChanges)

	executor := NewDeployExecutor(stack, jobpoll.NewPoller(), testPollInterval, testMaxWait)

	result, err := executor.Run(context.Background(), &MergeResult{
		UpstreamVersion: "v1.3.0",
		ArtifactID:      "artifact-1",
	})
	require.NoError(t, err)

	assert.Equal(t, DeployNoChanges, result.Status)
}

func TestDeployAwaitsSubmittedUpdate(t *testing.T) {
	replaceTestLogger(t)

	mockctrl := gomock.NewController(t)
	stack := mocks.NewMockStack(mockctrl)

	stack.EXPECT().
		State(gomock.Any()).
		Return("CREATE_COMPLETE", nil)
	stack.EXPECT().
		Update(gomock.Any(), gomock.Eq(&backend.StackUpdateParams{
			TargetVersion: "v1.3.0",
			ArtifactID:    "artifact-1",
		})).
		Return("exec-1", nil)
	stack.EXPECT().
		Status(gomock.Any()).
		Return(&backend.StackStatus{Status: "UPDATE_COMPLETE"}, nil)

	executor := NewDeployExecutor(stack, jobpoll.NewPoller(), testPollInterval, testMaxWait)

	result, err := executor.Run(context.Background(), &MergeResult{
		UpstreamVersion: "v1.3.0",
		ArtifactID:      "artifact-1",
	})
	require.NoError(t, err)

	assert.Equal(t, DeploySuccess, result.Status)
	assert.Equal(t, "exec-1", result.ExecutionID)
	assert.Equal(t, "UPDATE_COMPLETE", result.StackStatus)
}

func TestDeployRollbackIsAFailure(t *testing.T) {
	replaceTestLogger(t)

	mockctrl := gomock.NewController(t)
	stack := mocks.NewMockStack(mockctrl)

	stack.EXPECT().
		State(gomock.Any()).
		Return("UPDATE_COMPLETE", nil)
	stack.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		Return("exec-2", nil)
	stack.EXPECT().
		Status(gomock.Any()).
		Return(&backend.StackStatus{Status: "UPDATE_ROLLBACK_COMPLETE"}, nil)
	stack.EXPECT().
		FailedResourceEvents(gomock.Any(), gomock.Eq(jobpoll.MaxDiagnostics)).
		Return([]string{"service task failed health check"}, nil)

	executor := NewDeployExecutor(stack, jobpoll.NewPoller(), testPollInterval, testMaxWait)

	_, err := executor.Run(context.Background(), &MergeResult{
		UpstreamVersion: "v1.3.0",
		ArtifactID:      "artifact-1",
	})

	var jobErr *promoerr.JobFailedError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "UPDATE_ROLLBACK_COMPLETE", jobErr.Status)
	assert.Equal(t, []string{"service task failed health check"}, jobErr.Diagnostics)
}

func TestSmokeTestParsesOutputAndAppliesResultQuery(t *testing.T) {
	replaceTestLogger(t)

	mockctrl := gomock.NewController(t)
	executions := mocks.NewMockExecution(mockctrl)

	executions.EXPECT().
		StartExecution(gomock.Any(), gomock.Eq(&backend.ExecutionParams{
			FixtureBucket: "fixtures",
			FixtureKey:    "smoke/fixture.json",
			TargetVersion: "v1.3.0",
			Trigger:       TriggerMarker,
		})).
		Return("sm-1", nil)
	executions.EXPECT().
		ExecutionStatus(gomock.Any(), gomock.Eq("sm-1")).
		Return(&backend.ExecutionStatus{
			Status: "SUCCEEDED",
			Output: `{"checks": {"passed": 12, "failed": 0}}`,
		}, nil)

	executor, err := NewSmokeTestExecutor(
		executions, jobpoll.NewPoller(),
		"fixtures", "smoke/fixture.json", ".checks.passed",
		testPollInterval, testMaxWait,
	)
	require.NoError(t, err)

	result, err := executor.Run(context.Background(), &DeployResult{
		UpstreamVersion: "v1.3.0",
		Status:          DeploySuccess,
	})
	require.NoError(t, err)

	assert.Equal(t, "sm-1", result.ExecutionID)
	assert.Equal(t, "SUCCEEDED", result.Status)
	assert.EqualValues(t, 12, result.Result)
}

func TestSmokeTestKeepsNonJSONOutputRaw(t *testing.T) {
	replaceTestLogger(t)

	mockctrl := gomock.NewController(t)
	executions := mocks.NewMockExecution(mockctrl)

	executions.EXPECT().
		StartExecution(gomock.Any(), gomock.Any()).
		Return("sm-2", nil)
	executions.EXPECT().
		ExecutionStatus(gomock.Any(), gomock.Eq("sm-2")).
		Return(&backend.ExecutionStatus{
			Status: "SUCCEEDED",
			Output: "all checks passed",
		}, nil)

	executor, err := NewSmokeTestExecutor(
		executions, jobpoll.NewPoller(),
		"fixtures", "smoke/fixture.json", "",
		testPollInterval, testMaxWait,
	)
	require.NoError(t, err)

	result, err := executor.Run(context.Background(), &DeployResult{
		UpstreamVersion: "v1.3.0",
		Status:          DeploySuccess,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"raw": "all checks passed"}, result.Output)
	assert.Nil(t, result.Result)
}

func TestSmokeTestRejectsInvalidResultQuery(t *testing.T) {
	replaceTestLogger(t)

	_, err := NewSmokeTestExecutor(
		nil, jobpoll.NewPoller(),
		"fixtures", "smoke/fixture.json", ".checks[",
		testPollInterval, testMaxWait,
	)
	require.Error(t, err)
}

func TestSmokeTestRequiresFixtureKey(t *testing.T) {
	replaceTestLogger(t)

	executor, err := NewSmokeTestExecutor(
		nil, jobpoll.NewPoller(),
		"fixtures", "", "",
		testPollInterval, testMaxWait,
	)
	require.NoError(t, err)

	_, err = executor.Run(context.Background(), &DeployResult{UpstreamVersion: "v1.3.0"})

	var missing *promoerr.MissingInputError
	require.ErrorAs(t, err, &missing)
}
