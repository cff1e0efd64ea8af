package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/logfields"
)

// Outcome is the final result of one orchestrated run, including the
// report delivery.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeSkipped   Outcome = "SKIPPED"
)

// Orchestrator drives a single promotion run through its stages.
// It only moves stage outputs into the run Context and routes failures
// to the reporter, stage semantics live in the stage executors.
type Orchestrator struct {
	detector   *Detector
	mergeBuild *MergeBuildExecutor
	deploy     *DeployExecutor
	smokeTest  *SmokeTestExecutor
	reporter   *Reporter
	deadline   time.Duration
	logger     *zap.Logger
}

func NewOrchestrator(
	detector *Detector,
	mergeBuild *MergeBuildExecutor,
	deploy *DeployExecutor,
	smokeTest *SmokeTestExecutor,
	reporter *Reporter,
	deadline time.Duration,
) *Orchestrator {
	return &Orchestrator{
		detector:   detector,
		mergeBuild: mergeBuild,
		deploy:     deploy,
		smokeTest:  smokeTest,
		reporter:   reporter,
		deadline:   deadline,
		logger:     zap.L().Named("orchestrator"),
	}
}

// Run executes one promotion run end to end and always ends in exactly
// one report, whichever way the run went.
// The whole run, polling waits included, is bound by the configured
// deadline.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	run := &Context{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	logger := o.logger.With(logfields.RunID(run.RunID))
	logger.Info("workflow run started", logfields.Event("run_started"))

	detect, err := o.runDetect(ctx, run)
	if err != nil {
		return o.fail(ctx, logger, run, err)
	}

	if !detect.UpdateRequired {
		logger.Info(
			"no new upstream release, skipping run",
			logfields.Event("run_skipped"),
			logfields.Version(detect.CurrentVersion),
		)

		return o.finish(ctx, logger, run, StatusSkipped, OutcomeSkipped)
	}

	merge, err := o.runMergeBuild(ctx, run, detect)
	if err != nil {
		return o.fail(ctx, logger, run, err)
	}

	deploy, err := o.runDeploy(ctx, run, merge)
	if err != nil {
		return o.fail(ctx, logger, run, err)
	}

	if _, err := o.runSmokeTest(ctx, run, deploy); err != nil {
		return o.fail(ctx, logger, run, err)
	}

	return o.finish(ctx, logger, run, StatusSuccess, OutcomeSucceeded)
}

func (o *Orchestrator) runDetect(ctx context.Context, run *Context) (*DetectResult, error) {
	start := time.Now()

	result, err := o.detector.Detect(ctx)
	if err != nil {
		metrics.StageFailed(StageDetect)
		return nil, &StageError{Stage: StageDetect, Err: err}
	}

	metrics.StageFinished(StageDetect, start)
	run.Detect = result

	return result, nil
}

func (o *Orchestrator) runMergeBuild(ctx context.Context, run *Context, detect *DetectResult) (*MergeResult, error) {
	start := time.Now()

	result, err := o.mergeBuild.Run(ctx, detect)
	if err != nil {
		metrics.StageFailed(StageMergeBuild)
		return nil, &StageError{Stage: StageMergeBuild, Err: err}
	}

	metrics.StageFinished(StageMergeBuild, start)
	run.Merge = result

	return result, nil
}

func (o *Orchestrator) runDeploy(ctx context.Context, run *Context, merge *MergeResult) (*DeployResult, error) {
	start := time.Now()

	result, err := o.deploy.Run(ctx, merge)
	if err != nil {
		metrics.StageFailed(StageDeploy)
		return nil, &StageError{Stage: StageDeploy, Err: err}
	}

	metrics.StageFinished(StageDeploy, start)
	run.Deploy = result

	return result, nil
}

func (o *Orchestrator) runSmokeTest(ctx context.Context, run *Context, deploy *DeployResult) (*SmokeResult, error) {
	start := time.Now()

	result, err := o.smokeTest.Run(ctx, deploy)
	if err != nil {
		metrics.StageFailed(StageSmokeTest)
		return nil, &StageError{Stage: StageSmokeTest, Err: err}
	}

	metrics.StageFinished(StageSmokeTest, start)
	run.Smoke = result

	return result, nil
}

func (o *Orchestrator) fail(ctx context.Context, logger *zap.Logger, run *Context, err error) (Outcome, error) {
	stageErr, ok := err.(*StageError)
	if !ok {
		stageErr = &StageError{Stage: StageDetect, Err: err}
	}

	run.Error = stageErr

	logger.Error(
		"workflow stage failed",
		logfields.Event("stage_failed"),
		logfields.Stage(string(stageErr.Stage)),
		zap.Error(stageErr.Err),
	)

	outcome, reportErr := o.finish(ctx, logger, run, StatusFailed, OutcomeFailed)
	if reportErr != nil {
		return outcome, reportErr
	}

	return outcome, stageErr
}

// finish publishes the run report. The failure report itself uses a
// fresh context, a run that died on the workflow deadline must still be
// able to deliver its notification.
func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, run *Context, status Status, outcome Outcome) (Outcome, error) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
	}

	if _, err := o.reporter.Report(ctx, run, status); err != nil {
		logger.Error(
			"publishing run report failed",
			logfields.Event("report_failed"),
			zap.Error(err),
		)

		metrics.RunFinished(OutcomeFailed)

		return OutcomeFailed, err
	}

	metrics.RunFinished(outcome)

	logger.Info(
		"workflow run finished",
		logfields.Event("run_finished"),
		zap.String("outcome", string(outcome)),
		zap.Duration("duration", time.Since(run.StartedAt)),
	)

	return outcome, nil
}
