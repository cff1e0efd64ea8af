package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/backend"
	"github.com/simplesurance/forkpromoter/internal/jobpoll"
	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

// MergeBuildExecutor merges the upstream release into the fork and builds
// the result by submitting one job to the build system.
type MergeBuildExecutor struct {
	builds       backend.Build
	poller       *jobpoll.Poller
	project      string
	forkRepo     string
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *zap.Logger
}

func NewMergeBuildExecutor(builds backend.Build, poller *jobpoll.Poller, project, forkRepo string, pollInterval, maxWait time.Duration) *MergeBuildExecutor {
	return &MergeBuildExecutor{
		builds:       builds,
		poller:       poller,
		project:      project,
		forkRepo:     forkRepo,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		logger:       zap.L().Named("merge_build"),
	}
}

// Run submits exactly one build job and awaits its completion.
func (e *MergeBuildExecutor) Run(ctx context.Context, detect *DetectResult) (*MergeResult, error) {
	if detect == nil || detect.UpstreamVersion == "" {
		return nil, promoerr.NewMissingInputError("detect.upstream_version")
	}

	buildID, err := e.builds.StartBuild(ctx, &backend.BuildParams{
		Project:       e.project,
		ForkRepo:      e.forkRepo,
		TargetVersion: detect.UpstreamVersion,
		ReleaseURL:    detect.ReleaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("submitting build job: %w", err)
	}

	e.logger.Info(
		"build job submitted",
		logfields.Event("merge_build_submitted"),
		logfields.JobID(buildID),
		logfields.Version(detect.UpstreamVersion),
		zap.String("project", e.project),
	)

	result, err := e.poller.Await(ctx, &jobpoll.Job{
		Handle: jobpoll.Handle{ID: buildID, Kind: jobpoll.KindBuild},
		Query: func(ctx context.Context) (*jobpoll.Result, error) {
			status, err := e.builds.BuildStatus(ctx, buildID)
			if err != nil {
				return nil, err
			}

			return &jobpoll.Result{
				Status: status.Status,
				Artifacts: map[string]string{
					"artifact_location": status.ArtifactLocation,
					"log_group":         status.LogGroup,
					"log_stream":        status.LogStream,
				},
			}, nil
		},
		Diagnostics: func(ctx context.Context, limit int) ([]string, error) {
			return e.builds.BuildFailures(ctx, buildID, limit)
		},
		PollInterval: e.pollInterval,
		MaxWait:      e.maxWait,
	})
	if err != nil {
		return nil, err
	}

	return &MergeResult{
		UpstreamVersion: detect.UpstreamVersion,
		ArtifactID:      result.Artifacts["artifact_location"],
		BuildID:         buildID,
		LogGroup:        result.Artifacts["log_group"],
		LogStream:       result.Artifacts["log_stream"],
	}, nil
}
