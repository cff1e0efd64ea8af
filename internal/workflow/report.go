package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/notify"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

const DefSubjectPrefix = "Fork Promoter"

// SkipReason is published when no new upstream release was detected.
const SkipReason = "no new upstream release detected"

const storeWriteRetries = 3

// Reporter formats the outcome of a workflow run, publishes it and
// records the promoted version on success.
type Reporter struct {
	store         VersionStore
	publisher     notify.Publisher
	versionParam  string
	subjectPrefix string
	logger        *zap.Logger

	storeRetryInterval time.Duration
}

func NewReporter(store VersionStore, publisher notify.Publisher, versionParam, subjectPrefix string) *Reporter {
	if subjectPrefix == "" {
		subjectPrefix = DefSubjectPrefix
	}

	return &Reporter{
		store:              store,
		publisher:          publisher,
		versionParam:       versionParam,
		subjectPrefix:      subjectPrefix,
		logger:             zap.L().Named("reporter"),
		storeRetryInterval: time.Second,
	}
}

// Report builds the summary for the run, on success records the promoted
// version and publishes the summary.
//
// The version-store write happens before publishing and is retried with
// backoff. When it still fails the failure is logged and publishing
// proceeds, a store failure must not lose the notification. A publish
// failure is returned as promoerr.NotificationDeliveryError.
func (r *Reporter) Report(ctx context.Context, run *Context, status Status) (*Summary, error) {
	summary := r.buildSummary(run, status)

	if status == StatusSuccess && summary.UpstreamVersion != "" {
		r.writeVersion(ctx, summary.UpstreamVersion)
	}

	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding notification summary: %w", err)
	}

	subject := fmt.Sprintf("%s - %s", r.subjectPrefix, status)

	if err := r.publisher.Publish(ctx, subject, string(body)); err != nil {
		return nil, err
	}

	run.Notification = summary

	return summary, nil
}

// buildSummary assembles the outcome summary from the run context.
// Stage records can be missing, e.g. when an early stage failed, missing
// fields stay empty instead of failing the report.
func (r *Reporter) buildSummary(run *Context, status Status) *Summary {
	summary := Summary{
		Status: status,
		RunID:  run.RunID,
	}

	switch status {
	case StatusSuccess:
		summary.UpstreamVersion = resolveVersion(run)

		if run.Smoke != nil {
			summary.SmokeExecution = run.Smoke.ExecutionID
			summary.SmokeResult = run.Smoke.Result
		}

		if run.Merge != nil {
			summary.BuildID = run.Merge.BuildID
		}

		if run.Deploy != nil {
			summary.DeployID = run.Deploy.ExecutionID
		}

	case StatusFailed:
		if run.Error != nil {
			summary.Stage = run.Error.Stage
			summary.Error = errorDetail(run.Error.Err)
		}

	case StatusSkipped:
		summary.Reason = SkipReason

		if run.Detect != nil {
			summary.CurrentVersion = run.Detect.CurrentVersion
		}
	}

	return &summary
}

// resolveVersion returns the promoted version, preferring the value the
// deploy stage actually rolled out over earlier stage records.
func resolveVersion(run *Context) string {
	if run.Deploy != nil && run.Deploy.UpstreamVersion != "" {
		return run.Deploy.UpstreamVersion
	}

	if run.Merge != nil && run.Merge.UpstreamVersion != "" {
		return run.Merge.UpstreamVersion
	}

	if run.Detect != nil && run.Detect.UpstreamVersion != "" {
		return run.Detect.UpstreamVersion
	}

	return ""
}

// errorDetail converts a stage error into the structured detail carried
// in the notification.
func errorDetail(err error) any {
	var jobFailed *promoerr.JobFailedError
	if errors.As(err, &jobFailed) {
		return map[string]any{
			"job_id":      jobFailed.JobID,
			"status":      jobFailed.Status,
			"diagnostics": jobFailed.Diagnostics,
		}
	}

	var jobTimeout *promoerr.JobTimeoutError
	if errors.As(err, &jobTimeout) {
		return map[string]any{
			"job_id":  jobTimeout.JobID,
			"elapsed": jobTimeout.Elapsed.String(),
			"timeout": true,
		}
	}

	if err == nil {
		return nil
	}

	return err.Error()
}

func (r *Reporter) writeVersion(ctx context.Context, version string) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.storeRetryInterval

	err := backoff.Retry(func() error {
		return r.store.Put(ctx, r.versionParam, version)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, storeWriteRetries), ctx))
	if err != nil {
		r.logger.Warn(
			"recording promoted version failed, notification is still published",
			logfields.Event("report_version_write_failed"),
			logfields.Version(version),
			zap.Error(err),
		)

		return
	}

	r.logger.Info(
		"promoted version recorded",
		logfields.Event("report_version_recorded"),
		logfields.Version(version),
	)
}
