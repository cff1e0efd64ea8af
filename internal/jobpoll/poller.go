// Package jobpoll awaits the completion of asynchronous jobs owned by
// external systems.
//
// The backends only expose a submit and a status-query operation, completion
// is observed by polling the status at a fixed cadence until a terminal
// status is reached or a deadline expires. The poll loop is generic, the
// job kind supplies the terminal-status sets and the caller supplies the
// query and diagnostics functions.
package jobpoll

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

const loggerName = "jobpoll"

// MaxDiagnostics bounds the number of diagnostic entries carried in a
// JobFailedError.
const MaxDiagnostics = 3

// Handle identifies a submitted asynchronous job at its backend.
type Handle struct {
	ID   string
	Kind Kind
}

// Result is the terminal state of a job plus the backend-specific
// artifacts extracted by the caller's query function.
type Result struct {
	// Status is the backend's raw status value.
	Status string
	// Artifacts are backend-specific references, e.g. an artifact
	// location or log coordinates.
	Artifacts map[string]string
	// Output is the raw output payload of execution-style jobs.
	Output string
}

// Job describes one poll target.
type Job struct {
	Handle Handle

	// Query returns the job's current status and artifacts.
	// Errors wrapping promoerr.RetryableError are treated as transient
	// and retried on the next tick, all other errors abort the poll.
	Query func(ctx context.Context) (*Result, error)

	// Diagnostics extracts up to limit failure details from the
	// backend. It is optional and only consulted when the job reached
	// a terminal non-success status.
	Diagnostics func(ctx context.Context, limit int) ([]string, error)

	PollInterval time.Duration
	MaxWait      time.Duration
}

type Poller struct {
	logger *zap.Logger
}

func NewPoller() *Poller {
	return &Poller{
		logger: zap.L().Named(loggerName),
	}
}

// Await polls the job until a terminal status is observed.
// On terminal success the job's Result is returned. On terminal
// non-success a promoerr.JobFailedError carrying at most MaxDiagnostics
// diagnostic entries is returned. When no terminal status is observed
// within MaxWait a promoerr.JobTimeoutError is returned, the job keeps
// running at the backend.
func (p *Poller) Await(ctx context.Context, job *Job) (*Result, error) {
	startTime := time.Now()

	logger := p.logger.With(
		logfields.JobID(job.Handle.ID),
		logfields.JobKind(job.Handle.Kind.String()),
	)

	maxWaitTimer := time.NewTimer(job.MaxWait)
	defer maxWaitTimer.Stop()

	// the first query happens immediately, a job that is already
	// terminal is resolved with a single query
	pollTimer := time.NewTimer(0)
	defer pollTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-maxWaitTimer.C:
			elapsed := time.Since(startTime)
			logger.Warn(
				"giving up polling job, no terminal status before max wait time",
				logfields.Event("job_poll_timeout"),
				zap.Duration("elapsed", elapsed),
				zap.Duration("max_wait", job.MaxWait),
			)

			return nil, &promoerr.JobTimeoutError{
				JobID:   job.Handle.ID,
				Elapsed: elapsed,
			}

		case <-pollTimer.C:
		}

		result, err := job.Query(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}

			var retryableErr *promoerr.RetryableError
			if errors.As(err, &retryableErr) {
				logger.Info(
					"transient error querying job status, retrying on next tick",
					logfields.Event("job_poll_query_transient_error"),
					zap.Error(err),
				)

				pollTimer.Reset(job.PollInterval)
				continue
			}

			return nil, &promoerr.JobQueryError{JobID: job.Handle.ID, Err: err}
		}

		logger.Debug(
			"job status queried",
			logfields.Event("job_poll_status_queried"),
			logfields.JobStatus(result.Status),
			zap.Duration("elapsed", time.Since(startTime)),
		)

		if job.Handle.Kind.isSuccess(result.Status) {
			logger.Info(
				"job completed successfully",
				logfields.Event("job_poll_completed"),
				logfields.JobStatus(result.Status),
			)

			return result, nil
		}

		if job.Handle.Kind.isFailure(result.Status) {
			return nil, &promoerr.JobFailedError{
				JobID:       job.Handle.ID,
				Status:      result.Status,
				Diagnostics: p.diagnostics(ctx, job, logger),
			}
		}

		pollTimer.Reset(job.PollInterval)
	}
}

func (p *Poller) diagnostics(ctx context.Context, job *Job, logger *zap.Logger) []string {
	if job.Diagnostics == nil {
		return nil
	}

	entries, err := job.Diagnostics(ctx, MaxDiagnostics)
	if err != nil {
		logger.Warn(
			"extracting job failure diagnostics failed",
			logfields.Event("job_poll_diagnostics_failed"),
			zap.Error(err),
		)

		return nil
	}

	if len(entries) > MaxDiagnostics {
		entries = entries[:MaxDiagnostics]
	}

	return entries
}
