package jobpoll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

func newTestJob(query func(context.Context) (*Result, error)) *Job {
	return &Job{
		Handle:       Handle{ID: "job-1", Kind: KindBuild},
		Query:        query,
		PollInterval: 10 * time.Millisecond,
		MaxWait:      time.Second,
	}
}

func TestAwaitTerminalSuccessWithSingleQuery(t *testing.T) {
	for status := range buildSuccessStatuses {
		t.Run(status, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

			var queries int
			job := newTestJob(func(context.Context) (*Result, error) {
				queries++
				return &Result{
					Status:    status,
					Artifacts: map[string]string{"artifact_id": "s3://bucket/a.zip"},
				}, nil
			})

			result, err := NewPoller().Await(context.Background(), job)
			require.NoError(t, err)

			assert.Equal(t, status, result.Status)
			assert.Equal(t, "s3://bucket/a.zip", result.Artifacts["artifact_id"])
			assert.Equal(t, 1, queries)
		})
	}
}

func TestAwaitTerminalFailureCarriesBoundedDiagnostics(t *testing.T) {
	for status := range buildFailureStatuses {
		t.Run(status, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

			job := newTestJob(func(context.Context) (*Result, error) {
				return &Result{Status: status}, nil
			})
			job.Diagnostics = func(_ context.Context, limit int) ([]string, error) {
				return []string{"phase1: err", "phase2: err", "phase3: err", "phase4: err"}, nil
			}

			_, err := NewPoller().Await(context.Background(), job)
			require.Error(t, err)

			var jobFailed *promoerr.JobFailedError
			require.ErrorAs(t, err, &jobFailed)

			assert.Equal(t, status, jobFailed.Status)
			assert.Equal(t, "job-1", jobFailed.JobID)
			assert.LessOrEqual(t, len(jobFailed.Diagnostics), MaxDiagnostics)
		})
	}
}

func TestAwaitPollsUntilTerminal(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	var queries int
	job := newTestJob(func(context.Context) (*Result, error) {
		queries++
		if queries < 3 {
			return &Result{Status: "IN_PROGRESS"}, nil
		}
		return &Result{Status: "SUCCEEDED"}, nil
	})

	result, err := NewPoller().Await(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, "SUCCEEDED", result.Status)
	assert.Equal(t, 3, queries)
}

func TestAwaitTimesOutWithoutTerminalStatus(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	job := newTestJob(func(context.Context) (*Result, error) {
		return &Result{Status: "IN_PROGRESS"}, nil
	})
	job.MaxWait = 50 * time.Millisecond

	_, err := NewPoller().Await(context.Background(), job)
	require.Error(t, err)

	var timeoutErr *promoerr.JobTimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	assert.Equal(t, "job-1", timeoutErr.JobID)
	assert.GreaterOrEqual(t, timeoutErr.Elapsed, job.MaxWait)
}

func TestAwaitRetriesTransientQueryErrors(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	var queries int
	job := newTestJob(func(context.Context) (*Result, error) {
		queries++
		if queries == 1 {
			return nil, promoerr.NewRetryableAnytimeError(errors.New("resource momentarily inconsistent"))
		}
		return &Result{Status: "SUCCEEDED"}, nil
	})

	result, err := NewPoller().Await(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, "SUCCEEDED", result.Status)
	assert.Equal(t, 2, queries)
}

func TestAwaitPropagatesQueryErrors(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	queryErr := errors.New("access denied")
	job := newTestJob(func(context.Context) (*Result, error) {
		return nil, queryErr
	})

	_, err := NewPoller().Await(context.Background(), job)
	require.Error(t, err)

	var qErr *promoerr.JobQueryError
	require.ErrorAs(t, err, &qErr)
	assert.ErrorIs(t, err, queryErr)
}

func TestAwaitStopsOnContextCancellation(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	ctx, cancel := context.WithCancel(context.Background())

	job := newTestJob(func(context.Context) (*Result, error) {
		cancel()
		return &Result{Status: "IN_PROGRESS"}, nil
	})

	_, err := NewPoller().Await(ctx, job)
	assert.ErrorIs(t, err, context.Canceled)
}
