// Package retry runs operations repeatedly until they succeed or fail with
// a non-retryable error.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

const loggerName = "retryer"

const (
	defTimeout                    = 10 * time.Minute
	defBackoffInitialInterval     = 5 * time.Second
	defBackoffRandomizationFactor = backoff.DefaultRandomizationFactor
)

// Retryer executes a function repeatedly until it succeeded, it returned an
// error that does not wrap promoerr.RetryableError or a timeout expired.
type Retryer struct {
	logger *zap.Logger

	defTimeout                 time.Duration
	backoffInitialInterval     time.Duration
	backoffRandomizationFactor float64
}

func NewRetryer() *Retryer {
	return &Retryer{
		logger:                     zap.L().Named(loggerName),
		defTimeout:                 defTimeout,
		backoffInitialInterval:     defBackoffInitialInterval,
		backoffRandomizationFactor: defBackoffRandomizationFactor,
	}
}

// Run executes fn until it succeeds, it returns an error that does not wrap
// promoerr.RetryableError, the context is cancelled or r's timeout expired.
// When a RetryableError specifies an earliest retry time the next try is
// delayed until then, otherwise retries happen with exponential backoff.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	var tryCnt uint

	ctx, cancelFn := context.WithTimeout(ctx, r.defTimeout)
	defer cancelFn()

	deadline, _ := ctx.Deadline()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.backoffInitialInterval
	bo.RandomizationFactor = r.backoffRandomizationFactor
	bo.MaxElapsedTime = 0

	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.With(logF...).Info(
				"operation cancelled",
				logfields.Event("retryer_operation_cancelled"),
				zap.Uint("try_count", tryCnt),
			)

			return ctx.Err()

		case <-retryTimer.C:
		}

		tryCnt++
		logger := r.logger.With(logF...).With(zap.Uint("try_count", tryCnt))

		err := fn(ctx)
		if err == nil {
			logger.Debug(
				"operation succeeded",
				logfields.Event("retryer_operation_succeeded"),
			)

			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var retryError *promoerr.RetryableError
		if !errors.As(err, &retryError) {
			logger.Debug(
				"operation failed, error is not retryable",
				logfields.Event("retryer_operation_failed"),
				zap.Error(err),
			)

			return err
		}

		if !retryError.After.IsZero() && retryError.After.After(deadline) {
			logger.Info(
				"operation failed, next possible retry time is after timeout expiration",
				logfields.Event("retryer_giving_up"),
				zap.Error(err),
				zap.Time("earliest_allowed_retry", retryError.After),
			)

			return err
		}

		var retryIn time.Duration
		if retryError.After.IsZero() {
			retryIn = bo.NextBackOff()
		} else {
			retryIn = time.Until(retryError.After)
			if minIntv := bo.NextBackOff(); retryIn < minIntv {
				retryIn = minIntv
			}
		}

		retryTimer.Reset(retryIn)
		logger.Debug(
			"operation failed, retry scheduled",
			logfields.Event("retryer_retry_scheduled"),
			zap.Error(err),
			zap.Duration("retry_in", retryIn),
			zap.Duration("age", bo.GetElapsedTime()),
		)
	}
}
