package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second

	rollbackTimeout = 5 * time.Second
)

// TxFunc is a unit of store work. It runs inside a transaction the Runner
// opened; it may commit the transaction itself, otherwise the Runner commits
// it after TxFunc returns nil.
type TxFunc func(ctx context.Context, tx Tx) error

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithDelay sets the fixed pause between attempts.
func WithDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// WithLogger sets the logger for retry warnings.
func WithLogger(l zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics counts attempts and exhausted operations.
func WithMetrics(retries, failures *prometheus.CounterVec) RunnerOption {
	return func(r *Runner) {
		r.retries = retries
		r.failures = failures
	}
}

// Runner executes store operations in a transaction on a freshly acquired
// connection, retrying transient failures a bounded number of times.
type Runner struct {
	pool        ConnPool
	maxAttempts int
	delay       time.Duration
	logger      zerolog.Logger
	retries     *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

func NewRunner(pool ConnPool, opts ...RunnerOption) *Runner {
	r := &Runner{
		pool:        pool,
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultRetryDelay,
		logger:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes fn. Transient failures are rolled back, the connection is
// released, and fn is retried on a new connection after the configured delay.
// Other failures are returned at once, classified. When every attempt fails
// transiently the returned error matches ErrOperationFailed.
func (r *Runner) Run(ctx context.Context, name string, fn TxFunc) error {
	var (
		attempt int
		lastErr error
	)

	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		err := r.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if KindOf(err) != KindTransient {
			return err
		}

		lastErr = err
		r.logger.Warn().Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Msg("store operation failed")
		if r.retries != nil && attempt < r.maxAttempts {
			r.retries.WithLabelValues(name).Inc()
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}

	if lastErr != nil && KindOf(err) == KindTransient {
		r.logger.Error().Err(lastErr).
			Str("operation", name).
			Int("attempts", attempt).
			Msg("max retries reached for store operation")
		if r.failures != nil {
			r.failures.WithLabelValues(name).Inc()
		}
		return fmt.Errorf("%w: %s after %d attempts: %w", ErrOperationFailed, name, attempt, lastErr)
	}
	return err
}

// backoff waits delay between attempts and stops after maxAttempts.
func (r *Runner) backoff() retry.Backoff {
	remaining := r.maxAttempts - 1
	delay := r.delay
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if remaining <= 0 {
			return 0, true
		}
		remaining--
		return delay, false
	})
}

// attempt runs fn once on its own connection and transaction. The connection
// is released on every path; a failed transaction is rolled back first.
func (r *Runner) attempt(ctx context.Context, fn TxFunc) (err error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return Classify(fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return Classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			r.rollback(ctx, tx)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return Classify(err)
	}

	if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return Classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (r *Runner) rollback(ctx context.Context, tx Tx) {
	// The request context may already be done; the rollback still has to reach the server.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := tx.Rollback(rctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.Warn().Err(err).Msg("rollback failed")
	}
}
