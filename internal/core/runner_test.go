package core

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- Fake pool ----------

type fakePool struct {
	mu         sync.Mutex
	acquired   int
	released   int
	acquireErr error
	beginErr   error
	commitErr  error
	txDB       *mockDB
	txs        []*fakeTx
}

func (p *fakePool) Acquire(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquired++
	return &fakeConn{pool: p}, nil
}

func (p *fakePool) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired - p.released
}

type fakeConn struct {
	pool     *fakePool
	released bool
}

func (c *fakeConn) Begin(ctx context.Context) (Tx, error) {
	if c.pool.beginErr != nil {
		return nil, c.pool.beginErr
	}
	db := c.pool.txDB
	if db == nil {
		db = &mockDB{}
	}
	tx := &fakeTx{mockDB: db, commitErr: c.pool.commitErr}
	c.pool.mu.Lock()
	c.pool.txs = append(c.pool.txs, tx)
	c.pool.mu.Unlock()
	return tx, nil
}

func (c *fakeConn) Release() {
	if c.released {
		panic("connection released twice")
	}
	c.released = true
	c.pool.mu.Lock()
	c.pool.released++
	c.pool.mu.Unlock()
}

type fakeTx struct {
	*mockDB
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

func transientErr() error {
	return &pgconn.PgError{Code: "08006", Message: "connection failure"}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func newTestRunner(pool ConnPool, opts ...RunnerOption) *Runner {
	return NewRunner(pool, append([]RunnerOption{WithDelay(time.Millisecond)}, opts...)...)
}

// ---------- Run ----------

func TestRunner_Success(t *testing.T) {
	pool := &fakePool{}
	r := newTestRunner(pool)

	calls := 0
	err := r.Run(context.Background(), "op", func(ctx context.Context, tx Tx) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, pool.acquired)
	assert.Equal(t, 0, pool.outstanding())
	require.Len(t, pool.txs, 1)
	assert.True(t, pool.txs[0].committed)
}

func TestRunner_RetriesTransientThenSucceeds(t *testing.T) {
	pool := &fakePool{}
	r := newTestRunner(pool, WithMaxAttempts(3))

	calls := 0
	err := r.Run(context.Background(), "op", func(ctx context.Context, tx Tx) error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// Two failed attempts released their connections and a third was acquired.
	assert.Equal(t, 3, pool.acquired)
	assert.Equal(t, 3, pool.released)
	require.Len(t, pool.txs, 3)
	assert.True(t, pool.txs[0].rolledBack)
	assert.True(t, pool.txs[1].rolledBack)
	assert.True(t, pool.txs[2].committed)
}

func TestRunner_Exhausted(t *testing.T) {
	pool := &fakePool{}
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "f"}, []string{"operation"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "r"}, []string{"operation"})
	r := newTestRunner(pool, WithMaxAttempts(3), WithMetrics(retries, failures))

	calls := 0
	err := r.Run(context.Background(), "insert_alert", func(ctx context.Context, tx Tx) error {
		calls++
		return transientErr()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Contains(t, err.Error(), "insert_alert")
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, pool.outstanding())
	for _, tx := range pool.txs {
		assert.True(t, tx.rolledBack)
		assert.False(t, tx.committed)
	}
	assert.Equal(t, float64(2), counterValue(t, retries.WithLabelValues("insert_alert")))
	assert.Equal(t, float64(1), counterValue(t, failures.WithLabelValues("insert_alert")))
}

func TestRunner_ConstraintNotRetried(t *testing.T) {
	pool := &fakePool{}
	r := newTestRunner(pool)

	calls := 0
	err := r.Run(context.Background(), "op", func(ctx context.Context, tx Tx) error {
		calls++
		return &pgconn.PgError{Code: "23505", ConstraintName: "api_keys_key_hash_key"}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraint)
	assert.NotErrorIs(t, err, ErrOperationFailed)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, pool.outstanding())

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "api_keys_key_hash_key", se.Constraint)
}

func TestRunner_NotFoundNotRetried(t *testing.T) {
	pool := &fakePool{}
	r := newTestRunner(pool)

	calls := 0
	err := r.Run(context.Background(), "op", func(ctx context.Context, tx Tx) error {
		calls++
		return notFound("business %d not found", 7)
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls)
	assert.True(t, pool.txs[0].rolledBack)
}

func TestRunner_OperationCommitsItself(t *testing.T) {
	pool := &fakePool{}
	r := newTestRunner(pool)

	err := r.Run(context.Background(), "op", func(ctx context.Context, tx Tx) error {
		return tx.Commit(ctx)
	})
	require.NoError(t, err)
	assert.True(t, pool.txs[0].committed)
	assert.Equal(t, 0, pool.outstanding())
}

func TestRunner_AcquireFailureRetried(t *testing.T) {
	pool := &fakePool{acquireErr: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	r := newTestRunner(pool, WithMaxAttempts(2))

	err := r.Run(context.Background(), "op", func(ctx context.Context, tx Tx) error {
		t.Fatal("operation must not run without a connection")
		return nil
	})
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Equal(t, 0, pool.outstanding())
}

func TestRunner_CommitFailureRollsBack(t *testing.T) {
	pool := &fakePool{commitErr: errors.New("commit exploded")}
	r := newTestRunner(pool)

	err := r.Run(context.Background(), "op", func(ctx context.Context, tx Tx) error { return nil })
	require.Error(t, err)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.True(t, pool.txs[0].rolledBack)
	assert.Equal(t, 0, pool.outstanding())
}

func TestRunner_ContextCanceledStopsRetrying(t *testing.T) {
	pool := &fakePool{}
	r := NewRunner(pool, WithDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, "op", func(ctx context.Context, tx Tx) error {
			calls++
			cancel()
			return transientErr()
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrOperationFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not honour cancellation")
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, pool.outstanding())
}

func TestRunner_SingleAttempt(t *testing.T) {
	pool := &fakePool{}
	r := newTestRunner(pool, WithMaxAttempts(1))

	calls := 0
	err := r.Run(context.Background(), "op", func(ctx context.Context, tx Tx) error {
		calls++
		return transientErr()
	})
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Equal(t, 1, calls)
}
