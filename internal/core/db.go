package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB defines the query surface the store adapters use.
// *pgxpool.Pool and pgx.Tx both satisfy this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Tx is a transaction handed to operations run by the Runner.
type Tx interface {
	DB
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is a connection checked out of a ConnPool. Release must be called
// exactly once.
type Conn interface {
	Begin(ctx context.Context) (Tx, error)
	Release()
}

// ConnPool hands out connections. Acquire blocks while the pool is exhausted
// until a connection is released or ctx ends.
type ConnPool interface {
	Acquire(ctx context.Context) (Conn, error)
}

// NewConnPool adapts a pgx pool to ConnPool.
func NewConnPool(pool *pgxpool.Pool) ConnPool {
	return pgxConnPool{pool: pool}
}

type pgxConnPool struct {
	pool *pgxpool.Pool
}

func (p pgxConnPool) Acquire(ctx context.Context) (Conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return pgxConn{conn: c}, nil
}

type pgxConn struct {
	conn *pgxpool.Conn
}

func (c pgxConn) Begin(ctx context.Context) (Tx, error) {
	return c.conn.Begin(ctx)
}

func (c pgxConn) Release() {
	c.conn.Release()
}
