package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transactor runs fn inside a single database transaction. Repositories
// called with the ctx passed to fn join that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// Conn returns the transaction carried by ctx, or the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

type TxManager struct {
	pool      *pgxpool.Pool
	attempts  int
	baseDelay time.Duration
}

func NewTxManager(pool *pgxpool.Pool, attempts int, baseDelay time.Duration) *TxManager {
	return &TxManager{pool: pool, attempts: attempts, baseDelay: baseDelay}
}

// WithinTx commits when fn returns nil and rolls back otherwise. The whole
// transaction is re-run on transient store errors; fn must therefore only
// contain store writes, never external side effects.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	return Retry(ctx, m.attempts, m.baseDelay, func() error {
		tx, err := m.pool.Begin(ctx)
		if err != nil {
			return err
		}
		// no-op after a successful Commit
		defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

		if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}
