package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/baharkarakas/prediction-backend/internal/metrics"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxTxAttempts bounds optimistic-conflict retries per WithTx call.
const maxTxAttempts = 3

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, so every repo works
// unchanged inside or outside a transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements repository.Store on Postgres. The zero pool means the store
// is already bound to a transaction and WithTx calls just run in place.
type Store struct {
	q    queryer
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{q: pool, pool: pool}
}

func txStore(tx pgx.Tx) *Store { return &Store{q: tx} }

func (s *Store) Balances() repo.Balances         { return &balancesRepo{s.q} }
func (s *Store) Transactions() repo.Transactions { return &transactionsRepo{s.q} }
func (s *Store) Commitments() repo.Commitments   { return &commitmentsRepo{s.q} }
func (s *Store) Markets() repo.Markets           { return &marketsRepo{s.q} }
func (s *Store) Resolutions() repo.Resolutions   { return &resolutionsRepo{s.q} }
func (s *Store) Users() repo.Users               { return &usersRepo{s.q} }
func (s *Store) AuditLogs() repo.AuditLogs       { return &auditLogsRepo{s.q} }

// WithTx runs fn inside a serializable transaction, retrying up to
// maxTxAttempts on serialization failures and balance version conflicts.
// Nested calls run in the enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repo.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}

		err = fn(txStore(tx))
		if err == nil {
			err = tx.Commit(ctx)
			if err == nil {
				return nil
			}
		} else {
			_ = tx.Rollback(ctx)
		}

		if !retryable(err) {
			return err
		}
		lastErr = err
		metrics.TxRetries.Inc()
	}
	return fmt.Errorf("%w after %d attempts: %w", repo.ErrTxExhausted, maxTxAttempts, lastErr)
}

// retryable reports whether the error is an optimistic conflict worth retrying:
// a serialization / deadlock failure from Postgres or a stale version fence.
func retryable(err error) bool {
	if errors.Is(err, repo.ErrVersionConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
