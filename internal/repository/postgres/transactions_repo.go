package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

type transactionsRepo struct{ q queryer }

const txnColumns = `id, user_id, type, amount, balance_before, balance_after, related_id, metadata, status, created_at`

func (r *transactionsRepo) Create(ctx context.Context, t models.TokenTransaction) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO token_transactions(`+txnColumns+`)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.UserID, t.Type, t.Amount, t.BalanceBefore, t.BalanceAfter, t.RelatedID, t.Metadata, t.Status, t.CreatedAt,
	)
	return err
}

func scanTxn(row pgx.Row) (models.TokenTransaction, error) {
	var t models.TokenTransaction
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
		&t.RelatedID, &t.Metadata, &t.Status, &t.CreatedAt)
	return t, err
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.TokenTransaction, error) {
	t, err := scanTxn(r.q.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM token_transactions WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TokenTransaction{}, repo.ErrNotFound
	}
	return t, err
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.TokenTransaction, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+txnColumns+` FROM token_transactions
		  WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTxns(rows)
}

func (r *transactionsRepo) ListByRelated(ctx context.Context, relatedID string) ([]models.TokenTransaction, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+txnColumns+` FROM token_transactions
		  WHERE related_id=$1 ORDER BY created_at DESC`,
		relatedID)
	if err != nil {
		return nil, err
	}
	return collectTxns(rows)
}

func collectTxns(rows pgx.Rows) ([]models.TokenTransaction, error) {
	defer rows.Close()
	var out []models.TokenTransaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE token_transactions SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
