package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

type balancesRepo struct{ q queryer }

func (r *balancesRepo) Get(ctx context.Context, userID string) (models.UserBalance, error) {
	var b models.UserBalance
	err := r.q.QueryRow(ctx,
		`SELECT user_id, available_tokens, committed_tokens, total_earned, total_spent, last_updated, version
		   FROM user_balances
		  WHERE user_id=$1`,
		userID,
	).Scan(&b.UserID, &b.AvailableTokens, &b.CommittedTokens, &b.TotalEarned, &b.TotalSpent, &b.LastUpdated, &b.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.UserBalance{}, repo.ErrNotFound
	}
	return b, err
}

func (r *balancesRepo) Create(ctx context.Context, b models.UserBalance) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO user_balances(user_id, available_tokens, committed_tokens, total_earned, total_spent, last_updated, version)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (user_id) DO NOTHING`,
		b.UserID, b.AvailableTokens, b.CommittedTokens, b.TotalEarned, b.TotalSpent, b.LastUpdated, b.Version,
	)
	return err
}

// Update writes the mutated balance and bumps the version fence. The WHERE
// clause on the old version makes a lost race visible as zero rows updated.
func (r *balancesRepo) Update(ctx context.Context, b models.UserBalance) (models.UserBalance, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE user_balances
		    SET available_tokens=$2,
		        committed_tokens=$3,
		        total_earned=$4,
		        total_spent=$5,
		        last_updated=now(),
		        version=version+1
		  WHERE user_id=$1 AND version=$6`,
		b.UserID, b.AvailableTokens, b.CommittedTokens, b.TotalEarned, b.TotalSpent, b.Version,
	)
	if err != nil {
		return models.UserBalance{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.UserBalance{}, repo.ErrVersionConflict
	}
	return r.Get(ctx, b.UserID)
}

func (r *balancesRepo) SumAll(ctx context.Context) (int64, int64, error) {
	var available, committed int64
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(available_tokens),0), COALESCE(SUM(committed_tokens),0) FROM user_balances`,
	).Scan(&available, &committed)
	return available, committed, err
}
