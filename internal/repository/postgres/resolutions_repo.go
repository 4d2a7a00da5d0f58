package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

type resolutionsRepo struct{ q queryer }

func (r *resolutionsRepo) Create(ctx context.Context, res models.MarketResolution) error {
	evidence, err := json.Marshal(res.Evidence)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx,
		`INSERT INTO market_resolutions(id, market_id, winning_option_id, evidence, resolved_by, resolved_at,
		                                winner_count, total_payout, creator_fee_amount, house_fee_amount, status)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		res.ID, res.MarketID, res.WinningOptionID, evidence, res.ResolvedBy, res.ResolvedAt,
		res.WinnerCount, res.TotalPayout, res.CreatorFeeAmount, res.HouseFeeAmount, res.Status,
	)
	return err
}

func (r *resolutionsRepo) GetByMarket(ctx context.Context, marketID string) (models.MarketResolution, error) {
	var res models.MarketResolution
	var evidence []byte
	err := r.q.QueryRow(ctx,
		`SELECT id, market_id, winning_option_id, evidence, resolved_by, resolved_at,
		        winner_count, total_payout, creator_fee_amount, house_fee_amount, status
		   FROM market_resolutions WHERE market_id=$1`, marketID,
	).Scan(&res.ID, &res.MarketID, &res.WinningOptionID, &evidence, &res.ResolvedBy, &res.ResolvedAt,
		&res.WinnerCount, &res.TotalPayout, &res.CreatorFeeAmount, &res.HouseFeeAmount, &res.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MarketResolution{}, repo.ErrNotFound
	}
	if err != nil {
		return models.MarketResolution{}, err
	}
	if err := json.Unmarshal(evidence, &res.Evidence); err != nil {
		return models.MarketResolution{}, err
	}
	return res, nil
}

func (r *resolutionsRepo) UpdateStatus(ctx context.Context, id string, status models.ResolutionStatus) error {
	ct, err := r.q.Exec(ctx,
		`UPDATE market_resolutions SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
