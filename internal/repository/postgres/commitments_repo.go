package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

type commitmentsRepo struct{ q queryer }

const commitmentColumns = `id, user_id, prediction_id, option_id, tokens_committed, odds, potential_winning, status, committed_at`

func (r *commitmentsRepo) Create(ctx context.Context, c models.PredictionCommitment) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO prediction_commitments(`+commitmentColumns+`)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.UserID, c.PredictionID, c.OptionID, c.TokensCommitted, c.Odds, c.PotentialWinning, c.Status, c.CommittedAt,
	)
	return err
}

func scanCommitment(row pgx.Row) (models.PredictionCommitment, error) {
	var c models.PredictionCommitment
	err := row.Scan(&c.ID, &c.UserID, &c.PredictionID, &c.OptionID, &c.TokensCommitted,
		&c.Odds, &c.PotentialWinning, &c.Status, &c.CommittedAt)
	return c, err
}

func (r *commitmentsRepo) GetByID(ctx context.Context, id string) (models.PredictionCommitment, error) {
	c, err := scanCommitment(r.q.QueryRow(ctx,
		`SELECT `+commitmentColumns+` FROM prediction_commitments WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PredictionCommitment{}, repo.ErrNotFound
	}
	return c, err
}

func (r *commitmentsRepo) ListByUser(ctx context.Context, userID string) ([]models.PredictionCommitment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+commitmentColumns+` FROM prediction_commitments
		  WHERE user_id=$1 ORDER BY committed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectCommitments(rows)
}

func (r *commitmentsRepo) ListByPrediction(ctx context.Context, predictionID string) ([]models.PredictionCommitment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+commitmentColumns+` FROM prediction_commitments
		  WHERE prediction_id=$1 ORDER BY committed_at DESC`, predictionID)
	if err != nil {
		return nil, err
	}
	return collectCommitments(rows)
}

func (r *commitmentsRepo) ListActiveByPrediction(ctx context.Context, predictionID string) ([]models.PredictionCommitment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+commitmentColumns+` FROM prediction_commitments
		  WHERE prediction_id=$1 AND status='active' ORDER BY committed_at DESC`, predictionID)
	if err != nil {
		return nil, err
	}
	return collectCommitments(rows)
}

func collectCommitments(rows pgx.Rows) ([]models.PredictionCommitment, error) {
	defer rows.Close()
	var out []models.PredictionCommitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *commitmentsRepo) UpdateStatus(ctx context.Context, id string, status models.CommitmentStatus) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE prediction_commitments SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *commitmentsRepo) HasOptionCommitment(ctx context.Context, userID, predictionID, optionID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM prediction_commitments
		    WHERE user_id=$1 AND prediction_id=$2 AND option_id=$3 AND status='active')`,
		userID, predictionID, optionID,
	).Scan(&exists)
	return exists, err
}
