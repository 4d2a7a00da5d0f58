package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

type marketsRepo struct{ q queryer }

func (r *marketsRepo) Get(ctx context.Context, id string) (models.Market, error) {
	var m models.Market
	err := r.q.QueryRow(ctx,
		`SELECT id, title, category, status, created_by, total_participants, total_tokens_staked, created_at, resolved_at
		   FROM markets WHERE id=$1`, id,
	).Scan(&m.ID, &m.Title, &m.Category, &m.Status, &m.CreatedBy, &m.TotalParticipants, &m.TotalTokensStaked, &m.CreatedAt, &m.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Market{}, repo.ErrNotFound
	}
	if err != nil {
		return models.Market{}, err
	}

	rows, err := r.q.Query(ctx,
		`SELECT id, label, total_tokens, participant_count, is_winner
		   FROM market_options WHERE market_id=$1 ORDER BY id`, id)
	if err != nil {
		return models.Market{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var o models.MarketOption
		if err := rows.Scan(&o.ID, &o.Label, &o.TotalTokens, &o.ParticipantCount, &o.IsWinner); err != nil {
			return models.Market{}, err
		}
		m.Options = append(m.Options, o)
	}
	return m, rows.Err()
}

func (r *marketsRepo) Create(ctx context.Context, m models.Market) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO markets(id, title, category, status, created_by, total_participants, total_tokens_staked, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.Title, m.Category, m.Status, m.CreatedBy, m.TotalParticipants, m.TotalTokensStaked, m.CreatedAt,
	)
	if err != nil {
		return err
	}
	for _, o := range m.Options {
		if _, err := r.q.Exec(ctx,
			`INSERT INTO market_options(id, market_id, label, total_tokens, participant_count, is_winner)
			 VALUES($1,$2,$3,$4,$5,$6)`,
			o.ID, m.ID, o.Label, o.TotalTokens, o.ParticipantCount, o.IsWinner,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *marketsRepo) UpdateStatus(ctx context.Context, id string, status models.MarketStatus) error {
	var tag string
	switch status {
	case models.MarketResolved:
		tag = `UPDATE markets SET status=$2, resolved_at=now() WHERE id=$1`
	default:
		tag = `UPDATE markets SET status=$2 WHERE id=$1`
	}
	ct, err := r.q.Exec(ctx, tag, id, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *marketsRepo) ApplyCommit(ctx context.Context, marketID, optionID string, tokens int64, newParticipant bool) error {
	bump := int64(0)
	if newParticipant {
		bump = 1
	}
	ct, err := r.q.Exec(ctx,
		`UPDATE market_options
		    SET total_tokens = total_tokens + $3,
		        participant_count = participant_count + $4
		  WHERE market_id=$1 AND id=$2`,
		marketID, optionID, tokens, bump)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	_, err = r.q.Exec(ctx,
		`UPDATE markets
		    SET total_tokens_staked = total_tokens_staked + $2,
		        total_participants = total_participants + $3
		  WHERE id=$1`,
		marketID, tokens, bump)
	return err
}

func (r *marketsRepo) ApplyRollback(ctx context.Context, marketID, optionID string, tokens int64) error {
	// Participant counts are recomputed from active commitments on the read
	// side; the rollback here only reverses the token aggregates.
	ct, err := r.q.Exec(ctx,
		`UPDATE market_options
		    SET total_tokens = GREATEST(total_tokens - $3, 0)
		  WHERE market_id=$1 AND id=$2`,
		marketID, optionID, tokens)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	_, err = r.q.Exec(ctx,
		`UPDATE markets
		    SET total_tokens_staked = GREATEST(total_tokens_staked - $2, 0)
		  WHERE id=$1`,
		marketID, tokens)
	return err
}

func (r *marketsRepo) SetWinner(ctx context.Context, marketID, optionID string) error {
	if _, err := r.q.Exec(ctx,
		`UPDATE market_options SET is_winner = (id=$2) WHERE market_id=$1`,
		marketID, optionID); err != nil {
		return err
	}
	return nil
}
