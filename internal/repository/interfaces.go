package repository

import (
	"context"
	"errors"

	"github.com/baharkarakas/prediction-backend/internal/models"
)

// ErrNotFound is returned for missing documents regardless of collection.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict signals that a balance write lost an optimistic-concurrency
// race: the version read at the start of the transaction was stale. Store.WithTx
// retries the whole transaction on it, up to its attempt bound.
var ErrVersionConflict = errors.New("balance version conflict")

// ErrTxExhausted is returned by WithTx when the bounded retry budget runs out.
var ErrTxExhausted = errors.New("transaction retries exhausted")

type Balances interface {
	// Get returns ErrNotFound for a user with no balance record yet.
	Get(ctx context.Context, userID string) (models.UserBalance, error)
	// Create inserts the initial record for a first-seen user.
	Create(ctx context.Context, b models.UserBalance) error
	// Update writes b and bumps the version fence. The write only succeeds if
	// the stored version still equals b.Version; otherwise ErrVersionConflict.
	Update(ctx context.Context, b models.UserBalance) (models.UserBalance, error)
	// SumAll returns sum(available), sum(committed) across every user.
	SumAll(ctx context.Context) (available, committed int64, err error)
}

type Transactions interface {
	Create(ctx context.Context, t models.TokenTransaction) error
	GetByID(ctx context.Context, id string) (models.TokenTransaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.TokenTransaction, error)
	// ListByRelated returns transactions referencing a market or commitment id.
	ListByRelated(ctx context.Context, relatedID string) ([]models.TokenTransaction, error)
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error
}

type Commitments interface {
	Create(ctx context.Context, c models.PredictionCommitment) error
	GetByID(ctx context.Context, id string) (models.PredictionCommitment, error)
	// ListByUser orders by committed_at descending.
	ListByUser(ctx context.Context, userID string) ([]models.PredictionCommitment, error)
	// ListByPrediction orders by committed_at descending.
	ListByPrediction(ctx context.Context, predictionID string) ([]models.PredictionCommitment, error)
	ListActiveByPrediction(ctx context.Context, predictionID string) ([]models.PredictionCommitment, error)
	UpdateStatus(ctx context.Context, id string, status models.CommitmentStatus) error
	// HasOptionCommitment reports whether the user already holds an active
	// commitment on the given option (drives participant-count aggregates).
	HasOptionCommitment(ctx context.Context, userID, predictionID, optionID string) (bool, error)
}

type Markets interface {
	Get(ctx context.Context, id string) (models.Market, error)
	Create(ctx context.Context, m models.Market) error
	UpdateStatus(ctx context.Context, id string, status models.MarketStatus) error
	// ApplyCommit bumps the cached aggregates for one new commitment.
	ApplyCommit(ctx context.Context, marketID, optionID string, tokens int64, newParticipant bool) error
	// ApplyRollback reverses ApplyCommit for a refunded commitment.
	ApplyRollback(ctx context.Context, marketID, optionID string, tokens int64) error
	// SetWinner flags the winning option and clears the flag on the rest.
	SetWinner(ctx context.Context, marketID, optionID string) error
}

type Resolutions interface {
	Create(ctx context.Context, r models.MarketResolution) error
	GetByMarket(ctx context.Context, marketID string) (models.MarketResolution, error)
	UpdateStatus(ctx context.Context, id string, status models.ResolutionStatus) error
}

type Users interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}

// Store is the transactional document store the ledger runs against. WithTx
// runs fn against a Store bound to one atomic unit: every read and write inside
// fn commits together or not at all. The implementation retries fn a bounded
// number of times on optimistic conflicts, so fn must be safe to re-execute.
type Store interface {
	Balances() Balances
	Transactions() Transactions
	Commitments() Commitments
	Markets() Markets
	Resolutions() Resolutions
	Users() Users
	AuditLogs() AuditLogs

	WithTx(ctx context.Context, fn func(Store) error) error
}
