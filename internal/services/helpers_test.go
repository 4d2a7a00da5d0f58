package services

import (
	"context"
	"testing"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/models"
	"github.com/baharkarakas/prediction-backend/internal/repository/memory"
	"github.com/baharkarakas/prediction-backend/internal/worker"
	"github.com/google/uuid"
)

type testEnv struct {
	store      *memory.Store
	balances   *BalanceService
	rollback   *RollbackService
	commit     *CommitmentService
	resolution *ResolutionService
	pool       *worker.Pool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	pool := worker.NewPool(4)
	t.Cleanup(pool.Stop)

	balances := NewBalanceService(store)
	rollback := NewRollbackService(store, balances, pool)
	commit := NewCommitmentService(store, balances, rollback)
	resolution := NewResolutionService(store, balances, rollback, StoreAdminChecker{Store: store})

	return &testEnv{
		store:      store,
		balances:   balances,
		rollback:   rollback,
		commit:     commit,
		resolution: resolution,
		pool:       pool,
	}
}

func (e *testEnv) fund(t *testing.T, userID string, amount int64) models.UserBalance {
	t.Helper()
	b, err := e.balances.UpdateBalance(context.Background(), UpdateRequest{
		UserID: userID,
		Amount: amount,
		Type:   models.TxnPurchase,
	})
	if err != nil {
		t.Fatalf("fund %s with %d: %v", userID, amount, err)
	}
	return b
}

func (e *testEnv) seedMarket(t *testing.T, creator string, status models.MarketStatus) models.Market {
	t.Helper()
	m := models.Market{
		ID:        uuid.NewString(),
		Title:     "Will it rain tomorrow?",
		Category:  "weather",
		Status:    status,
		CreatedBy: creator,
		Options: []models.MarketOption{
			{ID: "yes", Label: "Yes"},
			{ID: "no", Label: "No"},
		},
		CreatedAt: time.Now(),
	}
	if err := e.store.Markets().Create(context.Background(), m); err != nil {
		t.Fatalf("seed market: %v", err)
	}
	return m
}

func (e *testEnv) seedAdmin(t *testing.T) models.User {
	t.Helper()
	u := models.User{
		ID:       uuid.NewString(),
		Username: "admin",
		Email:    "admin@example.com",
		Role:     "admin",
	}
	e.store.PutUser(u)
	return u
}

func (e *testEnv) balance(t *testing.T, userID string) models.UserBalance {
	t.Helper()
	b, err := e.balances.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("get balance %s: %v", userID, err)
	}
	return b
}

func (e *testEnv) commitment(t *testing.T, id string) models.PredictionCommitment {
	t.Helper()
	c, err := e.store.Commitments().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get commitment %s: %v", id, err)
	}
	return c
}

func validEvidence() []models.Evidence {
	return []models.Evidence{
		{Type: models.EvidenceURL, Content: "https://example.com/result"},
	}
}
