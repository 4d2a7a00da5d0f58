package services

import (
	"context"
	"errors"
	"testing"

	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
)

func TestCreateCommitmentHappyPath(t *testing.T) {
	env := newTestEnv(t)
	market := env.seedMarket(t, "creator", models.MarketActive)
	env.fund(t, "alice", 1000)

	c, balance, err := env.commit.CreateCommitment(context.Background(), "alice", market.ID, "yes", 300)
	if err != nil {
		t.Fatalf("CreateCommitment: %v", err)
	}
	if c.Status != models.CommitmentActive {
		t.Errorf("commitment status = %s, want active", c.Status)
	}
	if c.TokensCommitted != 300 {
		t.Errorf("tokens = %d, want 300", c.TokensCommitted)
	}
	if balance.AvailableTokens != 700 || balance.CommittedTokens != 300 {
		t.Errorf("available/committed = %d/%d, want 700/300", balance.AvailableTokens, balance.CommittedTokens)
	}

	// The stored commitment, the commit transaction, and the market
	// aggregates all landed together.
	stored := env.commitment(t, c.ID)
	if stored.OptionID != "yes" || stored.UserID != "alice" {
		t.Errorf("stored commitment %+v", stored)
	}

	txns, err := env.store.Transactions().ListByRelated(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list related transactions: %v", err)
	}
	if len(txns) != 1 || txns[0].Type != models.TxnCommit {
		t.Fatalf("expected one commit transaction, got %+v", txns)
	}

	m, err := env.store.Markets().Get(context.Background(), market.ID)
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if m.TotalTokensStaked != 300 || m.TotalParticipants != 1 {
		t.Errorf("market aggregates staked/participants = %d/%d, want 300/1", m.TotalTokensStaked, m.TotalParticipants)
	}
	yes, _ := m.Option("yes")
	if yes.TotalTokens != 300 || yes.ParticipantCount != 1 {
		t.Errorf("option aggregates = %d/%d, want 300/1", yes.TotalTokens, yes.ParticipantCount)
	}
}

func TestCreateCommitmentSecondStakeSameOption(t *testing.T) {
	env := newTestEnv(t)
	market := env.seedMarket(t, "creator", models.MarketActive)
	env.fund(t, "alice", 1000)

	ctx := context.Background()
	if _, _, err := env.commit.CreateCommitment(ctx, "alice", market.ID, "yes", 100); err != nil {
		t.Fatalf("first commitment: %v", err)
	}
	if _, _, err := env.commit.CreateCommitment(ctx, "alice", market.ID, "yes", 100); err != nil {
		t.Fatalf("second commitment: %v", err)
	}

	m, _ := env.store.Markets().Get(ctx, market.ID)
	// Same user, same option: tokens add up, the participant counts once.
	if m.TotalTokensStaked != 200 {
		t.Errorf("staked = %d, want 200", m.TotalTokensStaked)
	}
	if m.TotalParticipants != 1 {
		t.Errorf("participants = %d, want 1", m.TotalParticipants)
	}
}

func TestCreateCommitmentInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	market := env.seedMarket(t, "creator", models.MarketActive)
	env.fund(t, "alice", 50)

	_, _, err := env.commit.CreateCommitment(context.Background(), "alice", market.ID, "yes", 100)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	var ibe *InsufficientBalanceError
	if !errors.As(err, &ibe) || ibe.Available != 50 || ibe.Required != 100 {
		t.Fatalf("error detail wrong: %v", err)
	}

	// Nothing written anywhere.
	b := env.balance(t, "alice")
	if b.AvailableTokens != 50 || b.CommittedTokens != 0 {
		t.Errorf("balance changed after rejection: %+v", b)
	}
	commitments, _ := env.store.Commitments().ListByPrediction(context.Background(), market.ID)
	if len(commitments) != 0 {
		t.Errorf("commitment created despite rejection")
	}
	m, _ := env.store.Markets().Get(context.Background(), market.ID)
	if m.TotalTokensStaked != 0 {
		t.Errorf("market aggregate bumped despite rejection")
	}
}

func TestCreateCommitmentMarketStates(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "alice", 1000)
	ctx := context.Background()

	for _, status := range []models.MarketStatus{
		models.MarketDraft, models.MarketPendingResolution,
		models.MarketResolving, models.MarketResolved, models.MarketCancelled,
	} {
		market := env.seedMarket(t, "creator", status)
		_, _, err := env.commit.CreateCommitment(ctx, "alice", market.ID, "yes", 10)
		if !errors.Is(err, ErrMarketInactive) {
			t.Errorf("status %s: got %v, want ErrMarketInactive", status, err)
		}
		var mie *MarketInactiveError
		if !errors.As(err, &mie) || mie.Status != status {
			t.Errorf("status %s: error does not carry the market status: %v", status, err)
		}
	}

	_, _, err := env.commit.CreateCommitment(ctx, "alice", "no-such-market", "yes", 10)
	if !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("missing market: got %v, want ErrMarketNotFound", err)
	}
}

func TestCreateCommitmentInvalidOption(t *testing.T) {
	env := newTestEnv(t)
	market := env.seedMarket(t, "creator", models.MarketActive)
	env.fund(t, "alice", 1000)

	_, _, err := env.commit.CreateCommitment(context.Background(), "alice", market.ID, "maybe", 10)
	if !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("got %v, want ErrInvalidOption", err)
	}
}

func TestCreateCommitmentRejectsNonPositiveTokens(t *testing.T) {
	env := newTestEnv(t)
	market := env.seedMarket(t, "creator", models.MarketActive)

	for _, tokens := range []int64{0, -10} {
		_, _, err := env.commit.CreateCommitment(context.Background(), "alice", market.ID, "yes", tokens)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("tokens %d: got %v, want ErrInvalidAmount", tokens, err)
		}
	}
}

// faultStore wraps a Store and fails market aggregate writes, inside and
// outside transactions.
type faultStore struct {
	repo.Store
	err error
}

func (f faultStore) WithTx(ctx context.Context, fn func(repo.Store) error) error {
	return f.Store.WithTx(ctx, func(tx repo.Store) error {
		return fn(faultStore{Store: tx, err: f.err})
	})
}

func (f faultStore) Markets() repo.Markets { return faultMarkets{f.Store.Markets(), f.err} }

type faultMarkets struct {
	repo.Markets
	err error
}

func (m faultMarkets) ApplyCommit(ctx context.Context, marketID, optionID string, tokens int64, newParticipant bool) error {
	return m.err
}

func TestCreateCommitmentFailedTransactionLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	market := env.seedMarket(t, "creator", models.MarketActive)
	env.fund(t, "alice", 1000)

	injected := errors.New("aggregate write refused")
	store := faultStore{Store: env.store, err: injected}
	balances := NewBalanceService(store)
	rollback := NewRollbackService(store, balances, env.pool)
	commit := NewCommitmentService(store, balances, rollback)

	_, _, err := commit.CreateCommitment(context.Background(), "alice", market.ID, "yes", 300)
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("got %v, want ErrTransactionFailed", err)
	}
	if !errors.Is(err, injected) {
		t.Errorf("cause not preserved in %v", err)
	}

	// The aborted unit left nothing: balance intact, no commitment, no
	// transaction record, and the compensation attempt was audited.
	b := env.balance(t, "alice")
	if b.AvailableTokens != 1000 || b.CommittedTokens != 0 {
		t.Errorf("balance changed after aborted commit: %+v", b)
	}
	commitments, _ := env.store.Commitments().ListByPrediction(context.Background(), market.ID)
	if len(commitments) != 0 {
		t.Errorf("commitment survived the abort")
	}
	txns, _ := env.balances.ListTransactions(context.Background(), "alice", 10, 0)
	if len(txns) != 1 {
		t.Errorf("expected only the purchase transaction, got %d", len(txns))
	}

	found := false
	for _, entry := range env.store.AuditEntries() {
		if entry.Action == "compensation_attempted" {
			found = true
		}
	}
	if !found {
		t.Errorf("compensation attempt was not audited")
	}
}

// resolveRaceStore settles the market immediately before the commit
// transaction body runs, reproducing a resolve that lands between the
// pre-check and the atomic unit.
type resolveRaceStore struct {
	repo.Store
	marketID string
}

func (s resolveRaceStore) WithTx(ctx context.Context, fn func(repo.Store) error) error {
	if err := s.Store.Markets().UpdateStatus(ctx, s.marketID, models.MarketResolved); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, fn)
}

func TestCreateCommitmentRejectsMarketSettledAfterPrecheck(t *testing.T) {
	env := newTestEnv(t)
	market := env.seedMarket(t, "creator", models.MarketActive)
	env.fund(t, "alice", 1000)

	store := resolveRaceStore{Store: env.store, marketID: market.ID}
	balances := NewBalanceService(store)
	rollback := NewRollbackService(store, balances, env.pool)
	commit := NewCommitmentService(store, balances, rollback)

	_, _, err := commit.CreateCommitment(context.Background(), "alice", market.ID, "yes", 300)
	if !errors.Is(err, ErrMarketInactive) {
		t.Fatalf("got %v, want ErrMarketInactive", err)
	}
	var mie *MarketInactiveError
	if !errors.As(err, &mie) || mie.Status != models.MarketResolved {
		t.Errorf("error does not carry the settled status: %v", err)
	}
	if errors.Is(err, ErrTransactionFailed) {
		t.Errorf("clean rejection wrapped as transaction failure: %v", err)
	}

	// No debit, no commitment, no stranded committed tokens.
	b := env.balance(t, "alice")
	if b.AvailableTokens != 1000 || b.CommittedTokens != 0 {
		t.Errorf("balance mutated by rejected commit: %+v", b)
	}
	commitments, _ := env.store.Commitments().ListByPrediction(context.Background(), market.ID)
	if len(commitments) != 0 {
		t.Errorf("commitment created on a settled market")
	}
	m, _ := env.store.Markets().Get(context.Background(), market.ID)
	if m.TotalTokensStaked != 0 {
		t.Errorf("market aggregate bumped on a settled market")
	}
	for _, entry := range env.store.AuditEntries() {
		if entry.Action == "compensation_attempted" {
			t.Errorf("clean rejection triggered the compensation path")
		}
	}
}

func TestGetUserCommitmentsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	market := env.seedMarket(t, "creator", models.MarketActive)
	env.fund(t, "alice", 1000)
	ctx := context.Background()

	first, _, err := env.commit.CreateCommitment(ctx, "alice", market.ID, "yes", 100)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, _, err := env.commit.CreateCommitment(ctx, "alice", market.ID, "no", 100)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	list, err := env.commit.GetUserCommitments(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserCommitments: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 commitments, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("not newest first: %s then %s", list[0].ID, list[1].ID)
	}
}
