package services

import (
	"context"
	"errors"
	"testing"

	"github.com/baharkarakas/prediction-backend/internal/metrics"
	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// settle seeds the three-way market used across resolution tests: alice 300
// and bob 200 on yes, carol 400 on no. Pool 900, default 2% creator fee.
func settleFixture(t *testing.T, env *testEnv) (models.Market, map[string]string) {
	t.Helper()
	ctx := context.Background()
	market := env.seedMarket(t, "creator", models.MarketActive)

	env.fund(t, "alice", 1000)
	env.fund(t, "bob", 500)
	env.fund(t, "carol", 400)

	ids := map[string]string{}
	for _, s := range []struct {
		user   string
		option string
		tokens int64
	}{
		{"alice", "yes", 300},
		{"bob", "yes", 200},
		{"carol", "no", 400},
	} {
		c, _, err := env.commit.CreateCommitment(ctx, s.user, market.ID, s.option, s.tokens)
		if err != nil {
			t.Fatalf("commit for %s: %v", s.user, err)
		}
		ids[s.user] = c.ID
	}
	return market, ids
}

func TestResolveMarketSettlesEverything(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	market, ids := settleFixture(t, env)
	ctx := context.Background()

	res, err := env.resolution.ResolveMarket(ctx, ResolveRequest{
		MarketID:        market.ID,
		WinningOptionID: "yes",
		Evidence:        validEvidence(),
		AdminID:         admin.ID,
	})
	if err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if !res.Success || res.ResolutionID == "" {
		t.Fatalf("result = %+v", res)
	}

	// Pool 900: house 45, creator 18, winner pool 837. Alice floor(837*300/500)
	// = 502, bob floor(837*200/500) = 334.
	alice := env.balance(t, "alice")
	if alice.AvailableTokens != 1202 || alice.CommittedTokens != 0 {
		t.Errorf("alice available/committed = %d/%d, want 1202/0", alice.AvailableTokens, alice.CommittedTokens)
	}
	bob := env.balance(t, "bob")
	if bob.AvailableTokens != 634 || bob.CommittedTokens != 0 {
		t.Errorf("bob available/committed = %d/%d, want 634/0", bob.AvailableTokens, bob.CommittedTokens)
	}
	carol := env.balance(t, "carol")
	if carol.AvailableTokens != 0 || carol.CommittedTokens != 0 {
		t.Errorf("carol available/committed = %d/%d, want 0/0", carol.AvailableTokens, carol.CommittedTokens)
	}
	creator := env.balance(t, "creator")
	if creator.AvailableTokens != 18 {
		t.Errorf("creator fee = %d, want 18", creator.AvailableTokens)
	}

	if got := env.commitment(t, ids["alice"]).Status; got != models.CommitmentWon {
		t.Errorf("alice commitment = %s, want won", got)
	}
	if got := env.commitment(t, ids["bob"]).Status; got != models.CommitmentWon {
		t.Errorf("bob commitment = %s, want won", got)
	}
	if got := env.commitment(t, ids["carol"]).Status; got != models.CommitmentLost {
		t.Errorf("carol commitment = %s, want lost", got)
	}

	resolution, err := env.store.Resolutions().GetByMarket(ctx, market.ID)
	if err != nil {
		t.Fatalf("resolution record: %v", err)
	}
	if resolution.WinnerCount != 2 || resolution.TotalPayout != 836 {
		t.Errorf("winners/payout = %d/%d, want 2/836", resolution.WinnerCount, resolution.TotalPayout)
	}
	if resolution.HouseFeeAmount != 45 || resolution.CreatorFeeAmount != 18 {
		t.Errorf("fees = %d/%d, want 45/18", resolution.HouseFeeAmount, resolution.CreatorFeeAmount)
	}
	if resolution.Status != models.ResolutionCompleted {
		t.Errorf("resolution status = %s", resolution.Status)
	}

	m, _ := env.store.Markets().Get(ctx, market.ID)
	if m.Status != models.MarketResolved {
		t.Errorf("market status = %s, want resolved", m.Status)
	}
	yes, _ := m.Option("yes")
	no, _ := m.Option("no")
	if !yes.IsWinner || no.IsWinner {
		t.Errorf("winner flags yes/no = %v/%v", yes.IsWinner, no.IsWinner)
	}

	// System-wide conservation: the pool left the users, payouts and the
	// creator fee came back, the house fee and division dust stayed out.
	available, committed, err := env.store.Balances().SumAll(ctx)
	if err != nil {
		t.Fatalf("SumAll: %v", err)
	}
	if committed != 0 {
		t.Errorf("committed sum = %d, want 0", committed)
	}
	// 1900 funded - 45 house fee - 1 dust = 1854
	if available != 1854 {
		t.Errorf("available sum = %d, want 1854", available)
	}
}

func TestResolveMarketAlreadyResolved(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	market, _ := settleFixture(t, env)
	ctx := context.Background()

	req := ResolveRequest{
		MarketID:        market.ID,
		WinningOptionID: "yes",
		Evidence:        validEvidence(),
		AdminID:         admin.ID,
	}
	if _, err := env.resolution.ResolveMarket(ctx, req); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	before, _, _ := env.store.Balances().SumAll(ctx)

	req.WinningOptionID = "no"
	_, err := env.resolution.ResolveMarket(ctx, req)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second resolve: got %v, want ErrAlreadyResolved", err)
	}

	after, _, _ := env.store.Balances().SumAll(ctx)
	if after != before {
		t.Errorf("second resolve moved tokens: %d -> %d", before, after)
	}
}

func TestResolveMarketAuthorization(t *testing.T) {
	env := newTestEnv(t)
	market, _ := settleFixture(t, env)
	ctx := context.Background()

	regular := models.User{ID: "u-regular", Username: "regular", Email: "r@example.com", Role: "user"}
	env.store.PutUser(regular)

	for _, adminID := range []string{"", regular.ID, "ghost"} {
		_, err := env.resolution.ResolveMarket(ctx, ResolveRequest{
			MarketID:        market.ID,
			WinningOptionID: "yes",
			Evidence:        validEvidence(),
			AdminID:         adminID,
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("admin %q: got %v, want ErrUnauthorized", adminID, err)
		}
	}

	b := env.balance(t, "alice")
	if b.CommittedTokens != 300 {
		t.Errorf("rejected resolve touched balances: %+v", b)
	}
}

func TestResolveMarketEvidenceValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	market, _ := settleFixture(t, env)
	ctx := context.Background()

	cases := []struct {
		name     string
		evidence []models.Evidence
	}{
		{"empty", nil},
		{"blank content", []models.Evidence{{Type: models.EvidenceDescription, Content: "   "}}},
		{"relative url", []models.Evidence{{Type: models.EvidenceURL, Content: "/just/a/path"}}},
		{"unknown type", []models.Evidence{{Type: "tweet", Content: "trust me"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.resolution.ResolveMarket(ctx, ResolveRequest{
				MarketID:        market.ID,
				WinningOptionID: "yes",
				Evidence:        tc.evidence,
				AdminID:         admin.ID,
			})
			if !errors.Is(err, ErrInvalidEvidence) {
				t.Errorf("got %v, want ErrInvalidEvidence", err)
			}
		})
	}
}

func TestResolveMarketStatusGating(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	ctx := context.Background()

	for _, status := range []models.MarketStatus{models.MarketDraft, models.MarketCancelled} {
		market := env.seedMarket(t, "creator", status)
		_, err := env.resolution.ResolveMarket(ctx, ResolveRequest{
			MarketID:        market.ID,
			WinningOptionID: "yes",
			Evidence:        validEvidence(),
			AdminID:         admin.ID,
		})
		if !errors.Is(err, ErrMarketInactive) {
			t.Errorf("status %s: got %v, want ErrMarketInactive", status, err)
		}
	}

	// A market already moved to pending_resolution resolves fine.
	market := env.seedMarket(t, "creator", models.MarketPendingResolution)
	if _, err := env.resolution.ResolveMarket(ctx, ResolveRequest{
		MarketID:        market.ID,
		WinningOptionID: "yes",
		Evidence:        validEvidence(),
		AdminID:         admin.ID,
	}); err != nil {
		t.Errorf("pending_resolution should be resolvable: %v", err)
	}

	_, err := env.resolution.ResolveMarket(ctx, ResolveRequest{
		MarketID:        "no-such-market",
		WinningOptionID: "yes",
		Evidence:        validEvidence(),
		AdminID:         admin.ID,
	})
	if !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("got %v, want ErrMarketNotFound", err)
	}
}

func TestResolveMarketInvalidFeePassthrough(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	market, _ := settleFixture(t, env)

	_, err := env.resolution.ResolveMarket(context.Background(), ResolveRequest{
		MarketID:        market.ID,
		WinningOptionID: "yes",
		Evidence:        validEvidence(),
		AdminID:         admin.ID,
		CreatorFeePct:   0.5,
	})
	if !errors.Is(err, ErrInvalidCreatorFee) {
		t.Fatalf("got %v, want ErrInvalidCreatorFee", err)
	}
	if errors.Is(err, ErrTransactionFailed) {
		t.Errorf("taxonomy error should not be wrapped as transaction failure: %v", err)
	}
}

func TestPreviewPayoutDoesNotMutate(t *testing.T) {
	env := newTestEnv(t)
	market, _ := settleFixture(t, env)
	ctx := context.Background()

	preview, err := env.resolution.PreviewPayout(ctx, market.ID, "yes", 0)
	if err != nil {
		t.Fatalf("PreviewPayout: %v", err)
	}
	if preview.WinnerPool != 837 || preview.WinnerCount != 2 {
		t.Errorf("preview = %+v", preview)
	}

	b := env.balance(t, "alice")
	if b.AvailableTokens != 700 || b.CommittedTokens != 300 {
		t.Errorf("preview moved tokens: %+v", b)
	}
	m, _ := env.store.Markets().Get(ctx, market.ID)
	if m.Status != models.MarketActive {
		t.Errorf("preview changed market status to %s", m.Status)
	}
}

func TestCancelMarketRefundsEveryone(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	market, _ := settleFixture(t, env)
	ctx := context.Background()

	results, err := env.resolution.CancelMarket(ctx, market.ID, admin.ID, "event called off")
	if err != nil {
		t.Fatalf("CancelMarket: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 refunds, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != "compensated" {
			t.Errorf("refund %+v not compensated", r)
		}
	}

	for user, want := range map[string]int64{"alice": 1000, "bob": 500, "carol": 400} {
		b := env.balance(t, user)
		if b.AvailableTokens != want || b.CommittedTokens != 0 {
			t.Errorf("%s available/committed = %d/%d, want %d/0", user, b.AvailableTokens, b.CommittedTokens, want)
		}
	}

	m, _ := env.store.Markets().Get(ctx, market.ID)
	if m.Status != models.MarketCancelled {
		t.Errorf("market status = %s, want cancelled", m.Status)
	}
}

func TestCancelMarketRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	market, _ := settleFixture(t, env)

	_, err := env.resolution.CancelMarket(context.Background(), market.ID, "nobody", "because")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestCancelMarketAfterResolutionRejected(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	market, _ := settleFixture(t, env)
	ctx := context.Background()

	if _, err := env.resolution.ResolveMarket(ctx, ResolveRequest{
		MarketID:        market.ID,
		WinningOptionID: "yes",
		Evidence:        validEvidence(),
		AdminID:         admin.ID,
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err := env.resolution.CancelMarket(ctx, market.ID, admin.ID, "too late")
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("got %v, want ErrAlreadyResolved", err)
	}
}

func TestRollbackResolutionRestoresPreSettlementState(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	market, ids := settleFixture(t, env)
	ctx := context.Background()

	if _, err := env.resolution.ResolveMarket(ctx, ResolveRequest{
		MarketID:        market.ID,
		WinningOptionID: "yes",
		Evidence:        validEvidence(),
		AdminID:         admin.ID,
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := env.resolution.RollbackResolution(ctx, market.ID, admin.ID, "disputed outcome"); err != nil {
		t.Fatalf("RollbackResolution: %v", err)
	}

	// Balances back to the post-commit, pre-settlement state.
	for user, want := range map[string]struct{ available, committed int64 }{
		"alice":   {700, 300},
		"bob":     {300, 200},
		"carol":   {0, 400},
		"creator": {0, 0},
	} {
		b := env.balance(t, user)
		if b.AvailableTokens != want.available || b.CommittedTokens != want.committed {
			t.Errorf("%s available/committed = %d/%d, want %d/%d",
				user, b.AvailableTokens, b.CommittedTokens, want.available, want.committed)
		}
	}

	for user, id := range ids {
		if got := env.commitment(t, id).Status; got != models.CommitmentActive {
			t.Errorf("%s commitment = %s, want active", user, got)
		}
	}

	resolution, err := env.store.Resolutions().GetByMarket(ctx, market.ID)
	if err != nil {
		t.Fatalf("resolution record: %v", err)
	}
	if resolution.Status != models.ResolutionCancelled {
		t.Errorf("resolution status = %s, want cancelled", resolution.Status)
	}

	m, _ := env.store.Markets().Get(ctx, market.ID)
	if m.Status != models.MarketPendingResolution {
		t.Errorf("market status = %s, want pending_resolution", m.Status)
	}
	for _, o := range m.Options {
		if o.IsWinner {
			t.Errorf("winner flag on %s survived the rollback", o.ID)
		}
	}
}

// retryStore runs every transaction twice: a first attempt that executes the
// closure fully but aborts, then the real one. This is the shape of a
// serialization-failure retry.
type retryStore struct {
	repo.Store
}

func (s retryStore) WithTx(ctx context.Context, fn func(repo.Store) error) error {
	_ = s.Store.WithTx(ctx, func(tx repo.Store) error {
		_ = fn(tx)
		return errors.New("serialization conflict")
	})
	return s.Store.WithTx(ctx, fn)
}

func TestResolveMarketRetriedClosureCountsOnce(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	market, _ := settleFixture(t, env)
	ctx := context.Background()

	store := retryStore{Store: env.store}
	balances := NewBalanceService(store)
	rollback := NewRollbackService(store, balances, env.pool)
	resolution := NewResolutionService(store, balances, rollback, StoreAdminChecker{Store: store})

	before := testutil.ToFloat64(metrics.PayoutTokensTotal)
	if _, err := resolution.ResolveMarket(ctx, ResolveRequest{
		MarketID:        market.ID,
		WinningOptionID: "yes",
		Evidence:        validEvidence(),
		AdminID:         admin.ID,
	}); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}

	// The aborted first attempt must leave no trace in the metrics (836 paid
	// out once) or the balances.
	if got := testutil.ToFloat64(metrics.PayoutTokensTotal) - before; got != 836 {
		t.Errorf("payout tokens counted = %v, want 836", got)
	}
	alice := env.balance(t, "alice")
	if alice.AvailableTokens != 1202 || alice.CommittedTokens != 0 {
		t.Errorf("alice available/committed = %d/%d, want 1202/0", alice.AvailableTokens, alice.CommittedTokens)
	}
}

func TestRollbackResolutionNothingToRollback(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)
	market, _ := settleFixture(t, env)

	err := env.resolution.RollbackResolution(context.Background(), market.ID, admin.ID, "nothing happened yet")
	if !errors.Is(err, ErrNothingToRollback) {
		t.Fatalf("got %v, want ErrNothingToRollback", err)
	}
}
