// Package memory is a map-backed repository.Store used by tests and local
// development. WithTx gives the same all-or-nothing semantics as the Postgres
// store by snapshotting state and restoring it when fn fails.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/google/uuid"
)

type data struct {
	balances     map[string]models.UserBalance
	transactions map[string]models.TokenTransaction
	commitments  map[string]models.PredictionCommitment
	markets      map[string]models.Market
	resolutions  map[string]models.MarketResolution
	users        map[string]models.User
	audits       []models.AuditLog
}

func newData() *data {
	return &data{
		balances:     map[string]models.UserBalance{},
		transactions: map[string]models.TokenTransaction{},
		commitments:  map[string]models.PredictionCommitment{},
		markets:      map[string]models.Market{},
		resolutions:  map[string]models.MarketResolution{},
		users:        map[string]models.User{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.balances {
		c.balances[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.commitments {
		c.commitments[k] = v
	}
	for k, v := range d.markets {
		m := v
		m.Options = append([]models.MarketOption(nil), v.Options...)
		c.markets[k] = m
	}
	for k, v := range d.resolutions {
		c.resolutions[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	c.audits = append([]models.AuditLog(nil), d.audits...)
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	d    *data
	inTx bool
}

func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, txMu: &sync.Mutex{}, d: newData()}
}

func (s *Store) Balances() repo.Balances         { return balances{s} }
func (s *Store) Transactions() repo.Transactions { return transactions{s} }
func (s *Store) Commitments() repo.Commitments   { return commitments{s} }
func (s *Store) Markets() repo.Markets           { return markets{s} }
func (s *Store) Resolutions() repo.Resolutions   { return resolutions{s} }
func (s *Store) Users() repo.Users               { return users{s} }
func (s *Store) AuditLogs() repo.AuditLogs       { return audits{s} }

// WithTx serializes transactions and rolls the whole data set back when fn
// fails, so no partial write is ever observable.
func (s *Store) WithTx(ctx context.Context, fn func(repo.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	err := fn(&Store{mu: s.mu, txMu: s.txMu, d: s.d, inTx: true})
	if err != nil {
		s.mu.Lock()
		*s.d = *snapshot
		s.mu.Unlock()
	}
	return err
}

// ---------- balances ----------

type balances struct{ s *Store }

func (r balances) Get(ctx context.Context, userID string) (models.UserBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.d.balances[userID]
	if !ok {
		return models.UserBalance{}, repo.ErrNotFound
	}
	return b, nil
}

func (r balances) Create(ctx context.Context, b models.UserBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.balances[b.UserID]; ok {
		return nil
	}
	r.s.d.balances[b.UserID] = b
	return nil
}

func (r balances) Update(ctx context.Context, b models.UserBalance) (models.UserBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.d.balances[b.UserID]
	if !ok {
		return models.UserBalance{}, repo.ErrNotFound
	}
	if cur.Version != b.Version {
		return models.UserBalance{}, repo.ErrVersionConflict
	}
	b.Version++
	b.LastUpdated = time.Now()
	r.s.d.balances[b.UserID] = b
	return b, nil
}

func (r balances) SumAll(ctx context.Context) (int64, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var available, committed int64
	for _, b := range r.s.d.balances {
		available += b.AvailableTokens
		committed += b.CommittedTokens
	}
	return available, committed, nil
}

// ---------- transactions ----------

type transactions struct{ s *Store }

func (r transactions) Create(ctx context.Context, t models.TokenTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.transactions[t.ID] = t
	return nil
}

func (r transactions) GetByID(ctx context.Context, id string) (models.TokenTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.d.transactions[id]
	if !ok {
		return models.TokenTransaction{}, repo.ErrNotFound
	}
	return t, nil
}

func (r transactions) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.TokenTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TokenTransaction
	for _, t := range r.s.d.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sortTxns(out)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r transactions) ListByRelated(ctx context.Context, relatedID string) ([]models.TokenTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TokenTransaction
	for _, t := range r.s.d.transactions {
		if t.RelatedID != nil && *t.RelatedID == relatedID {
			out = append(out, t)
		}
	}
	sortTxns(out)
	return out, nil
}

func sortTxns(ts []models.TokenTransaction) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].CreatedAt.After(ts[j].CreatedAt) })
}

func (r transactions) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.d.transactions[id]
	if !ok {
		return repo.ErrNotFound
	}
	t.Status = status
	r.s.d.transactions[id] = t
	return nil
}

// ---------- commitments ----------

type commitments struct{ s *Store }

func (r commitments) Create(ctx context.Context, c models.PredictionCommitment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.commitments[c.ID] = c
	return nil
}

func (r commitments) GetByID(ctx context.Context, id string) (models.PredictionCommitment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.d.commitments[id]
	if !ok {
		return models.PredictionCommitment{}, repo.ErrNotFound
	}
	return c, nil
}

func (r commitments) list(filter func(models.PredictionCommitment) bool) []models.PredictionCommitment {
	var out []models.PredictionCommitment
	for _, c := range r.s.d.commitments {
		if filter(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CommittedAt.After(out[j].CommittedAt) })
	return out
}

func (r commitments) ListByUser(ctx context.Context, userID string) ([]models.PredictionCommitment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(c models.PredictionCommitment) bool { return c.UserID == userID }), nil
}

func (r commitments) ListByPrediction(ctx context.Context, predictionID string) ([]models.PredictionCommitment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(c models.PredictionCommitment) bool { return c.PredictionID == predictionID }), nil
}

func (r commitments) ListActiveByPrediction(ctx context.Context, predictionID string) ([]models.PredictionCommitment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(c models.PredictionCommitment) bool {
		return c.PredictionID == predictionID && c.Status == models.CommitmentActive
	}), nil
}

func (r commitments) UpdateStatus(ctx context.Context, id string, status models.CommitmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.d.commitments[id]
	if !ok {
		return repo.ErrNotFound
	}
	c.Status = status
	r.s.d.commitments[id] = c
	return nil
}

func (r commitments) HasOptionCommitment(ctx context.Context, userID, predictionID, optionID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.d.commitments {
		if c.UserID == userID && c.PredictionID == predictionID && c.OptionID == optionID && c.Status == models.CommitmentActive {
			return true, nil
		}
	}
	return false, nil
}

// ---------- markets ----------

type markets struct{ s *Store }

func (r markets) Get(ctx context.Context, id string) (models.Market, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.d.markets[id]
	if !ok {
		return models.Market{}, repo.ErrNotFound
	}
	m.Options = append([]models.MarketOption(nil), m.Options...)
	return m, nil
}

func (r markets) Create(ctx context.Context, m models.Market) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.markets[m.ID] = m
	return nil
}

func (r markets) UpdateStatus(ctx context.Context, id string, status models.MarketStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.d.markets[id]
	if !ok {
		return repo.ErrNotFound
	}
	m.Status = status
	if status == models.MarketResolved {
		now := time.Now()
		m.ResolvedAt = &now
	}
	r.s.d.markets[id] = m
	return nil
}

func (r markets) ApplyCommit(ctx context.Context, marketID, optionID string, tokens int64, newParticipant bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.d.markets[marketID]
	if !ok {
		return repo.ErrNotFound
	}
	found := false
	for i := range m.Options {
		if m.Options[i].ID == optionID {
			m.Options[i].TotalTokens += tokens
			if newParticipant {
				m.Options[i].ParticipantCount++
			}
			found = true
		}
	}
	if !found {
		return repo.ErrNotFound
	}
	m.TotalTokensStaked += tokens
	if newParticipant {
		m.TotalParticipants++
	}
	r.s.d.markets[marketID] = m
	return nil
}

func (r markets) ApplyRollback(ctx context.Context, marketID, optionID string, tokens int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.d.markets[marketID]
	if !ok {
		return repo.ErrNotFound
	}
	for i := range m.Options {
		if m.Options[i].ID == optionID {
			m.Options[i].TotalTokens -= tokens
			if m.Options[i].TotalTokens < 0 {
				m.Options[i].TotalTokens = 0
			}
		}
	}
	m.TotalTokensStaked -= tokens
	if m.TotalTokensStaked < 0 {
		m.TotalTokensStaked = 0
	}
	r.s.d.markets[marketID] = m
	return nil
}

func (r markets) SetWinner(ctx context.Context, marketID, optionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.d.markets[marketID]
	if !ok {
		return repo.ErrNotFound
	}
	for i := range m.Options {
		m.Options[i].IsWinner = m.Options[i].ID == optionID
	}
	r.s.d.markets[marketID] = m
	return nil
}

// ---------- resolutions ----------

type resolutions struct{ s *Store }

func (r resolutions) Create(ctx context.Context, res models.MarketResolution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.resolutions[res.ID] = res
	return nil
}

func (r resolutions) GetByMarket(ctx context.Context, marketID string) (models.MarketResolution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, res := range r.s.d.resolutions {
		if res.MarketID == marketID {
			return res, nil
		}
	}
	return models.MarketResolution{}, repo.ErrNotFound
}

func (r resolutions) UpdateStatus(ctx context.Context, id string, status models.ResolutionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.d.resolutions[id]
	if !ok {
		return repo.ErrNotFound
	}
	res.Status = status
	r.s.d.resolutions[id] = res
	return nil
}

// ---------- users ----------

type users struct{ s *Store }

func (r users) Create(ctx context.Context, username, email, hash, role string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	r.s.d.users[u.ID] = u
	return u, nil
}

func (r users) GetByID(ctx context.Context, id string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r users) GetByEmail(ctx context.Context, email string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

// PutUser stores a user record directly (seed helper).
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.users[u.ID] = u
}

// AuditEntries returns a copy of the audit trail in insertion order.
func (s *Store) AuditEntries() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.d.audits...)
}

// ---------- audit logs ----------

type audits struct{ s *Store }

func (r audits) Create(ctx context.Context, l models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.CreatedAt = time.Now()
	r.s.d.audits = append(r.s.d.audits, l)
	return nil
}
