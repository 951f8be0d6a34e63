package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"shadowtrade/internal/domain"
)

// In-memory collaborators shared by the service tests.

type memTradeRepo struct {
	mu     sync.Mutex
	trades map[uuid.UUID]*domain.ShadowTrade
}

func newMemTradeRepo() *memTradeRepo {
	return &memTradeRepo{trades: make(map[uuid.UUID]*domain.ShadowTrade)}
}

func (r *memTradeRepo) Save(ctx context.Context, trade *domain.ShadowTrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *trade
	r.trades[trade.ID] = &cp
	return nil
}

func (r *memTradeRepo) Update(ctx context.Context, trade *domain.ShadowTrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *trade
	r.trades[trade.ID] = &cp
	return nil
}

func (r *memTradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ShadowTrade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trades[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *memTradeRepo) GetOpen(ctx context.Context, accountID string) ([]*domain.ShadowTrade, error) {
	return r.filter(func(t *domain.ShadowTrade) bool {
		return t.AccountID == accountID && t.Status == domain.ShadowStatusOpen
	}), nil
}

func (r *memTradeRepo) GetOpenByInstrument(ctx context.Context, accountID, instrument string) ([]*domain.ShadowTrade, error) {
	return r.filter(func(t *domain.ShadowTrade) bool {
		return t.AccountID == accountID && t.Instrument == instrument && t.Status == domain.ShadowStatusOpen
	}), nil
}

func (r *memTradeRepo) CountOpen(ctx context.Context, accountID string) (int, error) {
	open, _ := r.GetOpen(ctx, accountID)
	return len(open), nil
}

func (r *memTradeRepo) GetRecent(ctx context.Context, accountID string, limit int) ([]*domain.ShadowTrade, error) {
	all := r.filter(func(t *domain.ShadowTrade) bool { return t.AccountID == accountID })
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedAt.After(all[j].OpenedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memTradeRepo) GetLastClosed(ctx context.Context, accountID string) (*domain.ShadowTrade, error) {
	closed := r.filter(func(t *domain.ShadowTrade) bool {
		return t.AccountID == accountID && t.Status == domain.ShadowStatusClosed
	})
	if len(closed) == 0 {
		return nil, nil
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ClosedAt.After(*closed[j].ClosedAt) })
	return closed[0], nil
}

func (r *memTradeRepo) filter(keep func(*domain.ShadowTrade) bool) []*domain.ShadowTrade {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ShadowTrade
	for _, t := range r.trades {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]domain.ShadowAccountState
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]domain.ShadowAccountState)}
}

func (r *memAccountRepo) Get(ctx context.Context, accountID string) (*domain.ShadowAccountState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[accountID]; ok {
		cp := a
		return &cp, nil
	}
	return nil, nil
}

func (r *memAccountRepo) Create(ctx context.Context, account *domain.ShadowAccountState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.AccountID] = *account
	return nil
}

func (r *memAccountRepo) Update(ctx context.Context, account *domain.ShadowAccountState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.AccountID] = *account
	return nil
}

func (r *memAccountRepo) Reset(ctx context.Context, accountID string, equity float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.accounts[accountID]
	a.AccountID = accountID
	a.InitialEquity = equity
	a.CurrentEquity = equity
	a.TotalPnL = 0
	a.TotalFees = 0
	a.TotalSlippage = 0
	a.WinningTrades = 0
	a.LosingTrades = 0
	r.accounts[accountID] = a
	return nil
}

type memExampleRepo struct {
	mu       sync.Mutex
	examples []*domain.OptimizationExample
}

func newMemExampleRepo() *memExampleRepo {
	return &memExampleRepo{}
}

func (r *memExampleRepo) Save(ctx context.Context, example *domain.OptimizationExample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *example
	r.examples = append(r.examples, &cp)
	return nil
}

func (r *memExampleRepo) GetRecent(ctx context.Context, limit int) ([]*domain.OptimizationExample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.OptimizationExample, len(r.examples))
	copy(out, r.examples)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type recordingNotifier struct {
	mu         sync.Mutex
	opened     int
	closed     int
	rejections []string
	failures   []string
	reports    int
}

func (n *recordingNotifier) SendTradeOpened(trade *domain.ShadowTrade, openCount int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened++
	return nil
}

func (n *recordingNotifier) SendTradeClosed(trade *domain.ShadowTrade, account *domain.ShadowAccountState) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed++
	return nil
}

func (n *recordingNotifier) SendRejection(signal *domain.TradeSignal, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejections = append(n.rejections, reason)
	return nil
}

func (n *recordingNotifier) SendFailure(instrument, stage string, failure error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, stage)
	return nil
}

func (n *recordingNotifier) SendReport(account *domain.ShadowAccountState, openCount int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports++
	return nil
}

// scriptedInference returns canned signals in order, repeating the last one
// once the script is exhausted. Every request is recorded.
type scriptedInference struct {
	mu       sync.Mutex
	script   []*domain.RawSignal
	err      error
	requests []domain.InferenceRequest
	calls    int
}

func (f *scriptedInference) GenerateSignal(ctx context.Context, req *domain.InferenceRequest) (*domain.RawSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, *req)
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	sig := *f.script[idx]
	return &sig, nil
}

type staticMarket struct {
	prices map[string]float64
}

func (m *staticMarket) Snapshot(ctx context.Context, instrument string) (*domain.MarketSnapshot, error) {
	return &domain.MarketSnapshot{
		Instrument: instrument,
		Price:      m.prices[instrument],
		Trend:      domain.TrendNeutral,
	}, nil
}

func (m *staticMarket) FetchRealTimePrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		out[s] = m.prices[s]
	}
	return out, nil
}

func (m *staticMarket) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return m.prices[symbol], nil
}

func ptr(v float64) *float64 { return &v }
