package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowtrade/internal/domain"
)

func testSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		FeeRate:      0.0006,
		SlippageRate: 0.0001,
		MaxTradeAge:  4 * time.Hour,
	}
}

type simFixture struct {
	sim      *ShadowSimulator
	trades   *memTradeRepo
	accounts *memAccountRepo
	examples *memExampleRepo
	notifier *recordingNotifier
	account  *domain.ShadowAccountState
}

func newSimFixture(t *testing.T, cfg SimulatorConfig) *simFixture {
	t.Helper()

	trades := newMemTradeRepo()
	accounts := newMemAccountRepo()
	examples := newMemExampleRepo()
	notifier := &recordingNotifier{}

	account := &domain.ShadowAccountState{
		AccountID:     "primary",
		InitialEquity: 1000,
		CurrentEquity: 1000,
	}
	require.NoError(t, accounts.Create(context.Background(), account))

	return &simFixture{
		sim:      NewShadowSimulator(trades, accounts, examples, notifier, cfg),
		trades:   trades,
		accounts: accounts,
		examples: examples,
		notifier: notifier,
		account:  account,
	}
}

func validTrace(t *testing.T) string {
	t.Helper()
	trace, err := json.Marshal(decisionTrace{
		Inputs: domain.InferenceRequest{
			MarketContext: "BTCUSDT last price $100.00",
			RiskContext:   "Trend: NEUTRAL",
		},
		Plan: json.RawMessage(`{"direction":"LONG","confidence":0.8}`),
	})
	require.NoError(t, err)
	return string(trace)
}

func TestOpenTradeAdversarialFill(t *testing.T) {
	f := newSimFixture(t, testSimulatorConfig())

	signal := &domain.TradeSignal{
		Instrument: "BTCUSDT",
		Direction:  domain.DirectionLong,
		Confidence: 0.8,
		EntryHint:  ptr(100),
	}
	decision := &domain.RiskDecision{
		Approved:             true,
		MaxLeverage:          1,
		PositionSizeFraction: 0.1,
		StopLossPrice:        98,
		TakeProfitPrice:      105,
	}

	trade, err := f.sim.OpenTrade(context.Background(), f.account, signal, decision, 100, validTrace(t))
	require.NoError(t, err)

	// A long fills above the quoted price.
	assert.InDelta(t, 100.01, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 100.0/100.01, trade.Size, 1e-9)
	assert.InDelta(t, trade.Size*100*0.0001, trade.SlippageUSD, 1e-12)
	assert.Equal(t, domain.ShadowStatusOpen, trade.Status)
	assert.Equal(t, 98.0, *trade.StopLoss)
	assert.Equal(t, 105.0, *trade.TakeProfit)

	saved, err := f.trades.GetByID(context.Background(), trade.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, domain.ShadowStatusOpen, saved.Status)
}

func TestOpenTradeShortFillsBelowQuote(t *testing.T) {
	f := newSimFixture(t, testSimulatorConfig())

	trade, err := f.sim.OpenTrade(context.Background(), f.account,
		&domain.TradeSignal{
			Instrument: "BTCUSDT",
			Direction:  domain.DirectionShort,
			Confidence: 0.8,
			EntryHint:  ptr(100),
		},
		&domain.RiskDecision{Approved: true, MaxLeverage: 1, PositionSizeFraction: 0.1},
		100, validTrace(t))
	require.NoError(t, err)

	assert.InDelta(t, 99.99, trade.EntryPrice, 1e-9)
}

func TestCloseTradeEconomics(t *testing.T) {
	f := newSimFixture(t, testSimulatorConfig())
	ctx := context.Background()

	trade, err := f.sim.OpenTrade(ctx, f.account,
		&domain.TradeSignal{
			Instrument: "BTCUSDT",
			Direction:  domain.DirectionLong,
			Confidence: 0.8,
			EntryHint:  ptr(100),
		},
		&domain.RiskDecision{Approved: true, MaxLeverage: 1, PositionSizeFraction: 0.1, TakeProfitPrice: 110},
		100, validTrace(t))
	require.NoError(t, err)

	entrySlippage := trade.SlippageUSD

	require.NoError(t, f.sim.CloseTrade(ctx, f.account, trade, 110, domain.CloseReasonTakeProfit))

	// A long exits below the quoted price.
	exitFill := 110 * (1 - 0.0001)
	exitSlippage := trade.Size * 110 * 0.0001
	fees := trade.Size * exitFill * 0.0006
	net := trade.Size*(exitFill-100.01) - fees

	assert.InDelta(t, exitFill, *trade.ExitPrice, 1e-9)
	assert.InDelta(t, fees, trade.FeesUSD, 1e-9)
	assert.InDelta(t, entrySlippage+exitSlippage, trade.SlippageUSD, 1e-9)
	assert.InDelta(t, net, *trade.PnLUSD, 1e-9)
	assert.Equal(t, domain.ShadowStatusClosed, trade.Status)
	assert.Equal(t, domain.CloseReasonTakeProfit, *trade.CloseReason)

	// Ledger invariant holds exactly and the equity delta is the net result.
	acct, err := f.accounts.Get(ctx, "primary")
	require.NoError(t, err)
	assert.InDelta(t, acct.InitialEquity+acct.TotalPnL-acct.TotalFees-acct.TotalSlippage,
		acct.CurrentEquity, 1e-9)
	assert.InDelta(t, net, acct.CurrentEquity-acct.InitialEquity, 1e-9)
	assert.Equal(t, 1, acct.WinningTrades)
	assert.Equal(t, 0, acct.LosingTrades)

	// Profitable trade is retained as an optimization example.
	examples, err := f.examples.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, trade.ID, examples[0].TradeID)
	assert.InDelta(t, net, examples[0].Score, 1e-9)
	assert.Equal(t, "BTCUSDT last price $100.00", examples[0].MarketContext)
	assert.JSONEq(t, `{"direction":"LONG","confidence":0.8}`, examples[0].PlanJSON)

	assert.Equal(t, 1, f.notifier.closed)
}

func TestCloseTradeLossSkipsExample(t *testing.T) {
	f := newSimFixture(t, testSimulatorConfig())
	ctx := context.Background()

	trade, err := f.sim.OpenTrade(ctx, f.account,
		&domain.TradeSignal{
			Instrument: "BTCUSDT",
			Direction:  domain.DirectionLong,
			Confidence: 0.8,
			EntryHint:  ptr(100),
		},
		&domain.RiskDecision{Approved: true, MaxLeverage: 1, PositionSizeFraction: 0.1, StopLossPrice: 95},
		100, validTrace(t))
	require.NoError(t, err)

	require.NoError(t, f.sim.CloseTrade(ctx, f.account, trade, 95, domain.CloseReasonStopLoss))

	require.NotNil(t, trade.PnLUSD)
	assert.Negative(t, *trade.PnLUSD)

	acct, err := f.accounts.Get(ctx, "primary")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.WinningTrades)
	assert.Equal(t, 1, acct.LosingTrades)
	assert.InDelta(t, acct.InitialEquity+acct.TotalPnL-acct.TotalFees-acct.TotalSlippage,
		acct.CurrentEquity, 1e-9)

	examples, err := f.examples.GetRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, examples)
}

func TestCloseTradeIdempotent(t *testing.T) {
	f := newSimFixture(t, testSimulatorConfig())
	ctx := context.Background()

	trade, err := f.sim.OpenTrade(ctx, f.account,
		&domain.TradeSignal{
			Instrument: "BTCUSDT",
			Direction:  domain.DirectionLong,
			Confidence: 0.8,
			EntryHint:  ptr(100),
		},
		&domain.RiskDecision{Approved: true, MaxLeverage: 1, PositionSizeFraction: 0.1},
		100, validTrace(t))
	require.NoError(t, err)

	require.NoError(t, f.sim.CloseTrade(ctx, f.account, trade, 105, domain.CloseReasonTakeProfit))

	before, err := f.accounts.Get(ctx, "primary")
	require.NoError(t, err)

	err = f.sim.CloseTrade(ctx, f.account, trade, 120, domain.CloseReasonTakeProfit)
	var stateErr *domain.StateError
	require.ErrorAs(t, err, &stateErr)

	after, err := f.accounts.Get(ctx, "primary")
	require.NoError(t, err)
	assert.Equal(t, before.CurrentEquity, after.CurrentEquity)
	assert.Equal(t, before.WinningTrades, after.WinningTrades)
	assert.Equal(t, before.TotalFees, after.TotalFees)
}

func openTradeRow(accountID, instrument string, side domain.Direction, stop, take *float64, openedAt time.Time) *domain.ShadowTrade {
	return &domain.ShadowTrade{
		ID:         uuid.New(),
		AccountID:  accountID,
		Instrument: instrument,
		Side:       side,
		EntryPrice: 100,
		StopLoss:   stop,
		TakeProfit: take,
		Size:       1,
		Leverage:   1,
		Status:     domain.ShadowStatusOpen,
		OpenedAt:   openedAt,
	}
}

func TestSettleOpenTradesThresholds(t *testing.T) {
	f := newSimFixture(t, testSimulatorConfig())
	ctx := context.Background()

	now := time.Now().UTC()
	hit := openTradeRow("primary", "BTCUSDT", domain.DirectionLong, ptr(95), ptr(105), now)
	miss := openTradeRow("primary", "BTCUSDT", domain.DirectionLong, ptr(95), ptr(120), now)
	require.NoError(t, f.trades.Save(ctx, hit))
	require.NoError(t, f.trades.Save(ctx, miss))

	require.NoError(t, f.sim.SettleOpenTrades(ctx, f.account, "BTCUSDT", 106))

	closed, err := f.trades.GetByID(ctx, hit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShadowStatusClosed, closed.Status)
	assert.Equal(t, domain.CloseReasonTakeProfit, *closed.CloseReason)
	// Filled at the threshold, not at the observed price.
	assert.InDelta(t, 105*(1-0.0001), *closed.ExitPrice, 1e-9)

	stillOpen, err := f.trades.GetByID(ctx, miss.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShadowStatusOpen, stillOpen.Status)
}

func TestSettleOpenTradesMaxAge(t *testing.T) {
	f := newSimFixture(t, testSimulatorConfig())
	ctx := context.Background()

	stale := openTradeRow("primary", "BTCUSDT", domain.DirectionLong, nil, nil,
		time.Now().UTC().Add(-5*time.Hour))
	fresh := openTradeRow("primary", "BTCUSDT", domain.DirectionLong, nil, nil,
		time.Now().UTC().Add(-time.Hour))
	guarded := openTradeRow("primary", "BTCUSDT", domain.DirectionLong, ptr(95), nil,
		time.Now().UTC().Add(-6*time.Hour))
	require.NoError(t, f.trades.Save(ctx, stale))
	require.NoError(t, f.trades.Save(ctx, fresh))
	require.NoError(t, f.trades.Save(ctx, guarded))

	require.NoError(t, f.sim.SettleOpenTrades(ctx, f.account, "BTCUSDT", 101))

	closed, err := f.trades.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShadowStatusClosed, closed.Status)
	assert.Equal(t, domain.CloseReasonMaxAge, *closed.CloseReason)

	// Young trades and trades with a stop in place are left alone.
	for _, id := range []uuid.UUID{fresh.ID, guarded.ID} {
		trade, err := f.trades.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ShadowStatusOpen, trade.Status)
	}
}

func TestCloseAll(t *testing.T) {
	f := newSimFixture(t, testSimulatorConfig())
	ctx := context.Background()

	now := time.Now().UTC()
	first := openTradeRow("primary", "BTCUSDT", domain.DirectionLong, ptr(95), ptr(120), now)
	second := openTradeRow("primary", "BTCUSDT", domain.DirectionShort, ptr(110), ptr(90), now)
	other := openTradeRow("primary", "ETHUSDT", domain.DirectionLong, ptr(95), ptr(120), now)
	require.NoError(t, f.trades.Save(ctx, first))
	require.NoError(t, f.trades.Save(ctx, second))
	require.NoError(t, f.trades.Save(ctx, other))

	require.NoError(t, f.sim.CloseAll(ctx, f.account, "BTCUSDT", 101))

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		trade, err := f.trades.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ShadowStatusClosed, trade.Status)
		assert.Equal(t, domain.CloseReasonFlatSignal, *trade.CloseReason)
	}

	untouched, err := f.trades.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShadowStatusOpen, untouched.Status)
}
