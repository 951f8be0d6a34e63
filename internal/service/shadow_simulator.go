package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"shadowtrade/internal/domain"
)

// SimulatorConfig holds the fill economics and ledger policy.
type SimulatorConfig struct {
	FeeRate                  float64 // round-trip, applied once on notional at close
	SlippageRate             float64 // per side, adversarial
	OptimizationPnLThreshold float64
	MaxTradeAge              time.Duration
}

// ShadowSimulator maintains the virtual account ledger: it opens paper
// trades against live price snapshots, settles them when stop or target is
// crossed, applies the fee and slippage models, and updates equity. It is
// the only writer of ShadowAccountState and ShadowTrade rows; callers must
// hold the account's ledger lock (see ShadowOrchestrator) around mutations.
type ShadowSimulator struct {
	trades   domain.ShadowTradeRepository
	accounts domain.ShadowAccountRepository
	examples domain.OptimizationExampleRepository
	notifier domain.NotificationService
	cfg      SimulatorConfig
}

// NewShadowSimulator creates a new ShadowSimulator
func NewShadowSimulator(
	trades domain.ShadowTradeRepository,
	accounts domain.ShadowAccountRepository,
	examples domain.OptimizationExampleRepository,
	notifier domain.NotificationService,
	cfg SimulatorConfig,
) *ShadowSimulator {
	return &ShadowSimulator{
		trades:   trades,
		accounts: accounts,
		examples: examples,
		notifier: notifier,
		cfg:      cfg,
	}
}

// OpenTrade opens a shadow trade for an approved signal at the current
// market price shifted adversarially by the slippage rate. Sizing follows
// the risk decision applied to the shadow account's own equity, which
// diverges from the real account over time.
func (s *ShadowSimulator) OpenTrade(
	ctx context.Context,
	account *domain.ShadowAccountState,
	signal *domain.TradeSignal,
	decision *domain.RiskDecision,
	marketPrice float64,
	decisionContext string,
) (*domain.ShadowTrade, error) {
	quoted := marketPrice
	if signal.EntryHint != nil && *signal.EntryHint > 0 {
		quoted = *signal.EntryHint
	}
	if quoted <= 0 {
		return nil, &domain.ValidationError{Field: "entry_price", Reason: "no positive price to open against"}
	}

	// Worse fill than quoted: a long buys above the quote, a short sells
	// below it.
	fill := quoted * (1 + signal.Direction.Sign()*s.cfg.SlippageRate)

	notional := account.CurrentEquity * decision.PositionSizeFraction * decision.MaxLeverage
	size := notional / fill
	entrySlippage := size * quoted * s.cfg.SlippageRate

	trade := &domain.ShadowTrade{
		ID:              uuid.New(),
		AccountID:       account.AccountID,
		Instrument:      signal.Instrument,
		Side:            signal.Direction,
		Confidence:      signal.Confidence,
		Reasoning:       signal.Reasoning,
		EntryPrice:      fill,
		StopLoss:        nilIfZero(decision.StopLossPrice),
		TakeProfit:      nilIfZero(decision.TakeProfitPrice),
		Size:            size,
		Leverage:        decision.MaxLeverage,
		SlippageUSD:     entrySlippage,
		Status:          domain.ShadowStatusOpen,
		DecisionContext: decisionContext,
		OpenedAt:        time.Now().UTC(),
	}

	if err := s.trades.Save(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to save shadow trade: %w", err)
	}

	log.Printf("[Shadow] OPENED %s %s @ %.4f (quoted %.4f) | size %.6f | equity %.2f",
		trade.Side, trade.Instrument, trade.EntryPrice, quoted, trade.Size, account.CurrentEquity)

	return trade, nil
}

// SettleOpenTrades runs one settlement pass for an instrument: every open
// trade whose stop or target is crossed by the current price closes at that
// threshold, slippage-adjusted. Trades carrying neither level are closed at
// market once they exceed the configured maximum holding age.
func (s *ShadowSimulator) SettleOpenTrades(
	ctx context.Context,
	account *domain.ShadowAccountState,
	instrument string,
	currentPrice float64,
) error {
	if currentPrice <= 0 {
		return nil
	}

	open, err := s.trades.GetOpenByInstrument(ctx, account.AccountID, instrument)
	if err != nil {
		return fmt.Errorf("failed to get open shadow trades: %w", err)
	}

	now := time.Now().UTC()
	for _, trade := range open {
		hit, fill, reason := trade.CheckStopTake(currentPrice)
		if !hit {
			if trade.StopLoss == nil && trade.TakeProfit == nil &&
				s.cfg.MaxTradeAge > 0 && now.Sub(trade.OpenedAt) > s.cfg.MaxTradeAge {
				hit, fill, reason = true, currentPrice, domain.CloseReasonMaxAge
			} else {
				continue
			}
		}

		if err := s.CloseTrade(ctx, account, trade, fill, reason); err != nil {
			// A StateError means the trade raced to CLOSED elsewhere;
			// report and drop, the ledger is unchanged.
			log.Printf("[WARN]  Shadow: failed to close trade %s: %v", trade.ID, err)
		}
	}

	return nil
}

// CloseAll closes every open trade for the instrument at the current market
// price. Used when the signal goes flat.
func (s *ShadowSimulator) CloseAll(
	ctx context.Context,
	account *domain.ShadowAccountState,
	instrument string,
	currentPrice float64,
) error {
	open, err := s.trades.GetOpenByInstrument(ctx, account.AccountID, instrument)
	if err != nil {
		return fmt.Errorf("failed to get open shadow trades: %w", err)
	}

	for _, trade := range open {
		if err := s.CloseTrade(ctx, account, trade, currentPrice, domain.CloseReasonFlatSignal); err != nil {
			log.Printf("[WARN]  Shadow: failed to flat-close trade %s: %v", trade.ID, err)
		}
	}

	return nil
}

// CloseTrade settles one trade at the quoted exit level, applying the
// adversarial slippage model and the round-trip fee on notional at close,
// then folds the result into the account state. Returns a
// *domain.StateError when the trade is already CLOSED; the ledger is left
// unchanged in that case.
func (s *ShadowSimulator) CloseTrade(
	ctx context.Context,
	account *domain.ShadowAccountState,
	trade *domain.ShadowTrade,
	exitQuoted float64,
	reason string,
) error {
	if !trade.IsOpen() {
		return &domain.StateError{
			Entity: "shadow_trade",
			ID:     trade.ID.String(),
			Reason: "trade is already " + trade.Status,
		}
	}

	// Exit fills worse than quoted: a long sells below the quote, a short
	// buys above it.
	exitFill := exitQuoted * (1 - trade.Side.Sign()*s.cfg.SlippageRate)
	exitSlippage := trade.Size * exitQuoted * s.cfg.SlippageRate

	feesUSD := trade.Size * exitFill * s.cfg.FeeRate
	slippageUSD := trade.SlippageUSD + exitSlippage
	netPnL := trade.GrossPnL(exitFill) - feesUSD

	now := time.Now().UTC()
	trade.ExitPrice = &exitFill
	trade.PnLUSD = &netPnL
	trade.FeesUSD = feesUSD
	trade.SlippageUSD = slippageUSD
	trade.Status = domain.ShadowStatusClosed
	trade.CloseReason = &reason
	trade.ClosedAt = &now

	if err := s.trades.Update(ctx, trade); err != nil {
		return fmt.Errorf("failed to update shadow trade: %w", err)
	}

	// The account tracks pre-cost PnL so that
	// equity == initial + pnl - fees - slippage holds exactly.
	grossQuotedPnL := netPnL + feesUSD + slippageUSD
	account.Settle(grossQuotedPnL, feesUSD, slippageUSD)

	if err := s.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to update shadow account: %w", err)
	}

	log.Printf("[Shadow] CLOSED %s %s (%s) | entry %.4f exit %.4f | net %.2f USD | equity %.2f (%+.1f%%)",
		trade.Side, trade.Instrument, reason, trade.EntryPrice, exitFill, netPnL,
		account.CurrentEquity, account.EquityChangePct())

	s.captureExample(ctx, trade, netPnL)

	if s.notifier != nil {
		if err := s.notifier.SendTradeClosed(trade, account); err != nil {
			log.Printf("[WARN]  Shadow: failed to send close notification: %v", err)
		}
	}

	return nil
}

// decisionTrace is the serialized snapshot stored on each trade at open.
type decisionTrace struct {
	Inputs domain.InferenceRequest `json:"inputs"`
	Plan   json.RawMessage         `json:"plan"`
}

// captureExample copies a profitable closed trade into the append-only
// optimization dataset. The source trade is never mutated.
func (s *ShadowSimulator) captureExample(ctx context.Context, trade *domain.ShadowTrade, netPnL float64) {
	if netPnL < s.cfg.OptimizationPnLThreshold || netPnL <= 0 {
		return
	}

	var trace decisionTrace
	if err := json.Unmarshal([]byte(trade.DecisionContext), &trace); err != nil {
		log.Printf("[WARN]  Shadow: trade %s has unparseable decision context, skipping example: %v", trade.ID, err)
		return
	}

	example := &domain.OptimizationExample{
		ID:            uuid.New(),
		TradeID:       trade.ID,
		Instrument:    trade.Instrument,
		MarketContext: trace.Inputs.MarketContext,
		RiskContext:   trace.Inputs.RiskContext,
		PlanJSON:      string(trace.Plan),
		Score:         netPnL,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.examples.Save(ctx, example); err != nil {
		log.Printf("[WARN]  Shadow: failed to save optimization example: %v", err)
		return
	}

	log.Printf("[Shadow] Retained optimization example for trade %s (score %.2f)", trade.ID, netPnL)
}

func nilIfZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
