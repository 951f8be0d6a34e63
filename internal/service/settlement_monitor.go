package service

import (
	"context"
	"fmt"
	"log"

	"shadowtrade/internal/domain"
)

// SettlementMonitor checks open shadow trades against live prices between
// decision cycles, so stops and targets fill near the moment the level is
// crossed instead of waiting for the next cycle. Prices are fetched in one
// batch outside the ledger lock; mutations happen inside it.
type SettlementMonitor struct {
	market       domain.MarketDataService
	simulator    *ShadowSimulator
	accounts     domain.ShadowAccountRepository
	trades       domain.ShadowTradeRepository
	orchestrator *ShadowOrchestrator
	accountID    string
}

// NewSettlementMonitor creates a new SettlementMonitor
func NewSettlementMonitor(
	market domain.MarketDataService,
	simulator *ShadowSimulator,
	accounts domain.ShadowAccountRepository,
	trades domain.ShadowTradeRepository,
	orchestrator *ShadowOrchestrator,
	accountID string,
) *SettlementMonitor {
	return &SettlementMonitor{
		market:       market,
		simulator:    simulator,
		accounts:     accounts,
		trades:       trades,
		orchestrator: orchestrator,
		accountID:    accountID,
	}
}

// RunSettlementPass settles every open trade whose stop or target is crossed
// by the latest price. A pass with no open trades is a cheap no-op.
func (m *SettlementMonitor) RunSettlementPass(ctx context.Context) error {
	open, err := m.trades.GetOpen(ctx, m.accountID)
	if err != nil {
		return fmt.Errorf("failed to load open shadow trades: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var instruments []string
	for _, t := range open {
		if !seen[t.Instrument] {
			seen[t.Instrument] = true
			instruments = append(instruments, t.Instrument)
		}
	}

	prices, err := m.market.FetchRealTimePrices(ctx, instruments)
	if err != nil {
		return fmt.Errorf("failed to fetch settlement prices: %w", err)
	}

	var passErr error
	m.orchestrator.WithLedgerLock(m.accountID, func() {
		// Reload inside the lock: a shadow cycle may have settled trades
		// while prices were being fetched.
		account, err := m.accounts.Get(ctx, m.accountID)
		if err != nil {
			passErr = fmt.Errorf("failed to load shadow account: %w", err)
			return
		}
		if account == nil {
			return
		}

		for _, instrument := range instruments {
			price, ok := prices[instrument]
			if !ok || price <= 0 {
				log.Printf("[WARN]  Monitor: no price for %s, skipping", instrument)
				continue
			}
			if err := m.simulator.SettleOpenTrades(ctx, account, instrument, price); err != nil {
				log.Printf("[WARN]  Monitor: settlement failed for %s: %v", instrument, err)
			}
		}
	})

	return passErr
}
