package service

import (
	"context"
	"fmt"
	"log"

	"shadowtrade/internal/domain"
)

// ReportService sends periodic shadow performance summaries: equity,
// cumulative PnL, costs and win rate.
type ReportService struct {
	accounts  domain.ShadowAccountRepository
	trades    domain.ShadowTradeRepository
	notifier  domain.NotificationService
	accountID string
}

// NewReportService creates a new ReportService
func NewReportService(
	accounts domain.ShadowAccountRepository,
	trades domain.ShadowTradeRepository,
	notifier domain.NotificationService,
	accountID string,
) *ReportService {
	return &ReportService{
		accounts:  accounts,
		trades:    trades,
		notifier:  notifier,
		accountID: accountID,
	}
}

// SendPerformanceReport loads the latest ledger state and pushes a summary
// to the notification collaborator. A missing account (no shadow cycle has
// run yet) is not an error.
func (s *ReportService) SendPerformanceReport(ctx context.Context) error {
	account, err := s.accounts.Get(ctx, s.accountID)
	if err != nil {
		return fmt.Errorf("failed to load shadow account: %w", err)
	}
	if account == nil {
		log.Println("[Report] No shadow account yet, skipping report")
		return nil
	}

	openCount, err := s.trades.CountOpen(ctx, s.accountID)
	if err != nil {
		return fmt.Errorf("failed to count open trades: %w", err)
	}

	log.Printf("[Report] Shadow equity $%.2f (%+.1f%%) | win rate %.0f%% | %d open",
		account.CurrentEquity, account.EquityChangePct(), account.WinRate()*100, openCount)

	if s.notifier == nil {
		return nil
	}
	return s.notifier.SendReport(account, openCount)
}
