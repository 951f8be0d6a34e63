package http

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"shadowtrade/internal/domain"
)

// ShadowHandler exposes the shadow ledger over HTTP: account performance,
// trade history, retained optimization examples and the risk audit trail.
type ShadowHandler struct {
	accounts  domain.ShadowAccountRepository
	trades    domain.ShadowTradeRepository
	examples  domain.OptimizationExampleRepository
	audits    domain.RiskAuditRepository
	execution domain.ExecutionService
	accountID string
}

// NewShadowHandler creates a new ShadowHandler
func NewShadowHandler(
	accounts domain.ShadowAccountRepository,
	trades domain.ShadowTradeRepository,
	examples domain.OptimizationExampleRepository,
	audits domain.RiskAuditRepository,
	execution domain.ExecutionService,
	accountID string,
) *ShadowHandler {
	return &ShadowHandler{
		accounts:  accounts,
		trades:    trades,
		examples:  examples,
		audits:    audits,
		execution: execution,
		accountID: accountID,
	}
}

// AccountOutput represents shadow account performance in API responses
type AccountOutput struct {
	AccountID       string  `json:"account_id"`
	InitialEquity   float64 `json:"initial_equity"`
	CurrentEquity   float64 `json:"current_equity"`
	EquityChangePct float64 `json:"equity_change_pct"`
	TotalPnL        float64 `json:"total_pnl"`
	TotalFees       float64 `json:"total_fees"`
	TotalSlippage   float64 `json:"total_slippage"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	OpenTrades      int     `json:"open_trades"`
}

// GetAccount returns the shadow account's performance summary
// GET /api/shadow/account
func (h *ShadowHandler) GetAccount(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	account, err := h.accounts.Get(ctx, h.accountID)
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load shadow account", err)
	}
	if account == nil {
		return NotFoundResponse(c, "No shadow account yet")
	}

	openCount, err := h.trades.CountOpen(ctx, h.accountID)
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to count open trades", err)
	}

	return SuccessResponse(c, AccountOutput{
		AccountID:       account.AccountID,
		InitialEquity:   account.InitialEquity,
		CurrentEquity:   account.CurrentEquity,
		EquityChangePct: account.EquityChangePct(),
		TotalPnL:        account.TotalPnL,
		TotalFees:       account.TotalFees,
		TotalSlippage:   account.TotalSlippage,
		WinningTrades:   account.WinningTrades,
		LosingTrades:    account.LosingTrades,
		WinRate:         account.WinRate(),
		OpenTrades:      openCount,
	})
}

// GetTrades returns the most recently opened shadow trades
// GET /api/shadow/trades?limit=50
func (h *ShadowHandler) GetTrades(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	trades, err := h.trades.GetRecent(ctx, h.accountID, limitParam(c, 50))
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load shadow trades", err)
	}

	return SuccessResponse(c, trades)
}

// GetOpenTrades returns all currently open shadow trades
// GET /api/shadow/trades/open
func (h *ShadowHandler) GetOpenTrades(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	trades, err := h.trades.GetOpen(ctx, h.accountID)
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load open shadow trades", err)
	}

	return SuccessResponse(c, trades)
}

// GetExamples returns the most recent retained optimization examples
// GET /api/shadow/examples?limit=50
func (h *ShadowHandler) GetExamples(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	examples, err := h.examples.GetRecent(ctx, limitParam(c, 50))
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load optimization examples", err)
	}

	return SuccessResponse(c, examples)
}

// GetAudits returns the most recent risk decision audit rows
// GET /api/risk/audits?limit=50
func (h *ShadowHandler) GetAudits(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	audits, err := h.audits.GetRecent(ctx, limitParam(c, 50))
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load risk audits", err)
	}

	return SuccessResponse(c, audits)
}

// ResetRequest represents the ledger reset payload
type ResetRequest struct {
	Equity float64 `json:"equity"`
}

// Reset re-seeds the shadow account. When no equity is given the real
// account's current equity is used, mirroring the initial seeding. Trade
// history is preserved; the ledger never resyncs implicitly.
// POST /api/shadow/reset
func (h *ShadowHandler) Reset(c echo.Context) error {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}
	if req.Equity < 0 {
		return BadRequestResponse(c, "Equity must be non-negative")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	equity := req.Equity
	if equity == 0 {
		acct, err := h.execution.AccountState(ctx)
		if err != nil {
			return InternalServerErrorResponse(c, "Failed to fetch real account equity", err)
		}
		equity = acct.Equity
	}

	if err := h.accounts.Reset(ctx, h.accountID, equity); err != nil {
		return InternalServerErrorResponse(c, "Failed to reset shadow account", err)
	}

	return SuccessMessageResponse(c, "Shadow account reset", map[string]interface{}{
		"account_id": h.accountID,
		"equity":     equity,
	})
}

func (h *ShadowHandler) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 10*time.Second)
}

func limitParam(c echo.Context, fallback int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
