package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"shadowtrade/internal/domain"
)

// OrchestratorConfig holds shadow scheduling and assertion thresholds.
type OrchestratorConfig struct {
	AccountID                   string
	RetryLimit                  int
	MinEntryConfidence          float64
	BearTrendConfidenceOverride float64
}

// ShadowOrchestrator runs the shadow path for each decision cycle as a
// non-blocking background task. It owns the per-account ledger lock: no two
// in-flight settlement passes may mutate the same account concurrently, and
// a late-arriving task for an older cycle waits for the lock rather than
// overwrite concurrent progress. Each task captures an immutable snapshot
// of its cycle's inputs; results flow back only through the ledger and the
// notification interface.
type ShadowOrchestrator struct {
	inference  domain.InferenceService
	simulator  *ShadowSimulator
	accounts   domain.ShadowAccountRepository
	trades     domain.ShadowTradeRepository
	normalizer *Normalizer
	risk       *RiskEngine
	notifier   domain.NotificationService
	cfg        OrchestratorConfig

	locks sync.Map // account id -> *sync.Mutex
	wg    sync.WaitGroup
}

// NewShadowOrchestrator creates a new ShadowOrchestrator
func NewShadowOrchestrator(
	inference domain.InferenceService,
	simulator *ShadowSimulator,
	accounts domain.ShadowAccountRepository,
	trades domain.ShadowTradeRepository,
	normalizer *Normalizer,
	risk *RiskEngine,
	notifier domain.NotificationService,
	cfg OrchestratorConfig,
) *ShadowOrchestrator {
	return &ShadowOrchestrator{
		inference:  inference,
		simulator:  simulator,
		accounts:   accounts,
		trades:     trades,
		normalizer: normalizer,
		risk:       risk,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// LaunchCycle spawns the shadow work for one decision cycle. The snapshot
// and real equity are captured by value semantics at call time; the task
// may still be running when the next live cycle starts.
func (o *ShadowOrchestrator) LaunchCycle(snapshot *domain.MarketSnapshot, realEquity float64) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.RunCycle(context.Background(), snapshot, realEquity); err != nil {
			log.Printf("ERROR: Shadow cycle failed for %s: %v", snapshot.Instrument, err)
		}
	}()
}

// Wait blocks until all in-flight shadow tasks finish. Called at shutdown
// so no partial shadow trade write is abandoned mid-cycle.
func (o *ShadowOrchestrator) Wait() {
	o.wg.Wait()
}

// RunCycle executes the shadow path synchronously: settle open trades
// against the cycle's price, obtain a shadow-specific signal through the
// assertion-retry loop, and hand it to the simulator. Failures are
// reported and the cycle skipped; they never affect the live path.
func (o *ShadowOrchestrator) RunCycle(ctx context.Context, snapshot *domain.MarketSnapshot, realEquity float64) error {
	mu := o.lockFor(o.cfg.AccountID)
	mu.Lock()
	defer mu.Unlock()

	account, err := o.getOrCreateAccount(ctx, realEquity)
	if err != nil {
		return err
	}

	// Settle outcomes of earlier trades before reasoning about new ones.
	if err := o.simulator.SettleOpenTrades(ctx, account, snapshot.Instrument, snapshot.Price); err != nil {
		log.Printf("[WARN]  Shadow: settlement pass failed: %v", err)
	}

	req, err := o.buildRequest(ctx, account, snapshot)
	if err != nil {
		return err
	}

	raw, err := o.inferWithAssertions(ctx, req, snapshot.Trend)
	if err != nil {
		var assertErr *domain.AssertionError
		if errors.As(err, &assertErr) {
			log.Printf("[Shadow] Skipping cycle: %v", assertErr)
			o.reportFailure(snapshot.Instrument, "inference_assertions", assertErr)
			return nil
		}
		o.reportFailure(snapshot.Instrument, "inference", err)
		return fmt.Errorf("shadow inference failed: %w", err)
	}

	if raw.IsCloseRequest() {
		log.Printf("[Shadow] %s requested for %s: closing all positions", raw.Direction, snapshot.Instrument)
		return o.simulator.CloseAll(ctx, account, snapshot.Instrument, snapshot.Price)
	}

	signal, err := o.normalizer.Normalize(raw, snapshot.Price)
	if err != nil {
		log.Printf("[Shadow] Skipping cycle: %v", err)
		o.reportFailure(snapshot.Instrument, "normalize", err)
		return nil
	}

	if !signal.Actionable() {
		log.Printf("[Shadow] HOLD for %s (confidence %.0f%%)", snapshot.Instrument, signal.Confidence*100)
		return nil
	}

	openMargin, err := o.openMargin(ctx, account.AccountID)
	if err != nil {
		return err
	}

	decision := o.risk.Evaluate(signal, &domain.AccountSnapshot{
		Equity:       account.CurrentEquity,
		OpenExposure: openMargin,
		Trend:        snapshot.Trend,
	})

	if !decision.Approved {
		if o.notifier != nil {
			if err := o.notifier.SendRejection(signal, decision.RejectionReason); err != nil {
				log.Printf("[WARN]  Shadow: failed to send rejection notification: %v", err)
			}
		}
		return nil
	}

	trace, err := json.Marshal(decisionTrace{Inputs: *req, Plan: mustMarshal(raw)})
	if err != nil {
		return fmt.Errorf("failed to serialize decision context: %w", err)
	}

	trade, err := o.simulator.OpenTrade(ctx, account, signal, decision, snapshot.Price, string(trace))
	if err != nil {
		return err
	}

	openCount, err := o.trades.CountOpen(ctx, account.AccountID)
	if err != nil {
		openCount = 0
	}

	if o.notifier != nil {
		if err := o.notifier.SendTradeOpened(trade, openCount); err != nil {
			log.Printf("[WARN]  Shadow: failed to send open notification: %v", err)
		}
	}

	return nil
}

// getOrCreateAccount lazily creates the shadow account on the first cycle,
// seeding both equity fields from the real account's equity at that moment.
// After creation the two ledgers diverge and never resync implicitly.
func (o *ShadowOrchestrator) getOrCreateAccount(ctx context.Context, realEquity float64) (*domain.ShadowAccountState, error) {
	account, err := o.accounts.Get(ctx, o.cfg.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shadow account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	now := time.Now().UTC()
	account = &domain.ShadowAccountState{
		AccountID:     o.cfg.AccountID,
		InitialEquity: realEquity,
		CurrentEquity: realEquity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := o.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to seed shadow account: %w", err)
	}

	log.Printf("[Shadow] Seeded account %q with $%.2f from real equity", account.AccountID, realEquity)
	return account, nil
}

// inferWithAssertions wraps the inference call in a bounded retry loop.
// Each failed attempt's assertion messages are accumulated and fed back as
// amended prompt context; after the configured limit the accumulated
// failures are returned as a *domain.AssertionError.
func (o *ShadowOrchestrator) inferWithAssertions(
	ctx context.Context,
	req *domain.InferenceRequest,
	trend domain.Trend,
) (*domain.RawSignal, error) {
	attempts := o.cfg.RetryLimit + 1
	var feedback []string

	for attempt := 1; attempt <= attempts; attempt++ {
		attemptReq := *req
		attemptReq.Feedback = feedback

		raw, err := o.inference.GenerateSignal(ctx, &attemptReq)
		if err != nil {
			return nil, err
		}

		failures := o.assertSignal(raw, trend)
		if len(failures) == 0 {
			return raw, nil
		}

		log.Printf("[Shadow] Attempt %d/%d failed assertions: %s",
			attempt, attempts, strings.Join(failures, "; "))
		feedback = append(feedback, failures...)
	}

	return nil, &domain.AssertionError{Attempts: attempts, Failures: feedback}
}

// assertSignal applies the correctness rules the model is expected to
// self-correct against.
func (o *ShadowOrchestrator) assertSignal(raw *domain.RawSignal, trend domain.Trend) []string {
	var failures []string

	dir := strings.ToUpper(strings.TrimSpace(raw.Direction))
	actionable := dir == "LONG" || dir == "SHORT"
	if !actionable {
		return nil
	}

	if raw.Confidence > o.cfg.MinEntryConfidence && (raw.EntryPrice == nil || *raw.EntryPrice <= 0) {
		failures = append(failures, fmt.Sprintf(
			"confidence above %.0f%% implies a setup was found: define an entry price",
			o.cfg.MinEntryConfidence*100))
	}

	if raw.StopLoss == nil {
		failures = append(failures, "trades must define a stop loss")
	}

	if trend == domain.TrendBear && dir == "LONG" && raw.Confidence < o.cfg.BearTrendConfidenceOverride {
		failures = append(failures, fmt.Sprintf(
			"counter-trend longs require confidence above %.0f%%",
			o.cfg.BearTrendConfidenceOverride*100))
	}

	return failures
}

// buildRequest assembles the inference context from the cycle snapshot and
// the shadow ledger's own state.
func (o *ShadowOrchestrator) buildRequest(
	ctx context.Context,
	account *domain.ShadowAccountState,
	snapshot *domain.MarketSnapshot,
) (*domain.InferenceRequest, error) {
	open, err := o.trades.GetOpen(ctx, account.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open shadow trades: %w", err)
	}

	openContext := "NO OPEN POSITIONS."
	if len(open) > 0 {
		details := make([]string, 0, len(open))
		for _, t := range open {
			details = append(details, fmt.Sprintf("%s (%s @ $%.2f)", t.Instrument, t.Side, t.EntryPrice))
		}
		openContext = fmt.Sprintf("OPEN POSITIONS (%d): %s", len(open), strings.Join(details, ", "))
	}

	history := "NO TRADE HISTORY."
	if last, err := o.trades.GetLastClosed(ctx, account.AccountID); err == nil && last != nil && last.PnLUSD != nil {
		outcome := "WIN"
		if *last.PnLUSD <= 0 {
			outcome = "LOSS"
		}
		history = fmt.Sprintf("LAST TRADE: %s %s -> %s ($%+.2f)", last.Instrument, last.Side, outcome, *last.PnLUSD)
	}

	return &domain.InferenceRequest{
		Instrument:       snapshot.Instrument,
		MarketContext:    formatMarketContext(snapshot),
		RiskContext:      fmt.Sprintf("Trend: %s", snapshot.Trend),
		AccountContext:   fmt.Sprintf("Shadow Equity: $%.2f | %s", account.CurrentEquity, openContext),
		LastTradeOutcome: history,
	}, nil
}

// openMargin totals the capital committed to open shadow trades.
func (o *ShadowOrchestrator) openMargin(ctx context.Context, accountID string) (float64, error) {
	open, err := o.trades.GetOpen(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to load open shadow trades: %w", err)
	}

	var margin float64
	for _, t := range open {
		lev := t.Leverage
		if lev < 1 {
			lev = 1
		}
		margin += t.Size * t.EntryPrice / lev
	}
	return margin, nil
}

func (o *ShadowOrchestrator) lockFor(accountID string) *sync.Mutex {
	actual, _ := o.locks.LoadOrStore(accountID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// WithLedgerLock runs fn while holding the account's ledger lock. Used by the
// settlement monitor so its passes serialize with in-flight shadow cycles.
func (o *ShadowOrchestrator) WithLedgerLock(accountID string, fn func()) {
	mu := o.lockFor(accountID)
	mu.Lock()
	defer mu.Unlock()
	fn()
}

func (o *ShadowOrchestrator) reportFailure(instrument, stage string, failure error) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.SendFailure(instrument, stage, failure); err != nil {
		log.Printf("[WARN]  Shadow: failed to send failure notification: %v", err)
	}
}

// formatMarketContext summarizes the snapshot's candle series per timeframe.
func formatMarketContext(snapshot *domain.MarketSnapshot) string {
	if len(snapshot.Candles) == 0 {
		return fmt.Sprintf("%s last price $%.2f", snapshot.Instrument, snapshot.Price)
	}

	frames := make([]string, 0, len(snapshot.Candles))
	for tf := range snapshot.Candles {
		frames = append(frames, tf)
	}
	sort.Strings(frames)

	parts := make([]string, 0, len(frames)+1)
	parts = append(parts, fmt.Sprintf("%s last price $%.2f", snapshot.Instrument, snapshot.Price))
	for _, tf := range frames {
		series := snapshot.Candles[tf]
		if len(series) == 0 {
			continue
		}
		last := series[len(series)-1]
		parts = append(parts, fmt.Sprintf("%s: O %.2f H %.2f L %.2f C %.2f (%d bars)",
			tf, last.Open, last.High, last.Low, last.Close, len(series)))
	}
	return strings.Join(parts, " | ")
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
