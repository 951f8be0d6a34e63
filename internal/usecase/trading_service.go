package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"shadowtrade/internal/domain"
	"shadowtrade/internal/service"
)

// TradingService runs the live decision pipeline once per cycle:
// market snapshot -> inference -> normalize -> risk -> merge -> execution,
// then spawns the shadow path with the same cycle snapshot. Cycles are
// independent: a failed cycle is reported and the loop keeps running.
type TradingService struct {
	market       domain.MarketDataService
	inference    domain.InferenceService
	execution    domain.ExecutionService
	normalizer   *service.Normalizer
	risk         *service.RiskEngine
	merger       *service.Merger
	audits       domain.RiskAuditRepository
	notifier     domain.NotificationService
	orchestrator *service.ShadowOrchestrator
	instruments  []string
}

// NewTradingService creates a new TradingService
func NewTradingService(
	market domain.MarketDataService,
	inference domain.InferenceService,
	execution domain.ExecutionService,
	normalizer *service.Normalizer,
	risk *service.RiskEngine,
	merger *service.Merger,
	audits domain.RiskAuditRepository,
	notifier domain.NotificationService,
	orchestrator *service.ShadowOrchestrator,
	instruments []string,
) *TradingService {
	return &TradingService{
		market:       market,
		inference:    inference,
		execution:    execution,
		normalizer:   normalizer,
		risk:         risk,
		merger:       merger,
		audits:       audits,
		notifier:     notifier,
		orchestrator: orchestrator,
		instruments:  instruments,
	}
}

// ProcessDecisionCycle runs one full decision cycle across the configured
// instruments. The live pipeline for each instrument runs to completion
// before the next; shadow work is launched as a background task and may
// still be running when the next cycle starts.
func (ts *TradingService) ProcessDecisionCycle(ctx context.Context) error {
	log.Println("=== Starting Decision Cycle ===")
	startTime := time.Now()

	for _, instrument := range ts.instruments {
		if err := ts.processInstrument(ctx, instrument); err != nil {
			log.Printf("ERROR: Cycle failed for %s: %v", instrument, err)
		}
	}

	log.Printf("=== Decision Cycle Complete (%.2fs) ===", time.Since(startTime).Seconds())
	return nil
}

func (ts *TradingService) processInstrument(ctx context.Context, instrument string) error {
	snapshot, err := ts.market.Snapshot(ctx, instrument)
	if err != nil {
		return fmt.Errorf("failed to fetch market snapshot: %w", err)
	}

	acct, err := ts.execution.AccountState(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch account state: %w", err)
	}
	acct.Trend = snapshot.Trend

	raw, err := ts.inference.GenerateSignal(ctx, ts.buildRequest(snapshot, acct))
	if err != nil {
		ts.reportFailure(instrument, "inference", err)
		return fmt.Errorf("inference failed: %w", err)
	}

	if raw.IsCloseRequest() {
		log.Printf("[Live] %s requested for %s: closing position", raw.Direction, instrument)
		if err := ts.execution.ClosePosition(ctx, instrument); err != nil {
			ts.reportFailure(instrument, "execution_close", err)
			log.Printf("ERROR: Failed to close live position for %s: %v", instrument, err)
		}
		ts.orchestrator.LaunchCycle(snapshot, acct.Equity)
		return nil
	}

	signal, err := ts.normalizer.Normalize(raw, snapshot.Price)
	if err != nil {
		var valErr *domain.ValidationError
		if errors.As(err, &valErr) {
			// Malformed model output rejects this cycle's live trade; the
			// shadow path still runs with its own inference.
			log.Printf("[Live] Cycle rejected for %s: %v", instrument, valErr)
			ts.reportFailure(instrument, "normalize", valErr)
			ts.orchestrator.LaunchCycle(snapshot, acct.Equity)
			return nil
		}
		return err
	}

	if !signal.Actionable() {
		log.Printf("[Live] HOLD for %s (confidence %.0f%%)", instrument, signal.Confidence*100)
		ts.orchestrator.LaunchCycle(snapshot, acct.Equity)
		return nil
	}

	decision := ts.risk.Evaluate(signal, acct)

	if err := ts.audits.Save(ctx, buildAudit(signal, decision, acct)); err != nil {
		log.Printf("[WARN]  Failed to save risk audit: %v", err)
	}

	if !decision.Approved {
		if ts.notifier != nil {
			if err := ts.notifier.SendRejection(signal, decision.RejectionReason); err != nil {
				log.Printf("[WARN]  Failed to send rejection notification: %v", err)
			}
		}
		ts.orchestrator.LaunchCycle(snapshot, acct.Equity)
		return nil
	}

	order, err := ts.merger.Synthesize(signal, decision, acct, snapshot.Price)
	if err != nil {
		var invErr *domain.InvariantError
		if errors.As(err, &invErr) {
			// Internal defect: abort the whole cycle, no order and no
			// shadow trade.
			log.Printf("ERROR: Merge invariant violated for %s: %v", instrument, invErr)
			ts.reportFailure(instrument, "merge", invErr)
			return nil
		}
		return err
	}

	if err := ts.execution.PlaceOrder(ctx, order); err != nil {
		ts.reportFailure(instrument, "execution", err)
		log.Printf("ERROR: Failed to place order for %s: %v", instrument, err)
	} else {
		log.Printf("[Live] EXECUTED %s %s | size %.2f @ %.1fx | SL %.2f%% TP %.2f%%",
			order.Side, order.Instrument, order.Size, order.Leverage,
			order.StopLossPct*100, order.TakeProfitPct*100)
	}

	ts.orchestrator.LaunchCycle(snapshot, acct.Equity)
	return nil
}

// buildRequest assembles the live inference context from the market
// snapshot and the real account state.
func (ts *TradingService) buildRequest(snapshot *domain.MarketSnapshot, acct *domain.AccountSnapshot) *domain.InferenceRequest {
	return &domain.InferenceRequest{
		Instrument:     snapshot.Instrument,
		MarketContext:  fmt.Sprintf("%s last price $%.2f", snapshot.Instrument, snapshot.Price),
		RiskContext:    fmt.Sprintf("Trend: %s", snapshot.Trend),
		AccountContext: fmt.Sprintf("Equity: $%.2f | Margin used: $%.2f", acct.Equity, acct.OpenExposure),
	}
}

func (ts *TradingService) reportFailure(instrument, stage string, failure error) {
	if ts.notifier == nil {
		return
	}
	if err := ts.notifier.SendFailure(instrument, stage, failure); err != nil {
		log.Printf("[WARN]  Failed to send failure notification: %v", err)
	}
}

func buildAudit(signal *domain.TradeSignal, decision *domain.RiskDecision, acct *domain.AccountSnapshot) *domain.RiskAudit {
	return &domain.RiskAudit{
		ID:                   uuid.New(),
		Instrument:           signal.Instrument,
		Direction:            signal.Direction,
		Confidence:           signal.Confidence,
		Approved:             decision.Approved,
		Leverage:             decision.MaxLeverage,
		PositionSizeFraction: decision.PositionSizeFraction,
		StopLossPrice:        decision.StopLossPrice,
		TakeProfitPrice:      decision.TakeProfitPrice,
		RejectionReason:      decision.RejectionReason,
		Equity:               acct.Equity,
		OpenExposure:         acct.OpenExposure,
		Trend:                acct.Trend,
		CreatedAt:            time.Now().UTC(),
	}
}
