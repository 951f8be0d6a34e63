package infra

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"shadowtrade/internal/service"
	"shadowtrade/internal/usecase"
)

// Scheduler manages the periodic jobs: the decision cycle, the fast shadow
// settlement monitor, and the performance report.
type Scheduler struct {
	cron           *cron.Cron
	tradingService *usecase.TradingService
	monitor        *service.SettlementMonitor
	report         *service.ReportService

	cycleSpec  string
	settleSpec string
	reportSpec string
}

// NewScheduler creates a new scheduler
func NewScheduler(
	tradingService *usecase.TradingService,
	monitor *service.SettlementMonitor,
	report *service.ReportService,
	cycleSpec, settleSpec, reportSpec string,
) *Scheduler {
	return &Scheduler{
		cron:           cron.New(cron.WithSeconds()),
		tradingService: tradingService,
		monitor:        monitor,
		report:         report,
		cycleSpec:      cycleSpec,
		settleSpec:     settleSpec,
		reportSpec:     reportSpec,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	log.Println("Starting scheduler...")

	_, err := s.cron.AddFunc(s.cycleSpec, func() {
		ctx := context.Background()
		log.Println("[CRON] Decision cycle triggered")
		if err := s.tradingService.ProcessDecisionCycle(ctx); err != nil {
			log.Printf("ERROR: Scheduled decision cycle failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(s.settleSpec, func() {
		ctx := context.Background()
		if err := s.monitor.RunSettlementPass(ctx); err != nil {
			log.Printf("ERROR: Settlement pass failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(s.reportSpec, func() {
		ctx := context.Background()
		if err := s.report.SendPerformanceReport(ctx); err != nil {
			log.Printf("ERROR: Performance report failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Println("[OK] Scheduler started successfully")
	log.Printf("[OK] Jobs: cycle %q | settle %q | report %q", s.cycleSpec, s.settleSpec, s.reportSpec)

	return nil
}

// RunCycleNow triggers one decision cycle outside the schedule
func (s *Scheduler) RunCycleNow(ctx context.Context) error {
	log.Println("[CRON] Manual decision cycle triggered")
	return s.tradingService.ProcessDecisionCycle(ctx)
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	s.cron.Stop()
	log.Println("[OK] Scheduler stopped")
}
