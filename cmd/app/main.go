package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"shadowtrade/configs"
	"shadowtrade/internal/adapter"
	"shadowtrade/internal/adapter/telegram"
	"shadowtrade/internal/database"
	deliveryhttp "shadowtrade/internal/delivery/http"
	"shadowtrade/internal/infra"
	"shadowtrade/internal/repository"
	"shadowtrade/internal/service"
	"shadowtrade/internal/usecase"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg := configs.Load()

	// Initialize context
	ctx := context.Background()

	// Initialize database
	db, err := infra.NewDatabase(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	tradeRepo := repository.NewShadowTradeRepository(db)
	accountRepo := repository.NewShadowAccountRepository(db)
	exampleRepo := repository.NewOptimizationExampleRepository(db)
	auditRepo := repository.NewRiskAuditRepository(db)

	// Initialize external bridges
	inference := adapter.NewInferenceBridge(cfg.Inference.URL)
	execution := adapter.NewExecutionBridge(cfg.Execution.URL)
	notifier := telegram.NewNotificationService(cfg.Telegram.BotToken, cfg.Telegram.ChatID)

	// Initialize pipeline services
	marketData := service.NewMarketDataService()
	normalizer := service.NewNormalizer()
	riskEngine := service.NewRiskEngine(
		service.RiskConfig{
			MaxLeverage:                 cfg.Trading.MaxLeverage,
			MaxTotalExposureFraction:    cfg.Trading.MaxTotalExposureFraction,
			PositionSizeCeiling:         cfg.Trading.PositionSizeCeiling,
			BearTrendConfidenceOverride: cfg.Trading.BearTrendConfidenceOverride,
			DefaultStopLossPct:          cfg.Trading.DefaultStopLossPct,
			DefaultTakeProfitPct:        cfg.Trading.DefaultTakeProfitPct,
		},
		service.ConfidenceSizer{
			MinConfidence:   cfg.Trading.MinTradeConfidence,
			SizeCeiling:     cfg.Trading.PositionSizeCeiling,
			LeverageCeiling: cfg.Trading.MaxLeverage,
		},
	)
	merger := service.NewMerger()

	// Initialize shadow path
	simulator := service.NewShadowSimulator(tradeRepo, accountRepo, exampleRepo, notifier, service.SimulatorConfig{
		FeeRate:                  cfg.Shadow.FeeRate,
		SlippageRate:             cfg.Shadow.SlippageRate,
		OptimizationPnLThreshold: cfg.Shadow.OptimizationPnLThreshold,
		MaxTradeAge:              cfg.Shadow.MaxTradeAge,
	})
	orchestrator := service.NewShadowOrchestrator(
		inference, simulator, accountRepo, tradeRepo, normalizer, riskEngine, notifier,
		service.OrchestratorConfig{
			AccountID:                   cfg.Shadow.AccountID,
			RetryLimit:                  cfg.Inference.RetryLimit,
			MinEntryConfidence:          0.5,
			BearTrendConfidenceOverride: cfg.Trading.BearTrendConfidenceOverride,
		},
	)
	monitor := service.NewSettlementMonitor(marketData, simulator, accountRepo, tradeRepo, orchestrator, cfg.Shadow.AccountID)
	reportService := service.NewReportService(accountRepo, tradeRepo, notifier, cfg.Shadow.AccountID)

	// Initialize trading service
	tradingService := usecase.NewTradingService(
		marketData,
		inference,
		execution,
		normalizer,
		riskEngine,
		merger,
		auditRepo,
		notifier,
		orchestrator,
		cfg.Trading.Instruments,
	)

	// Initialize scheduler
	scheduler := infra.NewScheduler(tradingService, monitor, reportService,
		cfg.Trading.CycleSpec, cfg.Shadow.SettleSpec, cfg.Shadow.ReportSpec)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Initialize API (echo) mounted under the root chi router
	e := echo.New()
	e.HideBanner = true
	deliveryhttp.SetupRoutes(e, &deliveryhttp.RouterConfig{
		AuthHandler: deliveryhttp.NewAuthHandler(cfg.Auth.OperatorPasswordHash),
		ShadowHandler: deliveryhttp.NewShadowHandler(
			accountRepo, tradeRepo, exampleRepo, auditRepo, execution, cfg.Shadow.AccountID),
	})

	// Initialize HTTP router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// Routes
	r.Get("/", handleRoot)
	r.Get("/health", handleHealth(db))
	r.Post("/cycle/trigger", handleTriggerCycle(scheduler))
	r.Mount("/api", e)

	// Start HTTP server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 ShadowTrade starting on %s", addr)
	log.Printf("📊 Environment: %s", cfg.Server.Env)
	log.Printf("📈 Instruments: %v", cfg.Trading.Instruments)
	log.Printf("👻 Shadow account: %s (fee %.4f%%, slippage %.4f%%/side)",
		cfg.Shadow.AccountID, cfg.Shadow.FeeRate*100, cfg.Shadow.SlippageRate*100)
	log.Println("========================================")

	// Create HTTP server
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Let in-flight shadow tasks finish so no ledger write is abandoned.
	orchestrator.Wait()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server exited gracefully")
}

// HTTP Handlers

func handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{
		"message": "ShadowTrade decision pipeline",
		"version": "0.1.0",
		"endpoints": {
			"health": "GET /health",
			"trigger_cycle": "POST /cycle/trigger",
			"shadow_account": "GET /api/shadow/account",
			"shadow_trades": "GET /api/shadow/trades"
		}
	}`))
}

func handleHealth(db interface{ Ping(context.Context) error }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check database
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "healthy"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fmt.Sprintf(`{
			"status": "healthy",
			"service": "shadowtrade",
			"database": "%s",
			"timestamp": "%s"
		}`, dbStatus, time.Now().Format(time.RFC3339))))
	}
}

func handleTriggerCycle(scheduler *infra.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("Manual decision cycle triggered via API")

		go func() {
			if err := scheduler.RunCycleNow(context.Background()); err != nil {
				log.Printf("ERROR: Manual decision cycle failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{
			"message": "Decision cycle triggered successfully",
			"status": "processing"
		}`))
	}
}
