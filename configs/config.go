package configs

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Inference InferenceConfig
	Execution ExecutionConfig
	Telegram  TelegramConfig
	Trading   TradingConfig
	Shadow    ShadowConfig
	Auth      AuthConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// InferenceConfig holds inference engine configuration
type InferenceConfig struct {
	URL        string
	RetryLimit int
}

// ExecutionConfig holds exchange execution tool configuration
type ExecutionConfig struct {
	URL string
}

// TelegramConfig holds notification configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TradingConfig holds live-path risk parameters
type TradingConfig struct {
	Instruments                 []string
	CycleSpec                   string // cron spec for the decision cycle
	MaxLeverage                 float64
	MaxTotalExposureFraction    float64
	PositionSizeCeiling         float64
	BearTrendConfidenceOverride float64
	MinTradeConfidence          float64
	DefaultStopLossPct          float64
	DefaultTakeProfitPct        float64
}

// ShadowConfig holds simulator economics and ledger policy
type ShadowConfig struct {
	AccountID                string
	FeeRate                  float64 // round-trip, fraction of notional at close
	SlippageRate             float64 // per side, fraction of fill price
	OptimizationPnLThreshold float64
	MaxTradeAge              time.Duration
	SettleSpec               string // cron spec for the fast settlement monitor
	ReportSpec               string // cron spec for the performance report
}

// AuthConfig holds operator authentication configuration
type AuthConfig struct {
	JWTSecret            string
	OperatorPasswordHash string // bcrypt hash; empty disables operator login
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Inference: InferenceConfig{
			URL:        getEnv("INFERENCE_ENGINE_URL", "http://localhost:8000"),
			RetryLimit: getEnvInt("INFERENCE_RETRY_LIMIT", 2),
		},
		Execution: ExecutionConfig{
			URL: getEnv("EXECUTION_ENGINE_URL", "http://localhost:8100"),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
		Trading: TradingConfig{
			Instruments:                 getEnvList("INSTRUMENTS", "BTCUSDT"),
			CycleSpec:                   getEnv("DECISION_CYCLE_SPEC", "0 */3 * * * *"),
			MaxLeverage:                 getEnvFloat("MAX_LEVERAGE", 20),
			MaxTotalExposureFraction:    getEnvFloat("MAX_TOTAL_EXPOSURE_FRACTION", 0.9),
			PositionSizeCeiling:         getEnvFloat("POSITION_SIZE_CEILING", 0.75),
			BearTrendConfidenceOverride: getEnvFloat("BEAR_TREND_CONFIDENCE_OVERRIDE", 0.65),
			MinTradeConfidence:          getEnvFloat("MIN_TRADE_CONFIDENCE", 0.6),
			DefaultStopLossPct:          getEnvFloat("DEFAULT_STOP_LOSS_PCT", 0.02),
			DefaultTakeProfitPct:        getEnvFloat("DEFAULT_TAKE_PROFIT_PCT", 0.05),
		},
		Shadow: ShadowConfig{
			AccountID:                getEnv("SHADOW_ACCOUNT_ID", "primary"),
			FeeRate:                  getEnvFloat("FEE_RATE", 0.0006),
			SlippageRate:             getEnvFloat("SLIPPAGE_RATE", 0.0001),
			OptimizationPnLThreshold: getEnvFloat("OPTIMIZATION_PNL_THRESHOLD", 0),
			MaxTradeAge:              time.Duration(getEnvInt("MAX_TRADE_AGE_MINUTES", 240)) * time.Minute,
			SettleSpec:               getEnv("SETTLE_SPEC", "*/15 * * * * *"),
			ReportSpec:               getEnv("REPORT_SPEC", "0 5 * * * *"),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("JWT_SECRET", ""),
			OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable or returns a default value
func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.ToUpper(strings.TrimSpace(part)); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// getEnvInt gets an int environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
