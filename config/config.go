package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"solSniperBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Wallet & endpoints
	PrivateKey        string // base58 keypair; required to trade
	RPCURL            string
	FeedWSURL         string
	JupiterAPIURL     string
	DexScreenerAPIURL string

	// Trading Parameters
	TradeAmountSol    float64 // SOL spent per buy
	MaxPositions      int
	StopLossPercent   float64 // e.g. 50 means close at -50%
	TakeProfitPercent float64 // e.g. 100 means close at +100%
	MaxSlippageBps    int
	MaxDailyLossSol   float64
	MaxHold           time.Duration

	// Risk scoring
	MinLiquiditySol float64
	MinSafetyScore  int

	// Ingestion
	BuyCooldown          time.Duration
	DedupCapacity        int
	IngestWorkers        int
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	AutoStartFeed        bool

	// Exit monitor
	MonitorInterval time.Duration
	ProbeAmountSol  float64 // SOL amount quoted to value a position

	// Timeouts
	ExternalTimeout time.Duration
	ConfirmTimeout  time.Duration

	// SOL reference price (Binance)
	BinanceTestnet bool
	SolPriceSymbol string
	FallbackSolUSD float64

	// Operator API
	Port int

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // json, console (zap) or text (stdlib)
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Wallet & endpoints
	cfg.PrivateKey = getEnv("PRIVATE_KEY", "")
	cfg.RPCURL = getEnv("RPC_URL", "https://api.mainnet-beta.solana.com")
	cfg.FeedWSURL = getEnv("FEED_WS_URL", "wss://pumpportal.fun/api/data")
	cfg.JupiterAPIURL = strings.TrimRight(getEnv("JUPITER_API_URL", "https://quote-api.jup.ag/v6"), "/")
	cfg.DexScreenerAPIURL = strings.TrimRight(getEnv("DEXSCREENER_API_URL", "https://api.dexscreener.com/latest/dex"), "/")
	for key, val := range map[string]string{"RPC_URL": cfg.RPCURL, "FEED_WS_URL": cfg.FeedWSURL, "JUPITER_API_URL": cfg.JupiterAPIURL} {
		if val == "" {
			errs = append(errs, key+" must be set")
		}
	}

	// Trading Parameters
	cfg.TradeAmountSol, err = getEnvAsFloatRequired("TRADE_AMOUNT_SOL", 0.04)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRADE_AMOUNT_SOL: %v", err))
	} else if cfg.TradeAmountSol <= 0 {
		errs = append(errs, "TRADE_AMOUNT_SOL must be positive")
	}

	cfg.MaxPositions, err = getEnvAsIntRequired("MAX_POSITIONS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITIONS: %v", err))
	} else if cfg.MaxPositions <= 0 {
		errs = append(errs, "MAX_POSITIONS must be positive")
	}

	cfg.StopLossPercent, err = getEnvAsFloatRequired("STOP_LOSS_PERCENT", 50)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PERCENT: %v", err))
	} else if cfg.StopLossPercent <= 0 || cfg.StopLossPercent > 100 {
		errs = append(errs, "STOP_LOSS_PERCENT must be in (0, 100]")
	}

	cfg.TakeProfitPercent, err = getEnvAsFloatRequired("TAKE_PROFIT_PERCENT", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PERCENT: %v", err))
	} else if cfg.TakeProfitPercent <= 0 {
		errs = append(errs, "TAKE_PROFIT_PERCENT must be positive")
	}

	cfg.MaxSlippageBps, err = getEnvAsIntRequired("MAX_SLIPPAGE_BPS", 500)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_SLIPPAGE_BPS: %v", err))
	} else if cfg.MaxSlippageBps <= 0 || cfg.MaxSlippageBps > 10000 {
		errs = append(errs, "MAX_SLIPPAGE_BPS must be in (0, 10000]")
	}

	cfg.MaxDailyLossSol, err = getEnvAsFloatRequired("MAX_DAILY_LOSS_SOL", 0.3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_LOSS_SOL: %v", err))
	} else if cfg.MaxDailyLossSol <= 0 {
		errs = append(errs, "MAX_DAILY_LOSS_SOL must be positive")
	}

	maxHoldMinutes := getEnvAsInt("MAX_HOLD_MINUTES", 60)
	if maxHoldMinutes <= 0 {
		errs = append(errs, "MAX_HOLD_MINUTES must be positive")
	}
	cfg.MaxHold = time.Duration(maxHoldMinutes) * time.Minute

	// Risk scoring
	cfg.MinLiquiditySol = getEnvAsFloat("MIN_LIQUIDITY_SOL", 5)
	if cfg.MinLiquiditySol < 0 {
		errs = append(errs, "MIN_LIQUIDITY_SOL cannot be negative")
	}
	cfg.MinSafetyScore = getEnvAsInt("MIN_SAFETY_SCORE", 2)
	if cfg.MinSafetyScore < 1 || cfg.MinSafetyScore > 4 {
		errs = append(errs, "MIN_SAFETY_SCORE must be between 1 and 4")
	}

	// Ingestion
	cfg.BuyCooldown = getEnvAsDuration("BUY_COOLDOWN_SECONDS", 120*time.Second)
	if cfg.BuyCooldown < 0 {
		errs = append(errs, "BUY_COOLDOWN_SECONDS cannot be negative")
	}
	cfg.DedupCapacity = getEnvAsInt("DEDUP_CAPACITY", 1000)
	if cfg.DedupCapacity < 2 {
		errs = append(errs, "DEDUP_CAPACITY must be at least 2")
	}
	cfg.IngestWorkers = getEnvAsInt("INGEST_WORKERS", 16)
	if cfg.IngestWorkers <= 0 {
		errs = append(errs, "INGEST_WORKERS must be positive")
	}
	cfg.ReconnectDelay = getEnvAsDuration("RECONNECT_DELAY_SECONDS", 5*time.Second)
	if cfg.ReconnectDelay <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 5)
	if cfg.MaxReconnectAttempts <= 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS must be positive")
	}
	cfg.AutoStartFeed = getEnvAsBool("AUTO_START_FEED", true)

	// Exit monitor
	cfg.MonitorInterval = getEnvAsDuration("MONITOR_INTERVAL_SECONDS", 30*time.Second)
	if cfg.MonitorInterval < time.Second {
		errs = append(errs, "MONITOR_INTERVAL_SECONDS must be at least 1")
	}
	cfg.ProbeAmountSol = getEnvAsFloat("PROBE_AMOUNT_SOL", 0.001)
	if cfg.ProbeAmountSol <= 0 {
		errs = append(errs, "PROBE_AMOUNT_SOL must be positive")
	}

	// Timeouts
	cfg.ExternalTimeout = getEnvAsDuration("EXTERNAL_TIMEOUT_SECONDS", 15*time.Second)
	cfg.ConfirmTimeout = getEnvAsDuration("CONFIRM_TIMEOUT_SECONDS", 60*time.Second)
	if cfg.ExternalTimeout <= 0 || cfg.ConfirmTimeout <= 0 {
		errs = append(errs, "EXTERNAL_TIMEOUT_SECONDS and CONFIRM_TIMEOUT_SECONDS must be positive")
	}

	// SOL reference price
	cfg.BinanceTestnet = getEnvAsBool("BINANCE_TESTNET", false)
	cfg.SolPriceSymbol = getEnv("SOL_PRICE_SYMBOL", "SOLUSDT")
	cfg.FallbackSolUSD = getEnvAsFloat("FALLBACK_SOL_USD", 200)
	if cfg.FallbackSolUSD <= 0 {
		errs = append(errs, "FALLBACK_SOL_USD must be positive")
	}

	// Operator API
	cfg.Port, err = getEnvAsIntRequired("PORT", 3000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PORT: %v", err))
	} else if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, "PORT must be between 1 and 65535")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trades.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "json"))
	switch cfg.LogFormat {
	case "json", "console", "text":
	default:
		errs = append(errs, "LOG_FORMAT must be one of json, console, text")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// RequireSigner reports an error when no private key is configured.
func (c *Config) RequireSigner() error {
	if strings.TrimSpace(c.PrivateKey) == "" {
		return fmt.Errorf("PRIVATE_KEY must be set to trade (generate one with cmd/walletgen)")
	}
	return nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration reads a whole number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	seconds, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return time.Duration(seconds * float64(time.Second))
}
