package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cryptoDipBot/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading universe
	Pairs         []string // Default evaluation set, e.g. BTCUSDC,ETHUSDC
	AllowedQuotes []string // Quote assets accepted by the control API
	AutoTrade     bool     // Start with automatic trading enabled

	// Strategy Parameters
	MinProfitPct        float64 // Minimum growth over entry before selling
	HysteresisPct       float64 // Pullback / averaging-up guard
	BuyDrawdownPct      float64 // Dip band width over the lookback low
	MinTradesPerHour    float64 // Liquidity floor
	BasePackageUSD      float64 // Base notional per buy
	DowntrendMultiplier float64 // Sizing multiplier on downtrend adds
	BuyLookback         string  // day, week or month

	// Indicator Parameters
	EMAFastPeriod   int
	EMASlowPeriod   int
	MACDSignal      int
	ATRPeriod       int
	IndicatorWindow int // Price history depth fed into the indicators

	// Scheduling
	TickInterval time.Duration
	FXInterval   time.Duration
	CallTimeout  time.Duration

	// Alerting
	AlertPositivePct float64
	AlertNegativePct float64
	AlertCooldown    time.Duration

	// FX conversion for reporting
	FXPairs       []string // Binance symbols observed as FX proxies, e.g. USDCPLN
	FXBase        string
	FXQuote       string
	DefaultFXRate float64

	// Database
	DBPath string

	// HTTP API
	APIAddr string

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("BINANCE_TESTNET", true) // Default to testnet for safety

	// Trading universe
	cfg.Pairs = splitList(getEnv("DEFAULT_PAIRS", "BTCUSDC,ETHUSDC"))
	if len(cfg.Pairs) == 0 {
		errs = append(errs, "DEFAULT_PAIRS must list at least one pair")
	}
	cfg.AllowedQuotes = splitList(getEnv("ALLOWED_QUOTES", "USDC,BTC,BNB"))
	cfg.AutoTrade = getEnvAsBool("AUTO_TRADE", false)

	// Strategy Parameters
	cfg.MinProfitPct, err = getEnvAsFloatRequired("STRAT_MIN_PROFIT_PCT", 5.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STRAT_MIN_PROFIT_PCT: %v", err))
	} else if cfg.MinProfitPct <= 0 {
		errs = append(errs, "STRAT_MIN_PROFIT_PCT must be positive")
	}

	cfg.HysteresisPct, err = getEnvAsFloatRequired("STRAT_HYSTERESIS_PCT", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STRAT_HYSTERESIS_PCT: %v", err))
	} else if cfg.HysteresisPct < 0 {
		errs = append(errs, "STRAT_HYSTERESIS_PCT cannot be negative")
	}

	cfg.BuyDrawdownPct, err = getEnvAsFloatRequired("STRAT_BUY_DRAWDOWN_PCT", 3.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STRAT_BUY_DRAWDOWN_PCT: %v", err))
	} else if cfg.BuyDrawdownPct < 0 {
		errs = append(errs, "STRAT_BUY_DRAWDOWN_PCT cannot be negative")
	}

	cfg.MinTradesPerHour, err = getEnvAsFloatRequired("STRAT_MIN_TRADES_PER_HOUR", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STRAT_MIN_TRADES_PER_HOUR: %v", err))
	} else if cfg.MinTradesPerHour < 0 {
		errs = append(errs, "STRAT_MIN_TRADES_PER_HOUR cannot be negative")
	}

	cfg.BasePackageUSD, err = getEnvAsFloatRequired("STRAT_BASE_PACKAGE_USD", 50.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STRAT_BASE_PACKAGE_USD: %v", err))
	} else if cfg.BasePackageUSD <= 0 {
		errs = append(errs, "STRAT_BASE_PACKAGE_USD must be positive")
	}

	cfg.DowntrendMultiplier, err = getEnvAsFloatRequired("STRAT_DOWNTREND_MULTIPLIER", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STRAT_DOWNTREND_MULTIPLIER: %v", err))
	} else if cfg.DowntrendMultiplier <= 0 {
		errs = append(errs, "STRAT_DOWNTREND_MULTIPLIER must be positive")
	}

	cfg.BuyLookback = strings.ToLower(getEnv("STRAT_BUY_LOOKBACK", strategy.LookbackDay))
	switch cfg.BuyLookback {
	case strategy.LookbackDay, strategy.LookbackWeek, strategy.LookbackMonth:
	default:
		errs = append(errs, "STRAT_BUY_LOOKBACK must be one of day, week, month")
	}

	// Indicator Parameters (using defaults if not set)
	cfg.EMAFastPeriod = getEnvAsInt("EMA_FAST_PERIOD", 12)
	cfg.EMASlowPeriod = getEnvAsInt("EMA_SLOW_PERIOD", 26)
	cfg.MACDSignal = getEnvAsInt("MACD_SIGNAL_PERIOD", 9)
	cfg.ATRPeriod = getEnvAsInt("ATR_PERIOD", 14)
	cfg.IndicatorWindow = getEnvAsInt("INDICATOR_WINDOW", 100)
	if cfg.EMAFastPeriod <= 0 || cfg.EMASlowPeriod <= 0 || cfg.MACDSignal <= 0 || cfg.ATRPeriod <= 0 {
		errs = append(errs, "indicator periods (EMA, MACD, ATR) must be positive")
	}
	if cfg.EMAFastPeriod >= cfg.EMASlowPeriod {
		errs = append(errs, "EMA_FAST_PERIOD must be less than EMA_SLOW_PERIOD")
	}

	// Scheduling
	tickSeconds := getEnvAsInt("BOT_INTERVAL_SEC", 300)
	if tickSeconds <= 0 {
		errs = append(errs, "BOT_INTERVAL_SEC must be positive")
	}
	cfg.TickInterval = time.Duration(tickSeconds) * time.Second

	fxSeconds := getEnvAsInt("FX_INTERVAL_SEC", 3600)
	if fxSeconds <= 0 {
		errs = append(errs, "FX_INTERVAL_SEC must be positive")
	}
	cfg.FXInterval = time.Duration(fxSeconds) * time.Second

	callTimeoutSeconds := getEnvAsInt("CALL_TIMEOUT_SEC", 10)
	if callTimeoutSeconds <= 0 {
		errs = append(errs, "CALL_TIMEOUT_SEC must be positive")
	}
	cfg.CallTimeout = time.Duration(callTimeoutSeconds) * time.Second

	// Alerting
	cfg.AlertPositivePct, err = getEnvAsFloatRequired("ALERT_PNL_POSITIVE", 10.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ALERT_PNL_POSITIVE: %v", err))
	}
	cfg.AlertNegativePct, err = getEnvAsFloatRequired("ALERT_PNL_NEGATIVE", -5.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ALERT_PNL_NEGATIVE: %v", err))
	} else if cfg.AlertNegativePct > 0 {
		errs = append(errs, "ALERT_PNL_NEGATIVE cannot be positive")
	}
	// Cooldown defaults to the tick interval so a sustained excursion fires
	// at most once per cycle per polarity.
	cooldownSeconds := getEnvAsInt("ALERT_COOLDOWN_SEC", tickSeconds)
	if cooldownSeconds <= 0 {
		errs = append(errs, "ALERT_COOLDOWN_SEC must be positive")
	}
	cfg.AlertCooldown = time.Duration(cooldownSeconds) * time.Second

	// FX conversion
	cfg.FXPairs = splitList(getEnv("FX_PAIRS", "USDPLN"))
	cfg.FXBase = strings.ToUpper(getEnv("FX_BASE", "USD"))
	cfg.FXQuote = strings.ToUpper(getEnv("BASE_CURRENCY", "PLN"))
	cfg.DefaultFXRate, err = getEnvAsFloatRequired("FX_DEFAULT_RATE", 4.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FX_DEFAULT_RATE: %v", err))
	} else if cfg.DefaultFXRate <= 0 {
		errs = append(errs, "FX_DEFAULT_RATE must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/dip_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// HTTP API
	bind := getEnv("API_BIND", "0.0.0.0")
	port := getEnvAsInt("API_PORT", 8080)
	if port <= 0 || port > 65535 {
		errs = append(errs, "API_PORT must be a valid TCP port")
	}
	cfg.APIAddr = fmt.Sprintf("%s:%d", bind, port)

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// StrategyParams maps the loaded values onto the strategy's parameter set.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		MinProfitPct:        c.MinProfitPct,
		HysteresisPct:       c.HysteresisPct,
		BuyDrawdownPct:      c.BuyDrawdownPct,
		MinTradesPerHour:    c.MinTradesPerHour,
		BasePackageUSD:      c.BasePackageUSD,
		DowntrendMultiplier: c.DowntrendMultiplier,
		BuyLookback:         c.BuyLookback,
	}
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

// splitList parses a comma separated list, trimming blanks and uppercasing.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
