// Command seed_samples backfills the market_data table from historical
// klines so indicators have history before the first live tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"

	"cryptoDipBot/config"
	"cryptoDipBot/internal/adapters/binanceclient"
	"cryptoDipBot/internal/adapters/sqlite"
	"cryptoDipBot/internal/adapters/zerologger"
	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/strategy/indicators"
)

func main() {
	interval := flag.String("interval", "1h", "kline interval to seed from")
	limit := flag.Int("limit", 500, "number of klines per pair")
	flag.Parse()

	hours, err := intervalHours(*interval)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := zerologger.New(os.Stderr, cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Repository
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	// 4. Initialize Exchange Client
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	ctx := context.Background()
	batchID := uuid.NewString()

	for _, pair := range cfg.Pairs {
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		klines, err := binanceClient.Klines(callCtx, pair, *interval, *limit)
		cancel()
		if err != nil {
			appLogger.Error(ctx, err, "Failed to fetch klines, skipping pair", map[string]interface{}{"pair": pair})
			continue
		}

		prices := make([]float64, 0, len(klines))
		stored := 0
		for _, k := range klines {
			prices = append(prices, k.Close)

			sample := &domain.MarketSample{
				BatchID:   batchID,
				Timestamp: k.CloseTime.UTC(),
				Pair:      pair,
				Price:     k.Close,
				Volume:    k.Volume,
				// Trade count per kline scaled to an hourly rate.
				TradesPerHour: float64(k.TradeCount) / hours,
			}
			if v, ok := indicators.EMA(prices, cfg.EMAFastPeriod); ok {
				sample.EMAFast = v
			}
			if v, ok := indicators.EMA(prices, cfg.EMASlowPeriod); ok {
				sample.EMASlow = v
			}
			if v, ok := indicators.MACD(prices, cfg.EMAFastPeriod, cfg.EMASlowPeriod, cfg.MACDSignal); ok {
				sample.MACD = v
			}
			if v, ok := indicators.ATR(prices, cfg.ATRPeriod); ok {
				sample.ATR = v
			}

			if _, err := repo.AppendSample(ctx, sample); err != nil {
				appLogger.Error(ctx, err, "Failed to store sample", map[string]interface{}{"pair": pair})
				continue
			}
			stored++
		}
		appLogger.Info(ctx, "Seeded market samples", map[string]interface{}{
			"pair": pair, "stored": stored, "batchID": batchID,
		})
	}
}

// intervalHours converts a Binance kline interval like "15m", "4h", "1d",
// "1w" or "1M" into hours. Unknown intervals are rejected rather than
// silently defaulted.
func intervalHours(interval string) (float64, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid kline interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid kline interval %q", interval)
	}
	switch interval[len(interval)-1] {
	case 's':
		return float64(n) / 3600.0, nil
	case 'm':
		return float64(n) / 60.0, nil
	case 'h':
		return float64(n), nil
	case 'd':
		return float64(n) * 24, nil
	case 'w':
		return float64(n) * 24 * 7, nil
	case 'M':
		return float64(n) * 24 * 30, nil
	default:
		return 0, fmt.Errorf("invalid kline interval %q", interval)
	}
}
