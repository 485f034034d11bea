package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
	"cryptoDipBot/internal/strategy/indicators"
)

// Config holds indicator periods and the FX pairs to observe.
type Config struct {
	EMAFastPeriod   int // e.g., 12
	EMASlowPeriod   int // e.g., 26
	MACDSignal      int // e.g., 9
	ATRPeriod       int // e.g., 14
	IndicatorWindow int // How many stored prices to feed the indicators
	FXPairs         []string
	CallTimeout     time.Duration
}

// Collector ingests market observations and FX rates. Each cycle is tagged
// with one batch ID so samples from the same tick can be correlated.
type Collector struct {
	cfg     Config
	market  ports.MarketDataClient
	samples ports.SampleRepository
	fxRates ports.FXRateRepository
	logger  ports.Logger
}

// New creates a Collector instance.
func New(cfg Config, market ports.MarketDataClient, samples ports.SampleRepository, fxRates ports.FXRateRepository, logger ports.Logger) (*Collector, error) {
	if market == nil || samples == nil || fxRates == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for collector")
	}
	if cfg.EMAFastPeriod <= 0 || cfg.EMASlowPeriod <= 0 || cfg.ATRPeriod <= 0 {
		return nil, fmt.Errorf("%w: indicator periods must be positive", ports.ErrConfigurationError)
	}
	if cfg.EMAFastPeriod >= cfg.EMASlowPeriod {
		return nil, fmt.Errorf("%w: fast EMA period must be less than slow EMA period", ports.ErrConfigurationError)
	}
	if cfg.IndicatorWindow <= 0 {
		cfg.IndicatorWindow = 100
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &Collector{
		cfg:     cfg,
		market:  market,
		samples: samples,
		fxRates: fxRates,
		logger:  logger,
	}, nil
}

// FetchCycle stores one fresh MarketSample per pair. A failure for one pair
// is logged and does not stop the cycle for the remaining pairs.
func (c *Collector) FetchCycle(ctx context.Context, pairs []string) {
	batchID := uuid.NewString()
	for _, pair := range pairs {
		if err := c.fetchPair(ctx, batchID, pair); err != nil {
			c.logger.Error(ctx, err, "Failed to collect market sample", map[string]interface{}{
				"pair": pair, "batchID": batchID,
			})
		}
	}
}

func (c *Collector) fetchPair(ctx context.Context, batchID, pair string) error {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	stats, err := c.market.TickerStats24h(callCtx, pair)
	if err != nil {
		return fmt.Errorf("ticker stats for %s: %w", pair, err)
	}

	sample := &domain.MarketSample{
		BatchID:       batchID,
		Timestamp:     time.Now().UTC(),
		Pair:          pair,
		Price:         stats.LastPrice,
		Volume:        stats.Volume,
		TradesPerHour: float64(stats.Count) / 24.0,
	}

	// Indicators are computed over the stored history plus the fresh price.
	prices, err := c.samples.RecentPrices(ctx, pair, c.cfg.IndicatorWindow)
	if err != nil {
		c.logger.Warn(ctx, "Failed to load price history for indicators", map[string]interface{}{
			"pair": pair, "error": err.Error(),
		})
	} else {
		series := append(prices, stats.LastPrice)
		if v, ok := indicators.EMA(series, c.cfg.EMAFastPeriod); ok {
			sample.EMAFast = v
		}
		if v, ok := indicators.EMA(series, c.cfg.EMASlowPeriod); ok {
			sample.EMASlow = v
		}
		if v, ok := indicators.MACD(series, c.cfg.EMAFastPeriod, c.cfg.EMASlowPeriod, c.cfg.MACDSignal); ok {
			sample.MACD = v
		}
		if v, ok := indicators.ATR(series, c.cfg.ATRPeriod); ok {
			sample.ATR = v
		}
	}

	if _, err := c.samples.AppendSample(ctx, sample); err != nil {
		return fmt.Errorf("append sample for %s: %w", pair, err)
	}
	c.logger.Debug(ctx, "Market sample stored", map[string]interface{}{
		"pair": pair, "price": sample.Price, "tradesPerHour": sample.TradesPerHour,
	})
	return nil
}

// FetchFXCycle stores one fresh rate per configured FX pair. FX pairs are
// six-letter symbols like "USDPLN" split into base and quote halves.
func (c *Collector) FetchFXCycle(ctx context.Context) {
	for _, pair := range c.cfg.FXPairs {
		if len(pair) != 6 {
			c.logger.Warn(ctx, "Skipping malformed FX pair", map[string]interface{}{"pair": pair})
			continue
		}
		if err := c.fetchFXPair(ctx, pair); err != nil {
			c.logger.Error(ctx, err, "Failed to collect FX rate", map[string]interface{}{"pair": pair})
		}
	}
}

func (c *Collector) fetchFXPair(ctx context.Context, pair string) error {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	price, err := c.market.TickerPrice(callCtx, pair)
	if err != nil {
		return fmt.Errorf("fx ticker for %s: %w", pair, err)
	}
	_, err = c.fxRates.AppendRate(ctx, &domain.FXRate{
		Timestamp: time.Now().UTC(),
		Base:      pair[:3],
		Quote:     pair[3:],
		Rate:      price,
	})
	if err != nil {
		return fmt.Errorf("append fx rate for %s: %w", pair, err)
	}
	return nil
}
