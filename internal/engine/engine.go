package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoDipBot/internal/alerting"
	"cryptoDipBot/internal/collector"
	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ledger"
	"cryptoDipBot/internal/ports"
	"cryptoDipBot/internal/strategy"
)

// Config holds the scheduler's timing and FX reporting settings.
type Config struct {
	Interval      time.Duration // Evaluation tick interval
	FXInterval    time.Duration // How often FX rates are refreshed
	CallTimeout   time.Duration // Bound on each external call
	FXBase        string        // Reporting conversion, e.g. "USD"
	FXQuote       string        // e.g. "PLN"
	DefaultFXRate float64       // Fallback when no rate has been observed
}

// Status is a consistent snapshot of the engine state.
type Status struct {
	Running   bool
	Autotrade bool
	Pairs     []string
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Logger      ports.Logger
	Strategy    *strategy.Strategy
	Ledger      *ledger.Ledger
	Governor    *alerting.Governor
	Collector   *collector.Collector
	Market      ports.MarketDataClient
	Executor    ports.OrderExecutionClient
	Samples     ports.SampleRepository
	PairConfigs ports.PairConfigRepository
	FXRates     ports.FXRateRepository
	TradeLogs   ports.TradeLogRepository
}

// Engine drives the recurring evaluation loop. The loop itself runs for the
// life of the process; while the engine is stopped a tick does no work.
// Engine state is mutated only through Start/Stop/SetAutotrade/SetPairs and
// read as a snapshot via Status.
type Engine struct {
	cfg Config
	d   Deps

	mu          sync.Mutex
	running     bool
	autotrade   bool
	pairs       []string
	lastFXFetch time.Time

	execMu    sync.Mutex
	execLocks map[string]*sync.Mutex
}

// New creates an Engine instance.
func New(cfg Config, d Deps) (*Engine, error) {
	if d.Logger == nil || d.Strategy == nil || d.Ledger == nil || d.Governor == nil ||
		d.Collector == nil || d.Market == nil || d.Executor == nil ||
		d.Samples == nil || d.PairConfigs == nil || d.FXRates == nil || d.TradeLogs == nil {
		return nil, fmt.Errorf("missing required dependencies for engine")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: tick interval must be positive", ports.ErrConfigurationError)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.FXInterval <= 0 {
		cfg.FXInterval = time.Hour
	}
	if cfg.DefaultFXRate <= 0 {
		cfg.DefaultFXRate = 4.0
	}
	return &Engine{cfg: cfg, d: d, execLocks: make(map[string]*sync.Mutex)}, nil
}

// pairExecLock serializes the whole decision-to-execution sequence for one
// pair. The ledger's own lock only covers the recording step; this one is
// held across the open-check, the exchange order and the ledger write so two
// concurrent decisions cannot both execute against the same lot.
func (e *Engine) pairExecLock(pair string) *sync.Mutex {
	e.execMu.Lock()
	defer e.execMu.Unlock()
	m, ok := e.execLocks[pair]
	if !ok {
		m = &sync.Mutex{}
		e.execLocks[pair] = m
	}
	return m
}

// Start enables evaluation. Pairs, when given, replace the active set;
// autotrade, when non-nil, sets the sub-flag. Starting an already running
// engine only applies the overrides.
func (e *Engine) Start(pairs []string, autotrade *bool) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	if len(pairs) > 0 {
		e.pairs = append([]string(nil), pairs...)
	}
	if autotrade != nil {
		e.autotrade = *autotrade
	}
	return e.statusLocked()
}

// Stop disables evaluation. An in-flight tick is allowed to complete; the
// next tick observes the flag and does no work.
func (e *Engine) Stop() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return e.statusLocked()
}

// SetAutotrade toggles automatic trading in any state.
func (e *Engine) SetAutotrade(enabled bool) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autotrade = enabled
	return e.statusLocked()
}

// SetPairs replaces the active pair set.
func (e *Engine) SetPairs(pairs []string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pairs = append([]string(nil), pairs...)
	return e.statusLocked()
}

// Status returns a consistent snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	return Status{
		Running:   e.running,
		Autotrade: e.autotrade,
		Pairs:     append([]string(nil), e.pairs...),
	}
}

// Run drives the tick loop until the context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.d.Logger.Info(ctx, "Engine loop started", map[string]interface{}{
		"interval": e.cfg.Interval.String(),
	})
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.d.Logger.Info(ctx, "Engine loop stopping", map[string]interface{}{"reason": ctx.Err().Error()})
			return nil
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick performs one evaluation cycle. It never returns an error: every
// per-pair failure is isolated, logged, and must not abort the remaining
// pairs or the loop.
func (e *Engine) Tick(ctx context.Context) {
	st := e.Status()
	if !st.Running {
		return
	}

	e.d.Collector.FetchCycle(ctx, st.Pairs)
	e.maybeFetchFX(ctx)

	if !st.Autotrade {
		return
	}

	var wg sync.WaitGroup
	for _, pair := range st.Pairs {
		wg.Add(1)
		go func(pair string) {
			defer wg.Done()
			if err := e.evaluatePair(ctx, pair); err != nil {
				e.d.Logger.Error(ctx, err, "Pair evaluation failed", map[string]interface{}{"pair": pair})
			}
		}(pair)
	}
	wg.Wait()
}

func (e *Engine) maybeFetchFX(ctx context.Context) {
	e.mu.Lock()
	due := e.lastFXFetch.IsZero() || time.Since(e.lastFXFetch) >= e.cfg.FXInterval
	if due {
		e.lastFXFetch = time.Now()
	}
	e.mu.Unlock()
	if due {
		e.d.Collector.FetchFXCycle(ctx)
	}
}

// pairConfig resolves the stored configuration for a pair, defaulting to
// allowed with a mid risk level when the pair was never configured.
func (e *Engine) pairConfig(ctx context.Context, pair string) *domain.PairConfig {
	cfg, err := e.d.PairConfigs.FindPairConfig(ctx, pair)
	if err != nil {
		e.d.Logger.Error(ctx, err, "Failed to load pair config, using defaults", map[string]interface{}{"pair": pair})
	}
	if cfg == nil {
		return &domain.PairConfig{Pair: pair, Allowed: true, RiskLevel: domain.DefaultRiskLevel}
	}
	return cfg
}

func (e *Engine) evaluatePair(ctx context.Context, pair string) error {
	pc := e.pairConfig(ctx, pair)
	if !pc.Allowed {
		e.d.Logger.Debug(ctx, "Pair disabled in configuration", map[string]interface{}{"pair": pair})
		return nil
	}

	// Manual orders racing the tick must wait until this evaluation settles.
	lock := e.pairExecLock(pair)
	lock.Lock()
	defer lock.Unlock()

	sample, err := e.d.Samples.LatestSample(ctx, pair)
	if err != nil {
		return fmt.Errorf("latest sample for %s: %w", pair, err)
	}
	if sample == nil || sample.Price <= 0 {
		e.d.Logger.Debug(ctx, "No market sample yet, skipping evaluation", map[string]interface{}{"pair": pair})
		return nil
	}
	priceNow := sample.Price

	refLow := e.lookbackLow(ctx, pair)

	// Downtrend: price below the fast EMA, falling back to the lookback
	// reference when no EMA has been computed yet.
	isDowntrend := false
	if sample.EMAFast > 0 {
		isDowntrend = priceNow < sample.EMAFast
	} else if refLow > 0 {
		isDowntrend = priceNow < refLow
	}

	e.evaluateSells(ctx, pair, priceNow)

	avgEntry, hasOpen, err := e.d.Ledger.WeightedAverageEntry(ctx, pair)
	if err != nil {
		return fmt.Errorf("weighted average entry for %s: %w", pair, err)
	}

	buy, reason, mult := e.d.Strategy.ShouldBuy(strategy.BuyInputs{
		PriceNow:         priceNow,
		ReferenceLow:     refLow,
		TradesPerHour:    sample.TradesPerHour,
		IsDowntrend:      isDowntrend,
		HasOpenLots:      hasOpen,
		WeightedAvgEntry: avgEntry,
	})
	if buy {
		params := e.d.Strategy.Params()
		notional := params.BasePackageUSD * mult * riskScale(pc.RiskLevel)
		if lot, err := e.marketBuy(ctx, pair, notional); err != nil {
			e.d.Logger.Error(ctx, err, "Auto-buy failed", map[string]interface{}{"pair": pair, "notionalUSD": notional})
			e.tradeLog(ctx, pair, domain.LogLevelError, fmt.Sprintf("auto-buy failed: %v", err), nil, nil)
		} else {
			e.tradeLog(ctx, pair, domain.LogLevelInfo,
				fmt.Sprintf("auto-buy: %s (qty=%.6f @ %.2f, notionalUSD=%.2f, risk=%d)", reason, lot.Quantity, lot.EntryPrice, notional, pc.RiskLevel),
				nil, nil)
		}
	} else {
		e.d.Logger.Debug(ctx, "Buy rejected", map[string]interface{}{"pair": pair, "reason": reason})
	}

	return e.reportPnL(ctx, pair, priceNow)
}

// evaluateSells checks every open lot independently against its own entry
// price and post-entry peak, and closes the eligible ones.
func (e *Engine) evaluateSells(ctx context.Context, pair string, priceNow float64) {
	lots, err := e.d.Ledger.OpenLots(ctx, pair)
	if err != nil {
		e.d.Logger.Error(ctx, err, "Failed to load open lots", map[string]interface{}{"pair": pair})
		return
	}
	for _, lot := range lots {
		peak, ok, err := e.d.Ledger.PeakPriceSince(ctx, pair, lot.CreatedAt)
		if err != nil {
			e.d.Logger.Error(ctx, err, "Failed to load peak price", map[string]interface{}{"pair": pair, "lotID": lot.ID})
			continue
		}
		if !ok || peak <= 0 {
			peak = priceNow
		}
		sell, reason := e.d.Strategy.ShouldSell(priceNow, lot.EntryPrice, peak)
		if !sell {
			e.d.Logger.Debug(ctx, "Sell rejected", map[string]interface{}{"pair": pair, "lotID": lot.ID, "reason": reason})
			continue
		}
		if closed, err := e.marketSell(ctx, lot); err != nil {
			e.d.Logger.Error(ctx, err, "Auto-sell failed", map[string]interface{}{"pair": pair, "lotID": lot.ID})
			e.tradeLog(ctx, pair, domain.LogLevelError, fmt.Sprintf("auto-sell failed for lot %d: %v", lot.ID, err), nil, nil)
		} else {
			e.tradeLog(ctx, pair, domain.LogLevelInfo,
				fmt.Sprintf("auto-sell: %s (lot %d, pnl %.2f USD / %.2f %s)", reason, closed.ID, closed.RealizedPnLQuote, closed.RealizedPnLBase, e.cfg.FXQuote),
				nil, nil)
		}
	}
}

// reportPnL writes the aggregate unrealized PnL reading for a pair and
// feeds it to the alert governor.
func (e *Engine) reportPnL(ctx context.Context, pair string, priceNow float64) error {
	lots, err := e.d.Ledger.OpenLots(ctx, pair)
	if err != nil {
		return fmt.Errorf("open lots for %s: %w", pair, err)
	}
	if len(lots) == 0 {
		return nil
	}
	pnlUSD, pnlPct, err := e.d.Ledger.UnrealizedPnL(ctx, pair, priceNow)
	if err != nil {
		return fmt.Errorf("unrealized pnl for %s: %w", pair, err)
	}
	e.tradeLog(ctx, pair, domain.LogLevelInfo,
		fmt.Sprintf("PNL %.2f USD (%.2f%%)", pnlUSD, pnlPct), &pnlUSD, &pnlPct)
	e.d.Governor.MaybeAlert(ctx, pair, pnlUSD, pnlPct, time.Now().UTC())
	return nil
}

// lookbackLow resolves the reference low for the configured lookback
// window. Returns 0 when the reference cannot be determined; the strategy
// treats that as "no band available".
func (e *Engine) lookbackLow(ctx context.Context, pair string) float64 {
	params := e.d.Strategy.Params()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	switch params.BuyLookback {
	case strategy.LookbackDay:
		stats, err := e.d.Market.TickerStats24h(callCtx, pair)
		if err != nil {
			e.d.Logger.Warn(ctx, "Failed to fetch 24h low", map[string]interface{}{"pair": pair, "error": err.Error()})
			return 0
		}
		return stats.Low
	case strategy.LookbackWeek, strategy.LookbackMonth:
		days := 7
		if params.BuyLookback == strategy.LookbackMonth {
			days = 30
		}
		klines, err := e.d.Market.Klines(callCtx, pair, "1h", 24*days)
		if err != nil {
			e.d.Logger.Warn(ctx, "Failed to fetch lookback klines", map[string]interface{}{"pair": pair, "error": err.Error()})
			return 0
		}
		low := 0.0
		for _, k := range klines {
			if low == 0 || k.Low < low {
				low = k.Low
			}
		}
		return low
	default:
		return 0
	}
}

// riskScale maps a 0..10 risk level onto a bounded sizing multiplier.
func riskScale(riskLevel int) float64 {
	scale := float64(riskLevel+1) / 5.0
	if scale < 0.2 {
		return 0.2
	}
	if scale > 2.0 {
		return 2.0
	}
	return scale
}

func (e *Engine) tradeLog(ctx context.Context, pair, level, msg string, pnlUSD, pnlPct *float64) {
	entry := &domain.TradeLog{
		Timestamp:  time.Now().UTC(),
		Pair:       pair,
		Level:      level,
		Message:    msg,
		PnLUSD:     pnlUSD,
		PnLPercent: pnlPct,
		Strategy:   strategy.Name,
	}
	if _, err := e.d.TradeLogs.CreateTradeLog(ctx, entry); err != nil {
		e.d.Logger.Error(ctx, err, "Failed to persist trade log entry", map[string]interface{}{"pair": pair})
	}
}
