package strategy

import (
	"fmt"
	"sync"

	"cryptoDipBot/internal/ports"
)

// Name identifies the strategy in trade logs.
const Name = "SIMPLE_MINPROFIT_HYST"

// Lookback windows for the buy-side reference low.
const (
	LookbackDay   = "day"
	LookbackWeek  = "week"
	LookbackMonth = "month"
)

// Params holds the tunable parameters for the threshold-drawdown strategy.
type Params struct {
	MinProfitPct        float64 // Minimum growth over entry before a sell is considered
	HysteresisPct       float64 // Required pullback from peak (sell) / premium cap over average entry (buy)
	BuyDrawdownPct      float64 // Maximum distance above the lookback low for a dip entry
	MinTradesPerHour    float64 // Liquidity floor
	BasePackageUSD      float64 // Base notional per buy decision
	DowntrendMultiplier float64 // Sizing multiplier applied on downtrend entries
	BuyLookback         string  // "day", "week" or "month"
}

// Validate checks parameter sanity. Thresholds that can never trigger a
// trade are configuration errors, not silent no-ops.
func (p Params) Validate() error {
	if p.MinProfitPct <= 0 {
		return fmt.Errorf("%w: MinProfitPct must be positive", ports.ErrConfigurationError)
	}
	if p.HysteresisPct < 0 {
		return fmt.Errorf("%w: HysteresisPct cannot be negative", ports.ErrConfigurationError)
	}
	if p.BuyDrawdownPct < 0 {
		return fmt.Errorf("%w: BuyDrawdownPct cannot be negative", ports.ErrConfigurationError)
	}
	if p.MinTradesPerHour < 0 {
		return fmt.Errorf("%w: MinTradesPerHour cannot be negative", ports.ErrConfigurationError)
	}
	if p.BasePackageUSD <= 0 {
		return fmt.Errorf("%w: BasePackageUSD must be positive", ports.ErrConfigurationError)
	}
	if p.DowntrendMultiplier <= 0 {
		return fmt.Errorf("%w: DowntrendMultiplier must be positive", ports.ErrConfigurationError)
	}
	switch p.BuyLookback {
	case LookbackDay, LookbackWeek, LookbackMonth:
	default:
		return fmt.Errorf("%w: BuyLookback must be one of day, week, month", ports.ErrConfigurationError)
	}
	return nil
}

// BuyInputs carries the market and ledger state a buy decision consumes.
// All inputs are plain values so decisions stay deterministic and testable
// without time or network dependencies.
type BuyInputs struct {
	PriceNow         float64
	ReferenceLow     float64 // Lowest price over the configured lookback; 0 when unknown
	TradesPerHour    float64
	IsDowntrend      bool
	HasOpenLots      bool
	WeightedAvgEntry float64 // Meaningful only when HasOpenLots
}

// Strategy implements the threshold-drawdown entry with hysteresis-gated
// profit-take exit. Parameters may be swapped at runtime via SetParams; the
// decision methods themselves are pure given their inputs.
type Strategy struct {
	mu     sync.RWMutex
	params Params
	logger ports.Logger
}

// New creates a Strategy with validated parameters.
func New(params Params, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Strategy{params: params, logger: logger}, nil
}

// Params returns a snapshot of the current parameters.
func (s *Strategy) Params() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// SetParams replaces the parameters after validation.
func (s *Strategy) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	return nil
}

// ShouldBuy decides whether to open a new lot. Rule order is significant:
// the liquidity gate dominates everything, and the drawdown-band rule
// dominates the plain downtrend rule.
func (s *Strategy) ShouldBuy(in BuyInputs) (bool, string, float64) {
	p := s.Params()

	if in.TradesPerHour < p.MinTradesPerHour {
		return false, fmt.Sprintf("insufficient trading activity (%.0f/h < %.0f/h)", in.TradesPerHour, p.MinTradesPerHour), 1.0
	}

	if in.ReferenceLow > 0 {
		drawdown := (in.PriceNow - in.ReferenceLow) / in.ReferenceLow * 100.0
		if drawdown <= p.BuyDrawdownPct {
			if in.HasOpenLots && in.PriceNow >= in.WeightedAvgEntry*(1+p.HysteresisPct/100.0) {
				return false, fmt.Sprintf("price above hysteresis threshold over existing average (avg entry %.2f)", in.WeightedAvgEntry), 1.0
			}
			mult := 1.0
			if in.IsDowntrend {
				mult = p.DowntrendMultiplier
			}
			return true, fmt.Sprintf("price within %.2f%% drawdown band of %s low (%.2f%% above low)", p.BuyDrawdownPct, p.BuyLookback, drawdown), mult
		}
	}

	if in.IsDowntrend {
		return true, "trend-following add in downtrend", p.DowntrendMultiplier
	}

	return false, "buy conditions not met", 1.0
}

// ShouldSell decides whether to close one lot. Evaluation is per lot: the
// caller supplies that lot's entry price and its own post-entry peak.
func (s *Strategy) ShouldSell(priceNow, entryPrice, peakSinceEntry float64) (bool, string) {
	p := s.Params()

	growthPct := (priceNow - entryPrice) / entryPrice * 100.0
	if growthPct < p.MinProfitPct {
		return false, fmt.Sprintf("profit target not reached (%.2f%% < %.2f%%)", growthPct, p.MinProfitPct)
	}

	dropFromPeak := 0.0
	if peakSinceEntry > 0 {
		dropFromPeak = (peakSinceEntry - priceNow) / peakSinceEntry * 100.0
	}
	if dropFromPeak >= p.HysteresisPct {
		return true, fmt.Sprintf("profit target reached (%.2f%%) with %.2f%% pullback from peak", growthPct, dropFromPeak)
	}
	return false, fmt.Sprintf("profit target reached (%.2f%%) but trend still rising", growthPct)
}
