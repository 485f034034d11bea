package strategy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func defaultParams() Params {
	return Params{
		MinProfitPct:        5.0,
		HysteresisPct:       1.0,
		BuyDrawdownPct:      3.0,
		MinTradesPerHour:    100,
		BasePackageUSD:      50.0,
		DowntrendMultiplier: 2.0,
		BuyLookback:         LookbackDay,
	}
}

func newStrategy(t *testing.T, p Params) *Strategy {
	t.Helper()
	s, err := New(p, noopLogger{})
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero min profit", func(p *Params) { p.MinProfitPct = 0 }},
		{"negative hysteresis", func(p *Params) { p.HysteresisPct = -1 }},
		{"negative drawdown", func(p *Params) { p.BuyDrawdownPct = -0.5 }},
		{"negative liquidity floor", func(p *Params) { p.MinTradesPerHour = -10 }},
		{"zero base package", func(p *Params) { p.BasePackageUSD = 0 }},
		{"zero multiplier", func(p *Params) { p.DowntrendMultiplier = 0 }},
		{"unknown lookback", func(p *Params) { p.BuyLookback = "fortnight" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaultParams()
			tt.mutate(&p)
			_, err := New(p, noopLogger{})
			assert.Error(t, err)
		})
	}

	t.Run("nil logger", func(t *testing.T) {
		_, err := New(defaultParams(), nil)
		assert.Error(t, err)
	})
}

func TestShouldBuy(t *testing.T) {
	tests := []struct {
		name       string
		in         BuyInputs
		wantBuy    bool
		wantMult   float64
		wantReason string
	}{
		{
			name:       "liquidity gate dominates everything",
			in:         BuyInputs{PriceNow: 90, ReferenceLow: 100, TradesPerHour: 99, IsDowntrend: true},
			wantBuy:    false,
			wantReason: "insufficient trading activity",
		},
		{
			name:     "dip entry within drawdown band, no open lots",
			in:       BuyInputs{PriceNow: 102, ReferenceLow: 100, TradesPerHour: 150},
			wantBuy:  true,
			wantMult: 1.0,
		},
		{
			name:     "dip entry in downtrend gets full multiplier",
			in:       BuyInputs{PriceNow: 101, ReferenceLow: 100, TradesPerHour: 150, IsDowntrend: true},
			wantBuy:  true,
			wantMult: 2.0,
		},
		{
			name: "averaging up blocked by hysteresis guard",
			in: BuyInputs{
				PriceNow: 102, ReferenceLow: 100, TradesPerHour: 150,
				HasOpenLots: true, WeightedAvgEntry: 100,
			},
			wantBuy:    false,
			wantReason: "hysteresis threshold",
		},
		{
			name: "averaging down below existing average allowed",
			in: BuyInputs{
				PriceNow: 102, ReferenceLow: 100, TradesPerHour: 150,
				HasOpenLots: true, WeightedAvgEntry: 110,
			},
			wantBuy:  true,
			wantMult: 1.0,
		},
		{
			name:     "outside band but downtrend adds",
			in:       BuyInputs{PriceNow: 110, ReferenceLow: 100, TradesPerHour: 150, IsDowntrend: true},
			wantBuy:  true,
			wantMult: 2.0,
		},
		{
			name:       "outside band and no downtrend rejects",
			in:         BuyInputs{PriceNow: 110, ReferenceLow: 100, TradesPerHour: 150},
			wantBuy:    false,
			wantReason: "buy conditions not met",
		},
		{
			name:     "unknown reference low falls through to downtrend rule",
			in:       BuyInputs{PriceNow: 110, ReferenceLow: 0, TradesPerHour: 150, IsDowntrend: true},
			wantBuy:  true,
			wantMult: 2.0,
		},
	}

	s := newStrategy(t, defaultParams())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buy, reason, mult := s.ShouldBuy(tt.in)
			assert.Equal(t, tt.wantBuy, buy)
			if tt.wantBuy {
				assert.Equal(t, tt.wantMult, mult)
			}
			if tt.wantReason != "" {
				assert.Contains(t, reason, tt.wantReason)
			}
		})
	}
}

func TestShouldBuy_SpecScenario(t *testing.T) {
	// drawdown 3%, low 100, price 102, tph 150 >= 100, no lots, no downtrend
	s := newStrategy(t, defaultParams())
	buy, reason, mult := s.ShouldBuy(BuyInputs{
		PriceNow: 102, ReferenceLow: 100, TradesPerHour: 150,
	})
	require.True(t, buy)
	assert.Equal(t, 1.0, mult)
	assert.True(t, strings.Contains(strings.ToLower(reason), "drawdown"))
}

func TestShouldBuy_NeverBuysBelowLiquidityFloor(t *testing.T) {
	s := newStrategy(t, defaultParams())
	inputs := []BuyInputs{
		{PriceNow: 50, ReferenceLow: 100, TradesPerHour: 0, IsDowntrend: true},
		{PriceNow: 100, ReferenceLow: 100, TradesPerHour: 99.9},
		{PriceNow: 100, ReferenceLow: 100, TradesPerHour: 50, HasOpenLots: true, WeightedAvgEntry: 200},
	}
	for _, in := range inputs {
		buy, _, _ := s.ShouldBuy(in)
		assert.False(t, buy)
	}
}

func TestShouldSell(t *testing.T) {
	tests := []struct {
		name       string
		priceNow   float64
		entry      float64
		peak       float64
		wantSell   bool
		wantReason string
	}{
		{
			name:     "growth 8pct with 1.8pct pullback sells",
			priceNow: 108, entry: 100, peak: 110,
			wantSell: true,
		},
		{
			name:     "growth 9.5pct but only 0.45pct pullback holds",
			priceNow: 109.5, entry: 100, peak: 110,
			wantSell:   false,
			wantReason: "still rising",
		},
		{
			name:     "profit target not reached",
			priceNow: 104, entry: 100, peak: 110,
			wantSell:   false,
			wantReason: "not reached",
		},
		{
			name:     "zero peak counts as no pullback",
			priceNow: 110, entry: 100, peak: 0,
			wantSell:   false,
			wantReason: "still rising",
		},
		{
			name:     "loss never sells",
			priceNow: 90, entry: 100, peak: 120,
			wantSell:   false,
			wantReason: "not reached",
		},
	}

	s := newStrategy(t, defaultParams())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sell, reason := s.ShouldSell(tt.priceNow, tt.entry, tt.peak)
			assert.Equal(t, tt.wantSell, sell)
			if tt.wantReason != "" {
				assert.Contains(t, reason, tt.wantReason)
			}
		})
	}
}

func TestShouldSell_NeverSellsBelowProfitTarget(t *testing.T) {
	s := newStrategy(t, defaultParams())
	for _, price := range []float64{100, 101, 102, 103, 104.9} {
		sell, _ := s.ShouldSell(price, 100, 1000)
		assert.False(t, sell, "price %.1f is below the 5%% target", price)
	}
}

func TestSetParams(t *testing.T) {
	s := newStrategy(t, defaultParams())

	p := defaultParams()
	p.MinProfitPct = 2.0
	require.NoError(t, s.SetParams(p))
	assert.Equal(t, 2.0, s.Params().MinProfitPct)

	p.MinProfitPct = -1
	assert.Error(t, s.SetParams(p))
	// rejected update leaves previous params intact
	assert.Equal(t, 2.0, s.Params().MinProfitPct)
}
