package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/engine"
	"cryptoDipBot/internal/ports"
	"cryptoDipBot/internal/strategy"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// fakeEngine is a stand-in for the real engine behind EngineControl.
type fakeEngine struct {
	status    engine.Status
	boughtLot *domain.Lot
	buyErr    error
	sellErr   error
	lastPair  string
	lastSize  float64
}

func (f *fakeEngine) Start(pairs []string, autotrade *bool) engine.Status {
	f.status.Running = true
	if len(pairs) > 0 {
		f.status.Pairs = pairs
	}
	if autotrade != nil {
		f.status.Autotrade = *autotrade
	}
	return f.status
}

func (f *fakeEngine) Stop() engine.Status {
	f.status.Running = false
	return f.status
}

func (f *fakeEngine) SetAutotrade(enabled bool) engine.Status {
	f.status.Autotrade = enabled
	return f.status
}

func (f *fakeEngine) SetPairs(pairs []string) engine.Status {
	f.status.Pairs = pairs
	return f.status
}

func (f *fakeEngine) Status() engine.Status { return f.status }

func (f *fakeEngine) ManualBuy(ctx context.Context, pair string, quoteNotional float64) (*domain.Lot, error) {
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	f.lastPair, f.lastSize = pair, quoteNotional
	return f.boughtLot, nil
}

func (f *fakeEngine) ManualSellLot(ctx context.Context, lotID int64) (*domain.Lot, error) {
	if f.sellErr != nil {
		return nil, f.sellErr
	}
	return f.boughtLot, nil
}

func (f *fakeEngine) ManualSellPair(ctx context.Context, pair string) ([]*domain.Lot, error) {
	if f.sellErr != nil {
		return nil, f.sellErr
	}
	return []*domain.Lot{f.boughtLot}, nil
}

type fakeTradeLogs struct{ logs []*domain.TradeLog }

func (f *fakeTradeLogs) CreateTradeLog(ctx context.Context, e *domain.TradeLog) (int64, error) {
	f.logs = append(f.logs, e)
	return int64(len(f.logs)), nil
}

func (f *fakeTradeLogs) RecentTradeLogs(ctx context.Context, limit int) ([]*domain.TradeLog, error) {
	return f.logs, nil
}

type fakeAlerts struct{ alerts []*domain.Alert }

func (f *fakeAlerts) CreateAlert(ctx context.Context, a *domain.Alert) (int64, error) {
	f.alerts = append(f.alerts, a)
	return int64(len(f.alerts)), nil
}

func (f *fakeAlerts) RecentAlerts(ctx context.Context, limit int) ([]*domain.Alert, error) {
	return f.alerts, nil
}

func (f *fakeAlerts) ClearAlerts(ctx context.Context) error {
	f.alerts = nil
	return nil
}

type fakeSamples struct{ samples []*domain.MarketSample }

func (f *fakeSamples) AppendSample(ctx context.Context, s *domain.MarketSample) (int64, error) {
	f.samples = append(f.samples, s)
	return int64(len(f.samples)), nil
}

func (f *fakeSamples) LatestSample(ctx context.Context, pair string) (*domain.MarketSample, error) {
	return nil, nil
}

func (f *fakeSamples) MaxPriceSince(ctx context.Context, pair string, since time.Time) (float64, bool, error) {
	return 0, false, nil
}

func (f *fakeSamples) RecentPrices(ctx context.Context, pair string, limit int) ([]float64, error) {
	return nil, nil
}

func (f *fakeSamples) RecentSamples(ctx context.Context, pair string, limit int) ([]*domain.MarketSample, error) {
	var out []*domain.MarketSample
	for _, s := range f.samples {
		if s.Pair == pair {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakePairConfigs struct{ configs map[string]*domain.PairConfig }

func (f *fakePairConfigs) UpsertPairConfig(ctx context.Context, cfg *domain.PairConfig) error {
	if f.configs == nil {
		f.configs = map[string]*domain.PairConfig{}
	}
	f.configs[cfg.Pair] = cfg
	return nil
}

func (f *fakePairConfigs) FindPairConfig(ctx context.Context, pair string) (*domain.PairConfig, error) {
	return f.configs[pair], nil
}

func (f *fakePairConfigs) FindAllPairConfigs(ctx context.Context) ([]*domain.PairConfig, error) {
	var out []*domain.PairConfig
	for _, cfg := range f.configs {
		out = append(out, cfg)
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *fakeEngine, *fakeAlerts, *fakePairConfigs) {
	t.Helper()

	strat, err := strategy.New(strategy.Params{
		MinProfitPct:        5,
		HysteresisPct:       1,
		BuyDrawdownPct:      3,
		MinTradesPerHour:    100,
		BasePackageUSD:      50,
		DowntrendMultiplier: 2,
		BuyLookback:         strategy.LookbackDay,
	}, noopLogger{})
	require.NoError(t, err)

	eng := &fakeEngine{
		boughtLot: &domain.Lot{ID: 1, Pair: "BTCUSDC", CreatedAt: time.Now().UTC(), Quantity: 0.001, EntryPrice: 50000},
	}
	alerts := &fakeAlerts{}
	pairCfgs := &fakePairConfigs{}

	srv, err := New(Config{
		Addr:          ":0",
		AllowedQuotes: []string{"USDC", "BTC", "BNB"},
	}, Deps{
		Logger:      noopLogger{},
		Engine:      eng,
		Strategy:    strat,
		TradeLogs:   &fakeTradeLogs{},
		Alerts:      alerts,
		Samples:     &fakeSamples{},
		PairConfigs: pairCfgs,
	})
	require.NoError(t, err)
	return srv, eng, alerts, pairCfgs
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStartStopAndStatus(t *testing.T) {
	srv, eng, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/start", `{"pairs":["BTCUSDC"],"autotrade":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var st statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Running)
	assert.True(t, st.Autotrade)
	assert.Equal(t, []string{"BTCUSDC"}, st.Pairs)

	rec = doRequest(t, srv, http.MethodPost, "/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, eng.status.Running)

	rec = doRequest(t, srv, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.Running)
}

func TestStartRejectsDisallowedQuote(t *testing.T) {
	srv, eng, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/start", `{"pairs":["BTCUSDT"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, eng.status.Running)
}

func TestAutotradeToggle(t *testing.T) {
	srv, eng, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/autotrade", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, eng.status.Autotrade)

	rec = doRequest(t, srv, http.MethodPost, "/autotrade", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, eng.status.Autotrade)
}

func TestConfigRoundTrip(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg strategyConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 5.0, cfg.MinProfitPct)

	// Partial update: only the profit target changes.
	rec = doRequest(t, srv, http.MethodPut, "/config", `{"min_profit_pct":8}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 8.0, cfg.MinProfitPct)
	assert.Equal(t, 1.0, cfg.HysteresisPct)

	// Invalid values are rejected and leave the config untouched.
	rec = doRequest(t, srv, http.MethodPut, "/config", `{"min_profit_pct":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/config", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 8.0, cfg.MinProfitPct)
}

func TestPairConfig(t *testing.T) {
	srv, _, _, pairCfgs := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/pair-config", `{"pair":"ethusdc","allowed":true,"risk_level":15}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload pairConfigPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "ETHUSDC", payload.Pair)
	// Out-of-range risk clamps to the maximum.
	assert.Equal(t, domain.MaxRiskLevel, payload.RiskLevel)
	assert.NotNil(t, pairCfgs.configs["ETHUSDC"])

	rec = doRequest(t, srv, http.MethodGet, "/pair-config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []pairConfigPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)
}

func TestManualBuy(t *testing.T) {
	srv, eng, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/order/buy", `{"pair":"btcusdc","notional_usd":75}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "BTCUSDC", eng.lastPair)
	assert.Equal(t, 75.0, eng.lastSize)

	// No notional falls back to the configured package size.
	rec = doRequest(t, srv, http.MethodPost, "/order/buy", `{"pair":"BTCUSDC"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 50.0, eng.lastSize)

	rec = doRequest(t, srv, http.MethodPost, "/order/buy", `{"pair":"BTCEUR"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualSell(t *testing.T) {
	srv, eng, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/order/sell", `{"lot_id":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/order/sell", `{"pair":"BTCUSDC"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var lots []lotPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lots))
	assert.Len(t, lots, 1)

	rec = doRequest(t, srv, http.MethodPost, "/order/sell", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	eng.sellErr = ports.ErrAlreadyClosed
	rec = doRequest(t, srv, http.MethodPost, "/order/sell", `{"lot_id":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	eng.sellErr = ports.ErrNotFound
	rec = doRequest(t, srv, http.MethodPost, "/order/sell", `{"lot_id":99}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertsLifecycle(t *testing.T) {
	srv, _, alerts, _ := newTestServer(t)
	alerts.alerts = []*domain.Alert{{ID: 1, Pair: "BTCUSDC", Polarity: domain.PolarityPositive}}

	rec := doRequest(t, srv, http.MethodGet, "/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "positive", got[0]["polarity"])
	assert.Contains(t, got[0], "pnl_usd")
	assert.Contains(t, got[0], "pnl_pct")

	rec = doRequest(t, srv, http.MethodDelete, "/alerts", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, alerts.alerts)
}

func TestMarketHistory(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/market/history", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/market/history?pair=BTCUSDC&limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListEndpointsUseSnakeCase(t *testing.T) {
	strat, err := strategy.New(strategy.Params{
		MinProfitPct:        5,
		HysteresisPct:       1,
		BuyDrawdownPct:      3,
		MinTradesPerHour:    100,
		BasePackageUSD:      50,
		DowntrendMultiplier: 2,
		BuyLookback:         strategy.LookbackDay,
	}, noopLogger{})
	require.NoError(t, err)

	pnl := 12.5
	srv, err := New(Config{Addr: ":0", AllowedQuotes: []string{"USDC"}}, Deps{
		Logger:   noopLogger{},
		Engine:   &fakeEngine{},
		Strategy: strat,
		TradeLogs: &fakeTradeLogs{logs: []*domain.TradeLog{
			{ID: 1, Timestamp: time.Now().UTC(), Pair: "BTCUSDC", Level: domain.LogLevelInfo, Message: "x", PnLUSD: &pnl, PnLPercent: &pnl, Strategy: strategy.Name},
		}},
		Alerts: &fakeAlerts{},
		Samples: &fakeSamples{samples: []*domain.MarketSample{
			{ID: 1, BatchID: "b", Timestamp: time.Now().UTC(), Pair: "BTCUSDC", Price: 100, Volume: 5, TradesPerHour: 200, EMAFast: 99, EMASlow: 98, MACD: 0.5, ATR: 1.5},
		}},
		PairConfigs: &fakePairConfigs{},
	})
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodGet, "/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	for _, key := range []string{"id", "timestamp", "pair", "level", "message", "pnl_usd", "pnl_pct", "strategy"} {
		assert.Contains(t, logs[0], key)
	}
	assert.NotContains(t, logs[0], "PnLUSD")

	rec = doRequest(t, srv, http.MethodGet, "/market/history?pair=BTCUSDC", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var samples []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &samples))
	require.Len(t, samples, 1)
	for _, key := range []string{"id", "batch_id", "timestamp", "pair", "price", "volume", "trades_per_hour", "ema_fast", "ema_slow", "macd", "atr"} {
		assert.Contains(t, samples[0], key)
	}
	assert.NotContains(t, samples[0], "TradesPerHour")
}
