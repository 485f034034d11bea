// Package server exposes the bot's control surface over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/engine"
	"cryptoDipBot/internal/ports"
	"cryptoDipBot/internal/strategy"
)

// EngineControl is the slice of the engine the HTTP layer drives.
type EngineControl interface {
	Start(pairs []string, autotrade *bool) engine.Status
	Stop() engine.Status
	SetAutotrade(enabled bool) engine.Status
	SetPairs(pairs []string) engine.Status
	Status() engine.Status
	ManualBuy(ctx context.Context, pair string, quoteNotional float64) (*domain.Lot, error)
	ManualSellLot(ctx context.Context, lotID int64) (*domain.Lot, error)
	ManualSellPair(ctx context.Context, pair string) ([]*domain.Lot, error)
}

// Config holds the HTTP server settings.
type Config struct {
	Addr          string
	AllowedQuotes []string // e.g. USDC, BTC, BNB; empty disables the check
}

// Deps bundles the server's collaborators.
type Deps struct {
	Logger      ports.Logger
	Engine      EngineControl
	Strategy    *strategy.Strategy
	TradeLogs   ports.TradeLogRepository
	Alerts      ports.AlertRepository
	Samples     ports.SampleRepository
	PairConfigs ports.PairConfigRepository
}

// Server handles the bot's HTTP API.
type Server struct {
	cfg Config
	d   Deps
	mux *http.ServeMux
}

// New creates the HTTP server and registers its routes.
func New(cfg Config, d Deps) (*Server, error) {
	if d.Logger == nil || d.Engine == nil || d.Strategy == nil ||
		d.TradeLogs == nil || d.Alerts == nil || d.Samples == nil || d.PairConfigs == nil {
		return nil, fmt.Errorf("missing required dependencies for server")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	s := &Server{cfg: cfg, d: d, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /start", s.handleStart)
	s.mux.HandleFunc("POST /stop", s.handleStop)
	s.mux.HandleFunc("POST /autotrade", s.handleAutotrade)
	s.mux.HandleFunc("PUT /pairs", s.handleSetPairs)
	s.mux.HandleFunc("GET /config", s.handleGetConfig)
	s.mux.HandleFunc("PUT /config", s.handlePutConfig)
	s.mux.HandleFunc("GET /pair-config", s.handleGetPairConfigs)
	s.mux.HandleFunc("PUT /pair-config", s.handlePutPairConfig)
	s.mux.HandleFunc("POST /order/buy", s.handleBuy)
	s.mux.HandleFunc("POST /order/sell", s.handleSell)
	s.mux.HandleFunc("GET /logs", s.handleLogs)
	s.mux.HandleFunc("GET /alerts", s.handleAlerts)
	s.mux.HandleFunc("DELETE /alerts", s.handleClearAlerts)
	s.mux.HandleFunc("GET /market/history", s.handleMarketHistory)
}

// Handler returns the server's HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves the API until the context is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.d.Logger.Info(ctx, "HTTP API listening", map[string]interface{}{"addr": s.cfg.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return <-errCh
	}
}

// --- Request/response payloads ---

type startRequest struct {
	Pairs     []string `json:"pairs"`
	Autotrade *bool    `json:"autotrade"`
}

type autotradeRequest struct {
	Enabled bool `json:"enabled"`
}

type pairsRequest struct {
	Pairs []string `json:"pairs"`
}

type statusResponse struct {
	Running   bool     `json:"running"`
	Autotrade bool     `json:"autotrade"`
	Pairs     []string `json:"pairs"`
}

type strategyConfig struct {
	MinProfitPct        float64 `json:"min_profit_pct"`
	HysteresisPct       float64 `json:"hysteresis_pct"`
	BuyDrawdownPct      float64 `json:"buy_drawdown_pct"`
	MinTradesPerHour    float64 `json:"min_trades_per_hour"`
	BasePackageUSD      float64 `json:"base_package_usd"`
	DowntrendMultiplier float64 `json:"downtrend_multiplier"`
	BuyLookback         string  `json:"buy_lookback"`
}

type pairConfigPayload struct {
	Pair      string `json:"pair"`
	Allowed   bool   `json:"allowed"`
	RiskLevel int    `json:"risk_level"`
}

type buyRequest struct {
	Pair        string  `json:"pair"`
	NotionalUSD float64 `json:"notional_usd"`
}

type sellRequest struct {
	Pair  string `json:"pair"`
	LotID int64  `json:"lot_id"`
}

type lotPayload struct {
	ID               int64      `json:"id"`
	Pair             string     `json:"pair"`
	CreatedAt        time.Time  `json:"created_at"`
	Quantity         float64    `json:"quantity"`
	EntryPrice       float64    `json:"entry_price"`
	ExitPrice        *float64   `json:"exit_price,omitempty"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	RealizedPnLQuote *float64   `json:"realized_pnl_quote,omitempty"`
	RealizedPnLBase  *float64   `json:"realized_pnl_base,omitempty"`
}

type tradeLogPayload struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Pair       string    `json:"pair"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	PnLUSD     *float64  `json:"pnl_usd,omitempty"`
	PnLPercent *float64  `json:"pnl_pct,omitempty"`
	Strategy   string    `json:"strategy"`
}

type alertPayload struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Pair       string    `json:"pair"`
	PnLUSD     float64   `json:"pnl_usd"`
	PnLPercent float64   `json:"pnl_pct"`
	Polarity   string    `json:"polarity"`
}

type samplePayload struct {
	ID            int64     `json:"id"`
	BatchID       string    `json:"batch_id"`
	Timestamp     time.Time `json:"timestamp"`
	Pair          string    `json:"pair"`
	Price         float64   `json:"price"`
	Volume        float64   `json:"volume"`
	TradesPerHour float64   `json:"trades_per_hour"`
	EMAFast       float64   `json:"ema_fast"`
	EMASlow       float64   `json:"ema_slow"`
	MACD          float64   `json:"macd"`
	ATR           float64   `json:"atr"`
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStatusResponse(s.d.Engine.Status()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}
	if err := s.validatePairs(req.Pairs); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(s.d.Engine.Start(req.Pairs, req.Autotrade)))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStatusResponse(s.d.Engine.Stop()))
}

func (s *Server) handleAutotrade(w http.ResponseWriter, r *http.Request) {
	var req autotradeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(s.d.Engine.SetAutotrade(req.Enabled)))
}

func (s *Server) handleSetPairs(w http.ResponseWriter, r *http.Request) {
	var req pairsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(req.Pairs) == 0 {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("pairs must not be empty"))
		return
	}
	if err := s.validatePairs(req.Pairs); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(s.d.Engine.SetPairs(req.Pairs)))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	p := s.d.Strategy.Params()
	writeJSON(w, http.StatusOK, strategyConfig{
		MinProfitPct:        p.MinProfitPct,
		HysteresisPct:       p.HysteresisPct,
		BuyDrawdownPct:      p.BuyDrawdownPct,
		MinTradesPerHour:    p.MinTradesPerHour,
		BasePackageUSD:      p.BasePackageUSD,
		DowntrendMultiplier: p.DowntrendMultiplier,
		BuyLookback:         p.BuyLookback,
	})
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	// Missing fields keep their current values.
	p := s.d.Strategy.Params()
	req := strategyConfig{
		MinProfitPct:        p.MinProfitPct,
		HysteresisPct:       p.HysteresisPct,
		BuyDrawdownPct:      p.BuyDrawdownPct,
		MinTradesPerHour:    p.MinTradesPerHour,
		BasePackageUSD:      p.BasePackageUSD,
		DowntrendMultiplier: p.DowntrendMultiplier,
		BuyLookback:         p.BuyLookback,
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	err := s.d.Strategy.SetParams(strategy.Params{
		MinProfitPct:        req.MinProfitPct,
		HysteresisPct:       req.HysteresisPct,
		BuyDrawdownPct:      req.BuyDrawdownPct,
		MinTradesPerHour:    req.MinTradesPerHour,
		BasePackageUSD:      req.BasePackageUSD,
		DowntrendMultiplier: req.DowntrendMultiplier,
		BuyLookback:         req.BuyLookback,
	})
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	s.handleGetConfig(w, r)
}

func (s *Server) handleGetPairConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.d.PairConfigs.FindAllPairConfigs(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	out := make([]pairConfigPayload, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, pairConfigPayload{Pair: cfg.Pair, Allowed: cfg.Allowed, RiskLevel: cfg.RiskLevel})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePutPairConfig(w http.ResponseWriter, r *http.Request) {
	var req pairConfigPayload
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.validatePairs([]string{req.Pair}); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	cfg := &domain.PairConfig{
		Pair:      strings.ToUpper(req.Pair),
		Allowed:   req.Allowed,
		RiskLevel: domain.ClampRiskLevel(req.RiskLevel),
	}
	if err := s.d.PairConfigs.UpsertPairConfig(r.Context(), cfg); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pairConfigPayload{Pair: cfg.Pair, Allowed: cfg.Allowed, RiskLevel: cfg.RiskLevel})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.validatePairs([]string{req.Pair}); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	notional := req.NotionalUSD
	if notional <= 0 {
		notional = s.d.Strategy.Params().BasePackageUSD
	}
	lot, err := s.d.Engine.ManualBuy(r.Context(), strings.ToUpper(req.Pair), notional)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toLotPayload(lot))
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	switch {
	case req.LotID > 0:
		lot, err := s.d.Engine.ManualSellLot(r.Context(), req.LotID)
		if err != nil {
			s.writeError(w, r, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, toLotPayload(lot))
	case req.Pair != "":
		lots, err := s.d.Engine.ManualSellPair(r.Context(), strings.ToUpper(req.Pair))
		if err != nil {
			s.writeError(w, r, statusForError(err), err)
			return
		}
		out := make([]lotPayload, 0, len(lots))
		for _, lot := range lots {
			out = append(out, toLotPayload(lot))
		}
		writeJSON(w, http.StatusOK, out)
	default:
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("either lot_id or pair is required"))
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.d.TradeLogs.RecentTradeLogs(r.Context(), queryLimit(r, 100))
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	out := make([]tradeLogPayload, 0, len(logs))
	for _, l := range logs {
		out = append(out, tradeLogPayload{
			ID:         l.ID,
			Timestamp:  l.Timestamp,
			Pair:       l.Pair,
			Level:      l.Level,
			Message:    l.Message,
			PnLUSD:     l.PnLUSD,
			PnLPercent: l.PnLPercent,
			Strategy:   l.Strategy,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.d.Alerts.RecentAlerts(r.Context(), queryLimit(r, 100))
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	out := make([]alertPayload, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertPayload{
			ID:         a.ID,
			Timestamp:  a.Timestamp,
			Pair:       a.Pair,
			PnLUSD:     a.PnLUSD,
			PnLPercent: a.PnLPercent,
			Polarity:   string(a.Polarity),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Alerts.ClearAlerts(r.Context()); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarketHistory(w http.ResponseWriter, r *http.Request) {
	pair := strings.ToUpper(r.URL.Query().Get("pair"))
	if pair == "" {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("pair query parameter is required"))
		return
	}
	samples, err := s.d.Samples.RecentSamples(r.Context(), pair, queryLimit(r, 100))
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	out := make([]samplePayload, 0, len(samples))
	for _, m := range samples {
		out = append(out, samplePayload{
			ID:            m.ID,
			BatchID:       m.BatchID,
			Timestamp:     m.Timestamp,
			Pair:          m.Pair,
			Price:         m.Price,
			Volume:        m.Volume,
			TradesPerHour: m.TradesPerHour,
			EMAFast:       m.EMAFast,
			EMASlow:       m.EMASlow,
			MACD:          m.MACD,
			ATR:           m.ATR,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Helpers ---

// validatePairs rejects symbols whose quote asset is not in the allow list.
func (s *Server) validatePairs(pairs []string) error {
	for _, pair := range pairs {
		p := strings.ToUpper(strings.TrimSpace(pair))
		if p == "" {
			return fmt.Errorf("pair must not be empty")
		}
		if len(s.cfg.AllowedQuotes) == 0 {
			continue
		}
		ok := false
		for _, quote := range s.cfg.AllowedQuotes {
			if strings.HasSuffix(p, strings.ToUpper(quote)) && len(p) > len(quote) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("pair %s does not end in an allowed quote asset (%s)", p, strings.Join(s.cfg.AllowedQuotes, ", "))
		}
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.d.Logger.Error(r.Context(), err, "Request failed", map[string]interface{}{
			"method": r.Method, "path": r.URL.Path,
		})
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrAlreadyClosed):
		return http.StatusConflict
	case errors.Is(err, ports.ErrInvalidRequest), errors.Is(err, ports.ErrConfigurationError):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func toStatusResponse(st engine.Status) statusResponse {
	return statusResponse{Running: st.Running, Autotrade: st.Autotrade, Pairs: st.Pairs}
}

func toLotPayload(lot *domain.Lot) lotPayload {
	p := lotPayload{
		ID:         lot.ID,
		Pair:       lot.Pair,
		CreatedAt:  lot.CreatedAt,
		Quantity:   lot.Quantity,
		EntryPrice: lot.EntryPrice,
	}
	if !lot.IsOpen() {
		exit, closedAt := lot.ExitPrice, lot.ClosedAt
		quote, base := lot.RealizedPnLQuote, lot.RealizedPnLBase
		p.ExitPrice = &exit
		p.ClosedAt = &closedAt
		p.RealizedPnLQuote = &quote
		p.RealizedPnLBase = &base
	}
	return p
}
