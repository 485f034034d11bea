package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports repository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/dip_bot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from
	// limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS lots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pair TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		quantity REAL NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		closed_at TIMESTAMP DEFAULT NULL,
		realized_pnl_quote REAL DEFAULT NULL,
		realized_pnl_base REAL DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS market_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		ts TIMESTAMP NOT NULL,
		pair TEXT NOT NULL,
		price REAL NOT NULL,
		volume REAL NOT NULL,
		trades_per_hour REAL NOT NULL,
		ema_fast REAL NOT NULL DEFAULT 0,
		ema_slow REAL NOT NULL DEFAULT 0,
		macd REAL NOT NULL DEFAULT 0,
		atr REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS fx_rates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TIMESTAMP NOT NULL,
		base TEXT NOT NULL,
		quote TEXT NOT NULL,
		rate REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TIMESTAMP NOT NULL,
		pair TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		pnl_usd REAL DEFAULT NULL,
		pnl_percent REAL DEFAULT NULL,
		strategy TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TIMESTAMP NOT NULL,
		pair TEXT NOT NULL,
		pnl_usd REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		polarity TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pair_config (
		pair TEXT PRIMARY KEY,
		allowed INTEGER NOT NULL DEFAULT 1,
		risk_level INTEGER NOT NULL DEFAULT 5
	);

	CREATE INDEX IF NOT EXISTS idx_lots_pair_closed_at ON lots (pair, closed_at);
	CREATE INDEX IF NOT EXISTS idx_market_data_pair_ts ON market_data (pair, ts);
	CREATE INDEX IF NOT EXISTS idx_fx_rates_base_quote_ts ON fx_rates (base, quote, ts);
	CREATE INDEX IF NOT EXISTS idx_trade_logs_ts ON trade_logs (ts);
	CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts (ts);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- LotRepository Implementation ---

// CreateLot saves a new lot and returns its assigned ID.
func (r *Repository) CreateLot(ctx context.Context, lot *domain.Lot) (int64, error) {
	const query = `
	INSERT INTO lots (pair, created_at, quantity, entry_price)
	VALUES (?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, lot.Pair, lot.CreatedAt, lot.Quantity, lot.EntryPrice)
	if err != nil {
		return 0, fmt.Errorf("failed to insert lot for pair %s: %w", lot.Pair, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for lot %s: %w", lot.Pair, err)
	}
	lot.ID = id
	r.logger.Debug(ctx, "Lot created", map[string]interface{}{"lotID": id, "pair": lot.Pair})
	return id, nil
}

// UpdateLot modifies an existing lot based on its ID.
func (r *Repository) UpdateLot(ctx context.Context, lot *domain.Lot) error {
	const query = `
	UPDATE lots
	SET pair = ?, created_at = ?, quantity = ?, entry_price = ?,
	    exit_price = ?, closed_at = ?, realized_pnl_quote = ?, realized_pnl_base = ?
	WHERE id = ?`

	var closedAt sql.NullTime
	var exitPrice, pnlQuote, pnlBase sql.NullFloat64
	if !lot.ClosedAt.IsZero() {
		closedAt = sql.NullTime{Time: lot.ClosedAt, Valid: true}
		exitPrice = sql.NullFloat64{Float64: lot.ExitPrice, Valid: true}
		pnlQuote = sql.NullFloat64{Float64: lot.RealizedPnLQuote, Valid: true}
		pnlBase = sql.NullFloat64{Float64: lot.RealizedPnLBase, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		lot.Pair, lot.CreatedAt, lot.Quantity, lot.EntryPrice,
		exitPrice, closedAt, pnlQuote, pnlBase,
		lot.ID)
	if err != nil {
		return fmt.Errorf("failed to update lot ID %d: %w", lot.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update lot ID %d: %w", lot.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("lot ID %d not found for update: %w", lot.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Lot updated", map[string]interface{}{"lotID": lot.ID, "pair": lot.Pair})
	return nil
}

// FindLotByID retrieves a lot by its unique ID. Returns nil, nil if not found.
func (r *Repository) FindLotByID(ctx context.Context, id int64) (*domain.Lot, error) {
	const query = `
	SELECT id, pair, created_at, quantity, entry_price,
	       exit_price, closed_at, realized_pnl_quote, realized_pnl_base
	FROM lots
	WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	lot, err := scanLot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query lot by ID %d: %w", id, err)
	}
	return lot, nil
}

// FindOpenLotsByPair retrieves all open lots for a pair, oldest first.
func (r *Repository) FindOpenLotsByPair(ctx context.Context, pair string) ([]*domain.Lot, error) {
	const query = `
	SELECT id, pair, created_at, quantity, entry_price,
	       exit_price, closed_at, realized_pnl_quote, realized_pnl_base
	FROM lots
	WHERE pair = ? AND closed_at IS NULL
	ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, pair)
	if err != nil {
		return nil, fmt.Errorf("failed to query open lots for pair %s: %w", pair, err)
	}
	defer rows.Close()
	return collectLots(rows)
}

// FindLotsByPair retrieves the most recent lots for a pair, up to a limit.
func (r *Repository) FindLotsByPair(ctx context.Context, pair string, limit int) ([]*domain.Lot, error) {
	const query = `
	SELECT id, pair, created_at, quantity, entry_price,
	       exit_price, closed_at, realized_pnl_quote, realized_pnl_base
	FROM lots
	WHERE pair = ?
	ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots for pair %s: %w", pair, err)
	}
	defer rows.Close()
	return collectLots(rows)
}

// --- SampleRepository Implementation ---

// AppendSample stores one market observation.
func (r *Repository) AppendSample(ctx context.Context, s *domain.MarketSample) (int64, error) {
	const query = `
	INSERT INTO market_data (batch_id, ts, pair, price, volume, trades_per_hour, ema_fast, ema_slow, macd, atr)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		s.BatchID, s.Timestamp, s.Pair, s.Price, s.Volume, s.TradesPerHour,
		s.EMAFast, s.EMASlow, s.MACD, s.ATR)
	if err != nil {
		return 0, fmt.Errorf("failed to insert market sample for pair %s: %w", s.Pair, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for market sample %s: %w", s.Pair, err)
	}
	s.ID = id
	return id, nil
}

// LatestSample retrieves the most recent sample for a pair. Returns nil, nil
// when the pair has no samples.
func (r *Repository) LatestSample(ctx context.Context, pair string) (*domain.MarketSample, error) {
	const query = `
	SELECT id, batch_id, ts, pair, price, volume, trades_per_hour, ema_fast, ema_slow, macd, atr
	FROM market_data
	WHERE pair = ?
	ORDER BY ts DESC, id DESC LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, pair)
	sample, err := scanSample(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest sample for pair %s: %w", pair, err)
	}
	return sample, nil
}

// MaxPriceSince returns the maximum observed price for a pair at or after the
// given timestamp.
func (r *Repository) MaxPriceSince(ctx context.Context, pair string, since time.Time) (float64, bool, error) {
	const query = `SELECT MAX(price) FROM market_data WHERE pair = ? AND ts >= ?`
	var max sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, pair, since).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query max price for pair %s: %w", pair, err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return max.Float64, true, nil
}

// RecentPrices returns up to limit most recent prices, oldest first.
func (r *Repository) RecentPrices(ctx context.Context, pair string, limit int) ([]float64, error) {
	const query = `
	SELECT price FROM (
		SELECT id, price FROM market_data WHERE pair = ? ORDER BY ts DESC, id DESC LIMIT ?
	) ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent prices for pair %s: %w", pair, err)
	}
	defer rows.Close()

	prices := make([]float64, 0)
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan price during RecentPrices: %w", err)
		}
		prices = append(prices, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price rows: %w", err)
	}
	return prices, nil
}

// RecentSamples returns up to limit most recent samples, oldest first.
func (r *Repository) RecentSamples(ctx context.Context, pair string, limit int) ([]*domain.MarketSample, error) {
	const query = `
	SELECT id, batch_id, ts, pair, price, volume, trades_per_hour, ema_fast, ema_slow, macd, atr
	FROM (
		SELECT * FROM market_data WHERE pair = ? ORDER BY ts DESC, id DESC LIMIT ?
	) ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent samples for pair %s: %w", pair, err)
	}
	defer rows.Close()

	samples := make([]*domain.MarketSample, 0)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample during RecentSamples: %w", err)
		}
		samples = append(samples, sample)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sample rows: %w", err)
	}
	return samples, nil
}

// --- FXRateRepository Implementation ---

// AppendRate stores one observed FX rate.
func (r *Repository) AppendRate(ctx context.Context, rate *domain.FXRate) (int64, error) {
	const query = `INSERT INTO fx_rates (ts, base, quote, rate) VALUES (?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, rate.Timestamp, rate.Base, rate.Quote, rate.Rate)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fx rate %s/%s: %w", rate.Base, rate.Quote, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for fx rate %s/%s: %w", rate.Base, rate.Quote, err)
	}
	rate.ID = id
	return id, nil
}

// LatestRate returns the most recent rate for a currency pair.
func (r *Repository) LatestRate(ctx context.Context, base, quote string) (float64, bool, error) {
	const query = `
	SELECT rate FROM fx_rates
	WHERE base = ? AND quote = ?
	ORDER BY ts DESC, id DESC LIMIT 1`

	var rate float64
	err := r.db.QueryRowContext(ctx, query, base, quote).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query latest fx rate %s/%s: %w", base, quote, err)
	}
	return rate, true, nil
}

// --- TradeLogRepository Implementation ---

// CreateTradeLog saves a new audit trail entry and returns its assigned ID.
func (r *Repository) CreateTradeLog(ctx context.Context, entry *domain.TradeLog) (int64, error) {
	const query = `
	INSERT INTO trade_logs (ts, pair, level, message, pnl_usd, pnl_percent, strategy)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	var pnlUSD, pnlPct sql.NullFloat64
	if entry.PnLUSD != nil {
		pnlUSD = sql.NullFloat64{Float64: *entry.PnLUSD, Valid: true}
	}
	if entry.PnLPercent != nil {
		pnlPct = sql.NullFloat64{Float64: *entry.PnLPercent, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		entry.Timestamp, entry.Pair, entry.Level, entry.Message, pnlUSD, pnlPct, entry.Strategy)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade log for pair %s: %w", entry.Pair, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade log %s: %w", entry.Pair, err)
	}
	entry.ID = id
	return id, nil
}

// RecentTradeLogs retrieves the most recent entries, newest first.
func (r *Repository) RecentTradeLogs(ctx context.Context, limit int) ([]*domain.TradeLog, error) {
	const query = `
	SELECT id, ts, pair, level, message, pnl_usd, pnl_percent, strategy
	FROM trade_logs
	ORDER BY ts DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.TradeLog, 0)
	for rows.Next() {
		entry, err := scanTradeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade log during RecentTradeLogs: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade log rows: %w", err)
	}
	return entries, nil
}

// --- AlertRepository Implementation ---

// CreateAlert saves a new alert and returns its assigned ID.
func (r *Repository) CreateAlert(ctx context.Context, a *domain.Alert) (int64, error) {
	const query = `
	INSERT INTO alerts (ts, pair, pnl_usd, pnl_percent, polarity)
	VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, a.Timestamp, a.Pair, a.PnLUSD, a.PnLPercent, string(a.Polarity))
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert for pair %s: %w", a.Pair, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for alert %s: %w", a.Pair, err)
	}
	a.ID = id
	return id, nil
}

// RecentAlerts retrieves the most recent alerts, newest first.
func (r *Repository) RecentAlerts(ctx context.Context, limit int) ([]*domain.Alert, error) {
	const query = `
	SELECT id, ts, pair, pnl_usd, pnl_percent, polarity
	FROM alerts
	ORDER BY ts DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*domain.Alert, 0)
	for rows.Next() {
		a := &domain.Alert{}
		var polarity string
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.Pair, &a.PnLUSD, &a.PnLPercent, &polarity); err != nil {
			return nil, fmt.Errorf("failed to scan alert during RecentAlerts: %w", err)
		}
		a.Polarity = domain.AlertPolarity(polarity)
		alerts = append(alerts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}
	return alerts, nil
}

// ClearAlerts removes all stored alerts.
func (r *Repository) ClearAlerts(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}
	return nil
}

// --- PairConfigRepository Implementation ---

// UpsertPairConfig creates or updates the configuration for a pair.
func (r *Repository) UpsertPairConfig(ctx context.Context, cfg *domain.PairConfig) error {
	const query = `
	INSERT INTO pair_config (pair, allowed, risk_level) VALUES (?, ?, ?)
	ON CONFLICT(pair) DO UPDATE SET allowed = excluded.allowed, risk_level = excluded.risk_level`

	if _, err := r.db.ExecContext(ctx, query, cfg.Pair, cfg.Allowed, cfg.RiskLevel); err != nil {
		return fmt.Errorf("failed to upsert pair config for %s: %w", cfg.Pair, err)
	}
	return nil
}

// FindPairConfig retrieves the configuration for a pair. Returns nil, nil when
// the pair was never configured.
func (r *Repository) FindPairConfig(ctx context.Context, pair string) (*domain.PairConfig, error) {
	const query = `SELECT pair, allowed, risk_level FROM pair_config WHERE pair = ?`
	cfg := &domain.PairConfig{}
	err := r.db.QueryRowContext(ctx, query, pair).Scan(&cfg.Pair, &cfg.Allowed, &cfg.RiskLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pair config for %s: %w", pair, err)
	}
	return cfg, nil
}

// FindAllPairConfigs retrieves every stored pair configuration.
func (r *Repository) FindAllPairConfigs(ctx context.Context) ([]*domain.PairConfig, error) {
	const query = `SELECT pair, allowed, risk_level FROM pair_config ORDER BY pair ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pair configs: %w", err)
	}
	defer rows.Close()

	configs := make([]*domain.PairConfig, 0)
	for rows.Next() {
		cfg := &domain.PairConfig{}
		if err := rows.Scan(&cfg.Pair, &cfg.Allowed, &cfg.RiskLevel); err != nil {
			return nil, fmt.Errorf("failed to scan pair config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pair config rows: %w", err)
	}
	return configs, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanLot scans a row into a domain.Lot struct.
func scanLot(s scanner) (*domain.Lot, error) {
	lot := &domain.Lot{}
	var closedAt sql.NullTime
	var exitPrice, pnlQuote, pnlBase sql.NullFloat64
	err := s.Scan(
		&lot.ID, &lot.Pair, &lot.CreatedAt, &lot.Quantity, &lot.EntryPrice,
		&exitPrice, &closedAt, &pnlQuote, &pnlBase)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if closedAt.Valid {
		lot.ClosedAt = closedAt.Time
	}
	if exitPrice.Valid {
		lot.ExitPrice = exitPrice.Float64
	}
	if pnlQuote.Valid {
		lot.RealizedPnLQuote = pnlQuote.Float64
	}
	if pnlBase.Valid {
		lot.RealizedPnLBase = pnlBase.Float64
	}
	return lot, nil
}

func collectLots(rows *sql.Rows) ([]*domain.Lot, error) {
	lots := make([]*domain.Lot, 0)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot row: %w", err)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lot rows: %w", err)
	}
	return lots, nil
}

// scanSample scans a row into a domain.MarketSample struct.
func scanSample(s scanner) (*domain.MarketSample, error) {
	sample := &domain.MarketSample{}
	err := s.Scan(
		&sample.ID, &sample.BatchID, &sample.Timestamp, &sample.Pair, &sample.Price,
		&sample.Volume, &sample.TradesPerHour, &sample.EMAFast, &sample.EMASlow,
		&sample.MACD, &sample.ATR)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return sample, nil
}

// scanTradeLog scans a row into a domain.TradeLog struct.
func scanTradeLog(s scanner) (*domain.TradeLog, error) {
	entry := &domain.TradeLog{}
	var pnlUSD, pnlPct sql.NullFloat64
	err := s.Scan(
		&entry.ID, &entry.Timestamp, &entry.Pair, &entry.Level, &entry.Message,
		&pnlUSD, &pnlPct, &entry.Strategy)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if pnlUSD.Valid {
		v := pnlUSD.Float64
		entry.PnLUSD = &v
	}
	if pnlPct.Valid {
		v := pnlPct.Float64
		entry.PnLPercent = &v
	}
	return entry, nil
}
