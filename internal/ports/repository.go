package ports

import (
	"context"
	"time"

	"cryptoDipBot/internal/domain"
)

// LotRepository defines the interface for storing and retrieving position lots.
type LotRepository interface {
	// CreateLot saves a new lot and returns its assigned ID.
	CreateLot(ctx context.Context, lot *domain.Lot) (int64, error)
	// UpdateLot modifies an existing lot.
	UpdateLot(ctx context.Context, lot *domain.Lot) error
	// FindLotByID retrieves a lot by its unique ID.
	// Returns nil, nil if not found.
	FindLotByID(ctx context.Context, id int64) (*domain.Lot, error)
	// FindOpenLotsByPair retrieves all open lots for a pair, ordered by
	// creation time ascending.
	FindOpenLotsByPair(ctx context.Context, pair string) ([]*domain.Lot, error)
	// FindLotsByPair retrieves the most recent lots for a pair, up to a limit.
	FindLotsByPair(ctx context.Context, pair string, limit int) ([]*domain.Lot, error)
}

// SampleRepository defines the interface for the append-only market sample series.
type SampleRepository interface {
	// AppendSample stores one observation and returns its assigned ID.
	AppendSample(ctx context.Context, sample *domain.MarketSample) (int64, error)
	// LatestSample retrieves the most recent sample for a pair.
	// Returns nil, nil if the pair has no samples.
	LatestSample(ctx context.Context, pair string) (*domain.MarketSample, error)
	// MaxPriceSince returns the maximum observed price for a pair at or
	// after the given timestamp. ok is false when no sample qualifies.
	MaxPriceSince(ctx context.Context, pair string, since time.Time) (price float64, ok bool, err error)
	// RecentPrices returns up to limit most recent prices, oldest first.
	RecentPrices(ctx context.Context, pair string, limit int) ([]float64, error)
	// RecentSamples returns up to limit most recent samples, oldest first.
	RecentSamples(ctx context.Context, pair string, limit int) ([]*domain.MarketSample, error)
}

// FXRateRepository stores observed foreign-exchange rates.
type FXRateRepository interface {
	// AppendRate stores one observed rate.
	AppendRate(ctx context.Context, rate *domain.FXRate) (int64, error)
	// LatestRate returns the most recent rate for a currency pair.
	// ok is false when no rate has been observed.
	LatestRate(ctx context.Context, base, quote string) (rate float64, ok bool, err error)
}

// TradeLogRepository stores the engine's append-only audit trail.
type TradeLogRepository interface {
	// CreateTradeLog saves a new entry and returns its assigned ID.
	CreateTradeLog(ctx context.Context, entry *domain.TradeLog) (int64, error)
	// RecentTradeLogs retrieves the most recent entries, newest first.
	RecentTradeLogs(ctx context.Context, limit int) ([]*domain.TradeLog, error)
}

// AlertRepository stores emitted PnL alerts.
type AlertRepository interface {
	// CreateAlert saves a new alert and returns its assigned ID.
	CreateAlert(ctx context.Context, alert *domain.Alert) (int64, error)
	// RecentAlerts retrieves the most recent alerts, newest first.
	RecentAlerts(ctx context.Context, limit int) ([]*domain.Alert, error)
	// ClearAlerts removes all stored alerts.
	ClearAlerts(ctx context.Context) error
}

// PairConfigRepository stores per-pair trading configuration.
type PairConfigRepository interface {
	// UpsertPairConfig creates or updates the configuration for a pair.
	UpsertPairConfig(ctx context.Context, cfg *domain.PairConfig) error
	// FindPairConfig retrieves the configuration for a pair.
	// Returns nil, nil if the pair was never configured.
	FindPairConfig(ctx context.Context, pair string) (*domain.PairConfig, error)
	// FindAllPairConfigs retrieves every stored pair configuration.
	FindAllPairConfigs(ctx context.Context) ([]*domain.PairConfig, error)
}
