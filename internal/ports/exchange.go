package ports

import (
	"context"

	"cryptoDipBot/internal/domain"
)

// TickerStats holds the 24-hour rolling statistics for a pair.
type TickerStats struct {
	LastPrice float64 // Most recent trade price
	Low       float64 // Lowest price in the window
	High      float64 // Highest price in the window
	Volume    float64 // Base-asset volume in the window
	Count     int64   // Number of trades in the window
}

// MarketDataClient provides read-only market state from the exchange.
// Implementations must fail with ErrExchangeUnavailable (wrapped) on
// network or auth failure, never silently return stale data labeled fresh.
type MarketDataClient interface {
	// TickerPrice retrieves the last traded price for a pair.
	TickerPrice(ctx context.Context, pair string) (float64, error)

	// TickerStats24h retrieves the 24-hour rolling window statistics for a pair.
	TickerStats24h(ctx context.Context, pair string) (*TickerStats, error)

	// Klines retrieves historical candlestick data, oldest first.
	Klines(ctx context.Context, pair string, interval string, limit int) ([]*domain.Kline, error)
}

// OrderExecutionClient executes market orders. Partial fills are reported
// explicitly: the returned quantity is what actually filled, and callers
// treat it as the realized quantity.
type OrderExecutionClient interface {
	// MarketBuyNotional buys with a quote-currency budget and returns the
	// filled base quantity and the average fill price.
	MarketBuyNotional(ctx context.Context, pair string, quoteNotional float64) (filledQty float64, avgPrice float64, err error)

	// MarketSellQuantity sells a base quantity and returns the average fill price.
	MarketSellQuantity(ctx context.Context, pair string, quantity float64) (avgPrice float64, err error)
}
