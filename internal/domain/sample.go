package domain

import "time"

// MarketSample is one immutable market observation for a pair. Samples are
// append-only; the latest sample per pair is the authoritative current price.
type MarketSample struct {
	ID            int64
	BatchID       string    // Collector cycle identifier (UUID)
	Timestamp     time.Time // Observation time (UTC)
	Pair          string
	Price         float64
	Volume        float64
	TradesPerHour float64

	// Smoothed signals computed by the collector at ingestion time.
	// Zero when not enough history was available.
	EMAFast float64
	EMASlow float64
	MACD    float64
	ATR     float64
}

// FXRate is one observed foreign-exchange rate, used only to express
// realized PnL in a secondary currency.
type FXRate struct {
	ID        int64
	Timestamp time.Time
	Base      string
	Quote     string
	Rate      float64
}
