package domain

import "time"

// TradeLog is one audit entry produced by the engine: decisions taken,
// rejections with their reason, and periodic PnL readings.
type TradeLog struct {
	ID        int64
	Timestamp time.Time
	Pair      string
	Level     string // DEBUG, INFO or ERROR
	Message   string

	// PnL snapshot attached to PNL readings, nil otherwise.
	PnLUSD     *float64
	PnLPercent *float64
	Strategy   string // Name of the strategy that produced the entry
}

// Alert is a persisted PnL excursion notification.
type Alert struct {
	ID         int64
	Timestamp  time.Time
	Pair       string
	PnLUSD     float64
	PnLPercent float64
	Polarity   AlertPolarity
}
