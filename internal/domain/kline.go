package domain

import "time"

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime   time.Time // Start time of the interval
	CloseTime  time.Time // End time of the interval
	Pair       string    // Trading pair
	Interval   string    // Kline interval (e.g., "1m", "1h")
	Open       float64   // Opening price
	High       float64   // Highest price
	Low        float64   // Lowest price
	Close      float64   // Closing price
	Volume     float64   // Trading volume
	TradeCount int64     // Number of trades in the interval
}
