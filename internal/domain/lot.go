package domain

import "time"

// Lot represents one executed buy tracked from acquisition to sale as a
// single PnL unit. A lot is either fully open (ClosedAt zero, ExitPrice
// zero) or fully closed; there is no partial-close state.
type Lot struct {
	ID         int64     // Unique identifier (assigned by the repository)
	Pair       string    // Trading pair (e.g., "BTCUSDC")
	CreatedAt  time.Time // Timestamp of acquisition
	Quantity   float64   // Base-asset quantity bought, always > 0
	EntryPrice float64   // Average fill price at acquisition, always > 0

	// Set only once the lot is closed.
	ExitPrice        float64   // Average fill price at sale
	ClosedAt         time.Time // Timestamp of sale (zero value while open)
	RealizedPnLQuote float64   // (ExitPrice - EntryPrice) * Quantity
	RealizedPnLBase  float64   // RealizedPnLQuote converted at the FX rate
}

// IsOpen reports whether the lot has not been sold yet.
func (l *Lot) IsOpen() bool {
	return l.ClosedAt.IsZero()
}
