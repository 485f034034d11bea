package domain

// AlertPolarity classifies a PnL alert by the direction of the excursion.
type AlertPolarity string

const (
	PolarityPositive AlertPolarity = "positive"
	PolarityNegative AlertPolarity = "negative"
)

// Trade log severity levels, stored verbatim in the trade_logs table.
const (
	LogLevelDebug = "DEBUG"
	LogLevelInfo  = "INFO"
	LogLevelError = "ERROR"
)
