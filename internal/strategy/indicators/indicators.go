package indicators

import "math"

// EMA computes the exponential moving average of a price series. The value
// is seeded with the first sample and then follows the recurrence
// v = price*k + v*(1-k) with k = 2/(period+1).
// ok is false for an empty series. A period of 1 or less degenerates to the
// last raw price.
func EMA(series []float64, period int) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	if period <= 1 {
		return series[len(series)-1], true
	}
	k := 2.0 / float64(period+1)
	v := series[0]
	for _, p := range series[1:] {
		v = p*k + v*(1-k)
	}
	return v, true
}

// MACD computes EMA(fast) - EMA(slow) over the series. ok is false when
// fewer than slow samples exist. The signal period is accepted for
// interface parity with the stored indicator columns but no signal line is
// derived from a single call.
func MACD(series []float64, fast, slow, signal int) (float64, bool) {
	if len(series) < slow {
		return 0, false
	}
	emaFast, _ := EMA(series, fast)
	emaSlow, _ := EMA(series, slow)
	return emaFast - emaSlow, true
}

// ATR computes the mean of the absolute per-step price deltas over the
// trailing period window. ok is false when fewer than period deltas exist.
func ATR(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period+1 {
		return 0, false
	}
	sum := 0.0
	for i := len(series) - period; i < len(series); i++ {
		sum += math.Abs(series[i] - series[i-1])
	}
	return sum / float64(period), true
}
