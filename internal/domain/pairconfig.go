package domain

const (
	MinRiskLevel = 0
	MaxRiskLevel = 10

	// DefaultRiskLevel applies to pairs referenced before any explicit
	// configuration write.
	DefaultRiskLevel = 5
)

// PairConfig is the per-pair trading configuration. Pairs are created on
// first reference and soft-disabled via Allowed=false, never deleted.
type PairConfig struct {
	Pair      string
	Allowed   bool
	RiskLevel int // 0..10, scales position sizing
}

// ClampRiskLevel bounds a requested risk level to the valid range.
func ClampRiskLevel(level int) int {
	if level < MinRiskLevel {
		return MinRiskLevel
	}
	if level > MaxRiskLevel {
		return MaxRiskLevel
	}
	return level
}
