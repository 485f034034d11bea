package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
)

// Config holds the alerting thresholds and throttle window.
type Config struct {
	PositiveThresholdPct float64       // Fire a positive alert at or above this PnL percentage
	NegativeThresholdPct float64       // Fire a negative alert at or below this PnL percentage
	Cooldown             time.Duration // Minimum gap between alerts of the same (pair, polarity)
}

// Governor throttles PnL excursion alerts. Cooldown state is tracked per
// (pair, polarity): firing one polarity never touches the other's window.
type Governor struct {
	cfg    Config
	alerts ports.AlertRepository
	logger ports.Logger

	mu        sync.Mutex
	lastFired map[string]map[domain.AlertPolarity]time.Time
}

// New creates a Governor instance.
func New(cfg Config, alerts ports.AlertRepository, logger ports.Logger) (*Governor, error) {
	if alerts == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for alert governor")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("%w: alert cooldown must be positive", ports.ErrConfigurationError)
	}
	return &Governor{
		cfg:       cfg,
		alerts:    alerts,
		logger:    logger,
		lastFired: make(map[string]map[domain.AlertPolarity]time.Time),
	}, nil
}

// MaybeAlert evaluates the PnL reading against both thresholds and emits at
// most one alert per eligible polarity, suppressing re-fires inside the
// cooldown window. It returns the alerts that were actually emitted.
func (g *Governor) MaybeAlert(ctx context.Context, pair string, pnlUSD, pnlPct float64, now time.Time) []*domain.Alert {
	var emitted []*domain.Alert
	if pnlPct >= g.cfg.PositiveThresholdPct {
		if a := g.fire(ctx, pair, domain.PolarityPositive, pnlUSD, pnlPct, now); a != nil {
			emitted = append(emitted, a)
		}
	}
	if pnlPct <= g.cfg.NegativeThresholdPct {
		if a := g.fire(ctx, pair, domain.PolarityNegative, pnlUSD, pnlPct, now); a != nil {
			emitted = append(emitted, a)
		}
	}
	return emitted
}

// fire holds the mutex across the cooldown check, the persist and the stamp
// update so concurrent readings for the same (pair, polarity) cannot both
// emit inside one cooldown window.
func (g *Governor) fire(ctx context.Context, pair string, polarity domain.AlertPolarity, pnlUSD, pnlPct float64, now time.Time) *domain.Alert {
	g.mu.Lock()
	defer g.mu.Unlock()

	byPolarity, ok := g.lastFired[pair]
	if !ok {
		byPolarity = make(map[domain.AlertPolarity]time.Time)
		g.lastFired[pair] = byPolarity
	}
	last, fired := byPolarity[polarity]
	if fired && now.Sub(last) < g.cfg.Cooldown {
		g.logger.Debug(ctx, "Alert suppressed by cooldown", map[string]interface{}{
			"pair": pair, "polarity": polarity, "sinceLast": now.Sub(last).String(),
		})
		return nil
	}

	alert := &domain.Alert{
		Timestamp:  now,
		Pair:       pair,
		PnLUSD:     pnlUSD,
		PnLPercent: pnlPct,
		Polarity:   polarity,
	}
	id, err := g.alerts.CreateAlert(ctx, alert)
	if err != nil {
		// The stamp is not advanced on a failed persist so the alert can
		// refire on the next reading.
		g.logger.Error(ctx, err, "Failed to persist alert", map[string]interface{}{
			"pair": pair, "polarity": polarity,
		})
		return nil
	}
	alert.ID = id
	byPolarity[polarity] = now

	g.logger.Info(ctx, "PnL alert emitted", map[string]interface{}{
		"pair": pair, "polarity": polarity, "pnlUSD": pnlUSD, "pnlPct": pnlPct,
	})
	return alert
}
