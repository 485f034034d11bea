package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
)

// Ledger owns the lot lifecycle for all pairs. All mutations to one pair's
// lot set are serialized through a per-pair mutex so unrelated pairs can be
// evaluated concurrently. Reads go straight to the repositories.
type Ledger struct {
	lots    ports.LotRepository
	samples ports.SampleRepository
	logger  ports.Logger

	mu        sync.Mutex
	pairLocks map[string]*sync.Mutex
}

// New creates a Ledger instance.
func New(lots ports.LotRepository, samples ports.SampleRepository, logger ports.Logger) (*Ledger, error) {
	if lots == nil || samples == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for ledger")
	}
	return &Ledger{
		lots:      lots,
		samples:   samples,
		logger:    logger,
		pairLocks: make(map[string]*sync.Mutex),
	}, nil
}

func (l *Ledger) pairLock(pair string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.pairLocks[pair]
	if !ok {
		m = &sync.Mutex{}
		l.pairLocks[pair] = m
	}
	return m
}

// OpenLot records one executed buy as a new open lot. Quantity and entry
// price must be strictly positive; idempotency against retried executions
// is the caller's responsibility at the execution boundary.
func (l *Ledger) OpenLot(ctx context.Context, pair string, quantity, entryPrice float64) (*domain.Lot, error) {
	if pair == "" {
		return nil, fmt.Errorf("%w: pair must not be empty", ports.ErrConfigurationError)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %f", ports.ErrConfigurationError, quantity)
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("%w: entry price must be positive, got %f", ports.ErrConfigurationError, entryPrice)
	}

	lock := l.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()

	lot := &domain.Lot{
		Pair:       pair,
		CreatedAt:  time.Now().UTC(),
		Quantity:   quantity,
		EntryPrice: entryPrice,
	}
	id, err := l.lots.CreateLot(ctx, lot)
	if err != nil {
		return nil, fmt.Errorf("failed to create lot for %s: %w", pair, err)
	}
	lot.ID = id
	l.logger.Info(ctx, "Lot opened", map[string]interface{}{
		"lotID": id, "pair": pair, "quantity": quantity, "entryPrice": entryPrice,
	})
	return lot, nil
}

// CloseLot closes an open lot entirely at its full quantity and records the
// realized PnL in quote currency and, converted at fxRate, in the base
// reporting currency. A second call on the same lot fails with
// ErrAlreadyClosed and produces no second PnL record.
func (l *Ledger) CloseLot(ctx context.Context, lotID int64, exitPrice, fxRate float64) (*domain.Lot, error) {
	if exitPrice <= 0 {
		return nil, fmt.Errorf("%w: exit price must be positive, got %f", ports.ErrConfigurationError, exitPrice)
	}

	// First lookup only resolves the pair so the mutation itself can run
	// under that pair's lock.
	ref, err := l.lots.FindLotByID(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up lot %d: %w", lotID, err)
	}
	if ref == nil {
		return nil, fmt.Errorf("lot %d: %w", lotID, ports.ErrNotFound)
	}

	lock := l.pairLock(ref.Pair)
	lock.Lock()
	defer lock.Unlock()

	lot, err := l.lots.FindLotByID(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up lot %d: %w", lotID, err)
	}
	if lot == nil {
		return nil, fmt.Errorf("lot %d: %w", lotID, ports.ErrNotFound)
	}
	if !lot.IsOpen() {
		return nil, fmt.Errorf("lot %d: %w", lotID, ports.ErrAlreadyClosed)
	}
	if lot.Quantity <= 0 {
		// A stored open lot with no quantity cannot be settled; reject the
		// close rather than record a bogus PnL.
		return nil, fmt.Errorf("lot %d has non-positive quantity %f: %w", lotID, lot.Quantity, ports.ErrInvariantViolation)
	}

	lot.ExitPrice = exitPrice
	lot.ClosedAt = time.Now().UTC()
	lot.RealizedPnLQuote = (exitPrice - lot.EntryPrice) * lot.Quantity
	lot.RealizedPnLBase = lot.RealizedPnLQuote * fxRate

	if err := l.lots.UpdateLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("failed to persist close of lot %d: %w", lotID, err)
	}
	l.logger.Info(ctx, "Lot closed", map[string]interface{}{
		"lotID": lot.ID, "pair": lot.Pair, "exitPrice": exitPrice,
		"pnlQuote": lot.RealizedPnLQuote, "pnlBase": lot.RealizedPnLBase,
	})
	return lot, nil
}

// Lot retrieves one lot by ID. Returns nil, nil when no such lot exists.
func (l *Ledger) Lot(ctx context.Context, id int64) (*domain.Lot, error) {
	return l.lots.FindLotByID(ctx, id)
}

// Lots returns the most recent lots for a pair, open and closed, up to a limit.
func (l *Ledger) Lots(ctx context.Context, pair string, limit int) ([]*domain.Lot, error) {
	return l.lots.FindLotsByPair(ctx, pair, limit)
}

// OpenLots returns all open lots for a pair, ordered by creation time ascending.
func (l *Ledger) OpenLots(ctx context.Context, pair string) ([]*domain.Lot, error) {
	return l.lots.FindOpenLotsByPair(ctx, pair)
}

// WeightedAverageEntry returns the quantity-weighted average entry price
// over the pair's open lots. ok is false when no lots are open.
func (l *Ledger) WeightedAverageEntry(ctx context.Context, pair string) (float64, bool, error) {
	lots, err := l.lots.FindOpenLotsByPair(ctx, pair)
	if err != nil {
		return 0, false, err
	}
	var totalQty, weighted float64
	for _, lot := range lots {
		totalQty += lot.Quantity
		weighted += lot.EntryPrice * lot.Quantity
	}
	if totalQty <= 0 {
		return 0, false, nil
	}
	return weighted / totalQty, true, nil
}

// UnrealizedPnL computes the aggregate unrealized PnL for a pair at the
// given price, in quote currency and as a percentage of the weighted
// average entry. The percentage is zero when no quantity is open.
func (l *Ledger) UnrealizedPnL(ctx context.Context, pair string, priceNow float64) (pnlQuote, pnlPct float64, err error) {
	lots, err := l.lots.FindOpenLotsByPair(ctx, pair)
	if err != nil {
		return 0, 0, err
	}
	var totalQty, weighted float64
	for _, lot := range lots {
		totalQty += lot.Quantity
		weighted += lot.EntryPrice * lot.Quantity
	}
	if totalQty <= 0 {
		return 0, 0, nil
	}
	entryAvg := weighted / totalQty
	pnlQuote = (priceNow - entryAvg) * totalQty
	if entryAvg > 0 {
		pnlPct = (priceNow - entryAvg) / entryAvg * 100.0
	}
	return pnlQuote, pnlPct, nil
}

// PeakPriceSince returns the maximum observed sample price for the pair at
// or after the given timestamp. ok is false when no sample qualifies.
func (l *Ledger) PeakPriceSince(ctx context.Context, pair string, since time.Time) (float64, bool, error) {
	return l.samples.MaxPriceSince(ctx, pair, since)
}
