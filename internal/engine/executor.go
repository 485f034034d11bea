package engine

import (
	"context"
	"fmt"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"
)

// marketBuy executes a market buy for a quote notional and records the fill
// as a new lot. The executed quantity and average fill price come from the
// exchange response; a partial fill is taken as the realized quantity. The
// fill is applied to the ledger exactly once per decision.
func (e *Engine) marketBuy(ctx context.Context, pair string, quoteNotional float64) (*domain.Lot, error) {
	if quoteNotional <= 0 {
		return nil, fmt.Errorf("%w: buy notional must be positive, got %f", ports.ErrConfigurationError, quoteNotional)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	qty, avgPrice, err := e.d.Executor.MarketBuyNotional(callCtx, pair, quoteNotional)
	if err != nil {
		return nil, fmt.Errorf("market buy for %s: %w", pair, err)
	}
	lot, err := e.d.Ledger.OpenLot(ctx, pair, qty, avgPrice)
	if err != nil {
		// The fill happened on the exchange but the lot could not be
		// recorded; surface loudly, manual reconciliation is required.
		e.d.Logger.Error(ctx, err, "FILLED BUY NOT RECORDED", map[string]interface{}{
			"pair": pair, "quantity": qty, "avgPrice": avgPrice,
		})
		return nil, fmt.Errorf("record buy fill for %s: %w", pair, err)
	}
	return lot, nil
}

// marketSell sells one lot's full quantity and closes it at the average
// fill price, converting realized PnL at the latest observed FX rate.
func (e *Engine) marketSell(ctx context.Context, lot *domain.Lot) (*domain.Lot, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	avgPrice, err := e.d.Executor.MarketSellQuantity(callCtx, lot.Pair, lot.Quantity)
	if err != nil {
		return nil, fmt.Errorf("market sell for %s lot %d: %w", lot.Pair, lot.ID, err)
	}
	closed, err := e.d.Ledger.CloseLot(ctx, lot.ID, avgPrice, e.fxRate(ctx))
	if err != nil {
		e.d.Logger.Error(ctx, err, "FILLED SELL NOT RECORDED", map[string]interface{}{
			"pair": lot.Pair, "lotID": lot.ID, "avgPrice": avgPrice,
		})
		return nil, fmt.Errorf("record sell fill for %s lot %d: %w", lot.Pair, lot.ID, err)
	}
	return closed, nil
}

// fxRate returns the latest observed reporting-currency rate, falling back
// to the configured default so PnL conversion never blocks a close.
func (e *Engine) fxRate(ctx context.Context) float64 {
	rate, ok, err := e.d.FXRates.LatestRate(ctx, e.cfg.FXBase, e.cfg.FXQuote)
	if err != nil {
		e.d.Logger.Warn(ctx, "Failed to load FX rate, using default", map[string]interface{}{
			"base": e.cfg.FXBase, "quote": e.cfg.FXQuote, "error": err.Error(),
		})
		return e.cfg.DefaultFXRate
	}
	if !ok {
		return e.cfg.DefaultFXRate
	}
	return rate
}

// ManualBuy opens a lot for an operator-requested notional, outside the
// autotrade decision path.
func (e *Engine) ManualBuy(ctx context.Context, pair string, quoteNotional float64) (*domain.Lot, error) {
	lock := e.pairExecLock(pair)
	lock.Lock()
	defer lock.Unlock()

	lot, err := e.marketBuy(ctx, pair, quoteNotional)
	if err != nil {
		e.tradeLog(ctx, pair, domain.LogLevelError, fmt.Sprintf("manual buy failed: %v", err), nil, nil)
		return nil, err
	}
	e.tradeLog(ctx, pair, domain.LogLevelInfo,
		fmt.Sprintf("manual buy: %.6f @ %.2f USD", lot.Quantity, lot.EntryPrice), nil, nil)
	return lot, nil
}

// ManualSellLot sells one specific open lot.
func (e *Engine) ManualSellLot(ctx context.Context, lotID int64) (*domain.Lot, error) {
	ref, err := e.d.Ledger.Lot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("lot %d: %w", lotID, ports.ErrNotFound)
	}

	lock := e.pairExecLock(ref.Pair)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the execution lock: a concurrent decision may have
	// settled the lot between the lookup and the lock. The exchange order
	// is only placed for a lot that is still open here.
	lot, err := e.d.Ledger.Lot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("lot %d: %w", lotID, ports.ErrNotFound)
	}
	if !lot.IsOpen() {
		return nil, fmt.Errorf("lot %d: %w", lotID, ports.ErrAlreadyClosed)
	}
	closed, err := e.marketSell(ctx, lot)
	if err != nil {
		e.tradeLog(ctx, lot.Pair, domain.LogLevelError, fmt.Sprintf("manual sell failed for lot %d: %v", lotID, err), nil, nil)
		return nil, err
	}
	e.tradeLog(ctx, lot.Pair, domain.LogLevelInfo,
		fmt.Sprintf("manual sell: lot %d, %.6f @ %.2f USD, pnl %.2f USD", closed.ID, closed.Quantity, closed.ExitPrice, closed.RealizedPnLQuote), nil, nil)
	return closed, nil
}

// ManualSellPair sells every open lot for a pair, continuing past
// individual failures. The successfully closed lots are returned alongside
// the first error encountered, if any.
func (e *Engine) ManualSellPair(ctx context.Context, pair string) ([]*domain.Lot, error) {
	lots, err := e.d.Ledger.OpenLots(ctx, pair)
	if err != nil {
		return nil, err
	}
	var closed []*domain.Lot
	var firstErr error
	for _, lot := range lots {
		c, err := e.ManualSellLot(ctx, lot.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		closed = append(closed, c)
	}
	return closed, firstErr
}
