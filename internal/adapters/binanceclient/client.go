package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements ports.MarketDataClient and ports.OrderExecutionClient
// using the go-binance spot API.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using the global binance.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{spotClient: client, logger: cfg.Logger}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1112, -1121, -1130: // Parameter/request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2010: // New order rejected
			mappedErr = ports.ErrOrderPlacementFailed
		case -2013: // Order does not exist
			mappedErr = ports.ErrNotFound
		case -2014, -2015: // API-key format invalid / invalid key, IP, or permissions
			mappedErr = ports.ErrInvalidAPIKeys
		case -3005: // Insufficient balance
			mappedErr = ports.ErrInsufficientFunds
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// --- MarketDataClient Implementation ---

// TickerPrice retrieves the last traded price for a pair.
func (c *Client) TickerPrice(ctx context.Context, pair string) (float64, error) {
	op := "TickerPrice"
	prices, err := c.spotClient.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(prices) == 0 {
		err := fmt.Errorf("no price data returned for pair %s", pair)
		return 0, c.handleError(ctx, err, op)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", prices[0].Price, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// TickerStats24h retrieves rolling 24h statistics for a pair.
func (c *Client) TickerStats24h(ctx context.Context, pair string) (*ports.TickerStats, error) {
	op := "TickerStats24h"
	stats, err := c.spotClient.NewListPriceChangeStatsService().Symbol(pair).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(stats) == 0 {
		err := fmt.Errorf("no ticker statistics returned for pair %s", pair)
		return nil, c.handleError(ctx, err, op)
	}
	s := stats[0]

	out := &ports.TickerStats{Count: s.Count}
	for _, f := range []struct {
		raw  string
		dest *float64
		name string
	}{
		{s.LastPrice, &out.LastPrice, "lastPrice"},
		{s.LowPrice, &out.Low, "lowPrice"},
		{s.HighPrice, &out.High, "highPrice"},
		{s.Volume, &out.Volume, "volume"},
	} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			parseErr := fmt.Errorf("could not parse %s '%s' for pair %s: %w", f.name, f.raw, pair, err)
			return nil, c.handleError(ctx, parseErr, op)
		}
		*f.dest = v
	}
	return out, nil
}

// Klines retrieves historical candlesticks for a pair.
func (c *Client) Klines(ctx context.Context, pair, interval string, limit int) ([]*domain.Kline, error) {
	op := "Klines"
	raw, err := c.spotClient.NewKlinesService().Symbol(pair).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	klines := make([]*domain.Kline, 0, len(raw))
	for _, k := range raw {
		kl := &domain.Kline{
			Pair:       pair,
			Interval:   interval,
			OpenTime:   time.UnixMilli(k.OpenTime),
			CloseTime:  time.UnixMilli(k.CloseTime),
			TradeCount: k.TradeNum,
		}
		for _, f := range []struct {
			raw  string
			dest *float64
			name string
		}{
			{k.Open, &kl.Open, "open"},
			{k.High, &kl.High, "high"},
			{k.Low, &kl.Low, "low"},
			{k.Close, &kl.Close, "close"},
			{k.Volume, &kl.Volume, "volume"},
		} {
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				parseErr := fmt.Errorf("could not parse kline %s '%s' for pair %s: %w", f.name, f.raw, pair, err)
				return nil, c.handleError(ctx, parseErr, op)
			}
			*f.dest = v
		}
		klines = append(klines, kl)
	}
	return klines, nil
}

// --- OrderExecutionClient Implementation ---

// MarketBuyNotional places a market buy sized by quote notional and returns
// the filled base quantity and average fill price.
func (c *Client) MarketBuyNotional(ctx context.Context, pair string, quoteNotional float64) (float64, float64, error) {
	op := "MarketBuyNotional"
	if quoteNotional <= 0 {
		return 0, 0, fmt.Errorf("%s: %w: notional must be positive", op, ports.ErrInvalidRequest)
	}

	order, err := c.spotClient.NewCreateOrderService().
		Symbol(pair).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(strconv.FormatFloat(quoteNotional, 'f', 8, 64)).
		Do(ctx)
	if err != nil {
		return 0, 0, c.handleError(ctx, err, op)
	}

	qty, avg, err := fillTotals(order)
	if err != nil {
		return 0, 0, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, "Market buy filled", map[string]interface{}{
		"pair": pair, "orderID": order.OrderID, "quantity": qty, "avgPrice": avg,
	})
	return qty, avg, nil
}

// MarketSellQuantity places a market sell for a base quantity and returns the
// average fill price.
func (c *Client) MarketSellQuantity(ctx context.Context, pair string, quantity float64) (float64, error) {
	op := "MarketSellQuantity"
	if quantity <= 0 {
		return 0, fmt.Errorf("%s: %w: quantity must be positive", op, ports.ErrInvalidRequest)
	}

	order, err := c.spotClient.NewCreateOrderService().
		Symbol(pair).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(quantity, 'f', 8, 64)).
		Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}

	qty, avg, err := fillTotals(order)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, "Market sell filled", map[string]interface{}{
		"pair": pair, "orderID": order.OrderID, "quantity": qty, "avgPrice": avg,
	})
	return avg, nil
}

// fillTotals derives the executed quantity and volume-weighted average price
// from an order response.
func fillTotals(order *binance.CreateOrderResponse) (qty, avgPrice float64, err error) {
	qty, err = strconv.ParseFloat(order.ExecutedQuantity, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("could not parse executed quantity '%s': %w", order.ExecutedQuantity, err)
	}
	quote, err := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("could not parse cumulative quote quantity '%s': %w", order.CummulativeQuoteQuantity, err)
	}
	if qty <= 0 {
		return 0, 0, fmt.Errorf("order %d reported zero executed quantity: %w", order.OrderID, ports.ErrOrderPlacementFailed)
	}
	return qty, quote / qty, nil
}
