package connection

import (
	"context"
	"strings"

	"exchangelink/internal/errs"
	"exchangelink/internal/exchange"
	"exchangelink/internal/normalizer"
	"exchangelink/internal/symbols"
	"exchangelink/models"
)

// MaxLimit bounds the limit accepted by order book, trade and candle queries.
const MaxLimit = 1000

func (s *Service) FetchBalances(ctx context.Context, ref models.ConfigRef) ([]models.Balance, error) {
	var raw normalizer.Raw
	sess, err := s.withClient(ctx, ref, "fetch_balance", exchange.CapFetchBalance,
		func(ctx context.Context, c exchange.Client, _ exchange.Info) (err error) {
			raw, err = c.FetchBalance(ctx)
			return err
		})
	if err != nil {
		return nil, err
	}
	return normalizer.NormalizeBalances(sess.exchangeID, raw, s.now().UnixMilli()), nil
}

func (s *Service) FetchTicker(ctx context.Context, ref models.ConfigRef, symbol string) (*models.Ticker, error) {
	symbol, err := unifiedSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var raw normalizer.Raw
	sess, err := s.withClient(ctx, ref, "fetch_ticker", exchange.CapFetchTicker,
		func(ctx context.Context, c exchange.Client, _ exchange.Info) (err error) {
			raw, err = c.FetchTicker(ctx, symbol)
			return err
		})
	if err != nil {
		return nil, err
	}
	t := normalizer.NormalizeTicker(sess.exchangeID, symbol, raw)
	return &t, nil
}

func (s *Service) FetchOrderBook(ctx context.Context, ref models.ConfigRef, symbol string, limit int) (*models.OrderBook, error) {
	symbol, err := unifiedSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	var raw normalizer.Raw
	sess, err := s.withClient(ctx, ref, "fetch_order_book", exchange.CapFetchOrderBook,
		func(ctx context.Context, c exchange.Client, _ exchange.Info) (err error) {
			raw, err = c.FetchOrderBook(ctx, symbol, limit)
			return err
		})
	if err != nil {
		return nil, err
	}
	ob := normalizer.NormalizeOrderBook(sess.exchangeID, symbol, raw)
	return &ob, nil
}

func (s *Service) FetchTrades(ctx context.Context, ref models.ConfigRef, symbol string, limit int) ([]models.Trade, error) {
	symbol, err := unifiedSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	var raw []normalizer.Raw
	sess, err := s.withClient(ctx, ref, "fetch_trades", exchange.CapFetchTrades,
		func(ctx context.Context, c exchange.Client, _ exchange.Info) (err error) {
			raw, err = c.FetchTrades(ctx, symbol, limit)
			return err
		})
	if err != nil {
		return nil, err
	}
	return normalizer.NormalizeTrades(sess.exchangeID, symbol, raw), nil
}

func (s *Service) FetchOHLCV(ctx context.Context, ref models.ConfigRef, symbol, timeframe string, limit int) ([]models.Candle, error) {
	symbol, err := unifiedSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if timeframe == "" {
		timeframe = "1h"
	}
	if !exchange.ValidTimeframe(timeframe) {
		return nil, errs.Validation("unsupported timeframe %q", timeframe)
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	var raw [][]any
	sess, err := s.withClient(ctx, ref, "fetch_ohlcv", exchange.CapFetchOHLCV,
		func(ctx context.Context, c exchange.Client, _ exchange.Info) (err error) {
			raw, err = c.FetchOHLCV(ctx, symbol, timeframe, limit)
			return err
		})
	if err != nil {
		return nil, err
	}
	return normalizer.NormalizeCandles(sess.exchangeID, symbol, timeframe, raw), nil
}

func (s *Service) ListMarkets(ctx context.Context, ref models.ConfigRef) ([]models.MarketSummary, error) {
	var raw []normalizer.Raw
	sess, err := s.withClient(ctx, ref, "load_markets", exchange.CapFetchMarkets,
		func(ctx context.Context, c exchange.Client, _ exchange.Info) (err error) {
			raw, err = c.LoadMarkets(ctx)
			return err
		})
	if err != nil {
		return nil, err
	}
	return normalizer.NormalizeMarkets(sess.exchangeID, raw), nil
}

// GetMarket returns one market of the exchange. A symbol the exchange does
// not list is NotFound.
func (s *Service) GetMarket(ctx context.Context, ref models.ConfigRef, symbol string) (*models.MarketSummary, error) {
	symbol, err := unifiedSymbol(symbol)
	if err != nil {
		return nil, err
	}
	markets, err := s.ListMarkets(ctx, ref)
	if err != nil {
		return nil, err
	}
	for i := range markets {
		if strings.EqualFold(marketKey(markets[i].Symbol), symbol) {
			return &markets[i], nil
		}
	}
	return nil, errs.NotFound("market %s not found", symbol)
}

// unifiedSymbol checks BASE/QUOTE form and drops any settlement suffix.
func unifiedSymbol(symbol string) (string, error) {
	base, quote, err := symbols.Split(symbol)
	if err != nil {
		return "", errs.Validation("%v", err)
	}
	return symbols.Join(base, quote), nil
}

func marketKey(symbol string) string {
	if i := strings.Index(symbol, ":"); i >= 0 {
		return symbol[:i]
	}
	return symbol
}

// validateLimit accepts 0 as "exchange default".
func validateLimit(limit int) error {
	if limit < 0 || limit > MaxLimit {
		return errs.Validation("limit must be between 0 and %d", MaxLimit)
	}
	return nil
}
