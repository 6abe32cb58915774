package exchange

import (
	"context"
	"errors"
	"strings"

	"github.com/adshao/go-binance/v2/common"
	futures "github.com/adshao/go-binance/v2/futures"

	"exchangelink/internal/errs"
	"exchangelink/internal/normalizer"
	"exchangelink/internal/symbols"
)

const binanceTestnetURL = "https://testnet.binancefuture.com"

var binanceDescriptor = Descriptor{
	ID:              "binance",
	Name:            "binance",
	DisplayName:     "Binance",
	RateLimitMs:     50,
	SupportsSandbox: true,
	Has: map[string]bool{
		CapFetchTicker:    true,
		CapFetchOrderBook: true,
		CapFetchTrades:    true,
		CapFetchOHLCV:     true,
		CapFetchBalance:   true,
		CapFetchMarkets:   true,
		CapWatchTicker:    true,
		CapWatchOrderBook: true,
		CapWatchTrades:    true,
		CapWatchOHLCV:     true,
	},
}

// binance auth failures: invalid key, invalid signature, key lacks permission.
var binanceAuthCodes = map[int64]bool{-2014: true, -2015: true, -1022: true}

type binanceClient struct {
	client *futures.Client
}

func newBinanceClient(cfg ClientConfig) (Client, error) {
	client := futures.NewClient(cfg.Credentials.APIKey, cfg.Credentials.APISecret)
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}
	base := cfg.BaseURL
	if base == "" && cfg.Sandbox {
		base = binanceTestnetURL
	}
	if base != "" {
		client.SetApiEndpoint(base)
	}
	return &binanceClient{client: client}, nil
}

func (b *binanceClient) ID() string { return "binance" }

func (b *binanceClient) classify(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && binanceAuthCodes[apiErr.Code] {
		return errs.Authentication(err, "binance: %s", op)
	}
	return errs.Connectivity(err, "binance: %s", op)
}

func (b *binanceClient) symbol(unified string) (string, error) {
	native, err := symbols.ToExchange("binance", unified)
	if err != nil {
		return "", errs.Validation("%v", err)
	}
	return native, nil
}

func (b *binanceClient) FetchTicker(ctx context.Context, symbol string) (normalizer.Raw, error) {
	native, err := b.symbol(symbol)
	if err != nil {
		return nil, err
	}
	stats, err := b.client.NewListPriceChangeStatsService().Symbol(native).Do(ctx)
	if err != nil {
		return nil, b.classify("fetch ticker", err)
	}
	if len(stats) == 0 {
		return nil, errs.NotFound("binance: no ticker for %s", symbol)
	}
	books, err := b.client.NewListBookTickersService().Symbol(native).Do(ctx)
	if err != nil {
		return nil, b.classify("fetch book ticker", err)
	}

	s, err := rawOf("binance", stats[0])
	if err != nil {
		return nil, err
	}
	raw := normalizer.Raw{
		"symbol":      symbol,
		"timestamp":   s["closeTime"],
		"last":        s["lastPrice"],
		"open":        s["openPrice"],
		"high":        s["highPrice"],
		"low":         s["lowPrice"],
		"baseVolume":  s["volume"],
		"quoteVolume": s["quoteVolume"],
		"change":      s["priceChange"],
		"percentage":  s["priceChangePercent"],
		"vwap":        s["weightedAvgPrice"],
	}
	if len(books) > 0 {
		book, err := rawOf("binance", books[0])
		if err != nil {
			return nil, err
		}
		raw["bid"] = book["bidPrice"]
		raw["bidVolume"] = book["bidQty"]
		raw["ask"] = book["askPrice"]
		raw["askVolume"] = book["askQty"]
	}
	return raw, nil
}

func (b *binanceClient) FetchOrderBook(ctx context.Context, symbol string, limit int) (normalizer.Raw, error) {
	native, err := b.symbol(symbol)
	if err != nil {
		return nil, err
	}
	svc := b.client.NewDepthService().Symbol(native)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, b.classify("fetch order book", err)
	}
	bids := make([]any, 0, len(res.Bids))
	for _, l := range res.Bids {
		bids = append(bids, []any{l.Price, l.Quantity})
	}
	asks := make([]any, 0, len(res.Asks))
	for _, l := range res.Asks {
		asks = append(asks, []any{l.Price, l.Quantity})
	}
	return normalizer.Raw{
		"symbol": symbol,
		"bids":   bids,
		"asks":   asks,
		"nonce":  res.LastUpdateID,
	}, nil
}

func (b *binanceClient) FetchTrades(ctx context.Context, symbol string, limit int) ([]normalizer.Raw, error) {
	native, err := b.symbol(symbol)
	if err != nil {
		return nil, err
	}
	svc := b.client.NewRecentTradesService().Symbol(native)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, b.classify("fetch trades", err)
	}
	list, err := rawListOf("binance", res)
	if err != nil {
		return nil, err
	}
	out := make([]normalizer.Raw, 0, len(list))
	for _, t := range list {
		side := "buy"
		// the buyer being the maker means the aggressor sold
		if maker, _ := t["isBuyerMaker"].(bool); maker {
			side = "sell"
		}
		out = append(out, normalizer.Raw{
			"id":           t["id"],
			"symbol":       symbol,
			"timestamp":    t["time"],
			"side":         side,
			"price":        t["price"],
			"amount":       t["qty"],
			"cost":         t["quoteQty"],
			"takerOrMaker": "taker",
		})
	}
	return out, nil
}

func (b *binanceClient) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([][]any, error) {
	native, err := b.symbol(symbol)
	if err != nil {
		return nil, err
	}
	svc := b.client.NewKlinesService().Symbol(native).Interval(timeframe)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, b.classify("fetch ohlcv", err)
	}
	list, err := rawListOf("binance", res)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(list))
	for _, k := range list {
		rows = append(rows, []any{k["openTime"], k["open"], k["high"], k["low"], k["close"], k["volume"]})
	}
	return rows, nil
}

func (b *binanceClient) FetchBalance(ctx context.Context) (normalizer.Raw, error) {
	res, err := b.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, b.classify("fetch balance", err)
	}
	list, err := rawListOf("binance", res)
	if err != nil {
		return nil, err
	}
	sheet := newBalanceSheet()
	for _, entry := range list {
		asset, _ := entry["asset"].(string)
		sheet.set(strings.ToUpper(asset), entry["balance"], entry["availableBalance"], nil)
	}
	return sheet.raw(), nil
}

func (b *binanceClient) LoadMarkets(ctx context.Context) ([]normalizer.Raw, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, b.classify("load markets", err)
	}
	doc, err := rawOf("binance", info)
	if err != nil {
		return nil, err
	}
	list, _ := doc["symbols"].([]any)
	out := make([]normalizer.Raw, 0, len(list))
	for _, item := range list {
		s, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, binanceMarket(s))
	}
	return out, nil
}

func binanceMarket(s map[string]any) normalizer.Raw {
	base, _ := s["baseAsset"].(string)
	quote, _ := s["quoteAsset"].(string)
	status, _ := s["status"].(string)
	contract, _ := s["contractType"].(string)

	m := normalizer.Raw{
		"id":     s["symbol"],
		"symbol": symbols.ToUnified("binance", base, quote),
		"base":   base,
		"quote":  quote,
		"active": status == "TRADING",
		"spot":   false,
		"margin": false,
		"swap":   contract == "PERPETUAL",
		"future": contract != "" && contract != "PERPETUAL",
		"type":   "swap",
		"info":   s,
	}
	if contract != "" && contract != "PERPETUAL" {
		m["type"] = "future"
	}

	limits := map[string]any{}
	precision := map[string]any{}
	filters, _ := s["filters"].([]any)
	for _, f := range filters {
		filter, ok := f.(map[string]any)
		if !ok {
			continue
		}
		switch filter["filterType"] {
		case "LOT_SIZE":
			limits["amount"] = map[string]any{"min": filter["minQty"], "max": filter["maxQty"]}
			precision["amount"] = filter["stepSize"]
		case "PRICE_FILTER":
			limits["price"] = map[string]any{"min": filter["minPrice"], "max": filter["maxPrice"]}
			precision["price"] = filter["tickSize"]
		case "MIN_NOTIONAL":
			limits["cost"] = map[string]any{"min": filter["notional"]}
		}
	}
	m["limits"] = limits
	m["precision"] = precision
	return m
}
