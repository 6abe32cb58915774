package exchange

import (
	"context"
	"fmt"
	"strings"

	bybit "github.com/bybit-exchange/bybit.go.api"
	"github.com/shopspring/decimal"

	"exchangelink/internal/errs"
	"exchangelink/internal/normalizer"
	"exchangelink/internal/symbols"
)

const (
	bybitMainnetURL = "https://api.bybit.com"
	bybitTestnetURL = "https://api-testnet.bybit.com"
	bybitCategory   = "linear"
)

var bybitDescriptor = Descriptor{
	ID:              "bybit",
	Name:            "bybit",
	DisplayName:     "Bybit",
	RateLimitMs:     20,
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

// bybit v5 return codes for bad keys, bad signatures, missing permissions
// and expired keys.
var bybitAuthCodes = map[int64]bool{10003: true, 10004: true, 10005: true, 33004: true}

var bybitIntervals = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W",
}

type bybitClient struct {
	client *bybit.Client
}

func newBybitClient(cfg ClientConfig) (Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = bybitMainnetURL
		if cfg.Sandbox {
			base = bybitTestnetURL
		}
	}
	client := bybit.NewBybitHttpClient(cfg.Credentials.APIKey, cfg.Credentials.APISecret, bybit.WithBaseURL(base))
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}
	return &bybitClient{client: client}, nil
}

func (b *bybitClient) ID() string { return "bybit" }

// bybitEnvelope is the v5 response wrapper.
type bybitEnvelope struct {
	RetCode int64          `json:"retCode"`
	RetMsg  string         `json:"retMsg"`
	Result  map[string]any `json:"result"`
	Time    int64          `json:"time"`
}

// unwrap checks the transport error and the v5 return code of one call.
func (b *bybitClient) unwrap(op string, resp any, err error) (*bybitEnvelope, error) {
	if err != nil {
		return nil, errs.Connectivity(err, "bybit: %s", op)
	}
	var env bybitEnvelope
	if err := remarshal("bybit", resp, &env); err != nil {
		return nil, err
	}
	if env.RetCode != 0 {
		cause := fmt.Errorf("retCode=%d retMsg=%s", env.RetCode, env.RetMsg)
		if bybitAuthCodes[env.RetCode] {
			return nil, errs.Authentication(cause, "bybit: %s", op)
		}
		return nil, errs.Connectivity(cause, "bybit: %s", op)
	}
	if env.Result == nil {
		env.Result = map[string]any{}
	}
	return &env, nil
}

func (b *bybitClient) symbol(unified string) (string, error) {
	native, err := symbols.ToExchange("bybit", unified)
	if err != nil {
		return "", errs.Validation("%v", err)
	}
	return native, nil
}

func resultList(env *bybitEnvelope) []map[string]any {
	items, _ := env.Result["list"].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func (b *bybitClient) FetchTicker(ctx context.Context, symbol string) (normalizer.Raw, error) {
	native, err := b.symbol(symbol)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"category": bybitCategory, "symbol": native}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	env, err := b.unwrap("fetch ticker", resp, err)
	if err != nil {
		return nil, err
	}
	list := resultList(env)
	if len(list) == 0 {
		return nil, errs.NotFound("bybit: no ticker for %s", symbol)
	}
	t := list[0]
	raw := normalizer.Raw{
		"symbol":      symbol,
		"timestamp":   env.Time,
		"last":        t["lastPrice"],
		"bid":         t["bid1Price"],
		"bidVolume":   t["bid1Size"],
		"ask":         t["ask1Price"],
		"askVolume":   t["ask1Size"],
		"open":        t["prevPrice24h"],
		"high":        t["highPrice24h"],
		"low":         t["lowPrice24h"],
		"baseVolume":  t["volume24h"],
		"quoteVolume": t["turnover24h"],
	}
	last, lastErr := decimal.NewFromString(fmt.Sprint(t["lastPrice"]))
	prev, prevErr := decimal.NewFromString(fmt.Sprint(t["prevPrice24h"]))
	if lastErr == nil && prevErr == nil {
		raw["change"] = last.Sub(prev).String()
	}
	if pcnt, err := decimal.NewFromString(fmt.Sprint(t["price24hPcnt"])); err == nil {
		raw["percentage"] = pcnt.Mul(decimal.NewFromInt(100)).String()
	}
	return raw, nil
}

func (b *bybitClient) FetchOrderBook(ctx context.Context, symbol string, limit int) (normalizer.Raw, error) {
	native, err := b.symbol(symbol)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"category": bybitCategory, "symbol": native}
	if limit > 0 {
		params["limit"] = limit
	}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetOrderBookInfo(ctx)
	env, err := b.unwrap("fetch order book", resp, err)
	if err != nil {
		return nil, err
	}
	return normalizer.Raw{
		"symbol":    symbol,
		"bids":      env.Result["b"],
		"asks":      env.Result["a"],
		"timestamp": env.Result["ts"],
		"nonce":     env.Result["u"],
	}, nil
}

func (b *bybitClient) FetchTrades(ctx context.Context, symbol string, limit int) ([]normalizer.Raw, error) {
	native, err := b.symbol(symbol)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"category": bybitCategory, "symbol": native}
	if limit > 0 {
		params["limit"] = limit
	}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetPublicRecentTrades(ctx)
	env, err := b.unwrap("fetch trades", resp, err)
	if err != nil {
		return nil, err
	}
	list := resultList(env)
	out := make([]normalizer.Raw, 0, len(list))
	for _, t := range list {
		side, _ := t["side"].(string)
		out = append(out, normalizer.Raw{
			"id":           t["execId"],
			"symbol":       symbol,
			"timestamp":    t["time"],
			"side":         strings.ToLower(side),
			"price":        t["price"],
			"amount":       t["size"],
			"takerOrMaker": "taker",
		})
	}
	return out, nil
}

func (b *bybitClient) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([][]any, error) {
	native, err := b.symbol(symbol)
	if err != nil {
		return nil, err
	}
	interval, ok := bybitIntervals[timeframe]
	if !ok {
		return nil, errs.Validation("bybit: unsupported timeframe %q", timeframe)
	}
	params := map[string]interface{}{"category": bybitCategory, "symbol": native, "interval": interval}
	if limit > 0 {
		params["limit"] = limit
	}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	env, err := b.unwrap("fetch ohlcv", resp, err)
	if err != nil {
		return nil, err
	}
	items, _ := env.Result["list"].([]any)
	rows := make([][]any, 0, len(items))
	// bybit returns the newest candle first
	for i := len(items) - 1; i >= 0; i-- {
		row, ok := items[i].([]any)
		if !ok || len(row) < 6 {
			continue
		}
		rows = append(rows, row[:6])
	}
	return rows, nil
}

func (b *bybitClient) FetchBalance(ctx context.Context) (normalizer.Raw, error) {
	params := map[string]interface{}{"accountType": "UNIFIED"}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	env, err := b.unwrap("fetch balance", resp, err)
	if err != nil {
		return nil, err
	}
	sheet := newBalanceSheet()
	for _, account := range resultList(env) {
		coins, _ := account["coin"].([]any)
		for _, c := range coins {
			coin, ok := c.(map[string]any)
			if !ok {
				continue
			}
			name, _ := coin["coin"].(string)
			sheet.set(strings.ToUpper(name), coin["walletBalance"], nil, coin["locked"])
		}
	}
	return sheet.raw(), nil
}

func (b *bybitClient) LoadMarkets(ctx context.Context) ([]normalizer.Raw, error) {
	params := map[string]interface{}{"category": bybitCategory, "limit": 1000}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	env, err := b.unwrap("load markets", resp, err)
	if err != nil {
		return nil, err
	}
	list := resultList(env)
	out := make([]normalizer.Raw, 0, len(list))
	for _, s := range list {
		out = append(out, bybitMarket(s))
	}
	return out, nil
}

func bybitMarket(s map[string]any) normalizer.Raw {
	base, _ := s["baseCoin"].(string)
	quote, _ := s["quoteCoin"].(string)
	status, _ := s["status"].(string)
	contract, _ := s["contractType"].(string)
	price, _ := s["priceFilter"].(map[string]any)
	lot, _ := s["lotSizeFilter"].(map[string]any)

	perpetual := strings.HasSuffix(contract, "Perpetual")
	m := normalizer.Raw{
		"id":     s["symbol"],
		"symbol": symbols.ToUnified("bybit", base, quote),
		"base":   base,
		"quote":  quote,
		"active": status == "Trading",
		"spot":   false,
		"margin": false,
		"swap":   perpetual,
		"future": !perpetual,
		"type":   "swap",
		"info":   s,
		"precision": map[string]any{
			"amount": lot["qtyStep"],
			"price":  price["tickSize"],
		},
		"limits": map[string]any{
			"amount": map[string]any{"min": lot["minOrderQty"], "max": lot["maxOrderQty"]},
			"price":  map[string]any{"min": price["minPrice"], "max": price["maxPrice"]},
			"cost":   map[string]any{"min": lot["minNotionalValue"]},
		},
	}
	if !perpetual {
		m["type"] = "future"
	}
	return m
}
