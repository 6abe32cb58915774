package exchange

import (
	"context"

	api "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	futuresmarket "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/futures/market"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"

	"exchangelink/internal/errs"
	"exchangelink/internal/normalizer"
	"exchangelink/internal/symbols"
)

const kucoinFuturesURL = "https://api-futures.kucoin.com"

// KuCoin is wired through its futures market API only, so account and
// depth endpoints are not advertised.
var kucoinDescriptor = Descriptor{
	ID:                 "kucoin",
	Name:               "kucoin",
	DisplayName:        "KuCoin Futures",
	RateLimitMs:        100,
	RequiresPassphrase: true,
	Has: map[string]bool{
		CapFetchTicker:    true,
		CapFetchMarkets:   true,
		CapFetchOrderBook: false,
		CapFetchTrades:    false,
		CapFetchOHLCV:     false,
		CapFetchBalance:   false,
		CapWatchTicker:    true,
		CapWatchOrderBook: true,
	},
}

type kucoinClient struct {
	marketAPI futuresmarket.MarketAPI
}

func newKucoinClient(cfg ClientConfig) (Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = kucoinFuturesURL
	}

	t := cfg.Transport
	transportBuilder := sdktype.NewTransportOptionBuilder()
	if t.MaxIdleConns > 0 {
		transportBuilder = transportBuilder.SetMaxIdleConns(t.MaxIdleConns).SetMaxIdleConnsPerHost(t.MaxIdleConns)
	}
	if t.MaxConnsPerHost > 0 {
		transportBuilder = transportBuilder.SetMaxConnsPerHost(t.MaxConnsPerHost)
	}
	if t.IdleConnTimeout > 0 {
		transportBuilder = transportBuilder.SetIdleConnTimeout(t.IdleConnTimeout)
	}
	if t.Timeout > 0 {
		transportBuilder = transportBuilder.SetTimeout(t.Timeout)
	}

	option := sdktype.NewClientOptionBuilder().
		WithKey(cfg.Credentials.APIKey).
		WithSecret(cfg.Credentials.APISecret).
		WithPassphrase(cfg.Credentials.Passphrase).
		WithFuturesEndpoint(baseURL).
		WithTransportOption(transportBuilder.Build()).
		Build()

	client := api.NewClient(option)
	return &kucoinClient{marketAPI: client.RestService().GetFuturesService().GetMarketAPI()}, nil
}

func (k *kucoinClient) ID() string { return "kucoin" }

func (k *kucoinClient) FetchTicker(ctx context.Context, symbol string) (normalizer.Raw, error) {
	native, err := symbols.ToExchange("kucoin", symbol)
	if err != nil {
		return nil, errs.Validation("%v", err)
	}
	req := futuresmarket.NewGetTickerReqBuilder().SetSymbol(native).Build()
	resp, err := k.marketAPI.GetTicker(req, ctx)
	if err != nil {
		return nil, errs.Connectivity(err, "kucoin: fetch ticker")
	}
	if resp == nil {
		return nil, errs.NotFound("kucoin: no ticker for %s", symbol)
	}

	var t struct {
		Price        any   `json:"price"`
		BestBidPrice any   `json:"bestBidPrice"`
		BestBidSize  any   `json:"bestBidSize"`
		BestAskPrice any   `json:"bestAskPrice"`
		BestAskSize  any   `json:"bestAskSize"`
		Ts           int64 `json:"ts"`
	}
	if err := remarshal("kucoin", resp, &t); err != nil {
		return nil, err
	}
	return normalizer.Raw{
		"symbol": symbol,
		// ts is reported in nanoseconds
		"timestamp": t.Ts / 1_000_000,
		"last":      t.Price,
		"bid":       t.BestBidPrice,
		"bidVolume": t.BestBidSize,
		"ask":       t.BestAskPrice,
		"askVolume": t.BestAskSize,
	}, nil
}

func (k *kucoinClient) FetchOrderBook(context.Context, string, int) (normalizer.Raw, error) {
	return nil, notSupported("kucoin", CapFetchOrderBook)
}

func (k *kucoinClient) FetchTrades(context.Context, string, int) ([]normalizer.Raw, error) {
	return nil, notSupported("kucoin", CapFetchTrades)
}

func (k *kucoinClient) FetchOHLCV(context.Context, string, string, int) ([][]any, error) {
	return nil, notSupported("kucoin", CapFetchOHLCV)
}

func (k *kucoinClient) FetchBalance(context.Context) (normalizer.Raw, error) {
	return nil, notSupported("kucoin", CapFetchBalance)
}

func (k *kucoinClient) LoadMarkets(ctx context.Context) ([]normalizer.Raw, error) {
	resp, err := k.marketAPI.GetAllSymbols(ctx)
	if err != nil {
		return nil, errs.Connectivity(err, "kucoin: load markets")
	}
	var doc any
	if err := remarshal("kucoin", resp, &doc); err != nil {
		return nil, err
	}
	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["data"].([]any)
	}
	out := make([]normalizer.Raw, 0, len(items))
	for _, item := range items {
		s, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, kucoinMarket(s))
	}
	return out, nil
}

func kucoinMarket(s map[string]any) normalizer.Raw {
	base, _ := s["baseCurrency"].(string)
	quote, _ := s["quoteCurrency"].(string)
	status, _ := s["status"].(string)
	kind, _ := s["type"].(string)

	// FFWCSX is a perpetual, FFICSX a dated future
	perpetual := kind == "FFWCSX"
	unified := symbols.ToUnified("kucoin", base, quote)
	base, quote, _ = symbols.Split(unified)
	m := normalizer.Raw{
		"id":     s["symbol"],
		"symbol": unified,
		"base":   base,
		"quote":  quote,
		"active": status == "Open",
		"spot":   false,
		"margin": false,
		"swap":   perpetual,
		"future": !perpetual,
		"type":   "swap",
		"info":   s,
		"precision": map[string]any{
			"amount": s["lotSize"],
			"price":  s["tickSize"],
		},
		"limits": map[string]any{
			"amount": map[string]any{"min": s["lotSize"], "max": s["maxOrderQty"]},
			"price":  map[string]any{"min": s["tickSize"], "max": s["maxPrice"]},
		},
	}
	if !perpetual {
		m["type"] = "future"
	}
	return m
}
