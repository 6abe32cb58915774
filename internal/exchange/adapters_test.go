package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"exchangelink/internal/errs"
	"exchangelink/internal/normalizer"
	"exchangelink/models"
)

func serveJSON(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBinanceOrderBook(t *testing.T) {
	srv := serveJSON(t, `{"lastUpdateId":42,"E":1,"T":1,"bids":[["100.5","1"],["100.4","2"]],"asks":[["100.6","3"]]}`)
	c, err := newBinanceClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := c.FetchOrderBook(context.Background(), "BTC/USDT", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	book := normalizer.NormalizeOrderBook("binance", "BTC/USDT", raw)
	if len(book.Bids) != 2 || book.Bids[0].Price != 100.5 || book.Bids[1].Amount != 2 {
		t.Fatalf("unexpected bids %+v", book.Bids)
	}
	if len(book.Asks) != 1 || book.Asks[0].Price != 100.6 {
		t.Fatalf("unexpected asks %+v", book.Asks)
	}
	if book.Nonce == nil || *book.Nonce != 42 {
		t.Fatalf("expected nonce 42, got %v", book.Nonce)
	}
}

func TestBinanceRejectsBadSymbol(t *testing.T) {
	c, _ := newBinanceClient(ClientConfig{})
	if _, err := c.FetchTicker(context.Background(), "BTCUSDT"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBybitOrderBook(t *testing.T) {
	srv := serveJSON(t, `{"retCode":0,"retMsg":"OK","result":{"s":"BTCUSDT","b":[["65000","0.5"]],"a":[["65001","0.25"]],"ts":1700000000000,"u":7},"time":1700000000001}`)
	c, err := newBybitClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := c.FetchOrderBook(context.Background(), "BTC/USDT", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	book := normalizer.NormalizeOrderBook("bybit", "BTC/USDT", raw)
	if len(book.Bids) != 1 || book.Bids[0].Amount != 0.5 || book.Asks[0].Price != 65001 {
		t.Fatalf("unexpected book %+v", book)
	}
	if book.Timestamp == nil || *book.Timestamp != 1700000000000 {
		t.Fatalf("unexpected timestamp %v", book.Timestamp)
	}
}

func TestBybitReturnCodes(t *testing.T) {
	srv := serveJSON(t, `{"retCode":10003,"retMsg":"API key is invalid.","result":{},"time":1}`)
	c, _ := newBybitClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client(), Credentials: models.Credentials{APIKey: "k", APISecret: "s"}})
	if _, err := c.FetchBalance(context.Background()); !errors.Is(err, errs.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}

	srv = serveJSON(t, `{"retCode":10006,"retMsg":"Too many visits!","result":{},"time":1}`)
	c, _ = newBybitClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.FetchTicker(context.Background(), "BTC/USDT")
	if !errors.Is(err, errs.ErrConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	if rl, _ := DetectLimit("bybit", err.Error()); !rl {
		t.Fatalf("expected the error text to be recognised as a rate limit: %v", err)
	}
}

func TestBybitBalanceDerivesFree(t *testing.T) {
	srv := serveJSON(t, `{"retCode":0,"retMsg":"OK","result":{"list":[{"accountType":"UNIFIED","coin":[{"coin":"usdt","walletBalance":"100","locked":"25"},{"coin":"BTC","walletBalance":"","locked":"0"}]}]},"time":1}`)
	c, _ := newBybitClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	raw, err := c.FetchBalance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	balances := normalizer.NormalizeBalances("bybit", raw, 1)
	if len(balances) != 1 {
		t.Fatalf("expected only currencies with a total, got %+v", balances)
	}
	b := balances[0]
	if b.Currency != "USDT" || b.Total != 100 || b.Used != 25 || b.Free != 75 {
		t.Fatalf("unexpected balance %+v", b)
	}
}

func TestBybitKlinesAreAscending(t *testing.T) {
	srv := serveJSON(t, `{"retCode":0,"retMsg":"OK","result":{"list":[["3000","3","3","3","3","1","1"],["2000","2","2","2","2","1","1"],["1000","1","1","1","1","1","1"]]},"time":1}`)
	c, _ := newBybitClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	rows, err := c.FetchOHLCV(context.Background(), "ETH/USDT", "1m", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	candles := normalizer.NormalizeCandles("bybit", "ETH/USDT", "1m", rows)
	if len(candles) != 3 || candles[0].Timestamp != 1000 || candles[2].Timestamp != 3000 {
		t.Fatalf("unexpected candles %+v", candles)
	}

	if _, err := c.FetchOHLCV(context.Background(), "ETH/USDT", "7m", 3); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for unknown timeframe, got %v", err)
	}
}

func TestMarketConversions(t *testing.T) {
	m := normalizer.NormalizeMarket("binance", binanceMarket(map[string]any{
		"symbol":       "BTCUSDT",
		"baseAsset":    "BTC",
		"quoteAsset":   "USDT",
		"status":       "TRADING",
		"contractType": "PERPETUAL",
		"filters": []any{
			map[string]any{"filterType": "PRICE_FILTER", "minPrice": "0.10", "maxPrice": "1000000", "tickSize": "0.10"},
			map[string]any{"filterType": "LOT_SIZE", "minQty": "0.001", "maxQty": "1000", "stepSize": "0.001"},
		},
	}))
	if m.Symbol != "BTC/USDT" || !m.Active || !m.Swap || m.Spot || m.Type != "swap" {
		t.Fatalf("unexpected binance market %+v", m)
	}
	if m.Limits.Amount.Min == nil || *m.Limits.Amount.Min != 0.001 || m.Precision.Price == nil || *m.Precision.Price != 0.1 {
		t.Fatalf("unexpected binance limits %+v / %+v", m.Limits, m.Precision)
	}

	k := normalizer.NormalizeMarket("kucoin", kucoinMarket(map[string]any{
		"symbol":        "XBTUSDTM",
		"baseCurrency":  "XBT",
		"quoteCurrency": "USDT",
		"status":        "Open",
		"type":          "FFWCSX",
	}))
	if k.Symbol != "BTC/USDT" || k.Base != "BTC" || !k.Swap {
		t.Fatalf("unexpected kucoin market %+v", k)
	}

	y := normalizer.NormalizeMarket("bybit", bybitMarket(map[string]any{
		"symbol":       "ETHUSDT-27DEC24",
		"baseCoin":     "ETH",
		"quoteCoin":    "USDT",
		"status":       "Closed",
		"contractType": "LinearFutures",
	}))
	if y.Active || y.Type != "future" || !y.Future {
		t.Fatalf("unexpected bybit market %+v", y)
	}
}

func TestKucoinUnsupportedCapabilities(t *testing.T) {
	c, err := newKucoinClient(ClientConfig{Credentials: models.Credentials{APIKey: "k", APISecret: "s", Passphrase: "p"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.FetchBalance(context.Background()); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if kucoinDescriptor.Has[CapFetchBalance] {
		t.Fatalf("descriptor must not advertise unsupported capabilities")
	}
}
