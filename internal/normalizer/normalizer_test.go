package normalizer

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchangelink/models"
)

func fp(f float64) *float64 { return &f }

func TestNormalizeTickerMissingOptionalFields(t *testing.T) {
	got := NormalizeTicker("binance", "", Raw{"symbol": "BTC/USDT", "last": "100", "timestamp": 123})

	assert.Equal(t, "binance", got.Exchange)
	assert.Equal(t, "BTC/USDT", got.Symbol)
	assert.Equal(t, int64(123), got.Timestamp)
	assert.Equal(t, 100.0, got.Last)
	assert.Nil(t, got.Bid)
	assert.Nil(t, got.Ask)
	assert.Nil(t, got.High24h)
	assert.Nil(t, got.Change24h)
}

func TestNormalizeTickerNonFiniteTreatedAsMissing(t *testing.T) {
	got := NormalizeTicker("bybit", "ETH/USDT", Raw{
		"last":   math.NaN(),
		"bid":    math.Inf(1),
		"ask":    "NaN",
		"high":   "Infinity",
		"low":    "1e400",
		"change": "-1.5",
	})
	assert.Equal(t, "ETH/USDT", got.Symbol)
	assert.Equal(t, 0.0, got.Last)
	assert.Nil(t, got.Bid)
	assert.Nil(t, got.Ask)
	assert.Nil(t, got.High24h)
	assert.Nil(t, got.Low24h)
	assert.Equal(t, fp(-1.5), got.Change24h)
}

func TestNormalizeTickerFallsBackToClose(t *testing.T) {
	got := NormalizeTicker("kucoin", "BTC/USDT", Raw{"close": json.Number("42.5"), "bid": 42.4, "ask": "42.6"})
	assert.Equal(t, 42.5, got.Last)
	assert.Equal(t, fp(42.4), got.Bid)
	assert.Equal(t, fp(42.6), got.Ask)
}

func TestNormalizeTickerDeterministic(t *testing.T) {
	raw := Raw{"symbol": "BTC/USDT", "last": "1", "bid": "0.9", "timestamp": int64(5)}
	assert.Equal(t, NormalizeTicker("x", "", raw), NormalizeTicker("x", "", raw))
}

func TestNormalizeBalancesDerivesUsed(t *testing.T) {
	got := NormalizeBalances("binance", Raw{
		"total": map[string]any{"BTC": "1.5"},
		"free":  map[string]any{"BTC": "1.0"},
	}, 1000)

	require.Len(t, got, 1)
	assert.Equal(t, models.Balance{Exchange: "binance", Currency: "BTC", Free: 1.0, Used: 0.5, Total: 1.5, Timestamp: 1000}, got[0])
}

func TestNormalizeBalancesUsedNeverNegative(t *testing.T) {
	got := NormalizeBalances("x", Raw{
		"total": map[string]any{"ETH": 1.0},
		"free":  map[string]any{"ETH": 2.0},
	}, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Used)
}

func TestNormalizeBalancesRequiresTotal(t *testing.T) {
	got := NormalizeBalances("x", Raw{
		"total": map[string]any{"BTC": "2", "XRP": "NaN"},
		"free":  map[string]any{"BTC": "1", "ETH": "5", "XRP": "1"},
	}, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "BTC", got[0].Currency)
}

func TestNormalizeBalancesPerCurrencyLayout(t *testing.T) {
	got := NormalizeBalances("x", Raw{
		"info": map[string]any{"ignored": true},
		"USDT": map[string]any{"total": "10", "used": "4"},
		"BTC":  map[string]any{"total": "0.3", "free": "0.1"},
		"DOGE": map[string]any{"total": "7"},
	}, 9)

	require.Len(t, got, 3)
	assert.Equal(t, "BTC", got[0].Currency)
	assert.InDelta(t, 0.2, got[0].Used, 1e-12)
	assert.Equal(t, 0.2, got[0].Used)
	assert.Equal(t, "DOGE", got[1].Currency)
	assert.Equal(t, 0.0, got[1].Free)
	assert.Equal(t, 0.0, got[1].Used)
	assert.Equal(t, "USDT", got[2].Currency)
	assert.Equal(t, 6.0, got[2].Free)
	assert.Equal(t, 4.0, got[2].Used)
}

func TestNormalizeOrderBookPreservesOrder(t *testing.T) {
	raw := Raw{
		"bids":      []any{[]any{"99", "1"}, []any{"101", "2"}, []any{"NaN", "3"}, []any{"98"}},
		"asks":      []any{map[string]any{"price": "102", "amount": "1"}, []string{"100", "4"}},
		"timestamp": 77,
	}
	got := NormalizeOrderBook("binance", "BTC/USDT", raw)

	assert.Equal(t, []models.PriceLevel{{Price: 99, Amount: 1}, {Price: 101, Amount: 2}, {Price: 0, Amount: 3}}, got.Bids)
	assert.Equal(t, []models.PriceLevel{{Price: 102, Amount: 1}, {Price: 100, Amount: 4}}, got.Asks)
	require.NotNil(t, got.Timestamp)
	assert.Equal(t, int64(77), *got.Timestamp)
	assert.Nil(t, got.Nonce)
}

func TestNormalizeOrderBookKeepsBadLevels(t *testing.T) {
	raw := Raw{
		"bids": []any{[]any{"100", "1"}, []any{"NaN", "3"}, []any{"99", "2"}},
		"asks": []any{map[string]any{"amount": "5"}, []any{"101", "Infinity"}},
	}
	got := NormalizeOrderBook("bybit", "BTC/USDT", raw)

	assert.Equal(t, []models.PriceLevel{{Price: 100, Amount: 1}, {Price: 0, Amount: 3}, {Price: 99, Amount: 2}}, got.Bids)
	assert.Equal(t, []models.PriceLevel{{Price: 0, Amount: 5}, {Price: 101, Amount: 0}}, got.Asks)
}

func TestNormalizeOrderBookEmpty(t *testing.T) {
	got := NormalizeOrderBook("binance", "BTC/USDT", Raw{})
	assert.NotNil(t, got.Bids)
	assert.Empty(t, got.Bids)
	assert.Empty(t, got.Asks)
}

func TestNormalizeTrades(t *testing.T) {
	got := NormalizeTrades("bybit", "BTC/USDT", []Raw{
		{"id": int64(1), "timestamp": "1700", "side": "BUY", "price": "10", "amount": "2"},
		{"id": "b", "side": "weird", "price": nil, "amount": "1", "cost": "5"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, int64(1700), got[0].Timestamp)
	assert.Equal(t, "buy", got[0].Side)
	assert.Equal(t, fp(20), got[0].Cost)
	assert.Equal(t, "", got[1].Side)
	assert.Equal(t, 0.0, got[1].Price)
	assert.Equal(t, fp(5), got[1].Cost)
}

func TestNormalizeTradeCostOutOfRange(t *testing.T) {
	got := NormalizeTrade("binance", "BTC/USDT", Raw{"price": "1e200", "amount": "1e200"})

	assert.Nil(t, got.Cost)
	assert.False(t, math.IsInf(got.Price, 0))
	assert.Equal(t, 1e200, got.Price)

	got = NormalizeTrade("binance", "BTC/USDT", Raw{"price": "0.1", "amount": "3"})
	require.NotNil(t, got.Cost)
	assert.InDelta(t, 0.3, *got.Cost, 1e-12)
}

func TestNormalizeCandles(t *testing.T) {
	got := NormalizeCandles("binance", "BTC/USDT", "1h", [][]any{
		{int64(1000), "1", "2", "0.5", "1.5", "10"},
		{nil, "1", "2", "0.5", "1.5", "10"},
		{int64(2000), "1"},
		{float64(3000), 1.0, 2.0, 0.5, math.NaN(), "x"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, models.Candle{Exchange: "binance", Symbol: "BTC/USDT", Timeframe: "1h", Timestamp: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}, got[0])
	assert.Equal(t, int64(3000), got[1].Timestamp)
	assert.Equal(t, 0.0, got[1].Close)
	assert.Equal(t, 0.0, got[1].Volume)
}

func TestNormalizeMarketDefaults(t *testing.T) {
	got := NormalizeMarket("binance", Raw{"base": "btc", "quote": "usdt"})
	assert.Equal(t, "BTC/USDT", got.Symbol)
	assert.Equal(t, "spot", got.Type)
	assert.True(t, got.Active)
	assert.True(t, got.Spot)
	assert.False(t, got.Margin)
	assert.False(t, got.Swap)
	assert.False(t, got.Future)
	assert.Nil(t, got.Precision.Amount)
	assert.Nil(t, got.Limits.Cost.Min)
}

func TestNormalizeMarketExplicitFlags(t *testing.T) {
	info := map[string]any{"status": "BREAK"}
	got := NormalizeMarket("bybit", Raw{
		"symbol":    "ETH/USDT:USDT",
		"base":      "ETH",
		"quote":     "USDT",
		"type":      "swap",
		"active":    false,
		"spot":      false,
		"swap":      true,
		"precision": map[string]any{"amount": "0.001", "price": 0.01},
		"limits":    map[string]any{"amount": map[string]any{"min": "0.001", "max": nil}},
		"info":      info,
	})
	assert.Equal(t, "ETH/USDT:USDT", got.Symbol)
	assert.False(t, got.Active)
	assert.False(t, got.Spot)
	assert.True(t, got.Swap)
	assert.Equal(t, fp(0.001), got.Precision.Amount)
	assert.Equal(t, fp(0.01), got.Precision.Price)
	assert.Equal(t, fp(0.001), got.Limits.Amount.Min)
	assert.Nil(t, got.Limits.Amount.Max)

	info["status"] = "changed"
	assert.Equal(t, "BREAK", got.Info["status"])
}
