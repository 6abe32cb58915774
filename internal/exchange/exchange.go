// Package exchange adapts the exchange SDKs used by the service to a single
// loose client contract. Every method returns ccxt-shaped raw payloads that
// the normalizer turns into the unified models.
package exchange

import (
	"context"
	"strings"

	"exchangelink/internal/errs"
	"exchangelink/internal/normalizer"
)

// Capability names as advertised in Info.Has.
const (
	CapFetchTicker    = "fetchTicker"
	CapFetchOrderBook = "fetchOrderBook"
	CapFetchTrades    = "fetchTrades"
	CapFetchOHLCV     = "fetchOHLCV"
	CapFetchBalance   = "fetchBalance"
	CapFetchMarkets   = "fetchMarkets"
	CapWatchTicker    = "watchTicker"
	CapWatchOrderBook = "watchOrderBook"
	CapWatchTrades    = "watchTrades"
	CapWatchOHLCV     = "watchOHLCV"
)

// streamingPrefix marks a capability as a streaming one.
const streamingPrefix = "watch"

// IsStreaming reports whether the capability belongs to the websocket bucket.
func IsStreaming(capability string) bool {
	return strings.HasPrefix(capability, streamingPrefix)
}

// Client is one live connection to an exchange account. Implementations
// are not safe for concurrent use; the pool hands each instance to a single
// caller at a time.
type Client interface {
	ID() string
	FetchTicker(ctx context.Context, symbol string) (normalizer.Raw, error)
	FetchOrderBook(ctx context.Context, symbol string, limit int) (normalizer.Raw, error)
	FetchTrades(ctx context.Context, symbol string, limit int) ([]normalizer.Raw, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([][]any, error)
	FetchBalance(ctx context.Context) (normalizer.Raw, error)
	LoadMarkets(ctx context.Context) ([]normalizer.Raw, error)
}

// Info is the static capability description of an exchange.
type Info struct {
	ID        string
	Has       map[string]bool
	RateLimit int
}

// Descriptor is the registry entry for one supported exchange.
type Descriptor struct {
	ID                 string
	Name               string
	DisplayName        string
	RateLimitMs        int
	Has                map[string]bool
	RequiresPassphrase bool
	SupportsSandbox    bool
}

// Info returns a copy of the descriptor's capability description.
func (d Descriptor) Info() Info {
	has := make(map[string]bool, len(d.Has))
	for k, v := range d.Has {
		has[k] = v
	}
	return Info{ID: d.ID, Has: has, RateLimit: d.RateLimitMs}
}

// Timeframes lists the candle intervals accepted by every adapter.
var Timeframes = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "12h", "1d", "1w"}

// ValidTimeframe reports whether tf is one of Timeframes.
func ValidTimeframe(tf string) bool {
	for _, t := range Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

func notSupported(exchange, capability string) error {
	return errs.Validation("%s does not support %s", exchange, capability)
}
