package exchange

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"exchangelink/internal/errs"
	"exchangelink/internal/normalizer"
)

// limitedClient spaces outgoing requests according to the exchange's
// advertised rate limit.
type limitedClient struct {
	Client
	limiter *rate.Limiter
}

// WithRateLimit wraps c so that consecutive calls are at least intervalMs
// apart. A non-positive interval returns c unchanged.
func WithRateLimit(c Client, intervalMs int) Client {
	if intervalMs <= 0 {
		return c
	}
	every := rate.Every(time.Duration(intervalMs) * time.Millisecond)
	return &limitedClient{Client: c, limiter: rate.NewLimiter(every, 1)}
}

func (l *limitedClient) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errs.Connectivity(err, "%s: waiting for rate limiter", l.ID())
	}
	return nil
}

func (l *limitedClient) FetchTicker(ctx context.Context, symbol string) (normalizer.Raw, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Client.FetchTicker(ctx, symbol)
}

func (l *limitedClient) FetchOrderBook(ctx context.Context, symbol string, limit int) (normalizer.Raw, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Client.FetchOrderBook(ctx, symbol, limit)
}

func (l *limitedClient) FetchTrades(ctx context.Context, symbol string, limit int) ([]normalizer.Raw, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Client.FetchTrades(ctx, symbol, limit)
}

func (l *limitedClient) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([][]any, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Client.FetchOHLCV(ctx, symbol, timeframe, limit)
}

func (l *limitedClient) FetchBalance(ctx context.Context) (normalizer.Raw, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Client.FetchBalance(ctx)
}

func (l *limitedClient) LoadMarkets(ctx context.Context) ([]normalizer.Raw, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Client.LoadMarkets(ctx)
}
