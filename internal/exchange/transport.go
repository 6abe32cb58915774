package exchange

import (
	"net/http"
	"strconv"
	"time"

	"exchangelink/internal/metrics"
)

// TransportOptions tunes the HTTP client shared by the REST adapters.
type TransportOptions struct {
	UserAgent       string
	Timeout         time.Duration
	MaxIdleConns    int
	MaxConnsPerHost int
	IdleConnTimeout time.Duration
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// weightHeaders lists the response headers in which exchanges report how
// much of their request budget has been consumed.
var weightHeaders = []struct {
	header   string
	exchange string
	window   string
}{
	{"X-Mbx-Used-Weight-1m", "binance", "1m"},
	{"X-Bapi-Limit-Status", "bybit", "remaining"},
	{"Gw-Ratelimit-Remaining", "kucoin", "remaining"},
}

type weightTransport struct {
	base http.RoundTripper
}

func (t weightTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	observeWeight(resp.Header)
	return resp, nil
}

func observeWeight(h http.Header) {
	for _, w := range weightHeaders {
		value := h.Get(w.header)
		if value == "" {
			continue
		}
		if used, err := strconv.ParseFloat(value, 64); err == nil {
			metrics.SetUsedWeight(w.exchange, w.window, used)
		}
	}
}

// NewHTTPClient builds the pooled HTTP client handed to every SDK.
func NewHTTPClient(opts TransportOptions) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.MaxIdleConns > 0 {
		transport.MaxIdleConns = opts.MaxIdleConns
		transport.MaxIdleConnsPerHost = opts.MaxIdleConns
	}
	if opts.MaxConnsPerHost > 0 {
		transport.MaxConnsPerHost = opts.MaxConnsPerHost
	}
	if opts.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = opts.IdleConnTimeout
	}

	var rt http.RoundTripper = weightTransport{base: transport}
	if opts.UserAgent != "" {
		rt = userAgentTransport{agent: opts.UserAgent, base: rt}
	}
	return &http.Client{Transport: rt, Timeout: opts.Timeout}
}
