package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
}

func TestOperationCounters(t *testing.T) {
	before := testutil.ToFloat64(operations.WithLabelValues("fetch_ticker", "binance", "ok"))
	ObserveOperation("fetch_ticker", "binance", "ok", 10*time.Millisecond)
	after := testutil.ToFloat64(operations.WithLabelValues("fetch_ticker", "binance", "ok"))
	if after-before != 1 {
		t.Fatalf("expected one operation to be counted, got %v", after-before)
	}
}

func TestPoolGauges(t *testing.T) {
	SetPoolSize(3, 1)
	if got := testutil.ToFloat64(poolClients); got != 3 {
		t.Fatalf("expected 3 pooled clients, got %v", got)
	}
	if got := testutil.ToFloat64(poolInUse); got != 1 {
		t.Fatalf("expected 1 client in use, got %v", got)
	}
}

func TestReportLimitCounters(t *testing.T) {
	before := testutil.ToFloat64(rateLimitEvents.WithLabelValues("bybit", "rate_limit_exceeded"))
	ReportRateLimitExceeded(nil, "Bybit", "fetch_ticker")
	after := testutil.ToFloat64(rateLimitEvents.WithLabelValues("bybit", "rate_limit_exceeded"))
	if after-before != 1 {
		t.Fatalf("expected rate limit to be counted")
	}

	ReportIPBan(nil, "binance", "fetch_balance")
	if got := testutil.ToFloat64(rateLimitEvents.WithLabelValues("binance", "ip_ban")); got < 1 {
		t.Fatalf("expected ip ban to be counted")
	}
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	Init()
	IncEviction("idle")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "exchangelink_pool_evictions_total") {
		t.Fatalf("expected pool eviction metric in output")
	}
}
