// Registers:
//
//	#exchangelink_pool_* client pool gauges and counters
//	#exchangelink_operations_total and operation latency
//	#exchangelink_sync_update_failures_total
//	#exchangelink_rate_limit_events_total and exchange used weight
//	#go_* and process_* system metrics
//
// Exposed through Handler on the API server's /metrics route.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	poolClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exchangelink_pool_clients",
		Help: "Number of exchange clients held by the pool",
	})
	poolInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exchangelink_pool_in_use",
		Help: "Number of exchange clients currently checked out",
	})
	poolAcquireWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exchangelink_pool_acquire_wait_seconds",
		Help:    "Time spent waiting for an exchange client",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
	poolTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchangelink_pool_timeouts_total",
		Help: "Acquisitions that gave up waiting for a client",
	}, []string{"exchange"})
	poolEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchangelink_pool_evictions_total",
		Help: "Clients dropped from the pool",
	}, []string{"reason"})
	poolConstructions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchangelink_pool_constructions_total",
		Help: "Exchange clients constructed by the pool",
	}, []string{"exchange"})

	operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchangelink_operations_total",
		Help: "Connection service operations by outcome",
	}, []string{"operation", "exchange", "outcome"})
	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exchangelink_operation_duration_seconds",
		Help:    "Latency of exchange operations including pool wait",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "exchange"})
	syncUpdateFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchangelink_sync_update_failures_total",
		Help: "Sync metadata writes that failed",
	}, []string{"status"})

	rateLimitEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchangelink_rate_limit_events_total",
		Help: "Rate limit and IP ban responses seen from exchanges",
	}, []string{"exchange", "type"})
	usedWeight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "exchangelink_exchange_used_weight",
		Help: "Request weight reported by the exchange in response headers",
	}, []string{"exchange", "window"})
)

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		for _, c := range []prometheus.Collector{
			poolClients, poolInUse, poolAcquireWait, poolTimeouts, poolEvictions, poolConstructions,
			operations, operationDuration, syncUpdateFailures, rateLimitEvents, usedWeight,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		} {
			_ = prometheus.Register(c)
		}
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetPoolSize records the number of pooled and checked out clients.
func SetPoolSize(clients, inUse int) {
	poolClients.Set(float64(clients))
	poolInUse.Set(float64(inUse))
}

func ObserveAcquireWait(d time.Duration) {
	poolAcquireWait.Observe(d.Seconds())
}

func IncPoolTimeout(exchange string) {
	poolTimeouts.WithLabelValues(exchange).Inc()
}

// IncEviction counts a dropped client; reason is idle, failures or closed.
func IncEviction(reason string) {
	poolEvictions.WithLabelValues(reason).Inc()
}

func IncConstruction(exchange string) {
	poolConstructions.WithLabelValues(exchange).Inc()
}

// ObserveOperation records one service operation.
func ObserveOperation(operation, exchange, outcome string, d time.Duration) {
	operations.WithLabelValues(operation, exchange, outcome).Inc()
	operationDuration.WithLabelValues(operation, exchange).Observe(d.Seconds())
}

func IncSyncUpdateFailure(status string) {
	syncUpdateFailures.WithLabelValues(status).Inc()
}

// SetUsedWeight records the request weight reported by an exchange.
func SetUsedWeight(exchange, window string, value float64) {
	usedWeight.WithLabelValues(exchange, window).Set(value)
}

// UsedWeight exposes the used weight gauge of one exchange window.
func UsedWeight(exchange, window string) prometheus.Gauge {
	return usedWeight.WithLabelValues(exchange, window)
}
