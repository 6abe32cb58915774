package metrics

import (
	"fmt"
	"strings"

	"exchangelink/logger"
)

// ReportRateLimitExceeded increments the rate limit counter for the given
// exchange and operation and emits the metric to CloudWatch.
func ReportRateLimitExceeded(log *logger.Log, exchange, operation string) {
	report(log, exchange, operation, "rate_limit_exceeded").Warn("rate limit exceeded")
}

// ReportIPBan increments the IP ban counter for the given exchange and
// operation and emits the metric to CloudWatch.
func ReportIPBan(log *logger.Log, exchange, operation string) {
	report(log, exchange, operation, "ip_ban").Error("ip banned")
}

func report(log *logger.Log, exchange, operation, metric string) *logger.Entry {
	exchange = strings.ToLower(exchange)
	rateLimitEvents.WithLabelValues(exchange, metric).Inc()

	if log == nil {
		log = logger.GetLogger()
	}
	component := fmt.Sprintf("%s_%s", exchange, strings.ToLower(operation))
	fields := logger.Fields{
		"exchange":  exchange,
		"operation": operation,
	}
	l := log.WithComponent(component)
	l.LogMetric(component, metric, int64(1), "counter", fields)
	return l.WithFields(fields)
}
