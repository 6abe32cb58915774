package logger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

var (
	warnCounts  sync.Map // component -> *int64
	errorCounts sync.Map // component -> *int64
)

func bump(m *sync.Map, component string) {
	v, _ := m.LoadOrStore(component, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func recordWarn(component string) {
	bump(&warnCounts, component)
}

func recordError(component string) {
	bump(&errorCounts, component)
}

// Counts returns the warn and error totals recorded for a component.
func Counts(component string) (warns, errs int64) {
	if v, ok := warnCounts.Load(component); ok {
		warns = atomic.LoadInt64(v.(*int64))
	}
	if v, ok := errorCounts.Load(component); ok {
		errs = atomic.LoadInt64(v.(*int64))
	}
	return warns, errs
}

// StartReport periodically logs per-component warn/error totals until ctx is done.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	report := Fields{}
	collect := func(m *sync.Map, suffix string) {
		m.Range(func(k, v any) bool {
			report[k.(string)+suffix] = atomic.LoadInt64(v.(*int64))
			return true
		})
	}
	collect(&warnCounts, "_warns")
	collect(&errorCounts, "_errors")
	log.WithComponent("report").WithFields(report).Info("log level report")
}
