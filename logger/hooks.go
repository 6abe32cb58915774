package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callerHook points the reported caller at the first frame outside logrus
// and this package.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !internalFrame(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func internalFrame(fn string) bool {
	return strings.Contains(fn, "sirupsen/logrus") || strings.Contains(fn, "exchangelink/logger.")
}

// sensitiveKeys are field names whose values are credentials.
var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"apikey":        {},
	"api_secret":    {},
	"secret":        {},
	"passphrase":    {},
	"password":      {},
	"authorization": {},
}

// redactHook masks credential fields that reach a log entry. Values already
// masked with Redact are left alone.
type redactHook struct{}

func (h *redactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *redactHook) Fire(entry *logrus.Entry) error {
	for k, v := range entry.Data {
		if _, ok := sensitiveKeys[strings.ToLower(k)]; !ok {
			continue
		}
		s, isString := v.(string)
		switch {
		case isString && strings.HasSuffix(s, mask):
		case isString:
			entry.Data[k] = Redact(s)
		default:
			entry.Data[k] = mask
		}
	}
	return nil
}

// serviceHook stamps entries with the service identity.
type serviceHook struct {
	name    string
	version string
}

func (h *serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok && h.name != "" {
		entry.Data["service"] = h.name
	}
	if _, ok := entry.Data["version"]; !ok && h.version != "" {
		entry.Data["version"] = h.version
	}
	return nil
}
