package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	return line
}

func TestWithComponent(t *testing.T) {
	entry := New().WithComponent("pool")
	assert.Equal(t, "pool", entry.Entry.Data["component"])
}

func TestConfigure(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	t.Run("invalid level", func(t *testing.T) {
		assert.Error(t, New().Configure("loud", "json", "stdout", 0))
	})
	t.Run("invalid format", func(t *testing.T) {
		assert.Error(t, New().Configure("info", "xml", "stdout", 0))
	})
	t.Run("report level logs at info", func(t *testing.T) {
		log := New()
		require.NoError(t, log.Configure("report", "json", "stdout", 0))
		assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	})
	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		require.NoError(t, New().Configure("debug", "text", path, 0))
	})
	t.Run("env overrides level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "warn")
		log := New()
		require.NoError(t, log.Configure("debug", "json", "stderr", 0))
		assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	})
}

func TestJSONFieldNames(t *testing.T) {
	log := New()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithComponent("pool").WithFields(Fields{"key": "abc"}).Info("hello")

	line := decodeLine(t, &buf)
	for _, k := range []string{"timestamp", "level", "message", "component", "key", "file"} {
		assert.Contains(t, line, k)
	}
	assert.Equal(t, "hello", line["message"])
}

func TestCredentialFieldsMasked(t *testing.T) {
	log := New()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithFields(Fields{
		"api_key":    "AKIAEXAMPLEKEY01",
		"Passphrase": "hunter2",
		"secret":     []byte("raw"),
		"exchange":   "binance",
	}).Info("connect")

	line := decodeLine(t, &buf)
	assert.Equal(t, "AKIA****", line["api_key"])
	assert.Equal(t, "*******", line["Passphrase"])
	assert.Equal(t, "****", line["secret"])
	assert.Equal(t, "binance", line["exchange"])
}

func TestAlreadyRedactedValueKept(t *testing.T) {
	log := New()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithFields(Fields{"api_key": Redact("AKIAEXAMPLEKEY01")}).Info("create")

	assert.Equal(t, "AKIA****", decodeLine(t, &buf)["api_key"])
}

func TestSetService(t *testing.T) {
	log := New()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetService("exchangelink", "1.2.3")

	log.WithComponent("main").Info("start")

	line := decodeLine(t, &buf)
	assert.Equal(t, "exchangelink", line["service"])
	assert.Equal(t, "1.2.3", line["version"])
}

func TestWarnAndErrorCounted(t *testing.T) {
	log := New()
	log.SetOutput(&bytes.Buffer{})

	warns, errors := Counts("counted_component")
	log.WithComponent("counted_component").Warn("w")
	log.WithComponent("counted_component").Error("e")
	log.WithFields(Fields{"x": 1}).Warn("not counted")

	gotWarns, gotErrors := Counts("counted_component")
	assert.Equal(t, warns+1, gotWarns)
	assert.Equal(t, errors+1, gotErrors)
}

func TestMetricValue(t *testing.T) {
	v, ok := metricValue(int64(42))
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)

	_, ok = metricValue("42")
	assert.False(t, ok)
}

func TestDimensionsKeepStringFields(t *testing.T) {
	dims := dimensions("pool", Fields{"exchange": "bybit", "count": 3})
	require.Len(t, dims, 2)
	assert.Equal(t, "component", *dims[0].Name)
	assert.Equal(t, "bybit", *dims[1].Value)
}

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"short":            "*****",
		"12345678":         "********",
		"AKIAEXAMPLEKEY01": "AKIA****",
	}
	for in, want := range cases {
		assert.Equal(t, want, Redact(in), in)
	}
}
