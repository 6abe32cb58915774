package models

// ConnectionSummary is the listing view of a configuration enriched with the
// exchange's display metadata.
type ConnectionSummary struct {
	Configuration
	ExchangeName        string `json:"exchangeName"`
	ExchangeDisplayName string `json:"exchangeDisplayName"`
}

// Capabilities splits the exchange capability flags into REST and streaming
// buckets. Only supported capabilities are listed.
type Capabilities struct {
	REST      []string `json:"rest"`
	WebSocket []string `json:"websocket"`
}

// ConnectionStatusReport is returned by getConnectionStatus.
type ConnectionStatusReport struct {
	ConnectionSummary
	Capabilities Capabilities `json:"capabilities"`
	RateLimitMs  int          `json:"rateLimitMs"`
}

// TestResult is returned by testConnection.
type TestResult struct {
	OK         bool   `json:"ok"`
	LatencyMs  int64  `json:"latencyMs"`
	Currencies int    `json:"currencies"`
	Error      string `json:"error,omitempty"`
}
