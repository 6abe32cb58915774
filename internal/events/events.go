// Package events announces connection status transitions to other services.
package events

import (
	"context"
	"time"

	"exchangelink/models"
)

// StatusChange is emitted when a configuration moves between active and
// error. Message is already sanitized.
type StatusChange struct {
	EventID         string                  `json:"eventId"`
	ConfigurationID string                  `json:"configurationId"`
	UserID          string                  `json:"userId"`
	TenantID        string                  `json:"tenantId"`
	Exchange        string                  `json:"exchange"`
	From            models.ConnectionStatus `json:"from"`
	To              models.ConnectionStatus `json:"to"`
	Message         string                  `json:"message,omitempty"`
	At              time.Time               `json:"at"`
}

// Publisher delivers status changes. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, change StatusChange) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, StatusChange) error { return nil }
