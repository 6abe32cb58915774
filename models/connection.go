package models

import "time"

// ConnectionStatus is the sync state of a connection configuration.
type ConnectionStatus string

const (
	StatusActive   ConnectionStatus = "active"
	StatusError    ConnectionStatus = "error"
	StatusDisabled ConnectionStatus = "disabled"
)

// Configuration links one user of one tenant to one exchange account.
// It never carries credential material.
type Configuration struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	TenantID         string           `json:"tenantId"`
	ExchangeSlug     string           `json:"exchangeSlug"`
	Sandbox          bool             `json:"sandbox"`
	Status           ConnectionStatus `json:"status"`
	Permissions      []string         `json:"permissions"`
	LastSyncAt       *time.Time       `json:"lastSyncAt"`
	LastErrorAt      *time.Time       `json:"lastErrorAt"`
	LastErrorMessage *string          `json:"lastErrorMessage"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Credentials is a decrypted credential set. Values of this type must stay
// on the stack of a single call and are never logged.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// EncryptedCredentials holds vault tokens (iv:authTag:ciphertext) as stored
// at rest. Passphrase is empty when the exchange does not use one.
type EncryptedCredentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// StoredConfiguration is a configuration together with its encrypted
// credentials, as returned by the configuration store.
type StoredConfiguration struct {
	Configuration
	Secrets EncryptedCredentials
}

// ConfigRef scopes a lookup to the owning user and tenant.
type ConfigRef struct {
	UserID          string
	TenantID        string
	ConfigurationID string
}

// SyncUpdate records the outcome of one exchange operation. When Status is
// active the stored error fields are cleared; LastSyncAt is only written when
// non-nil.
type SyncUpdate struct {
	ConfigurationID  string
	UserID           string
	TenantID         string
	Status           ConnectionStatus
	LastSyncAt       *time.Time
	LastErrorAt      *time.Time
	LastErrorMessage *string
}
