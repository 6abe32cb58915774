// Package store persists connection configurations and their encrypted
// credentials.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"exchangelink/internal/errs"
	"exchangelink/models"
)

// Memory keeps configurations in process. It is used for local runs and
// tests.
type Memory struct {
	mu      sync.RWMutex
	configs map[string]models.StoredConfiguration
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{configs: make(map[string]models.StoredConfiguration), now: time.Now}
}

func owned(c models.Configuration, ref models.ConfigRef) bool {
	return c.ID == ref.ConfigurationID && c.UserID == ref.UserID && c.TenantID == ref.TenantID
}

func (m *Memory) CreateConfiguration(_ context.Context, cfg models.StoredConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.configs[cfg.ID]; exists {
		return errs.Validation("configuration %s already exists", cfg.ID)
	}
	now := m.now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	cfg.Permissions = append([]string(nil), cfg.Permissions...)
	m.configs[cfg.ID] = cfg
	return nil
}

// GetConfigurationWithSecrets fails with a not found error when the
// configuration is absent, owned by someone else or disabled.
func (m *Memory) GetConfigurationWithSecrets(_ context.Context, ref models.ConfigRef) (*models.StoredConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[ref.ConfigurationID]
	if !ok || !owned(c.Configuration, ref) || c.Status == models.StatusDisabled {
		return nil, errs.NotFound("configuration %s not found", ref.ConfigurationID)
	}
	c.Permissions = append([]string(nil), c.Permissions...)
	return &c, nil
}

// ListConfigurations returns the user's configurations, newest first.
func (m *Memory) ListConfigurations(_ context.Context, userID, tenantID string) ([]models.Configuration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Configuration, 0)
	for _, c := range m.configs {
		if c.UserID == userID && c.TenantID == tenantID {
			cfg := c.Configuration
			cfg.Permissions = append([]string(nil), cfg.Permissions...)
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateSyncMetadata records an operation outcome. Disabled configurations
// are left untouched.
func (m *Memory) UpdateSyncMetadata(_ context.Context, u models.SyncUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[u.ConfigurationID]
	if !ok || c.UserID != u.UserID || c.TenantID != u.TenantID {
		return errs.NotFound("configuration %s not found", u.ConfigurationID)
	}
	if c.Status == models.StatusDisabled {
		return nil
	}
	applySync(&c.Configuration, u)
	c.UpdatedAt = m.now().UTC()
	m.configs[u.ConfigurationID] = c
	return nil
}

// DisableConfiguration marks a configuration disabled. Disabled
// configurations are no longer served by GetConfigurationWithSecrets.
func (m *Memory) DisableConfiguration(_ context.Context, ref models.ConfigRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[ref.ConfigurationID]
	if !ok || !owned(c.Configuration, ref) {
		return errs.NotFound("configuration %s not found", ref.ConfigurationID)
	}
	c.Status = models.StatusDisabled
	c.UpdatedAt = m.now().UTC()
	m.configs[ref.ConfigurationID] = c
	return nil
}

// applySync writes an outcome onto c. An active outcome clears the error
// fields; LastSyncAt is only overwritten when set.
func applySync(c *models.Configuration, u models.SyncUpdate) {
	c.Status = u.Status
	if u.LastSyncAt != nil {
		t := *u.LastSyncAt
		c.LastSyncAt = &t
	}
	if u.Status == models.StatusActive {
		c.LastErrorAt = nil
		c.LastErrorMessage = nil
		return
	}
	if u.LastErrorAt != nil {
		t := *u.LastErrorAt
		c.LastErrorAt = &t
	}
	if u.LastErrorMessage != nil {
		msg := *u.LastErrorMessage
		c.LastErrorMessage = &msg
	}
}
