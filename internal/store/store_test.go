package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"exchangelink/internal/errs"
	"exchangelink/models"
)

type configStore interface {
	CreateConfiguration(ctx context.Context, cfg models.StoredConfiguration) error
	GetConfigurationWithSecrets(ctx context.Context, ref models.ConfigRef) (*models.StoredConfiguration, error)
	ListConfigurations(ctx context.Context, userID, tenantID string) ([]models.Configuration, error)
	UpdateSyncMetadata(ctx context.Context, u models.SyncUpdate) error
	DisableConfiguration(ctx context.Context, ref models.ConfigRef) error
}

func sample(id string, created time.Time) models.StoredConfiguration {
	return models.StoredConfiguration{
		Configuration: models.Configuration{
			ID:           id,
			UserID:       "user-1",
			TenantID:     "tenant-1",
			ExchangeSlug: "binance",
			Status:       models.StatusActive,
			Permissions:  []string{"read"},
			CreatedAt:    created,
		},
		Secrets: models.EncryptedCredentials{APIKey: "iv:tag:key", APISecret: "iv:tag:secret"},
	}
}

func ref(id string) models.ConfigRef {
	return models.ConfigRef{UserID: "user-1", TenantID: "tenant-1", ConfigurationID: id}
}

func runContract(t *testing.T, s configStore) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateConfiguration(ctx, sample("cfg-1", base)))
	require.NoError(t, s.CreateConfiguration(ctx, sample("cfg-2", base.Add(time.Hour))))

	t.Run("get returns secrets", func(t *testing.T) {
		got, err := s.GetConfigurationWithSecrets(ctx, ref("cfg-1"))
		require.NoError(t, err)
		assert.Equal(t, "iv:tag:secret", got.Secrets.APISecret)
		assert.Equal(t, []string{"read"}, got.Permissions)
	})

	t.Run("get is scoped to owner", func(t *testing.T) {
		other := ref("cfg-1")
		other.TenantID = "tenant-2"
		_, err := s.GetConfigurationWithSecrets(ctx, other)
		assert.ErrorIs(t, err, errs.ErrNotFound)

		_, err = s.GetConfigurationWithSecrets(ctx, ref("missing"))
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("list is newest first", func(t *testing.T) {
		list, err := s.ListConfigurations(ctx, "user-1", "tenant-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "cfg-2", list[0].ID)

		none, err := s.ListConfigurations(ctx, "user-2", "tenant-1")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("error then active clears error fields", func(t *testing.T) {
		at := base.Add(2 * time.Hour)
		msg := "timeout"
		require.NoError(t, s.UpdateSyncMetadata(ctx, models.SyncUpdate{
			ConfigurationID: "cfg-1", UserID: "user-1", TenantID: "tenant-1",
			Status: models.StatusError, LastErrorAt: &at, LastErrorMessage: &msg,
		}))
		got, err := s.GetConfigurationWithSecrets(ctx, ref("cfg-1"))
		require.NoError(t, err)
		assert.Equal(t, models.StatusError, got.Status)
		require.NotNil(t, got.LastErrorMessage)
		assert.Equal(t, "timeout", *got.LastErrorMessage)
		assert.Nil(t, got.LastSyncAt)

		synced := base.Add(3 * time.Hour)
		require.NoError(t, s.UpdateSyncMetadata(ctx, models.SyncUpdate{
			ConfigurationID: "cfg-1", UserID: "user-1", TenantID: "tenant-1",
			Status: models.StatusActive, LastSyncAt: &synced,
		}))
		got, err = s.GetConfigurationWithSecrets(ctx, ref("cfg-1"))
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, got.Status)
		assert.Nil(t, got.LastErrorAt)
		assert.Nil(t, got.LastErrorMessage)
		require.NotNil(t, got.LastSyncAt)
		assert.True(t, synced.Equal(*got.LastSyncAt))
	})

	t.Run("update of unknown configuration", func(t *testing.T) {
		err := s.UpdateSyncMetadata(ctx, models.SyncUpdate{
			ConfigurationID: "missing", UserID: "user-1", TenantID: "tenant-1", Status: models.StatusActive,
		})
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("disabled configurations are not served", func(t *testing.T) {
		require.NoError(t, s.DisableConfiguration(ctx, ref("cfg-2")))
		_, err := s.GetConfigurationWithSecrets(ctx, ref("cfg-2"))
		assert.ErrorIs(t, err, errs.ErrNotFound)
		assert.ErrorIs(t, s.DisableConfiguration(ctx, ref("missing")), errs.ErrNotFound)
	})

	t.Run("sync updates leave disabled configurations alone", func(t *testing.T) {
		msg := "late failure"
		at := base.Add(4 * time.Hour)
		require.NoError(t, s.UpdateSyncMetadata(ctx, models.SyncUpdate{
			ConfigurationID: "cfg-2", UserID: "user-1", TenantID: "tenant-1",
			Status: models.StatusError, LastErrorAt: &at, LastErrorMessage: &msg,
		}))
		require.NoError(t, s.UpdateSyncMetadata(ctx, models.SyncUpdate{
			ConfigurationID: "cfg-2", UserID: "user-1", TenantID: "tenant-1",
			Status: models.StatusActive, LastSyncAt: &at,
		}))

		list, err := s.ListConfigurations(ctx, "user-1", "tenant-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "cfg-2", list[0].ID)
		assert.Equal(t, models.StatusDisabled, list[0].Status)
		assert.Nil(t, list[0].LastErrorMessage)

		_, err = s.GetConfigurationWithSecrets(ctx, ref("cfg-2"))
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, NewMemory())
}

func TestMemoryRejectsDuplicateID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateConfiguration(ctx, sample("cfg-1", time.Now())))
	assert.True(t, errors.Is(m.CreateConfiguration(ctx, sample("cfg-1", time.Now())), errs.ErrValidation))
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateConfiguration(ctx, sample("cfg-1", time.Now())))
	got, err := m.GetConfigurationWithSecrets(ctx, ref("cfg-1"))
	require.NoError(t, err)
	got.Permissions[0] = "trade"

	again, err := m.GetConfigurationWithSecrets(ctx, ref("cfg-1"))
	require.NoError(t, err)
	assert.Equal(t, "read", again.Permissions[0])
}

func TestGormStore(t *testing.T) {
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	g, err := Open(sqlite.Open(dsn), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer g.Close()
	runContract(t, g)
}
