package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"exchangelink/internal/errs"
	"exchangelink/logger"
	"exchangelink/models"
)

// ConnectionModel is the persisted form of a configuration.
type ConnectionModel struct {
	ID               string `gorm:"primaryKey;size:36"`
	UserID           string `gorm:"index:idx_connection_owner;size:128;not null"`
	TenantID         string `gorm:"index:idx_connection_owner;size:128;not null"`
	ExchangeSlug     string `gorm:"size:64;not null"`
	Sandbox          bool
	Status           string   `gorm:"size:16;not null"`
	Permissions      []string `gorm:"serializer:json"`
	LastSyncAt       *time.Time
	LastErrorAt      *time.Time
	LastErrorMessage *string `gorm:"size:512"`
	APIKeyToken      string  `gorm:"not null"`
	APISecretToken   string  `gorm:"not null"`
	PassphraseToken  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (ConnectionModel) TableName() string { return "exchange_connections" }

func toModel(c models.StoredConfiguration) *ConnectionModel {
	return &ConnectionModel{
		ID:               c.ID,
		UserID:           c.UserID,
		TenantID:         c.TenantID,
		ExchangeSlug:     c.ExchangeSlug,
		Sandbox:          c.Sandbox,
		Status:           string(c.Status),
		Permissions:      c.Permissions,
		LastSyncAt:       c.LastSyncAt,
		LastErrorAt:      c.LastErrorAt,
		LastErrorMessage: c.LastErrorMessage,
		APIKeyToken:      c.Secrets.APIKey,
		APISecretToken:   c.Secrets.APISecret,
		PassphraseToken:  c.Secrets.Passphrase,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func (m *ConnectionModel) configuration() models.Configuration {
	perms := m.Permissions
	if perms == nil {
		perms = []string{}
	}
	return models.Configuration{
		ID:               m.ID,
		UserID:           m.UserID,
		TenantID:         m.TenantID,
		ExchangeSlug:     m.ExchangeSlug,
		Sandbox:          m.Sandbox,
		Status:           models.ConnectionStatus(m.Status),
		Permissions:      perms,
		LastSyncAt:       m.LastSyncAt,
		LastErrorAt:      m.LastErrorAt,
		LastErrorMessage: m.LastErrorMessage,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// Gorm stores configurations in a SQL database through gorm.
type Gorm struct {
	DB *gorm.DB
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string, log *logger.Log) (*Gorm, error) {
	return Open(postgres.Open(dsn), log)
}

// Open connects with any gorm dialector and migrates the schema.
func Open(dialector gorm.Dialector, log *logger.Log) (*Gorm, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ConnectionModel{}); err != nil {
		return nil, err
	}
	return &Gorm{DB: db}, nil
}

func (g *Gorm) CreateConfiguration(ctx context.Context, cfg models.StoredConfiguration) error {
	return g.DB.WithContext(ctx).Create(toModel(cfg)).Error
}

func (g *Gorm) GetConfigurationWithSecrets(ctx context.Context, ref models.ConfigRef) (*models.StoredConfiguration, error) {
	var m ConnectionModel
	err := g.DB.WithContext(ctx).
		Where("id = ? AND user_id = ? AND tenant_id = ? AND status <> ?",
			ref.ConfigurationID, ref.UserID, ref.TenantID, string(models.StatusDisabled)).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("configuration %s not found", ref.ConfigurationID)
	}
	if err != nil {
		return nil, err
	}
	return &models.StoredConfiguration{
		Configuration: m.configuration(),
		Secrets: models.EncryptedCredentials{
			APIKey:     m.APIKeyToken,
			APISecret:  m.APISecretToken,
			Passphrase: m.PassphraseToken,
		},
	}, nil
}

func (g *Gorm) ListConfigurations(ctx context.Context, userID, tenantID string) ([]models.Configuration, error) {
	var rows []*ConnectionModel
	if err := g.DB.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Order("created_at DESC, id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Configuration, len(rows))
	for i, r := range rows {
		out[i] = r.configuration()
	}
	return out, nil
}

// UpdateSyncMetadata records an operation outcome. Disabled rows are left
// untouched and reported as success.
func (g *Gorm) UpdateSyncMetadata(ctx context.Context, u models.SyncUpdate) error {
	updates := map[string]interface{}{"status": string(u.Status)}
	if u.LastSyncAt != nil {
		updates["last_sync_at"] = *u.LastSyncAt
	}
	if u.Status == models.StatusActive {
		updates["last_error_at"] = nil
		updates["last_error_message"] = nil
	} else {
		if u.LastErrorAt != nil {
			updates["last_error_at"] = *u.LastErrorAt
		}
		if u.LastErrorMessage != nil {
			updates["last_error_message"] = *u.LastErrorMessage
		}
	}
	owner := g.DB.WithContext(ctx).Model(&ConnectionModel{}).
		Where("id = ? AND user_id = ? AND tenant_id = ?", u.ConfigurationID, u.UserID, u.TenantID).
		Session(&gorm.Session{})
	res := owner.Where("status <> ?", string(models.StatusDisabled)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := owner.Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return errs.NotFound("configuration %s not found", u.ConfigurationID)
	}
	return nil
}

func (g *Gorm) DisableConfiguration(ctx context.Context, ref models.ConfigRef) error {
	res := g.DB.WithContext(ctx).Model(&ConnectionModel{}).
		Where("id = ? AND user_id = ? AND tenant_id = ?", ref.ConfigurationID, ref.UserID, ref.TenantID).
		Update("status", string(models.StatusDisabled))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("configuration %s not found", ref.ConfigurationID)
	}
	return nil
}

// Close releases the underlying connection pool.
func (g *Gorm) Close() error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
