package connection

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"exchangelink/internal/errs"
	"exchangelink/internal/exchange"
	"exchangelink/internal/pool"
	"exchangelink/logger"
	"exchangelink/models"
)

// CreateInput is the request to link a new exchange account.
type CreateInput struct {
	UserID       string   `json:"-" validate:"required,max=128"`
	TenantID     string   `json:"-" validate:"required,max=128"`
	ExchangeSlug string   `json:"exchange" validate:"required,max=64"`
	APIKey       string   `json:"apiKey" validate:"required,max=512"`
	APISecret    string   `json:"apiSecret" validate:"required,max=512"`
	Passphrase   string   `json:"passphrase" validate:"max=512"`
	Sandbox      bool     `json:"sandbox"`
	Permissions  []string `json:"permissions" validate:"dive,oneof=read trade withdraw"`
}

// CreateConnection checks the credentials against the exchange and stores
// them encrypted. Nothing is stored when the live check fails.
func (s *Service) CreateConnection(ctx context.Context, in CreateInput) (*models.Configuration, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, errs.Validation("invalid connection request: %v", err)
	}
	d := s.registry.GetExchangeBySlug(in.ExchangeSlug)
	if d == nil {
		return nil, errs.Validation("unsupported exchange %q", in.ExchangeSlug)
	}
	if d.RequiresPassphrase && in.Passphrase == "" {
		return nil, errs.Validation("%s requires a passphrase", d.ID)
	}
	if in.Sandbox && !d.SupportsSandbox {
		return nil, errs.Validation("%s has no sandbox environment", d.ID)
	}

	creds := models.Credentials{APIKey: in.APIKey, APISecret: in.APISecret, Passphrase: in.Passphrase}
	log := s.log.WithComponent("connection").WithFields(logger.Fields{
		"operation": "create_connection",
		"exchange":  d.ID,
		"api_key":   logger.Redact(in.APIKey),
	})
	if err := s.checkCredentials(ctx, d, creds, in.Sandbox); err != nil {
		if errs.IsCallerFault(err) {
			return nil, err
		}
		msg := errs.Sanitize(err.Error(), s.opts.MaxErrorMessage, creds.APIKey, creds.APISecret, creds.Passphrase)
		log.WithField("error_message", msg).Warn("credential check failed")
		return nil, errs.WithMessage(errs.KindOf(err), msg, err)
	}

	secrets, err := s.vault.EncryptCredentials(creds)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	perms := in.Permissions
	if len(perms) == 0 {
		perms = []string{"read"}
	}
	cfg := models.StoredConfiguration{
		Configuration: models.Configuration{
			ID:           uuid.NewString(),
			UserID:       in.UserID,
			TenantID:     in.TenantID,
			ExchangeSlug: d.ID,
			Sandbox:      in.Sandbox,
			Status:       models.StatusActive,
			Permissions:  perms,
			LastSyncAt:   &now,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Secrets: secrets,
	}
	if err := s.store.CreateConfiguration(ctx, cfg); err != nil {
		return nil, err
	}
	log.WithField("configuration_id", cfg.ID).Info("connection created")
	out := cfg.Configuration
	return &out, nil
}

// checkCredentials makes one authenticated call, or a public one when the
// exchange cannot report balances.
func (s *Service) checkCredentials(ctx context.Context, d *exchange.Descriptor, creds models.Credentials, sandbox bool) error {
	key := pool.KeyFor(s.vault, d.ID, creds, sandbox)
	h, err := s.pool.Acquire(ctx, key, func() (exchange.Client, error) {
		return s.registry.NewClient(d.ID, creds, sandbox)
	})
	if err != nil {
		return err
	}
	defer h.Release()

	callCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	if d.Has[exchange.CapFetchBalance] {
		_, err = h.Client().FetchBalance(callCtx)
	} else {
		_, err = h.Client().LoadMarkets(callCtx)
	}
	h.Report(err)
	return err
}

func (s *Service) ListConnections(ctx context.Context, userID, tenantID string) ([]models.ConnectionSummary, error) {
	if userID == "" || tenantID == "" {
		return nil, errs.Validation("user id and tenant id are required")
	}
	cfgs, err := s.store.ListConfigurations(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ConnectionSummary, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, s.summarize(c))
	}
	return out, nil
}

func (s *Service) GetConnectionSummary(ctx context.Context, ref models.ConfigRef) (*models.ConnectionSummary, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	stored, err := s.store.GetConfigurationWithSecrets(ctx, ref)
	if err != nil {
		return nil, err
	}
	summary := s.summarize(stored.Configuration)
	return &summary, nil
}

// GetConnectionStatus merges the configuration with the capabilities the
// exchange advertises.
func (s *Service) GetConnectionStatus(ctx context.Context, ref models.ConfigRef) (*models.ConnectionStatusReport, error) {
	summary, err := s.GetConnectionSummary(ctx, ref)
	if err != nil {
		return nil, err
	}
	info, err := s.registry.GetExchangeInfo(s.registry.ResolveExchangeID(summary.ExchangeSlug))
	if err != nil {
		return nil, err
	}
	return &models.ConnectionStatusReport{
		ConnectionSummary: *summary,
		Capabilities:      bucketCapabilities(info.Has),
		RateLimitMs:       info.RateLimit,
	}, nil
}

// TestConnection makes a live call with the stored credentials. The outcome
// is recorded like any other operation.
func (s *Service) TestConnection(ctx context.Context, ref models.ConfigRef) (*models.TestResult, error) {
	start := time.Now()
	var currencies int
	_, err := s.withClient(ctx, ref, "test_connection", "",
		func(ctx context.Context, c exchange.Client, info exchange.Info) error {
			switch {
			case info.Has[exchange.CapFetchBalance]:
				raw, err := c.FetchBalance(ctx)
				if err != nil {
					return err
				}
				total, _ := raw["total"].(map[string]any)
				currencies = len(total)
				return nil
			case info.Has[exchange.CapFetchMarkets]:
				_, err := c.LoadMarkets(ctx)
				return err
			default:
				return errs.Validation("%s offers no call to test with", info.ID)
			}
		})
	if err != nil {
		return nil, err
	}
	return &models.TestResult{
		OK:         true,
		LatencyMs:  time.Since(start).Milliseconds(),
		Currencies: currencies,
	}, nil
}

// DisableConnection takes a configuration out of service and drops no
// pooled client; idle eviction reclaims it.
func (s *Service) DisableConnection(ctx context.Context, ref models.ConfigRef) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	if err := s.store.DisableConfiguration(ctx, ref); err != nil {
		return err
	}
	s.log.WithComponent("connection").WithField("configuration_id", ref.ConfigurationID).Info("connection disabled")
	return nil
}

func (s *Service) summarize(c models.Configuration) models.ConnectionSummary {
	summary := models.ConnectionSummary{
		Configuration:       c,
		ExchangeName:        c.ExchangeSlug,
		ExchangeDisplayName: c.ExchangeSlug,
	}
	if d := s.registry.GetExchangeBySlug(c.ExchangeSlug); d != nil {
		summary.ExchangeName = d.Name
		summary.ExchangeDisplayName = d.DisplayName
	}
	return summary
}

// bucketCapabilities lists supported capabilities, streaming ones apart.
func bucketCapabilities(has map[string]bool) models.Capabilities {
	caps := models.Capabilities{REST: []string{}, WebSocket: []string{}}
	for name, ok := range has {
		if !ok {
			continue
		}
		if exchange.IsStreaming(name) {
			caps.WebSocket = append(caps.WebSocket, name)
		} else {
			caps.REST = append(caps.REST, name)
		}
	}
	sort.Strings(caps.REST)
	sort.Strings(caps.WebSocket)
	return caps
}
