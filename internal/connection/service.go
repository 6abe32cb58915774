// Package connection runs exchange operations on behalf of stored
// connection configurations and keeps their sync metadata current.
package connection

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"exchangelink/internal/errs"
	"exchangelink/internal/events"
	"exchangelink/internal/exchange"
	"exchangelink/internal/metrics"
	"exchangelink/internal/pool"
	"exchangelink/logger"
	"exchangelink/models"
)

const (
	defaultRequestTimeout = 15 * time.Second
	// sync writes outlive the request context so a timed out call is still
	// recorded
	syncWriteTimeout = 5 * time.Second
)

// ErrSyncNotRecorded is joined to an operation error when the failure could
// not be written to the configuration store.
var ErrSyncNotRecorded = errors.New("sync failure could not be recorded")

// ConfigurationStore persists configurations and their sync metadata.
type ConfigurationStore interface {
	GetConfigurationWithSecrets(ctx context.Context, ref models.ConfigRef) (*models.StoredConfiguration, error)
	ListConfigurations(ctx context.Context, userID, tenantID string) ([]models.Configuration, error)
	UpdateSyncMetadata(ctx context.Context, update models.SyncUpdate) error
	CreateConfiguration(ctx context.Context, cfg models.StoredConfiguration) error
	DisableConfiguration(ctx context.Context, ref models.ConfigRef) error
}

// ExchangeRegistry describes supported exchanges and builds their clients.
type ExchangeRegistry interface {
	GetExchangeBySlug(slug string) *exchange.Descriptor
	GetExchangeInfo(slug string) (exchange.Info, error)
	ResolveExchangeID(slug string) string
	NewClient(slug string, creds models.Credentials, sandbox bool) (exchange.Client, error)
}

// CredentialVault encrypts credentials at rest.
type CredentialVault interface {
	EncryptCredentials(c models.Credentials) (models.EncryptedCredentials, error)
	DecryptCredentials(e models.EncryptedCredentials) (models.Credentials, error)
	Fingerprint(value string) string
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store    ConfigurationStore
	Registry ExchangeRegistry
	Vault    CredentialVault
	Pool     *pool.Pool
	Events   events.Publisher
	Log      *logger.Log
}

// Options tunes a Service.
type Options struct {
	RequestTimeout  time.Duration
	MaxErrorMessage int
}

// Service is safe for concurrent use.
type Service struct {
	store    ConfigurationStore
	registry ExchangeRegistry
	vault    CredentialVault
	pool     *pool.Pool
	events   events.Publisher
	log      *logger.Log
	opts     Options
	validate *validator.Validate
	now      func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.MaxErrorMessage <= 0 {
		opts.MaxErrorMessage = errs.DefaultMaxMessage
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Log == nil {
		deps.Log = logger.GetLogger()
	}
	return &Service{
		store:    deps.Store,
		registry: deps.Registry,
		vault:    deps.Vault,
		pool:     deps.Pool,
		events:   deps.Events,
		log:      deps.Log,
		opts:     opts,
		validate: validator.New(),
		now:      time.Now,
	}
}

// call is one exchange interaction made with a checked out client.
type call func(ctx context.Context, c exchange.Client, info exchange.Info) error

// session is what withClient resolved for a configuration.
type session struct {
	stored     *models.StoredConfiguration
	exchangeID string
}

// withClient runs fn against the pooled client of the referenced
// configuration. Caller mistakes (bad input, unknown configuration, missing
// capability) are returned without touching sync metadata. Every other
// failure marks the configuration as errored with a sanitized message; a
// success marks it active. The client is released on every path.
func (s *Service) withClient(ctx context.Context, ref models.ConfigRef, op, capability string, fn call) (*session, error) {
	start := time.Now()
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	stored, err := s.store.GetConfigurationWithSecrets(ctx, ref)
	if err != nil {
		return nil, err
	}
	exchangeID := s.registry.ResolveExchangeID(stored.ExchangeSlug)
	info, err := s.registry.GetExchangeInfo(exchangeID)
	if err != nil {
		return nil, err
	}
	if capability != "" && !info.Has[capability] {
		return nil, errs.Validation("%s does not support %s", exchangeID, capability)
	}

	sess := &session{stored: stored, exchangeID: exchangeID}
	log := s.log.WithComponent("connection").WithFields(logger.Fields{
		"operation":        op,
		"configuration_id": stored.ID,
		"exchange":         exchangeID,
	})
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = errs.KindName(err)
		}
		metrics.ObserveOperation(op, exchangeID, outcome, time.Since(start))
	}()

	creds, err := s.vault.DecryptCredentials(stored.Secrets)
	if err != nil {
		err = s.recordFailure(ctx, log, sess, op, err, models.Credentials{})
		return nil, err
	}

	key := pool.KeyFor(s.vault, exchangeID, creds, stored.Sandbox)
	handle, err := s.pool.Acquire(ctx, key, func() (exchange.Client, error) {
		return s.registry.NewClient(exchangeID, creds, stored.Sandbox)
	})
	if err != nil {
		if errors.Is(err, errs.ErrPoolTimeout) || errs.IsCallerFault(err) {
			log.WithError(err).Warn("no exchange client available")
			return nil, err
		}
		err = s.recordFailure(ctx, log, sess, op, err, creds)
		return nil, err
	}
	defer handle.Release()

	callCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	err = fn(callCtx, handle.Client(), info)
	handle.Report(err)
	if err != nil {
		if errs.IsCallerFault(err) {
			return nil, err
		}
		err = s.recordFailure(ctx, log, sess, op, err, creds)
		return nil, err
	}

	s.recordSuccess(ctx, log, sess)
	logger.LogPerformanceEntry(log, "connection", op, time.Since(start), nil)
	return sess, nil
}

func (s *Service) recordSuccess(ctx context.Context, log *logger.Entry, sess *session) {
	now := s.now().UTC()
	stored := sess.stored
	update := models.SyncUpdate{
		ConfigurationID: stored.ID,
		UserID:          stored.UserID,
		TenantID:        stored.TenantID,
		Status:          models.StatusActive,
		LastSyncAt:      &now,
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncWriteTimeout)
	defer cancel()
	if err := s.store.UpdateSyncMetadata(wctx, update); err != nil {
		metrics.IncSyncUpdateFailure(string(models.StatusActive))
		log.WithError(err).Warn("failed to record sync success")
		return
	}
	if stored.Status != models.StatusActive {
		s.publish(ctx, log, sess, models.StatusActive, "", now)
	}
}

// recordFailure stores the sanitized failure and returns the error handed to
// the caller. A failed sync write is logged with its cause and reported to
// the caller as ErrSyncNotRecorded.
func (s *Service) recordFailure(ctx context.Context, log *logger.Entry, sess *session, op string, cause error, creds models.Credentials) error {
	kind := errs.KindOf(cause)
	msg := errs.Sanitize(cause.Error(), s.opts.MaxErrorMessage, creds.APIKey, creds.APISecret, creds.Passphrase)
	s.reportLimits(sess.exchangeID, op, msg)

	now := s.now().UTC()
	stored := sess.stored
	update := models.SyncUpdate{
		ConfigurationID:  stored.ID,
		UserID:           stored.UserID,
		TenantID:         stored.TenantID,
		Status:           models.StatusError,
		LastErrorAt:      &now,
		LastErrorMessage: &msg,
	}
	out := errs.WithMessage(kind, msg, cause)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncWriteTimeout)
	defer cancel()
	if err := s.store.UpdateSyncMetadata(wctx, update); err != nil {
		metrics.IncSyncUpdateFailure(string(models.StatusError))
		log.WithError(err).WithField("error_message", msg).Error("failed to record sync failure")
		return errors.Join(out, ErrSyncNotRecorded)
	}
	log.WithFields(logger.Fields{"kind": errs.KindName(out), "error_message": msg}).Warn("exchange operation failed")
	if stored.Status != models.StatusError {
		s.publish(ctx, log, sess, models.StatusError, msg, now)
	}
	return out
}

func (s *Service) reportLimits(exchangeID, op, msg string) {
	rateLimit, ipBan := exchange.DetectLimit(exchangeID, msg)
	if rateLimit {
		metrics.ReportRateLimitExceeded(s.log, exchangeID, op)
	}
	if ipBan {
		metrics.ReportIPBan(s.log, exchangeID, op)
	}
}

func (s *Service) publish(ctx context.Context, log *logger.Entry, sess *session, to models.ConnectionStatus, msg string, at time.Time) {
	change := events.StatusChange{
		ConfigurationID: sess.stored.ID,
		UserID:          sess.stored.UserID,
		TenantID:        sess.stored.TenantID,
		Exchange:        sess.exchangeID,
		From:            sess.stored.Status,
		To:              to,
		Message:         msg,
		At:              at,
	}
	if err := s.events.Publish(ctx, change); err != nil {
		log.WithError(err).Warn("failed to publish status change")
	}
}

func validateRef(ref models.ConfigRef) error {
	switch {
	case ref.UserID == "":
		return errs.Validation("user id is required")
	case ref.TenantID == "":
		return errs.Validation("tenant id is required")
	case ref.ConfigurationID == "":
		return errs.Validation("configuration id is required")
	}
	return nil
}
