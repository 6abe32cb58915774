package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when no -config flag is supplied.
	DefaultConfigPath = "config/config.yml"

	envVaultSecret = "EXCHANGE_VAULT_SECRET"
	envVaultSalt   = "EXCHANGE_VAULT_SALT"
	envStoreDSN    = "EXCHANGE_STORE_DSN"
)

var envConfigPaths = map[string]string{
	EnvironmentProduction: "config/config.production.yml",
	EnvironmentStaging:    "config/config.staging.yml",
}

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
	Vault     VaultConfig     `yaml:"vault"`
	Pool      PoolConfig      `yaml:"pool"`
	Exchanges ExchangesConfig `yaml:"exchanges"`
	Store     StoreConfig     `yaml:"store"`
	Events    EventsConfig    `yaml:"events"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Sync      SyncConfig      `yaml:"sync"`
}

type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// VaultConfig holds the process-wide secret material for credential
// encryption. Secret and Salt must both be set; there is no fallback.
type VaultConfig struct {
	Secret     string `yaml:"secret"`
	Salt       string `yaml:"salt"`
	Iterations int    `yaml:"iterations"`
}

type PoolConfig struct {
	AcquireTimeout         time.Duration `yaml:"acquire_timeout"`
	IdleTimeout            time.Duration `yaml:"idle_timeout"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	JanitorInterval        time.Duration `yaml:"janitor_interval"`
}

type ExchangesConfig struct {
	RequestTimeout  time.Duration             `yaml:"request_timeout"`
	UserAgent       string                    `yaml:"user_agent"`
	MaxIdleConns    int                       `yaml:"max_idle_conns"`
	MaxConnsPerHost int                       `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration             `yaml:"idle_conn_timeout"`
	Endpoints       map[string]EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig overrides the REST base URL of one exchange.
type EndpointConfig struct {
	URL        string `yaml:"url"`
	SandboxURL string `yaml:"sandbox_url"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type SyncConfig struct {
	MaxErrorMessage int `yaml:"max_error_message"`
}

// ResolvePath returns the configuration file to load for the current APP_ENV.
func ResolvePath(path string) string {
	return resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaults()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func defaults() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Vault:   VaultConfig{Iterations: 100000},
		Pool: PoolConfig{
			AcquireTimeout:         10 * time.Second,
			IdleTimeout:            5 * time.Minute,
			MaxConsecutiveFailures: 3,
			JanitorInterval:        30 * time.Second,
		},
		Exchanges: ExchangesConfig{
			RequestTimeout:  15 * time.Second,
			UserAgent:       "exchangelink/1.0",
			MaxIdleConns:    10,
			MaxConnsPerHost: 4,
			IdleConnTimeout: 90 * time.Second,
		},
		Store:  StoreConfig{Driver: "memory"},
		Events: EventsConfig{Topic: "exchange-connection-status"},
		HTTP:   HTTPConfig{Address: "0.0.0.0:8080"},
		Sync:   SyncConfig{MaxErrorMessage: 500},
	}
}

// applyEnv lets deployment secrets come from the environment instead of the
// yaml file.
func applyEnv(cfg *Config) {
	if v := os.Getenv(envVaultSecret); v != "" {
		cfg.Vault.Secret = v
	}
	if v := os.Getenv(envVaultSalt); v != "" {
		cfg.Vault.Salt = v
	}
	if v := os.Getenv(envStoreDSN); v != "" {
		cfg.Store.DSN = strings.TrimSpace(v)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			cfg.Metrics.CloudWatch.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			cfg.Metrics.CloudWatch.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			cfg.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}

	if cfg.Vault.Secret == "" {
		return fmt.Errorf("vault.secret is required (set %s)", envVaultSecret)
	}
	if cfg.Vault.Salt == "" {
		return fmt.Errorf("vault.salt is required (set %s)", envVaultSalt)
	}
	if IsProductionLike(AppEnvironment()) && len(cfg.Vault.Secret) < 32 {
		return fmt.Errorf("vault.secret must be at least 32 characters in %s", AppEnvironment())
	}
	if cfg.Vault.Iterations <= 0 {
		return fmt.Errorf("vault.iterations must be greater than 0")
	}

	if cfg.Pool.AcquireTimeout <= 0 {
		return fmt.Errorf("pool.acquire_timeout must be greater than 0")
	}
	if cfg.Pool.IdleTimeout <= 0 {
		return fmt.Errorf("pool.idle_timeout must be greater than 0")
	}
	if cfg.Pool.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("pool.max_consecutive_failures must be greater than 0")
	}

	if cfg.Exchanges.RequestTimeout <= 0 {
		return fmt.Errorf("exchanges.request_timeout must be greater than 0")
	}

	switch cfg.Store.Driver {
	case "memory":
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver is postgres")
		}
	default:
		return fmt.Errorf("store.driver '%s' is invalid", cfg.Store.Driver)
	}

	if cfg.Events.Enabled {
		if len(cfg.Events.Brokers) == 0 {
			return fmt.Errorf("events.brokers is required when events are enabled")
		}
		if cfg.Events.Topic == "" {
			return fmt.Errorf("events.topic is required when events are enabled")
		}
	}

	if cfg.Sync.MaxErrorMessage <= 0 {
		return fmt.Errorf("sync.max_error_message must be greater than 0")
	}

	return nil
}
