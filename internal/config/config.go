package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the OsteoVet backend.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Store     StoreConfig     `yaml:"store"`
	Mailer    MailerConfig    `yaml:"mailer"`
	Billing   BillingConfig   `yaml:"billing"`
	Trial     TrialConfig     `yaml:"trial"`
	Vulgarize VulgarizeConfig `yaml:"vulgarize"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// AuthConfig holds the HS256 secret used to verify session tokens.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// StoreConfig selects the persistence backend. Kind is either "memory"
// or "postgres".
type StoreConfig struct {
	Kind     string         `yaml:"kind"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig configures the pgx connection pool.
type PostgresConfig struct {
	URL         string `yaml:"url"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

// MailerConfig configures the transactional email provider.
type MailerConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	APIKey      string        `yaml:"apiKey"`
	FromAddress string        `yaml:"fromAddress"`
	Timeout     time.Duration `yaml:"timeout"`
}

// BillingConfig configures the subscription provider integration.
type BillingConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	APIKey        string        `yaml:"apiKey"`
	WebhookSecret string        `yaml:"webhookSecret"`
	Timeout       time.Duration `yaml:"timeout"`
}

// TrialConfig controls the trial email sequence runner.
type TrialConfig struct {
	UpgradeURL        string        `yaml:"upgradeURL"`
	CancelURL         string        `yaml:"cancelURL"`
	PollInterval      time.Duration `yaml:"pollInterval"`
	VisibilityTimeout time.Duration `yaml:"visibilityTimeout"`
}

// VulgarizeConfig configures the report summarisation model.
type VulgarizeConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("OSTEOVET_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen:          "localhost:8080",
			GracefulTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Kind: "memory",
			Postgres: PostgresConfig{
				AutoMigrate: true,
			},
		},
		Mailer: MailerConfig{
			FromAddress: "OsteoVet <bonjour@osteovet.fr>",
			Timeout:     10 * time.Second,
		},
		Billing: BillingConfig{
			Timeout: 10 * time.Second,
		},
		Trial: TrialConfig{
			UpgradeURL:   "https://app.osteovet.fr/abonnement",
			CancelURL:    "https://app.osteovet.fr/abonnement/annuler",
			PollInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func (c *Config) validate() error {
	switch c.Store.Kind {
	case "memory":
	case "postgres":
		if c.Store.Postgres.URL == "" {
			return errors.New("store.postgres.url is required when store.kind is postgres")
		}
		// An empty HMAC key verifies anything, so a production backend
		// must never boot with blank secrets.
		if c.Auth.Secret == "" {
			return errors.New("auth.secret is required when store.kind is postgres")
		}
		if c.Billing.WebhookSecret == "" {
			return errors.New("billing.webhookSecret is required when store.kind is postgres")
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OSTEOVET_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("OSTEOVET_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("OSTEOVET_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("OSTEOVET_STORE_KIND"); v != "" {
		cfg.Store.Kind = v
	}
	if v := os.Getenv("OSTEOVET_POSTGRES_URL"); v != "" {
		cfg.Store.Postgres.URL = v
	}
	if v := os.Getenv("OSTEOVET_MAILER_BASE_URL"); v != "" {
		cfg.Mailer.BaseURL = v
	}
	if v := os.Getenv("OSTEOVET_MAILER_API_KEY"); v != "" {
		cfg.Mailer.APIKey = v
	}
	if v := os.Getenv("OSTEOVET_BILLING_BASE_URL"); v != "" {
		cfg.Billing.BaseURL = v
	}
	if v := os.Getenv("OSTEOVET_BILLING_API_KEY"); v != "" {
		cfg.Billing.APIKey = v
	}
	if v := os.Getenv("OSTEOVET_BILLING_WEBHOOK_SECRET"); v != "" {
		cfg.Billing.WebhookSecret = v
	}
	if v := os.Getenv("OSTEOVET_GEMINI_API_KEY"); v != "" {
		cfg.Vulgarize.APIKey = v
	}
	if v := os.Getenv("OSTEOVET_GEMINI_MODEL"); v != "" {
		cfg.Vulgarize.Model = v
	}
	if v := os.Getenv("OSTEOVET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
