package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server" envPrefix:"HTTP_SERVER_"`
	Database      DatabaseConfig      `mapstructure:"database" envPrefix:"DATABASE_"`
	Security      SecurityConfig      `mapstructure:"security" envPrefix:"SECURITY_"`
	Events        EventsConfig        `mapstructure:"events" envPrefix:"EVENTS_"`
	Observability ObservabilityConfig `mapstructure:"observability" envPrefix:"OBSERVABILITY_"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" env:"PORT" envDefault:"8080"`
	BaseURL           string        `mapstructure:"base_url" env:"BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" env:"ALLOWED_ORIGINS"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" env:"READ_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" env:"IDLE_TIMEOUT" envDefault:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"15s"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" env:"DRIVER" envDefault:"postgres"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME" envDefault:"5m"`
	Source          string        `mapstructure:"source" env:"SOURCE"`
}

type SecurityConfig struct {
	Issuer               string        `mapstructure:"issuer" env:"ISSUER" envDefault:"identity-access"`
	AccessTokenSecret    string        `mapstructure:"access_token_secret" env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" env:"ACCESS_TOKEN_DURATION" envDefault:"15m"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" env:"REFRESH_TOKEN_DURATION" envDefault:"168h"`
	PasswordResetTTL     time.Duration `mapstructure:"password_reset_ttl" env:"PASSWORD_RESET_TTL" envDefault:"30m"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" env:"BCRYPT_COST" envDefault:"12"`
	LoginRateLimit       float64       `mapstructure:"login_rate_limit" env:"LOGIN_RATE_LIMIT" envDefault:"1"`
	LoginRateBurst       int           `mapstructure:"login_rate_burst" env:"LOGIN_RATE_BURST" envDefault:"5"`
}

type EventsConfig struct {
	AuditLog bool          `mapstructure:"audit_log" env:"AUDIT_LOG" envDefault:"true"`
	Webhook  WebhookConfig `mapstructure:"webhook" envPrefix:"WEBHOOK_"`
}

// WebhookConfig enables forwarding of identity events when URL is set.
type WebhookConfig struct {
	URL         string        `mapstructure:"url" env:"URL"`
	Secret      string        `mapstructure:"secret" env:"SECRET"`
	Timeout     time.Duration `mapstructure:"timeout" env:"TIMEOUT" envDefault:"5s"`
	MaxAttempts int           `mapstructure:"max_attempts" env:"MAX_ATTEMPTS" envDefault:"3"`
	Workers     int           `mapstructure:"workers" env:"WORKERS" envDefault:"4"`
	QueueSize   int           `mapstructure:"queue_size" env:"QUEUE_SIZE" envDefault:"100"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" envPrefix:"METRICS_"`
	Logging LoggingConfig `mapstructure:"logging" envPrefix:"LOGGING_"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" env:"ENABLED" envDefault:"true"`
	Path    string `mapstructure:"path" env:"PATH" envDefault:"/metrics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" env:"LEVEL" envDefault:"info"`
	Format string `mapstructure:"format" env:"FORMAT" envDefault:"json"`
}

// LoadConfigFromEnv reads the whole configuration from IAM_ prefixed
// environment variables, e.g. IAM_DATABASE_SOURCE or IAM_SECURITY_BCRYPT_COST.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "IAM_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Events.Webhook.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhook config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access token secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh token secret must be at least 32 characters")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.AccessTokenDuration < time.Minute || c.AccessTokenDuration > time.Hour {
		return errors.New("access_token_duration must be between 1m and 1h")
	}
	if c.RefreshTokenDuration <= c.AccessTokenDuration {
		return errors.New("refresh_token_duration must exceed access_token_duration")
	}
	if c.PasswordResetTTL <= 0 {
		return errors.New("password_reset_ttl must be positive")
	}
	if c.BCryptCost < 10 || c.BCryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be between 10 and %d", bcrypt.MaxCost)
	}
	return nil
}

func (c *WebhookConfig) Validate() error {
	if c.URL == "" {
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q", c.URL)
	}
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Level)
	}
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("unsupported log format %q", c.Format)
	}
	return nil
}
