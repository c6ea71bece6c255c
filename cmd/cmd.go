package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frahmantamala/identity-access/internal"
)

var rootCmd = &cobra.Command{
	Use:   "identity-access",
	Short: "Identity & Access",
	Long:  `Multi-tenant identity, authentication and role based authorization service.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*internal.Config, error) {
	// containers configure everything through IAM_ variables
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		cfg, err := internal.LoadConfigFromEnv()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_server.port", 8080)
	v.SetDefault("http_server.read_header_timeout", "5s")
	v.SetDefault("http_server.read_timeout", "15s")
	v.SetDefault("http_server.write_timeout", "15s")
	v.SetDefault("http_server.idle_timeout", "60s")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("security.issuer", "identity-access")
	v.SetDefault("security.access_token_duration", "15m")
	v.SetDefault("security.refresh_token_duration", "168h")
	v.SetDefault("security.password_reset_ttl", "30m")
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.login_rate_limit", 1)
	v.SetDefault("security.login_rate_burst", 5)
	v.SetDefault("events.audit_log", true)
	v.SetDefault("events.webhook.timeout", "5s")
	v.SetDefault("events.webhook.max_attempts", 3)
	v.SetDefault("events.webhook.workers", 4)
	v.SetDefault("events.webhook.queue_size", 100)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
}

func init() {
	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(eventCmd)
}
