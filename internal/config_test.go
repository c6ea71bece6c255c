package internal_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/identity-access/internal"
)

func validConfig() *internal.Config {
	return &internal.Config{
		Server: internal.ServerConfig{
			Port:              8080,
			AllowedOrigins:    "https://app.example.com, *",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
		},
		Database: internal.DatabaseConfig{
			Driver:       "postgres",
			Source:       "postgres://localhost/iam",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Security: internal.SecurityConfig{
			AccessTokenSecret:    "access-secret-0123456789abcdefghijkl",
			RefreshTokenSecret:   "refresh-secret-0123456789abcdefghijk",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
			PasswordResetTTL:     30 * time.Minute,
			BCryptCost:           12,
		},
		Observability: internal.ObservabilityConfig{
			Logging: internal.LoggingConfig{Level: "info", Format: "json"},
		},
	}
}

var _ = Describe("Config", func() {
	It("accepts a complete configuration", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	It("collects errors from every section", func() {
		cfg := validConfig()
		cfg.Database.Driver = "mysql"
		cfg.Security.AccessTokenSecret = "short"
		cfg.Observability.Logging.Level = "trace"

		err := cfg.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("database config"))
		Expect(err.Error()).To(ContainSubstring("security config"))
		Expect(err.Error()).To(ContainSubstring("logging config"))
	})

	It("requires distinct token secrets", func() {
		cfg := validConfig()
		cfg.Security.RefreshTokenSecret = cfg.Security.AccessTokenSecret
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("must differ")))
	})

	It("validates the webhook only when a url is set", func() {
		cfg := validConfig()
		cfg.Events.Webhook.URL = "ftp://hooks.example.com"
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("webhook config")))

		cfg.Events.Webhook.URL = "https://hooks.example.com/identity"
		cfg.Events.Webhook.MaxAttempts = 3
		Expect(cfg.Validate()).To(Succeed())
	})

	It("loads IAM_ prefixed environment variables with defaults", func() {
		vars := map[string]string{
			"IAM_DATABASE_SOURCE":                "postgres://db/iam",
			"IAM_SECURITY_BCRYPT_COST":           "11",
			"IAM_SECURITY_ACCESS_TOKEN_DURATION": "10m",
		}
		for k, v := range vars {
			Expect(os.Setenv(k, v)).To(Succeed())
			DeferCleanup(os.Unsetenv, k)
		}

		cfg, err := internal.LoadConfigFromEnv()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Database.Source).To(Equal("postgres://db/iam"))
		Expect(cfg.Database.Driver).To(Equal("postgres"))
		Expect(cfg.Security.BCryptCost).To(Equal(11))
		Expect(cfg.Security.AccessTokenDuration).To(Equal(10 * time.Minute))
		Expect(cfg.Security.RefreshTokenDuration).To(Equal(168 * time.Hour))
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Observability.Metrics.Path).To(Equal("/metrics"))
	})
})
