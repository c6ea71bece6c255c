package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/identity-access/api"
	"github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/auth"
	authPostgres "github.com/frahmantamala/identity-access/internal/auth/postgres"
	"github.com/frahmantamala/identity-access/internal/authz"
	"github.com/frahmantamala/identity-access/internal/core/events"
	"github.com/frahmantamala/identity-access/internal/identity"
	identityPostgres "github.com/frahmantamala/identity-access/internal/identity/postgres"
	"github.com/frahmantamala/identity-access/internal/obs"
	"github.com/frahmantamala/identity-access/internal/organization"
	orgPostgres "github.com/frahmantamala/identity-access/internal/organization/postgres"
	"github.com/frahmantamala/identity-access/internal/transport"
	"github.com/frahmantamala/identity-access/internal/transport/middleware"
	"github.com/frahmantamala/identity-access/internal/transport/rest"
	"github.com/frahmantamala/identity-access/internal/webhook"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer(cmd.Context())
	},
}

type Dependencies struct {
	Config *internal.Config
	Gorm   *gorm.DB
	DB     *sql.DB
	Bus    *events.EventBus
	Hooks  *webhook.Forwarder
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	log := logger.LoggerWrapper()

	if _, err := api.Load(ctx); err != nil {
		return err
	}

	deps, err := initializeDependencies(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", addr, "database", cfg.Database.Driver)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = deps.DB.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := deps.Bus.Wait(shutdownCtx); err != nil {
		log.Warn("event handlers still running at shutdown", "error", err)
	}
	if deps.Hooks != nil {
		if err := deps.Hooks.Drain(shutdownCtx); err != nil {
			log.Warn("webhook deliveries still pending at shutdown", "error", err)
		}
		deps.Hooks.Shutdown()
	}
	if err := deps.DB.Close(); err != nil {
		log.Error("database close error", "error", err)
	}

	log.Info("server stopped")
	return nil
}

func initializeDependencies(ctx context.Context, cfg *internal.Config, log *slog.Logger) (*Dependencies, error) {
	gdb, sqlDB, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus(log)
	if cfg.Events.AuditLog {
		events.NewAuditSubscriber(log).Register(bus)
	}
	var hooks *webhook.Forwarder
	if wh := cfg.Events.Webhook; wh.URL != "" {
		hooks = webhook.NewForwarder(webhook.Config{
			URL:         wh.URL,
			Secret:      wh.Secret,
			Timeout:     wh.Timeout,
			MaxAttempts: wh.MaxAttempts,
			MaxWorkers:  wh.Workers,
			QueueSize:   wh.QueueSize,
		}, log)
		hooks.Register(bus)
	}
	publisher := events.NewIdentityPublisher(bus, log)

	userRepo := identityPostgres.NewUserRepository(gdb)
	roleRepo := identityPostgres.NewRoleRepository(gdb)
	encoder := auth.NewBcryptEncoder(cfg.Security.BCryptCost)

	orgService := organization.NewService(orgPostgres.NewOrganizationRepository(gdb), log)
	identityService := identity.NewService(userRepo, roleRepo, encoder, publisher, log,
		identity.WithTenantDirectory(orgService))
	roleService := identity.NewRoleService(roleRepo, log)

	sessions := authPostgres.NewRepository(gdb)
	tokens := auth.NewJWTTokenIssuer(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
		cfg.Security.Issuer,
	)
	authService := auth.NewService(userRepo, encoder, tokens, sessions, sessions, publisher, log,
		auth.WithResetTTL(cfg.Security.PasswordResetTTL))

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		obs.Init()
		metricsPath = cfg.Observability.Metrics.Path
	}

	base := transport.NewBaseHandler(log)
	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Deps{
		DB:             sqlDB,
		Base:           base,
		Auth:           auth.NewHandler(base, authService, identityService),
		Identity:       identity.NewHandler(base, identityService, roleService, authz.TenantPolicy{}),
		Organization:   organization.NewHandler(base, orgService),
		RBAC:           auth.NewRBACAuthorization(log),
		LoginLimiter:   middleware.NewRateLimiter(cfg.Security.LoginRateLimit, cfg.Security.LoginRateBurst),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsPath:    metricsPath,
	})

	return &Dependencies{
		Config: cfg,
		Gorm:   gdb,
		DB:     sqlDB,
		Bus:    bus,
		Hooks:  hooks,
		Router: router,
		Logger: log,
	}, nil
}
