package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coparent/internal/authz"
	"coparent/internal/clock"
	"coparent/internal/config"
	"coparent/internal/database"
	"coparent/internal/handlers"
	"coparent/internal/idp"
	"coparent/internal/logging"
	"coparent/internal/metrics"
	"coparent/internal/repository"
	"coparent/internal/security"
	"coparent/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	handlers.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	handlers.CompleteStep(handlers.StepDatabase)
	slog.Info("Database connection established", "type", cfg.DatabaseType)

	handlers.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(ctx); err != nil {
		return err
	}
	handlers.CompleteStep(handlers.StepMigrations)
	slog.Info("Migrations completed successfully")

	handlers.SetCurrentStep(handlers.StepServices)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var roles idp.RoleSync = idp.Noop{}
	if cfg.IDPBaseURL != "" {
		roles = idp.NewHTTPRoleSync(ctx, idp.Config{
			BaseURL:      cfg.IDPBaseURL,
			TokenURL:     cfg.IDPTokenURL,
			ClientID:     cfg.IDPClientID,
			ClientSecret: cfg.IDPClientSecret,
		})
		slog.Info("Identity provider role sync enabled", "base_url", cfg.IDPBaseURL)
	} else {
		slog.Warn("Identity provider role sync disabled: IDP_BASE_URL not configured")
	}

	email, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.EmailDebug)
	if err != nil {
		return err
	}

	clk := clock.Real()
	locks := service.NewFamilyLocks()
	identity := service.NewIdentityService(repository.NewUserRepository(db), clk)
	families := service.NewFamilyService(db, locks, clk)
	invitations := service.NewInvitationService(db, locks, clk, email, m, cfg.InvitationTTL, cfg.AppBaseURL)
	transfers := service.NewTransferService(db, locks, clk, roles, m, cfg.IDPSyncTimeout)
	expenses := service.NewExpenseService(db, clk)
	guard := authz.NewGuard(families)

	clientIP, err := security.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	limiter := security.NewRateLimiter(cfg.PreviewRateLimit, time.Minute)
	defer limiter.Stop()
	middleware := handlers.NewMiddleware(security.NewTokenVerifier(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenAudience), identity, m, limiter, clientIP)

	api := &handlers.API{
		Middleware:  middleware,
		Family:      handlers.NewFamilyHandler(families, identity, invitations, guard),
		Invitations: handlers.NewInvitationHandler(invitations, guard),
		Admin:       handlers.NewAdminHandler(transfers, guard),
		Expenses:    handlers.NewExpenseHandler(expenses, guard),
	}

	mux := http.NewServeMux()
	api.Register(mux)
	mux.HandleFunc("GET /healthz", handlers.Healthz(db))
	mux.Handle("GET /metrics", metrics.Handler(reg))
	handlers.CompleteStep(handlers.StepServices)

	server := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      middleware.Logging(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	go sweepExpiredInvitations(ctx, invitations, cfg.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	handlers.MarkReady()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sweepExpiredInvitations periodically rewrites lapsed PENDING invitations
// as EXPIRED until ctx is done
func sweepExpiredInvitations(ctx context.Context, invitations *service.InvitationService, every time.Duration) {
	if every <= 0 {
		slog.Info("Invitation sweep disabled")
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := invitations.ExpireStale(ctx); err != nil {
				slog.Error("Error sweeping expired invitations", "error", err)
			}
		}
	}
}
