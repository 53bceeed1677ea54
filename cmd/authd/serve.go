package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-authgate"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the authgate HTTP API and a Prometheus /metrics endpoint.`,
	}

	bindFlags(cmd.Flags(), DefaultAppConfig())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := LoadConfig(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cfg)
	}

	return cmd
}

// server holds the wired application
type server struct {
	srv    router.Server[*fiber.App]
	repo   auth.RepositoryManager
	logger *auth.SlogLogger
}

// newServer wires the store, the authenticator and the HTTP routes
func newServer(ctx context.Context, cfg AppConfig, reg *prometheus.Registry, notifier auth.Notifier) (*server, error) {
	logger := auth.NewSlogLogger(newLogger(cfg)).With("component", "authgate")

	db, err := auth.OpenDB(cfg.DSN)
	if err != nil {
		return nil, err
	}

	hasher := auth.NewCredentialVerifier(cfg.Auth)
	repo := auth.NewRepositoryManager(db, hasher, cfg.Auth)
	repo.MustValidate()
	repo.SetLogger(logger)

	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if notifier == nil {
		notifier = auth.LogNotifier{Logger: logger}
		if cfg.SMTP.Host != "" {
			notifier = auth.NewSMTPNotifier(cfg.SMTP)
		}
	}

	metrics := auth.NewPrometheusMetrics(reg)

	auther, err := auth.NewAuthenticator(cfg.Auth, repo.Users(), hasher, notifier)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	auther.WithLogger(logger).WithMetrics(metrics).WithHashid(cfg.Hashid)

	gate := auth.NewAccessGate(cfg.Auth, auther.TokenService(), repo.Users()).
		WithLogger(logger).
		WithMetrics(metrics)

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "authgate",
			UnescapePath:          true,
			DisableStartupMessage: true,
		}))
	})

	srv.WrappedRouter().Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	auth.RegisterAuthRoutes(srv.Router().Group("/api/v1/users"), auther, gate, cfg.Auth,
		auth.WithControllerLogger(logger),
		auth.WithControllerDebug(cfg.Debug),
		auth.WithControllerErrorHandler(auth.NewErrorHandler(logger)),
	)

	return &server{srv: srv, repo: repo, logger: logger}, nil
}

func (s *server) close() error {
	return s.repo.DB().Close()
}

func runServe(ctx context.Context, cfg AppConfig) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := newServer(ctx, cfg, reg, nil)
	if err != nil {
		return err
	}
	defer srv.close()

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.srv.Serve(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	srv.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
