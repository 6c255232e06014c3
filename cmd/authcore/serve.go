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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/internal/tasks"
	"github.com/MrEthical07/authcore/social"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/MrEthical07/authcore/transport/httpapi"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the auth HTTP API and, when server.metrics_addr is set, a
Prometheus /metrics endpoint. SIGINT or SIGTERM drains in-flight requests and
queued verification mail before exiting.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	logger := logging.Setup("authcore", version, cfg.Log.Format, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	providers, err := buildProviders(cfg.Providers)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	builder := authcore.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(rdb).
		WithIdentityStore(postgres.NewUserStore(pool)).
		WithProviders(providers...).
		WithLogger(logger).
		WithMetricsRegisterer(reg)
	if cfg.SMTP.Addr != "" {
		builder = builder.WithMailer(tasks.SMTPMailer{
			Addr:     cfg.SMTP.Addr,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
	}
	engine, err := builder.Build()
	if err != nil {
		return oops.Code("ENGINE_BUILD_FAILED").Wrap(err)
	}

	servers := []*http.Server{{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(engine, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		servers = append(servers, &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		logger.Info("listening", "addr", srv.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- oops.Code("LISTEN_FAILED").With("addr", srv.Addr).Wrap(err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", "addr", srv.Addr, "error", err)
		}
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Warn("engine shutdown incomplete", "error", err)
	}
	return serveErr
}

// buildProviders registers each provider that has a client id.
func buildProviders(cfg config.ProvidersConfig) ([]authcore.SocialAdapter, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	var out []authcore.SocialAdapter
	if cfg.Google.ClientID != "" {
		a, err := social.NewGoogleAdapter(cfg.Google.ClientID, cfg.Google.ClientSecret, httpClient)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if cfg.GitHub.ClientID != "" {
		a, err := social.NewGitHubAdapter(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, httpClient)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
