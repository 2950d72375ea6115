// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geoelevate/geoelevate/internal/auth"
	authpg "github.com/geoelevate/geoelevate/internal/auth/postgres"
	"github.com/geoelevate/geoelevate/internal/config"
	"github.com/geoelevate/geoelevate/internal/logging"
	"github.com/geoelevate/geoelevate/internal/observability"
	"github.com/geoelevate/geoelevate/internal/scores"
	scorespg "github.com/geoelevate/geoelevate/internal/scores/postgres"
	"github.com/geoelevate/geoelevate/internal/store"
	"github.com/geoelevate/geoelevate/internal/throttle"
	"github.com/geoelevate/geoelevate/internal/web"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

const (
	serviceName     = "geoelevate"
	shutdownTimeout = 10 * time.Second
	readinessPing   = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API and, when metrics-addr is set, the metrics and
health server. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	if d == nil {
		d = &ServeDeps{}
	}
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = func(ctx context.Context, url string, logger *slog.Logger) (Database, error) {
			opts := store.DefaultConnectOptions
			opts.Logger = logger
			pool, err := store.Connect(ctx, url, opts)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if d.RedisDialer == nil {
		d.RedisDialer = func(ctx context.Context, url string) (redis.UniversalClient, error) {
			c, err := throttle.Dial(ctx, url)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if d.ListenerFactory == nil {
		d.ListenerFactory = net.Listen
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	if d.LogWriter == nil {
		d.LogWriter = os.Stderr
	}
	return d
}

// runServeWithDeps starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	path, err := resolveConfigFile(deps.Getenv)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cmd.Flags(), path, deps.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Writer:  deps.LogWriter,
	})
	logger.Info("starting api server",
		"http_addr", cfg.HTTPAddr,
		"metrics_addr", cfg.MetricsAddr,
		"dev", cfg.Dev)

	if cfg.AutoMigrate {
		if err := autoMigrate(deps, cfg.DatabaseURL, logger); err != nil {
			return err
		}
	}

	db, err := deps.DatabaseFactory(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), readinessPing)
		defer pingCancel()
		return db.Ping(pingCtx) == nil
	}

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, ready)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	handler, closeDeps, err := buildAPI(ctx, cfg, db, metrics, deps, logger)
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}
	defer closeDeps()

	listener, err := deps.ListenerFactory("tcp", cfg.HTTPAddr)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTPAddr).Wrap(err)
	}

	httpSrv := web.NewHTTPServer(cfg.HTTPAddr, handler)
	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("GeoElevate API started")
	logger.Info("api server ready", "addr", listener.Addr().String())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errCh:
		errutil.LogError(logger, "http server error", serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	if serveErr != nil {
		return oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	}
	return nil
}

// buildAPI wires repositories, services and the HTTP handler. closeDeps
// releases anything opened here.
func buildAPI(ctx context.Context, cfg config.Config, db Database, metrics *observability.Metrics, deps *ServeDeps, logger *slog.Logger) (http.Handler, func(), error) {
	closeDeps := func() {}

	players := authpg.NewPlayerRepository(db)
	hasher := auth.NewArgon2idHasher(auth.Argon2Params{
		Time:      cfg.Argon2.Time,
		MemoryKiB: cfg.Argon2.MemoryKiB,
		Threads:   cfg.Argon2.Threads,
	})
	tokens, err := auth.NewTokenService([]byte(cfg.SecretKey), cfg.TokenTTL)
	if err != nil {
		return nil, closeDeps, err
	}

	accountOpts := []auth.ServiceOption{
		auth.WithLogger(logger),
		auth.WithLoginRecorder(metrics),
	}
	if cfg.RedisURL != "" {
		rdb, err := deps.RedisDialer(ctx, cfg.RedisURL)
		if err != nil {
			return nil, closeDeps, err
		}
		closeDeps = func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis client", "error", err)
			}
		}
		th, err := throttle.New(rdb, cfg.Login.MaxFailures, cfg.Login.Window)
		if err != nil {
			closeDeps()
			return nil, func() {}, err
		}
		accountOpts = append(accountOpts, auth.WithThrottle(th))
		logger.Info("login throttling enabled",
			"max_failures", cfg.Login.MaxFailures,
			"window", cfg.Login.Window)
	}

	accounts, err := auth.NewService(players, hasher, tokens, accountOpts...)
	if err != nil {
		closeDeps()
		return nil, func() {}, err
	}
	gate, err := auth.NewGate(tokens, players)
	if err != nil {
		closeDeps()
		return nil, func() {}, err
	}

	scoreRepo := scorespg.NewScoreRepository(db)
	scoreSvc, err := scores.NewService(scoreRepo, players, scores.WithRecorder(metrics))
	if err != nil {
		closeDeps()
		return nil, func() {}, err
	}
	reconciler, err := scores.NewReconciler(scoreRepo, scores.WithRecorder(metrics))
	if err != nil {
		closeDeps()
		return nil, func() {}, err
	}

	api, err := web.NewServer(accounts, gate, scoreSvc, reconciler,
		web.WithLogger(logger),
		web.WithObserver(metrics),
		web.WithCORSOrigins(cfg.CORSOrigins),
	)
	if err != nil {
		closeDeps()
		return nil, func() {}, err
	}
	return api.Handler(), closeDeps, nil
}

func autoMigrate(deps *ServeDeps, databaseURL string, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	logger.Info("applying pending migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	return nil
}

func stopObservability(obsServer ObservabilityServer, logger *slog.Logger) {
	if obsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when errCh reports a server failure. It
// exits when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
