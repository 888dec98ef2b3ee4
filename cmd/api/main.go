// Package main is the entry point for the wardalert HTTP API.
//
// It loads the configuration, parses the service-account credential (startup
// fails on a bad credential), wires the notify, account and cleanup services
// and serves them through the core chassis.
//
// Inside AWS Lambda the router is served through a Function URL adapter;
// everywhere else it runs as a plain HTTP server with graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambdaurl"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"wardalert/internal/account"
	"wardalert/internal/api/handlers"
	"wardalert/internal/app"
	"wardalert/internal/config"
	"wardalert/internal/core"
	"wardalert/internal/db"
	"wardalert/internal/external"
	"wardalert/internal/notify"
	"wardalert/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx, config.SecretProviderFromEnv())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("wardalert API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		logger.Info("serving through Lambda function URL")
		lambdaurl.Start(srv.Handler())
		return nil
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires every service into a mounted core.Server. The account
// and cleanup routes are only mounted when a database is configured.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	cred, err := app.ParseCredential(cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing service account: %w", err)
	}

	awsCfg, err := app.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	metrics := app.NewMetrics(cfg, awsCfg, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	if cfg.Metrics.Enabled {
		srv.Metrics = metrics
	}

	var notifier handlers.PostNotifier
	if cfg.Push.QueueURL != "" {
		pushQueue := queue.NewPushQueue(sqs.NewFromConfig(awsCfg), cfg.Push.QueueURL, logger)
		notifier = notify.NewQueuedNotifier(pushQueue, metrics, logger)
		logger.Info("posts are queued for the push worker", "queue_url", cfg.Push.QueueURL)
	} else {
		notifier = app.NewPushService(cfg, cred, metrics, logger)
	}
	notifyHandler := handlers.NewNotifyHandler(notifier, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, notifyHandler.RegisterRoutes)

	if !cfg.Supabase.DatabaseURL.IsEmpty() {
		pool, err := app.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		srv.OnShutdown(pool.Close)
		srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{ProbeName: "database", Fn: pool.Ping})

		cleanupSvc := app.NewCleanupService(cfg, awsCfg, pool, metrics, logger)
		cleanupHandler := handlers.NewCleanupHandler(cleanupSvc, cfg.Supabase.ServiceRoleKey, logger)
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, cleanupHandler.RegisterRoutes)

		if cfg.Supabase.URL != "" {
			authClient := external.NewSupabaseAuthClient(&http.Client{Timeout: cfg.Push.HTTPTimeout}, external.SupabaseAuthConfig{
				Logger:         logger,
				ProjectURL:     cfg.Supabase.URL,
				AnonKey:        cfg.Supabase.AnonKey,
				ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
			})
			accountSvc := account.NewService(authClient, db.NewPostRepository(pool), db.NewProfileRepository(pool), logger)
			srv.Authenticator = accountSvc

			accountHandler := handlers.NewAccountHandler(accountSvc, srv.RequireUser, logger)
			srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, accountHandler.RegisterRoutes)
		}
	} else {
		logger.Warn("DATABASE_URL not set; account and cleanup routes are disabled")
	}

	srv.MountRoutes()
	return srv, nil
}

// isLambdaEnvironment reports whether the process runs inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	return hasRuntimeAPI
}

// runHTTPServer serves srv until SIGINT/SIGTERM, then drains in-flight
// requests for up to 10 seconds.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
