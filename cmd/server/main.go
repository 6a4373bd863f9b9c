// Command server runs the PodShare HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"podshare/internal/bootstrap"
	"podshare/internal/config"
	"podshare/internal/featureflags"
	"podshare/internal/jobs"
	"podshare/internal/middleware"
	"podshare/internal/notifications"
	"podshare/internal/observability"
	"podshare/internal/server"
	"podshare/internal/service"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	middleware.Logger = middleware.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "podshare-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return err
	}

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{EnsureSchema: true})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	sinks := []notifications.Sink{notifications.LogSink{}}
	if rt.Redis != nil {
		sinks = append(sinks, notifications.NewRedisSink(rt.Redis))
	}
	if cfg.SendGridAPIKey != "" {
		flags := featureflags.Parse(cfg.FeatureFlags)
		sinks = append(sinks, notifications.NewMailer(cfg.SendGridAPIKey, cfg.MailFromEmail, cfg.MailFromName, flags))
	}
	dispatcher := notifications.NewDispatcher(notifications.DispatcherConfig{
		Workers:    cfg.NotifyWorkers,
		QueueSize:  cfg.NotifyQueueSize,
		MaxRetries: cfg.NotifyMaxRetries,
	}, sinks...)
	dispatcher.Start()

	deps := server.Deps{Store: rt.Store, Redis: rt.Redis, Events: dispatcher}
	if rt.DB != nil {
		deps.Ping = rt.Ping
	}
	srv, err := server.NewServer(cfg, deps)
	if err != nil {
		return err
	}

	scheduler, err := jobs.NewScheduler(cfg.ReconcileSchedule, service.NewRosterService(rt.Store, dispatcher, nil))
	if err != nil {
		return err
	}
	scheduler.Start()

	srv.App()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		middleware.Logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// stop intake first, then drain the jobs and the notification queue
	var errs []error
	errs = append(errs, srv.Shutdown(shutdownCtx))
	errs = append(errs, scheduler.Stop(shutdownCtx))
	errs = append(errs, dispatcher.Stop(shutdownCtx))
	errs = append(errs, shutdownTracing(shutdownCtx))
	return errors.Join(errs...)
}
