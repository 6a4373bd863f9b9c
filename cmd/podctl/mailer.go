package main

import (
	"context"
	"fmt"
	"log/slog"

	"podshare/internal/bootstrap"
	"podshare/internal/featureflags"
	"podshare/internal/middleware"
	"podshare/internal/notifications"

	"github.com/spf13/cobra"
)

func mailerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mailer",
		Short: "Relay pod events from Redis to email until interrupted",
		Long: "Subscribes to the pod event channel and emails each recipient through SendGrid. " +
			"Run this when the API servers have no SENDGRID_API_KEY of their own.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			if cfg.SendGridAPIKey == "" {
				return fmt.Errorf("SENDGRID_API_KEY is required")
			}

			rt, err := openRuntime(cmd, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()
			if rt.Redis == nil {
				return fmt.Errorf("mailer needs redis at %s", cfg.RedisURL)
			}

			mailer := notifications.NewMailer(cfg.SendGridAPIKey, cfg.MailFromEmail, cfg.MailFromName,
				featureflags.Parse(cfg.FeatureFlags))
			dispatcher := notifications.NewDispatcher(notifications.DispatcherConfig{
				Workers:    cfg.NotifyWorkers,
				QueueSize:  cfg.NotifyQueueSize,
				MaxRetries: cfg.NotifyMaxRetries,
			}, mailer)
			dispatcher.Start()

			ctx := cmd.Context()
			if err := notifications.Subscribe(ctx, rt.Redis, func(e notifications.Event) {
				dispatcher.Publish(ctx, e)
			}); err != nil {
				return err
			}
			middleware.Logger.InfoContext(ctx, "mailer relay running", slog.String("channel", notifications.PodEventsChannel))

			<-ctx.Done()
			// the signal context is done, so drain with a fresh one
			return dispatcher.Stop(context.WithoutCancel(ctx))
		},
	}
}
