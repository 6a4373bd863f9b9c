// Command podctl is the operator CLI: schema migrations, demo data, capacity
// repair and the standalone email relay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"podshare/internal/bootstrap"
	"podshare/internal/config"
	"podshare/internal/middleware"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const programName = "podctl"

type cfgKey struct{}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey{}).(*config.Config)
	return cfg
}

// openRuntime connects to the configured store without touching the schema.
func openRuntime(cmd *cobra.Command, opts bootstrap.Options) (*bootstrap.Runtime, error) {
	cfg := configFrom(cmd)
	if cfg == nil {
		return nil, fmt.Errorf("no config loaded")
	}
	return bootstrap.InitRuntime(cmd.Context(), cfg, opts)
}

func main() {
	var debug bool

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Operate a PodShare deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if debug {
				level = "debug"
			}
			middleware.Logger = middleware.NewLogger(os.Stderr, cfg.Env, level)

			if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
				middleware.Logger.Debug(fmt.Sprintf(format, v...), slog.String("component", programName))
			})); err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "D", false, "enable debug logging")

	rootCmd.AddCommand(
		migrateCommand(),
		seedCommand(),
		reconcileCommand(),
		mailerCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		middleware.Logger.Error(err.Error(), slog.String("component", programName))
		os.Exit(1)
	}
}
