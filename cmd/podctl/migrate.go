package main

import (
	"fmt"

	"podshare/internal/bootstrap"
	"podshare/internal/database"

	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect SQL migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m *database.Migrator) error {
					if err := m.Up(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m *database.Migrator) error {
					rolled, err := m.Down(cmd.Context())
					if err != nil {
						return err
					}
					if !rolled {
						fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m *database.Migrator) error {
					applied, err := m.Applied(cmd.Context())
					if err != nil {
						return err
					}
					pending, err := m.Pending(cmd.Context())
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					for _, v := range applied {
						fmt.Fprintf(out, "applied  %06d\n", v)
					}
					for _, mig := range pending {
						fmt.Fprintf(out, "pending  %s\n", mig)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*database.Migrator) error) error {
	rt, err := openRuntime(cmd, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if rt.DB == nil {
		return fmt.Errorf("migrations need a database; STORAGE_BACKEND is memory")
	}
	if rt.DB.Dialector.Name() != "postgres" {
		return fmt.Errorf("SQL migrations target PostgreSQL; %s uses AutoMigrate at server start", rt.DB.Dialector.Name())
	}
	m, err := database.NewMigrator(rt.DB)
	if err != nil {
		return err
	}
	return fn(m)
}
