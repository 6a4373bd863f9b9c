package main

import (
	"fmt"

	"podshare/internal/bootstrap"
	"podshare/internal/service"

	"github.com/spf13/cobra"
)

func reconcileCommand() *cobra.Command {
	var podID uint
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute available spots from active memberships",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			roster := service.NewRosterService(rt.Store, nil, nil)
			if podID != 0 {
				repaired, err := roster.ReconcileCapacity(cmd.Context(), podID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pod %d repaired: %t\n", podID, repaired)
				return nil
			}

			n, err := roster.ReconcileAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pods repaired\n", n)
			return nil
		},
	}
	cmd.Flags().UintVar(&podID, "pod", 0, "only reconcile this pod")
	return cmd
}
