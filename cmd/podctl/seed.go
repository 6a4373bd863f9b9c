package main

import (
	"fmt"

	"podshare/internal/bootstrap"
	"podshare/internal/seed"

	"github.com/spf13/cobra"
)

func seedCommand() *cobra.Command {
	var (
		file     string
		users    int
		pods     int
		fakeSeed int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo data from a YAML fixture file or generate it",
		Long: "Loads the built-in demo fixtures by default. --file loads a YAML fixture file; " +
			"--users/--pods generate random data instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				fx  *seed.Fixtures
				err error
			)
			if users > 0 || pods > 0 {
				fx = seed.Generate(seed.GenerateOptions{Users: users, Pods: pods, Seed: fakeSeed})
			} else {
				fx, err = seed.LoadFixtures(file)
				if err != nil {
					return err
				}
			}

			rt, err := openRuntime(cmd, bootstrap.Options{EnsureSchema: true})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			res, err := seed.Apply(cmd.Context(), rt.Store, fx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d pods, %d members, %d pending requests\n",
				res.Users, res.Pods, res.Members, res.Requests)
			if users > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "generated accounts use the password %s\n", seed.FakePassword)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "demo", `fixture file, or "demo" for the built-in set`)
	cmd.Flags().IntVar(&users, "users", 0, "generate this many random users")
	cmd.Flags().IntVar(&pods, "pods", 0, "generate this many random pods")
	cmd.Flags().Int64Var(&fakeSeed, "fake-seed", 0, "random seed for generated data (0 = random)")
	return cmd
}
