package main

import (
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSweepCommand(_ *globalOptions) *cobra.Command {
	opts := &runOptions{}
	parallel := runtime.NumCPU()

	cmd := &cobra.Command{
		Use:   "sweep CONFIG...",
		Short: "Run the same workload against several configurations.",
		Long: `Run the same workload against several configurations. Each ` +
			`configuration gets its own bridge and driver, and the runs ` +
			`proceed in parallel.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			results := make([]result, len(args))

			group, ctx := errgroup.WithContext(ctx)
			group.SetLimit(parallel)

			for i, path := range args {
				path := resolvePath(path)

				group.Go(func() error {
					res, err := simulate(ctx, i, path, opts)
					if err != nil {
						return err
					}

					results[i] = res

					return nil
				})
			}

			if err := group.Wait(); err != nil {
				return err
			}

			return writeOutput(cmd, opts, results)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().IntVarP(&parallel, "parallel", "j", parallel,
		"Number of runs at the same time.")
	cmd.Flags().Lookup("monitor").Hidden = true

	return cmd
}
