package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirrorbox/mirrorbox/internal/mirror"
)

// Exit code for --check-only when changes are pending.
const exitChangesPending = 2

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var force bool
	var checkOnly bool
	var dryRun bool

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass",
		Long: `Run one sync pass from source_dir to target_dir.

By default the pass only runs when the source tree changed since the last
recorded sync. With --check-only nothing is written: the command exits 0
when the trees are in sync and 2 when changes are pending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadSyncConfig(cmd)
			if err != nil {
				return err
			}
			if dryRun {
				cfg.DryRun = true
			}

			sched, err := mirror.NewScheduler(cfg)
			if err != nil {
				return err
			}

			if checkOnly {
				changed, err := sched.Check(cmd.Context())
				sched.Close()
				if err != nil {
					return err
				}
				if changed {
					fmt.Println(yellow("changes pending"))
					os.Exit(exitChangesPending)
				}
				fmt.Println(green("in sync"))
				return nil
			}

			defer sched.Close()

			res, err := sched.RunOnce(cmd.Context(), force)
			if err != nil {
				return err
			}

			sched.LogOutcome(res)
			if !res.Success() {
				for _, failure := range res.Failures {
					fmt.Fprintln(os.Stderr, red("  ✗ ")+failure.Error())
				}
				return fmt.Errorf("sync completed with %d failure(s)", len(res.Failures))
			}
			return nil
		},
	}

	syncCmd.Flags().SortFlags = false
	syncCmd.Flags().BoolVarP(&force, "force", "f", false, "sync even when no changes are detected, recopying every file")
	syncCmd.Flags().BoolVar(&checkOnly, "check-only", false, "only report whether changes are pending, write nothing")
	syncCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "compute the sync plan without writing")

	return syncCmd
}
