package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirrorbox/mirrorbox/internal/mirror"
	"github.com/mirrorbox/mirrorbox/internal/version"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	var intervalSecs int
	var watch bool

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync loop until interrupted",
		Long: `Run sync passes at a fixed interval until SIGINT/SIGTERM.

Per-pass failures are logged and the loop keeps running; only an invalid
config at startup is fatal. Backgrounding is left to the process manager
(systemd, launchd, nohup).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			slog.Info("mirrorbox", "version", version.Version, "revision", version.Revision)

			cfg, err := loadSyncConfig(cmd)
			if err != nil {
				return err
			}

			interval := cfg.Interval()
			if cmd.Flag("interval").Changed {
				interval = time.Duration(intervalSecs) * time.Second
			}

			sched, err := mirror.NewScheduler(cfg)
			if err != nil {
				return err
			}
			defer sched.Close()

			defer slog.Info("bye")
			err = sched.RunDaemon(cmd.Context(), interval, watch)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("daemon", "error", err)
				return err
			}
			return nil
		},
	}

	daemonCmd.Flags().SortFlags = false
	daemonCmd.Flags().IntVarP(&intervalSecs, "interval", "i", 0, "seconds between passes (overrides sync_interval)")
	daemonCmd.Flags().BoolVarP(&watch, "watch", "w", false, "also trigger passes on source tree changes")

	return daemonCmd
}
