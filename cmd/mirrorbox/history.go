package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mirrorbox/mirrorbox/internal/mirror"
)

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}

func newHistoryCmd() *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history [pass-id]",
		Short: "Show the journal of past sync passes",
		Long: `List recent sync passes, newest first. With a pass id, list the
per-file actions journaled under that pass.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadSyncConfig(cmd)
			if err != nil {
				return err
			}

			ws, err := mirror.NewWorkspace(cfg)
			if err != nil {
				return err
			}

			store := mirror.NewStateStore(ws.DBPath)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				files, err := store.PassFiles(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "PATH\tACTION\tBACKUP\tERROR")
				for _, f := range files {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Path, f.Action, f.BackupPath, f.Error)
				}
				return nil
			}

			passes, err := store.Passes(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "PASS\tSTARTED\tOK\tCOPIED\tSKIPPED\tFAILED\tBYTES\tDRY")
			for _, p := range passes {
				ok := green("yes")
				if !p.Success {
					ok = red("no")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%v\n",
					p.ID, p.StartedAt, ok, p.Copied, p.Skipped, p.Failed,
					humanize.Bytes(uint64(p.BytesCopied)), p.DryRun)
			}
			return nil
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "l", 20, "max passes to list")

	return historyCmd
}
