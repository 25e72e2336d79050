package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mirrorbox/mirrorbox/internal/mirror/config"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented starter config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			path := cmd.Flag("config").Value.String()
			if err := config.WriteStarter(path); err != nil {
				return err
			}

			fmt.Println(green("wrote "), path)
			fmt.Println("edit source_dir, target_dir and sync_files, then run: mirrorbox sync")
			return nil
		},
	}
}
