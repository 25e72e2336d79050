package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mirrorbox/mirrorbox/internal/version"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", version.AppName, version.Detailed())
		},
	})
}
