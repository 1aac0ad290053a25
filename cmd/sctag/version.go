package main

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	rootCmd.Version = version
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOut {
				_ = printJSON(map[string]string{"version": version, "commit": commit, "built": date})
				return
			}
			printInfo("sctag %s\n", version)
			printInfo("  commit: %s\n", commit)
			printInfo("  built: %s\n", date)
		},
	}
}
