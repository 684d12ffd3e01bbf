package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "reengage %s\n", AppVersion)
		fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
