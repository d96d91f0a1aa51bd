package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guimove/ricover/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Skip config loading so version works without AWS settings.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ricover %s\n", version.Version)
		fmt.Fprintf(out, "  commit:  %s\n", version.Commit)
		fmt.Fprintf(out, "  built:   %s\n", version.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
