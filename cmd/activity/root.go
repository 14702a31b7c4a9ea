package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "activity",
		Short: "Resolves recent GitHub contribution activity for users.",
		Long: `activity resolves commits, pull requests, issues and comments authored by
GitHub users over the configured analysis window, using the same storage
and configuration as the HTTP service.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.AddCommand(newResolveCmd())
	return rootCmd
}
