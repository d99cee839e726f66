// Package cmd defines the CLI commands for the shopharvest executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopharvest",
		Short: "A storefront product catalog crawler.",
		Long: `shopharvest walks an e-commerce storefront and extracts its product
catalog into structured records. It prefers the shop's JSON product API,
falls back to embedded JSON-LD markup, and scrapes raw HTML tiles as a
last resort.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (overrides environment variables)")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shopharvest: %v\n", err)
		os.Exit(1)
	}
}
