// Package cmd implements the command-line interface for the scheduler.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/gosched/cmd/seed"
	"github.com/jonesrussell/gosched/cmd/serve"
	"github.com/jonesrussell/gosched/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gosched",
	Short: "A persistent cron-style job scheduler with a REST control plane",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := config.InitializeViper(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gosched version %s\n", Version)
		},
	})

	rootCmd.AddCommand(serve.Command())
	rootCmd.AddCommand(seed.Command())
}
