// Package cmd implements the command-line interface for regcrawl.
// It provides the root command and subcommands for crawling enforcement
// order listings, inspecting results, and managing checkpoints.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regwatch/regcrawl/cmd/crawl"
	"github.com/regwatch/regcrawl/cmd/query"
	"github.com/regwatch/regcrawl/cmd/reset"
	"github.com/regwatch/regcrawl/cmd/schedule"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "regcrawl",
		Short: "A checkpointed crawler for regulatory enforcement orders",
		Long: `regcrawl walks a regulator's enforcement order listings, extracts the
persons and organisations named in each order together with their tax and
registration identifiers, tags the surrounding sentiment, and stores the
results. Progress is checkpointed so interrupted runs resume where they
left off.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./regcrawl.yaml or ~/.regcrawl/regcrawl.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("regcrawl version %s\n", version)
		},
	})

	rootCmd.AddCommand(crawl.Command(&cfgFile, &debug))
	rootCmd.AddCommand(reset.Command(&cfgFile, &debug))
	rootCmd.AddCommand(query.Command(&cfgFile, &debug))
	rootCmd.AddCommand(schedule.Command(&cfgFile, &debug))
}
