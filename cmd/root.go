// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the basexq command-line interface. It runs queries
// through the basex-query extension function exactly as an XPath host would
// call it, streams the resulting documents to stdout and manages the saved
// connection used when no server is given on the command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cmarchand/xpath-basex-ext/internal/config"
	"github.com/cmarchand/xpath-basex-ext/internal/logging"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	logLevel    string

	settings config.Config
	logger   = logging.Default()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "basexq",
	Short: "Run XQuery on a BaseX server and stream the results as XML documents",
	Long: `basexq evaluates a query on a remote BaseX server through the basex-query
extension function (efl-ext:basex-query) and prints each result item as it
arrives. Connection settings come from flags, a connection XML file, the
BASEXQ_* environment variables or the configuration saved by 'basexq connect'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		settings = c

		name := settings.LogLevel
		if cmd.Flags().Changed("log-level") {
			name = logLevel
		}
		lvl, err := logging.ParseLevel(name)
		if err != nil {
			return err
		}
		logger = logging.New(os.Stderr, lvl)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("basexq %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// Interrupting the process cancels the running command's context, which
// unblocks any pending network I/O.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, logging.FormatError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error or off")
}
