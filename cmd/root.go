// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the introspect CLI.
// Each subcommand reads a schema file, starts the introspection engine on
// demand and prints the result of one engine operation.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"introspect/cli/internal/config"
	"introspect/cli/internal/logging"
)

var (
	showVersion bool
	configPath  string

	cfg *config.Config
	log = slog.New(slog.DiscardHandler)
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Inspect databases through the introspection engine",
	Long: `introspect reads the datasource block of a schema file and asks the
introspection engine to describe the database it points at: a datamodel,
size and table counts, the server version or the databases it can reach.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		logger, err := logging.New(loaded.LogLevel, loaded.LogFormat, os.Stderr)
		if err != nil {
			return err
		}
		cfg, log = loaded, logger
		if cfg.File != "" {
			log.Debug("config loaded", "file", cfg.File)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion(cmd)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application. Errors are printed to stderr and the
// process exits with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprint(os.Stderr, logging.FormatError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/introspect/config.yaml)")
	pf.String("engine", "", "Path to the introspection engine executable")
	pf.StringSlice("engine-arg", nil, "Extra argument passed to the engine (repeatable)")
	pf.String("cwd", "", "Engine working directory; relative sqlite paths resolve against it")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.String("log-format", "text", "Log format: text or json")
}
