// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"introspect/cli/internal/dsn"
	"introspect/cli/internal/logging"
	"introspect/cli/internal/probe"
	"introspect/cli/internal/schema"
)

var checkTimeout time.Duration

// checkCmd validates the datasource and verifies connectivity without the
// engine.
var checkCmd = &cobra.Command{
	Use:   "check <schema-file>",
	Short: "Validate the datasource and verify the database is reachable",
	Long: `The check command reads the datasource block, resolves its url (from the
environment or the OS keychain for env("NAME") urls) and connects to the
database directly. The url is shown with credentials masked.

Direct connectivity checks are available for postgresql, cockroachdb and
sqlite; other providers are validated but not contacted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readSchema(cmd, args[0])
		if err != nil {
			return err
		}
		src, err := schema.Extract(text)
		if err != nil {
			return err
		}
		url, err := src.ResolveURL(envLookup())
		if err != nil {
			return err
		}
		if err := src.Validate(url); err != nil {
			return err
		}

		lines := []string{
			"Datasource: " + src.Name,
			"Provider:   " + src.ProviderName,
			"URL:        " + logging.Mask(url),
		}
		if src.EnvVar != "" {
			lines = append(lines, "From:       env("+src.EnvVar+")")
		}
		if info, err := dsn.ParseInfo(url); err == nil {
			lines = append(lines, "Target:     "+info.Target())
		}
		out := cmd.OutOrStdout()
		pterm.DefaultBox.
			WithWriter(out).
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithPadding(1).
			Println(strings.Join(lines, "\n"))
		pterm.Fprintln(out)

		ctx := cmd.Context()
		if checkTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, checkTimeout)
			defer cancel()
		}

		stop := startSpinner("Verifying connection")
		res, err := probe.Check(ctx, src.Provider, url, cfg.Engine.Dir)
		stop()
		switch {
		case errors.Is(err, probe.ErrUnsupported):
			pterm.Info.WithWriter(out).Printfln("No direct connectivity check for %s; the url was validated only.", src.ProviderName)
			return nil
		case err != nil:
			return err
		}
		pterm.Success.WithWriter(out).Printfln("Connected to %s in %s", res.Target, res.Latency.Round(time.Millisecond))
		fmt.Fprintln(out, res.Version)
		return nil
	},
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", probe.DefaultTimeout, "Connection timeout")
	rootCmd.AddCommand(checkCmd)
}
