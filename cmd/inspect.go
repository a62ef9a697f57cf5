// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"introspect/cli/internal/engine"
)

// inspectCmd runs several read-only engine calls concurrently over one
// engine process.
var inspectCmd = &cobra.Command{
	Use:   "inspect <schema-file>",
	Short: "Show version, size and databases in one go",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readSchema(cmd, args[0])
		if err != nil {
			return err
		}

		var (
			version string
			md      *engine.DatabaseMetadata
			names   []string
		)
		err = withEngine(cmd, "Inspecting database", func(e *engine.Engine) error {
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				v, err := e.GetDatabaseVersion(ctx, text)
				version = v
				return err
			})
			g.Go(func() error {
				m, err := e.GetDatabaseMetadata(ctx, text)
				md = m
				return err
			})
			g.Go(func() error {
				n, err := e.ListDatabases(ctx, text)
				names = n
				return err
			})
			return g.Wait()
		})
		if err != nil {
			return err
		}

		lines := []string{
			fmt.Sprintf("%s %s", pterm.NewStyle(pterm.FgLightCyan).Sprint("Version:  "), version),
			fmt.Sprintf("%s %s (%d bytes)", pterm.NewStyle(pterm.FgLightCyan).Sprint("Size:     "), formatBytes(md.SizeInBytes), md.SizeInBytes),
			fmt.Sprintf("%s %d", pterm.NewStyle(pterm.FgLightCyan).Sprint("Tables:   "), md.TableCount),
			fmt.Sprintf("%s %s", pterm.NewStyle(pterm.FgLightCyan).Sprint("Databases:"), strings.Join(names, ", ")),
		}
		pterm.DefaultBox.
			WithWriter(cmd.OutOrStdout()).
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database")).
			WithPadding(1).
			Println(strings.Join(lines, "\n"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
