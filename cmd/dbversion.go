// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"introspect/cli/internal/engine"
)

var dbVersionCmd = &cobra.Command{
	Use:   "db-version <schema-file>",
	Short: "Show the database server version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readSchema(cmd, args[0])
		if err != nil {
			return err
		}
		var version string
		err = withEngine(cmd, "Reading database version", func(e *engine.Engine) error {
			version, err = e.GetDatabaseVersion(cmd.Context(), text)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbVersionCmd)
}
