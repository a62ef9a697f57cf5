// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"introspect/cli/internal/engine"
)

var databasesCmd = &cobra.Command{
	Use:   "databases <schema-file>",
	Short: "List the databases reachable with the datasource url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readSchema(cmd, args[0])
		if err != nil {
			return err
		}
		var names []string
		err = withEngine(cmd, "Listing databases", func(e *engine.Engine) error {
			names, err = e.ListDatabases(cmd.Context(), text)
			return err
		})
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(databasesCmd)
}
