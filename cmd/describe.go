// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"introspect/cli/internal/engine"
)

var describeCmd = &cobra.Command{
	Use:   "describe <schema-file>",
	Short: "Print the engine's low-level description of the database schema",
	Long: `The describe command prints the engine's internal description of the database
schema. The output is meant for debugging and has no stable format.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readSchema(cmd, args[0])
		if err != nil {
			return err
		}
		var desc string
		err = withEngine(cmd, "Describing database", func(e *engine.Engine) error {
			desc, err = e.GetDatabaseDescription(cmd.Context(), text)
			return err
		})
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), ensureNewline(desc))
		return err
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
