// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"introspect/cli/internal/engine"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata <schema-file>",
	Short: "Show the size and table count of the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readSchema(cmd, args[0])
		if err != nil {
			return err
		}
		var md *engine.DatabaseMetadata
		err = withEngine(cmd, "Reading database metadata", func(e *engine.Engine) error {
			md, err = e.GetDatabaseMetadata(cmd.Context(), text)
			return err
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "size:   %s (%d bytes)\n", formatBytes(md.SizeInBytes), md.SizeInBytes)
		fmt.Fprintf(out, "tables: %d\n", md.TableCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}
