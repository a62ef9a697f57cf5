// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"introspect/cli/internal/engine"
)

var (
	pullForce          bool
	pullCompositeDepth int
	pullOutput         string
)

// pullCmd introspects the database and prints the resulting datamodel.
var pullCmd = &cobra.Command{
	Use:   "pull <schema-file>",
	Short: "Introspect the database and print its datamodel",
	Long: `The pull command sends the schema to the introspection engine, which reads the
database the datasource points at and returns a datamodel describing it.
The datamodel is written to stdout (or --output); warnings go to stderr.

Use "-" as the schema file to read it from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readSchema(cmd, args[0])
		if err != nil {
			return err
		}
		opts := []engine.IntrospectOption{engine.WithForce(pullForce)}
		if cmd.Flags().Changed("composite-type-depth") {
			opts = append(opts, engine.WithCompositeTypeDepth(pullCompositeDepth))
		}

		var res *engine.IntrospectionResult
		err = withEngine(cmd, "Introspecting database", func(e *engine.Engine) error {
			res, err = e.Introspect(cmd.Context(), text, opts...)
			return err
		})
		if err != nil {
			return err
		}
		log.Debug("introspection finished", "version", res.Version, "warnings", len(res.Warnings))

		printWarnings(os.Stderr, res.Warnings)
		if pullOutput == "" {
			_, err = io.WriteString(cmd.OutOrStdout(), ensureNewline(res.Datamodel))
			return err
		}
		if err := os.WriteFile(pullOutput, []byte(ensureNewline(res.Datamodel)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", pullOutput, err)
		}
		pterm.Success.WithWriter(os.Stderr).Printfln("Datamodel written to %s", pullOutput)
		return nil
	},
}

func printWarnings(w io.Writer, warnings []engine.Warning) {
	if len(warnings) == 0 {
		return
	}
	p := pterm.Warning.WithWriter(w)
	for _, wn := range warnings {
		msg := fmt.Sprintf("[%d] %s", wn.Code, wn.Message)
		if a := strings.TrimSpace(string(wn.Affected)); a != "" && a != "null" {
			msg += "\n" + a
		}
		p.Println(msg)
	}
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func init() {
	pullCmd.Flags().BoolVar(&pullForce, "force", false, "Ignore the existing datamodel and introspect from scratch")
	pullCmd.Flags().IntVar(&pullCompositeDepth, "composite-type-depth", -1, "Depth of composite type introspection on document databases (-1 for unlimited)")
	pullCmd.Flags().StringVarP(&pullOutput, "output", "o", "", "Write the datamodel to this file instead of stdout")
	rootCmd.AddCommand(pullCmd)
}
