// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"introspect/cli/internal/keychain"
	"introspect/cli/internal/terminal"
)

// secretCmd groups commands that manage env() values in the OS keychain.
var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage datasource urls stored in the OS keychain",
	Long: `A datasource written as url = env("NAME") is resolved from the environment
first and from the OS keychain second. These commands store and remove
keychain values so connection strings need not live in shell profiles.`,
}

var secretSetCmd = &cobra.Command{
	Use:   "set <NAME>",
	Short: "Store a value for env(\"NAME\") in the OS keychain",
	Long: `Prompts for the value without echoing it. When stdin is not a terminal the
first line of stdin is used, e.g. echo "$URL" | introspect secret set DATABASE_URL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		km, err := keychain.GetManager()
		if err != nil {
			return fmt.Errorf("secure storage is not available on this system: %w", err)
		}

		prompt := fmt.Sprintf("Value for %s: ", name)
		value, err := terminal.ReadSecret(os.Stdin, os.Stderr, prompt)
		if err != nil {
			return fmt.Errorf("read value: %w", err)
		}
		if terminal.IsTerminal(os.Stdin) {
			terminal.ClearPreviousLines(os.Stderr, len(prompt))
		}
		if strings.TrimSpace(value) == "" {
			return errors.New("value must not be empty")
		}
		if err := km.Set(name, value); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Stored %s in the OS keychain", name)
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:     "delete <NAME>",
	Aliases: []string{"rm"},
	Short:   "Remove the stored value for env(\"NAME\")",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return fmt.Errorf("secure storage is not available on this system: %w", err)
		}
		if err := km.Delete(args[0]); err != nil {
			return fmt.Errorf("delete %s: %w", args[0], err)
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Removed %s from the OS keychain", args[0])
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}
