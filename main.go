// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the introspect CLI.
package main

import (
	"introspect/cli/cmd"
)

func main() {
	cmd.Execute()
}
