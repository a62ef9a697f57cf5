// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	ierr "introspect/cli/internal/errors"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// Explain returns a title and a hint for the kind of err.
func Explain(err error) (title, hint string) {
	switch ierr.KindOf(err) {
	case ierr.MalformedSchema:
		return "Invalid schema", "The schema needs exactly one datasource block with a provider and a url."
	case ierr.DatabaseNotFound:
		return "Database not found", "Check the database name or file path in the datasource url."
	case ierr.ConnectionFailed:
		return "Cannot connect to the database", "Make sure the server is running and the url, credentials and network settings are correct."
	case ierr.EngineStartFailed:
		return "Engine failed to start", "Install the introspection engine or point --engine at its executable."
	case ierr.EngineCrashed:
		return "Engine stopped unexpectedly", "Run again with --log-level debug to see the engine output."
	case ierr.ProtocolViolation:
		return "Engine sent an invalid response", "The engine version may not match this client."
	case ierr.IntrospectionFailed:
		return "Introspection failed", "The engine could not complete the request; see the details above."
	}
	return "Error", ""
}

// FormatError renders err with a title, the masked message, any engine
// diagnostic output and a hint.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	title, hint := Explain(err)

	var b strings.Builder
	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(title))
	b.WriteString("\n\n")
	b.WriteString(Mask(err.Error()))
	b.WriteString("\n")

	if e, ok := ierr.As(err); ok && strings.TrimSpace(e.Diagnostic) != "" {
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Engine output:\n" + Mask(e.Diagnostic)))
		b.WriteString("\n")
	}
	if hint != "" {
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ " + hint))
		b.WriteString("\n")
	}
	return b.String()
}
