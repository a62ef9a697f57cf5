// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal provides small helpers for interactive terminal input.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or 80 if unavailable.
func Width(f *os.File) int {
	if f != nil {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 80
}

// ReadSecret reads one value from in. On a terminal the prompt is written to
// out and input is not echoed; otherwise the first line of in is used.
func ReadSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	if IsTerminal(in) {
		fmt.Fprint(out, prompt)
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ClearPreviousLines erases the last textLength characters of output,
// accounting for wrapping, plus the line left by the user's Enter.
func ClearPreviousLines(w io.Writer, textLength int) {
	totalLines := int(math.Ceil(float64(textLength) / float64(Width(os.Stdout))))
	if totalLines < 1 {
		totalLines = 1
	}
	linesToClear := totalLines + 1
	for i := 0; i < linesToClear; i++ {
		fmt.Fprint(w, "\r\x1b[2K")
		if i < linesToClear-1 {
			fmt.Fprint(w, "\x1b[1A")
		}
	}
}
