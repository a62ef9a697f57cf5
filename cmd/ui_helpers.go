// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"atomicgo.dev/cursor"
	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"introspect/cli/internal/engine"
	"introspect/cli/internal/keychain"
	"introspect/cli/internal/logging"
	"introspect/cli/internal/schema"
	"introspect/cli/internal/terminal"
)

// startSpinner shows a spinner on stderr while a call runs. It is a no-op
// when output is not interactive or logs would interleave with it.
func startSpinner(text string) func() {
	if !terminal.IsTerminal(os.Stderr) || !terminal.IsTerminal(os.Stdout) ||
		cfg.LogFormat == "json" || strings.EqualFold(cfg.LogLevel, "debug") {
		return func() {}
	}
	cursor.Hide()
	sp, err := pterm.DefaultSpinner.WithRemoveWhenDone(true).WithWriter(os.Stderr).Start(text)
	if err != nil {
		cursor.Show()
		return func() {}
	}
	return func() {
		_ = sp.Stop()
		cursor.Show()
	}
}

// readSchema returns the schema text at path; "-" reads stdin.
func readSchema(cmd *cobra.Command, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read schema %s: %w", path, err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", fmt.Errorf("schema %s is empty", path)
	}
	return string(b), nil
}

// envLookup resolves env() urls from the process environment, then from the
// OS keychain. The keychain is opened on the first miss only.
func envLookup() schema.LookupFunc {
	return envLookupWith(keychain.GetManager)
}

// envLookupWith is envLookup over the given keychain opener. Concurrent
// lookups share a single open.
func envLookupWith(open func() (*keychain.Manager, error)) schema.LookupFunc {
	fromKC := sync.OnceValue(func() schema.LookupFunc {
		km, err := open()
		if err != nil {
			log.Debug(logging.PresentError("keychain unavailable", err))
			return nil
		}
		return km.Lookup(log)
	})
	keychainLookup := func(name string) (string, bool) {
		lookup := fromKC()
		if lookup == nil {
			return "", false
		}
		return lookup(name)
	}
	return schema.Lookups(os.LookupEnv, keychainLookup)
}

// newEngine builds an engine client from the loaded configuration.
// Callers must Stop it.
func newEngine() *engine.Engine {
	return engine.New(engine.Options{
		Path:        cfg.Engine.Path,
		Args:        cfg.Engine.Args,
		Dir:         cfg.Engine.Dir,
		StopTimeout: cfg.Engine.StopTimeout,
		StderrLines: cfg.Engine.StderrLines,
		Logger:      log,
		LookupEnv:   envLookup(),
		OnProtocolError: func(line string) {
			log.Warn("engine sent an unexpected line; restarting it on the next call")
		},
	})
}

// withEngine runs fn against a fresh engine and stops the engine afterwards.
func withEngine(cmd *cobra.Command, label string, fn func(e *engine.Engine) error) error {
	e := newEngine()
	defer e.Stop()

	stop := startSpinner(label)
	err := fn(e)
	stop()

	if ctxErr := cmd.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return fmt.Errorf("interrupted: %w", err)
	}
	return err
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
