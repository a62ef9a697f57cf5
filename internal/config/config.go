// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads CLI configuration from defaults, a YAML file in the XDG
// config dir, INTROSPECT_ environment variables and command-line flags.
// Only non-secret settings are kept here; secrets go to OS keychain.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"introspect/cli/internal/xdg"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: INTROSPECT_ENGINE__STOP_TIMEOUT sets engine.stop_timeout.
const EnvPrefix = "INTROSPECT_"

// FileName is the config file looked up in the XDG config dir.
const FileName = "config.yaml"

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel  string       `koanf:"log_level"`
	LogFormat string       `koanf:"log_format"`
	Engine    EngineConfig `koanf:"engine"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// EngineConfig holds introspection engine process settings.
type EngineConfig struct {
	Path        string        `koanf:"path"`
	Args        []string      `koanf:"args"`
	Dir         string        `koanf:"dir"`
	StopTimeout time.Duration `koanf:"stop_timeout"`
	StderrLines int           `koanf:"stderr_lines"`
}

func defaults() map[string]any {
	return map[string]any{
		"log_level":           "info",
		"log_format":          "text",
		"engine.path":         "introspection-engine",
		"engine.args":         []string{},
		"engine.dir":          "",
		"engine.stop_timeout": "5s",
		"engine.stderr_lines": 100,
	}
}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"engine":     "engine.path",
	"engine-arg": "engine.args",
	"cwd":        "engine.dir",
}

// Load reads configuration. Precedence (highest to lowest): changed flags >
// env vars > config file > defaults. An explicit path must exist; the
// default file is optional.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// INTROSPECT_ENGINE__STOP_TIMEOUT -> engine.stop_timeout
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	if cfg.Engine.Dir == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.Engine.Dir = cwd
		}
	} else if abs, err := filepath.Abs(cfg.Engine.Dir); err == nil {
		cfg.Engine.Dir = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile returns the file to load, or "" when there is none.
func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	dir, err := xdg.ConfigDir()
	if err != nil {
		// No usable home directory: run on defaults.
		return "", nil
	}
	candidate := filepath.Join(dir, FileName)
	if _, err := os.Stat(candidate); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config file %s: %w", candidate, err)
	}
	return candidate, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q: use debug, info, warn or error", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: use text or json", c.LogFormat)
	}
	if strings.TrimSpace(c.Engine.Path) == "" {
		return errors.New("engine.path must not be empty")
	}
	if c.Engine.StopTimeout <= 0 {
		return fmt.Errorf("engine.stop_timeout must be positive, got %s", c.Engine.StopTimeout)
	}
	if c.Engine.StderrLines <= 0 {
		return fmt.Errorf("engine.stderr_lines must be positive, got %d", c.Engine.StderrLines)
	}
	return nil
}
