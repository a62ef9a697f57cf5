// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"fmt"
	"strings"
)

// schemes maps URL prefixes to the provider they identify.
var schemes = []struct {
	prefix   string
	provider Provider
}{
	{"postgresql://", ProviderPostgreSQL},
	{"postgres://", ProviderPostgreSQL},
	{"mysql://", ProviderMySQL},
	{"file:", ProviderSQLite},
	{"sqlserver://", ProviderSQLServer},
	{"mongodb+srv://", ProviderMongoDB},
	{"mongodb://", ProviderMongoDB},
}

// ParseProvider normalizes a provider name as written in a datasource block.
func ParseProvider(name string) Provider {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgresql", "postgres":
		return ProviderPostgreSQL
	case "cockroachdb":
		return ProviderCockroachDB
	case "mysql":
		return ProviderMySQL
	case "sqlite":
		return ProviderSQLite
	case "sqlserver":
		return ProviderSQLServer
	case "mongodb":
		return ProviderMongoDB
	}
	return ProviderUnknown
}

// DetectProvider detects the provider from a connection URL's scheme
func DetectProvider(url string) Provider {
	lower := strings.ToLower(url)
	for _, s := range schemes {
		if strings.HasPrefix(lower, s.prefix) {
			return s.provider
		}
	}
	return ProviderUnknown
}

// Validate checks that url is acceptable for the declared provider.
func Validate(provider Provider, url string) error {
	if strings.TrimSpace(url) == "" {
		return NewParseError(url, "empty url", "provide a connection url in the datasource block")
	}
	if provider == ProviderUnknown {
		return NewParseError(url, "unknown provider", "use postgresql, cockroachdb, mysql, sqlite, sqlserver or mongodb")
	}

	detected := DetectProvider(url)
	switch provider {
	case ProviderCockroachDB:
		// CockroachDB speaks the postgres wire protocol and URL format.
		if detected == ProviderPostgreSQL {
			return nil
		}
	case ProviderSQLite:
		// Bare paths are accepted for sqlite in addition to file: URLs.
		if detected == ProviderSQLite || (detected == ProviderUnknown && !strings.Contains(url, "://")) {
			return nil
		}
	default:
		if detected == provider {
			return nil
		}
	}
	return NewParseError(url,
		fmt.Sprintf("url does not match provider %q", provider),
		fmt.Sprintf("a %s url must start with %s", provider, expectedPrefix(provider)))
}

// ParseInfo parses a connection URL and returns detailed info
// Useful for inspecting connection details
func ParseInfo(url string) (*Info, error) {
	if url == "" {
		return nil, NewParseError(url, "empty url", "provide a connection url in the datasource block")
	}

	switch DetectProvider(url) {
	case ProviderPostgreSQL:
		return parsePostgres(url)
	case ProviderSQLite:
		return parseSQLite(url)
	case ProviderUnknown:
		if !strings.Contains(url, "://") {
			return parseSQLite(url)
		}
		return nil, NewParseError(url, "unknown url scheme", "use postgresql://, mysql://, file:, sqlserver:// or mongodb://")
	default:
		return parseGeneric(url)
	}
}

func expectedPrefix(p Provider) string {
	var prefixes []string
	for _, s := range schemes {
		if s.provider == p || (p == ProviderCockroachDB && s.provider == ProviderPostgreSQL) {
			prefixes = append(prefixes, s.prefix)
		}
	}
	return strings.Join(prefixes, " or ")
}
