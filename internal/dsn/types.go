// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dsn inspects database connection URLs: which provider a URL belongs to,
// whether a declared provider accepts a given URL, and what host, database or file
// a URL points at. It never opens connections.
package dsn

import "fmt"

// Provider is a datasource provider as written in schema text.
type Provider string

const (
	ProviderPostgreSQL  Provider = "postgresql"
	ProviderCockroachDB Provider = "cockroachdb"
	ProviderMySQL       Provider = "mysql"
	ProviderSQLite      Provider = "sqlite"
	ProviderSQLServer   Provider = "sqlserver"
	ProviderMongoDB     Provider = "mongodb"
	ProviderUnknown     Provider = "unknown"
)

// Info contains parsed information from a connection URL
type Info struct {
	Provider Provider
	Host     string
	Port     string
	User     string
	Password string
	Database string
	// Path is the database file for file-based providers.
	Path     string
	Params   map[string]string
	Original string
}

// String returns the original connection URL
func (i *Info) String() string {
	return i.Original
}

// Target returns a short human-readable description of what the URL points at.
func (i *Info) Target() string {
	if i.Path != "" {
		return i.Path
	}
	if i.Port != "" {
		return fmt.Sprintf("%s:%s/%s", i.Host, i.Port, i.Database)
	}
	return fmt.Sprintf("%s/%s", i.Host, i.Database)
}

// ParseError represents an error that occurred during URL parsing
type ParseError struct {
	DSN    string
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid connection url: %s (hint: %s)", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid connection url: %s", e.Reason)
}

// NewParseError creates a new ParseError
func NewParseError(dsn, reason, hint string) *ParseError {
	return &ParseError{
		DSN:    dsn,
		Reason: reason,
		Hint:   hint,
	}
}
