// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package probe checks from the client side that a datasource url reaches a
// database, without involving the introspection engine.
package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"introspect/cli/internal/dsn"
	ierr "introspect/cli/internal/errors"
	"introspect/cli/internal/schema"
)

// ErrUnsupported is returned for providers that have no local probe.
var ErrUnsupported = errors.New("no local connectivity check for this provider")

// DefaultTimeout bounds a probe when ctx has no deadline.
const DefaultTimeout = 5 * time.Second

// Result describes a reachable database.
type Result struct {
	Provider dsn.Provider
	Target   string
	Version  string
	Latency  time.Duration
}

// Prisma-specific url parameters; postgres would reject them as unknown
// runtime parameters.
var clientOnlyParams = []string{
	"schema", "connection_limit", "pool_timeout", "pgbouncer",
	"statement_cache_size", "socket_timeout", "sslaccept", "sslidentity", "sslpassword",
}

// Check connects to the database at url and reads its version. dir resolves
// relative sqlite paths.
func Check(ctx context.Context, provider dsn.Provider, url, dir string) (*Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	switch provider {
	case dsn.ProviderPostgreSQL, dsn.ProviderCockroachDB:
		return checkPostgres(ctx, provider, url)
	case dsn.ProviderSQLite:
		return checkSQLite(ctx, url, dir)
	}
	return nil, fmt.Errorf("%s: %w", provider, ErrUnsupported)
}

func poolConfig(url string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, ierr.Wrap(ierr.MalformedSchema, "invalid postgres url", err)
	}
	for _, p := range clientOnlyParams {
		delete(cfg.ConnConfig.RuntimeParams, p)
	}
	cfg.MaxConns = 1
	return cfg, nil
}

func checkPostgres(ctx context.Context, provider dsn.Provider, url string) (*Result, error) {
	cfg, err := poolConfig(url)
	if err != nil {
		return nil, err
	}
	target := fmt.Sprintf("%s:%d/%s", cfg.ConnConfig.Host, cfg.ConnConfig.Port, cfg.ConnConfig.Database)

	start := time.Now()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, ierr.Wrap(ierr.ConnectionFailed, "create connection pool", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return nil, classifyPg(target, err)
	}
	latency := time.Since(start)

	var version string
	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return nil, classifyPg(target, err)
	}
	return &Result{Provider: provider, Target: target, Version: version, Latency: latency}, nil
}

// invalid_catalog_name
const pgDatabaseMissing = "3D000"

func classifyPg(target string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgDatabaseMissing {
		return &ierr.E{Kind: ierr.DatabaseNotFound, Message: fmt.Sprintf("database %s does not exist", target), Err: err}
	}
	msg := fmt.Sprintf("cannot reach %s", target)
	if r := reason(err); r != "" {
		msg += " (" + r + ")"
	}
	return ierr.Wrap(ierr.ConnectionFailed, msg, err)
}

func checkSQLite(ctx context.Context, url, dir string) (*Result, error) {
	path, err := schema.ResolveFile(url, dir)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ierr.Wrap(ierr.ConnectionFailed, fmt.Sprintf("open %s", path), err)
	}
	defer db.Close()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return nil, ierr.Wrap(ierr.ConnectionFailed, fmt.Sprintf("query %s", path), err)
	}
	// A file that is not a database only fails once a page is read.
	var tables int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		return nil, ierr.Wrap(ierr.ConnectionFailed, fmt.Sprintf("read %s", path), err)
	}
	return &Result{Provider: dsn.ProviderSQLite, Target: path, Version: "SQLite " + version, Latency: time.Since(start)}, nil
}
