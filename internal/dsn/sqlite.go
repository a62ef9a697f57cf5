// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"strings"
)

// FilePath returns the database file referenced by a sqlite url. Both
// "file:./dev.db?connection_limit=1" and bare "./dev.db" are accepted.
func FilePath(dsn string) string {
	p := strings.TrimSpace(dsn)
	if len(p) >= 5 && strings.EqualFold(p[:5], "file:") {
		p = p[5:]
	}
	p = strings.TrimPrefix(p, "//")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

func parseSQLite(dsn string) (*Info, error) {
	path := FilePath(dsn)
	if path == "" {
		return nil, NewParseError(dsn, "missing database file", "use file:./path/to/dev.db")
	}
	info := &Info{
		Provider: ProviderSQLite,
		Path:     path,
		Params:   make(map[string]string),
		Original: dsn,
	}
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		if q, err := url.ParseQuery(dsn[i+1:]); err == nil {
			for key, values := range q {
				if len(values) > 0 {
					info.Params[key] = values[0]
				}
			}
		}
	}
	return info, nil
}
