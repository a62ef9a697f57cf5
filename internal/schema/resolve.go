// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schema

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"introspect/cli/internal/dsn"
	ierr "introspect/cli/internal/errors"
)

// ResolveFile resolves a file-based url such as "file:./blog.db" against dir
// and checks that it names an existing regular file.
func ResolveFile(url, dir string) (string, error) {
	p := dsn.FilePath(url)
	if p == "" {
		return "", ierr.Newf(ierr.DatabaseNotFound, "url %q does not name a database file", url)
	}
	if !filepath.IsAbs(p) {
		if dir == "" {
			d, err := os.Getwd()
			if err != nil {
				return "", ierr.Wrap(ierr.DatabaseNotFound, "resolve working directory", err)
			}
			dir = d
		}
		p = filepath.Join(dir, p)
	}
	p = filepath.Clean(p)

	fi, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", ierr.Newf(ierr.DatabaseNotFound, "database file %s does not exist", p)
	case err != nil:
		return "", ierr.Newf(ierr.DatabaseNotFound, "database file %s is not accessible", p)
	case !fi.Mode().IsRegular():
		return "", ierr.Newf(ierr.DatabaseNotFound, "database path %s is not a regular file", p)
	}
	return p, nil
}
