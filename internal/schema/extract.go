// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package schema locates the connection-source declaration in schema text.
// It understands just enough of the schema language to find the single
// datasource block and read its provider and url; everything else in the text
// is passed through to the engine untouched.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"introspect/cli/internal/dsn"
	ierr "introspect/cli/internal/errors"
)

var reDatasource = regexp.MustCompile(`\bdatasource\s+([A-Za-z_][A-Za-z0-9_]*)\s*\{`)

// Source is the connection-source declared by a schema.
type Source struct {
	// Name is the datasource block name, e.g. "db".
	Name string
	// Provider is the normalized provider.
	Provider dsn.Provider
	// ProviderName is the provider exactly as written.
	ProviderName string
	// URL is the literal url, empty when the url comes from env().
	URL string
	// EnvVar names the environment variable of url = env("NAME").
	EnvVar string

	urlStart, urlEnd int
}

// Extract finds the single datasource block in text and reads its provider and url.
func Extract(text string) (*Source, error) {
	masked := stripComments(text)

	locs := reDatasource.FindAllStringSubmatchIndex(masked, -1)
	if len(locs) == 0 {
		return nil, ierr.New(ierr.MalformedSchema, "no datasource block found in schema")
	}
	if len(locs) > 1 {
		names := make([]string, 0, len(locs))
		for _, loc := range locs {
			names = append(names, masked[loc[2]:loc[3]])
		}
		return nil, ierr.Newf(ierr.MalformedSchema,
			"found %d datasource blocks (%s); exactly one is required", len(locs), strings.Join(names, ", "))
	}

	loc := locs[0]
	name := masked[loc[2]:loc[3]]
	bodyStart := loc[1]
	bodyEnd, ok := matchBrace(masked, bodyStart)
	if !ok {
		return nil, ierr.Newf(ierr.MalformedSchema, "datasource %q: block is not closed", name)
	}

	fields, err := parseFields(text, masked, bodyStart, bodyEnd)
	if err != nil {
		return nil, ierr.Newf(ierr.MalformedSchema, "datasource %q: %v", name, err)
	}

	src := &Source{Name: name}

	prov, ok := fields["provider"]
	if !ok {
		return nil, ierr.Newf(ierr.MalformedSchema, "datasource %q: missing provider", name)
	}
	switch {
	case prov.kind == valueString:
		src.ProviderName = prov.str
	case prov.kind == valueList && len(prov.list) == 1:
		src.ProviderName = prov.list[0]
	default:
		return nil, ierr.Newf(ierr.MalformedSchema, "datasource %q: provider must be a single string", name)
	}
	src.Provider = dsn.ParseProvider(src.ProviderName)

	u, ok := fields["url"]
	if !ok {
		return nil, ierr.Newf(ierr.MalformedSchema, "datasource %q: missing url", name)
	}
	switch {
	case u.kind == valueString:
		src.URL = u.str
	case u.kind == valueCall && u.fn == "env" && len(u.list) == 1:
		src.EnvVar = u.list[0]
	default:
		return nil, ierr.Newf(ierr.MalformedSchema, `datasource %q: url must be a string or env("NAME")`, name)
	}
	src.urlStart, src.urlEnd = u.start, u.end

	return src, nil
}

// LookupFunc resolves an environment-style name to a value.
type LookupFunc func(name string) (string, bool)

// Lookups chains lookup functions; the first hit wins.
func Lookups(fns ...LookupFunc) LookupFunc {
	return func(name string) (string, bool) {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if v, ok := fn(name); ok {
				return v, true
			}
		}
		return "", false
	}
}

// ResolveURL returns the literal url, or resolves env("NAME") through lookup.
func (s *Source) ResolveURL(lookup LookupFunc) (string, error) {
	if s.EnvVar == "" {
		return s.URL, nil
	}
	if lookup != nil {
		if v, ok := lookup(s.EnvVar); ok && strings.TrimSpace(v) != "" {
			return v, nil
		}
	}
	return "", ierr.Newf(ierr.MalformedSchema,
		"datasource %q: environment variable not found: %s", s.Name, s.EnvVar)
}

// Validate checks the resolved url against the declared provider.
func (s *Source) Validate(url string) error {
	if err := dsn.Validate(s.Provider, url); err != nil {
		return ierr.Wrap(ierr.MalformedSchema, fmt.Sprintf("datasource %q", s.Name), err)
	}
	return nil
}

// Rewrite returns text with an env("NAME") url replaced by the literal url.
// Literal urls are left as they are.
func (s *Source) Rewrite(text, url string) string {
	if s.EnvVar == "" || s.urlEnd <= s.urlStart || s.urlEnd > len(text) {
		return text
	}
	return text[:s.urlStart] + quote(url) + text[s.urlEnd:]
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
