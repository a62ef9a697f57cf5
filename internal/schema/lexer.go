// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schema

import (
	"errors"
	"fmt"
	"strings"
)

// stripComments blanks out // comments outside string literals. Offsets are
// preserved so positions in the result index the original text.
func stripComments(text string) string {
	b := []byte(text)
	inString := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case inString:
			if c == '\\' && i+1 < len(b) {
				i++
			} else if c == '"' || c == '\n' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '/' && i+1 < len(b) && b[i+1] == '/':
			for ; i < len(b) && b[i] != '\n'; i++ {
				b[i] = ' '
			}
		}
	}
	return string(b)
}

// matchBrace returns the offset of the '}' closing a block whose body starts
// at start.
func matchBrace(masked string, start int) (int, bool) {
	depth := 1
	inString := false
	for i := start; i < len(masked); i++ {
		c := masked[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

type valueKind int

const (
	valueString valueKind = iota
	valueList
	valueCall
	valueBare
)

// value is a parsed field value. start and end index the original text.
type value struct {
	kind       valueKind
	str        string
	fn         string
	list       []string
	start, end int
}

type scanner struct {
	text string
	pos  int
	end  int
}

// parseFields reads `key = value` assignments between start and end.
func parseFields(text, masked string, start, end int) (map[string]value, error) {
	// Comments are already blank in masked; scanning it keeps offsets aligned
	// with text while string contents are read back from text.
	s := &scanner{text: masked, pos: start, end: end}
	fields := make(map[string]value)
	for {
		s.skipSpace()
		if s.pos >= s.end {
			return fields, nil
		}
		key := s.ident()
		if key == "" {
			return nil, fmt.Errorf("unexpected %q", s.text[s.pos])
		}
		s.skipSpace()
		if !s.consume('=') {
			return nil, fmt.Errorf("expected = after %s", key)
		}
		s.skipSpace()
		v, err := s.value(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("%s is declared more than once", key)
		}
		fields[key] = v
	}
}

func (s *scanner) skipSpace() {
	for s.pos < s.end {
		switch s.text[s.pos] {
		case ' ', '\t', '\r', '\n', ',':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) consume(c byte) bool {
	if s.pos < s.end && s.text[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) ident() string {
	start := s.pos
	for s.pos < s.end {
		c := s.text[s.pos]
		if c == '_' || c == '.' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			s.pos++
			continue
		}
		break
	}
	return s.text[start:s.pos]
}

func (s *scanner) str(orig string) (string, error) {
	if !s.consume('"') {
		return "", errors.New("expected string")
	}
	var b strings.Builder
	for s.pos < s.end {
		c := orig[s.pos]
		switch c {
		case '"':
			s.pos++
			return b.String(), nil
		case '\n':
			return "", errors.New("unterminated string")
		case '\\':
			if s.pos+1 >= s.end {
				return "", errors.New("unterminated string")
			}
			s.pos++
			switch e := orig[s.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
		s.pos++
	}
	return "", errors.New("unterminated string")
}

func (s *scanner) value(orig string) (value, error) {
	start := s.pos
	if s.pos >= s.end {
		return value{}, errors.New("missing value")
	}
	switch c := s.text[s.pos]; {
	case c == '"':
		str, err := s.str(orig)
		if err != nil {
			return value{}, err
		}
		return value{kind: valueString, str: str, start: start, end: s.pos}, nil
	case c == '[':
		s.pos++
		list, err := s.args(orig, ']')
		if err != nil {
			return value{}, err
		}
		return value{kind: valueList, list: list, start: start, end: s.pos}, nil
	default:
		name := s.ident()
		if name == "" {
			return value{}, fmt.Errorf("unexpected %q", c)
		}
		if s.consume('(') {
			args, err := s.args(orig, ')')
			if err != nil {
				return value{}, err
			}
			return value{kind: valueCall, fn: name, list: args, start: start, end: s.pos}, nil
		}
		return value{kind: valueBare, str: name, start: start, end: s.pos}, nil
	}
}

// args reads a comma separated list up to the closing delimiter. Only string
// literals are collected; identifiers and nested calls such as
// postgis(version: "3.1") are skipped.
func (s *scanner) args(orig string, closing byte) ([]string, error) {
	var out []string
	for {
		s.skipSpace()
		if s.consume(closing) {
			return out, nil
		}
		if s.pos >= s.end {
			return nil, fmt.Errorf("missing %q", closing)
		}
		if s.text[s.pos] != '"' {
			if err := s.skipItem(orig); err != nil {
				return nil, err
			}
			continue
		}
		str, err := s.str(orig)
		if err != nil {
			return nil, err
		}
		out = append(out, str)
	}
}

func (s *scanner) skipItem(orig string) error {
	if s.ident() == "" {
		s.pos++
		return nil
	}
	if s.consume(':') {
		s.skipSpace()
		if s.pos < s.end && s.text[s.pos] == '"' {
			_, err := s.str(orig)
			return err
		}
		s.ident()
		return nil
	}
	if s.consume('(') {
		_, err := s.args(orig, ')')
		return err
	}
	return nil
}
