// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

const (
	// DefaultStderrLines is how many engine stderr lines are kept for diagnostics.
	DefaultStderrLines = 100
	maxStderrLine      = 4096
)

// lineBuffer keeps the most recent lines written by the engine to stderr.
// Oldest lines are dropped once max is reached.
type lineBuffer struct {
	mu      sync.Mutex
	lines   []string
	max     int
	dropped int
}

func newLineBuffer(limit int) *lineBuffer {
	if limit <= 0 {
		limit = DefaultStderrLines
	}
	return &lineBuffer{lines: make([]string, 0, min(limit, 16)), max: limit}
}

func (b *lineBuffer) add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == b.max {
		copy(b.lines, b.lines[1:])
		b.lines = b.lines[:len(b.lines)-1]
		b.dropped++
	}
	b.lines = append(b.lines, line)
}

// String returns the buffered lines joined by newlines.
func (b *lineBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.Join(b.lines, "\n")
	if b.dropped > 0 {
		text = fmt.Sprintf("[%d earlier lines omitted]\n%s", b.dropped, text)
	}
	return text
}

// drain reads r until EOF, storing each line and passing it to each when
// non-nil. Lines longer than maxStderrLine are truncated.
func (b *lineBuffer) drain(r io.Reader, each func(string)) {
	br := bufio.NewReaderSize(r, maxStderrLine)
	var cur []byte
	flush := func() {
		line := strings.TrimRight(string(cur), "\r")
		cur = cur[:0]
		if line == "" {
			return
		}
		b.add(line)
		if each != nil {
			each(line)
		}
	}
	for {
		frag, isPrefix, err := br.ReadLine()
		if room := maxStderrLine - len(cur); room > 0 {
			if len(frag) > room {
				frag = frag[:room]
			}
			cur = append(cur, frag...)
		}
		if err != nil {
			flush()
			return
		}
		if !isPrefix {
			flush()
		}
	}
}
