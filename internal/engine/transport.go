// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// transport writes newline-delimited request envelopes to the engine.
type transport struct {
	mu sync.Mutex
	w  io.Writer
}

func newTransport(w io.Writer) *transport {
	return &transport{w: w}
}

// send writes req as one line. Concurrent sends never interleave.
func (t *transport) send(req *Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	b = append(b, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(b); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// handler receives decoded lines from readLoop.
type handler interface {
	onMessage(line []byte, resp *Response)
	onProtocolError(line []byte, err error)
}

// readLoop splits r into lines and hands each one to h until r is exhausted.
// Blank lines are skipped. A partial line left at EOF is discarded.
func readLoop(r io.Reader, h handler, log *slog.Logger) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if err != nil {
			if rest := bytes.TrimSpace(line); len(rest) > 0 {
				log.Warn("discarding partial line at end of engine output", "bytes", len(rest))
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		resp, err := decodeResponse(line)
		if err != nil {
			h.onProtocolError(line, err)
			continue
		}
		h.onMessage(line, resp)
	}
}
