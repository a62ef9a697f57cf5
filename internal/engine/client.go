// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	ierr "introspect/cli/internal/errors"
)

// pendingCall is a request awaiting its response. It is settled exactly once.
type pendingCall struct {
	id        uint64
	method    Method
	createdAt time.Time
	done      chan struct{}
	result    json.RawMessage
	err       error
}

func (p *pendingCall) settle(result json.RawMessage, err error) {
	p.result, p.err = result, err
	close(p.done)
}

// client correlates requests and responses for one engine session.
type client struct {
	t   *transport
	log *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*pendingCall
	closed  error

	// onViolation runs once when a line invalidates the session, after the
	// client is closed and before pending calls are rejected.
	onViolation func(line []byte, err *ierr.E)
}

func newClient(t *transport, log *slog.Logger) *client {
	return &client{
		t:       t,
		log:     log,
		pending: make(map[uint64]*pendingCall),
	}
}

// call sends one request and waits for its settlement or ctx.
// A cancelled caller gets ctx.Err(); its entry stays until the response
// arrives or the session ends.
func (c *client) call(ctx context.Context, method Method, params Params) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed != nil {
		err := c.closed
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	pc := &pendingCall{
		id:        c.nextID,
		method:    method,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
	c.pending[pc.id] = pc
	c.mu.Unlock()

	req := &Request{JSONRPC: jsonrpcVersion, ID: pc.id, Method: method, Params: params}
	if err := c.t.send(req); err != nil {
		c.mu.Lock()
		_, stillPending := c.pending[pc.id]
		delete(c.pending, pc.id)
		c.mu.Unlock()
		if stillPending {
			return nil, ierr.Wrap(ierr.EngineCrashed, fmt.Sprintf("%s: engine is not accepting requests", method), err)
		}
		// Settled by a concurrent session end; report that instead.
		<-pc.done
		return pc.result, pc.err
	}
	c.log.Debug("engine request sent", "id", pc.id, "method", method)

	select {
	case <-pc.done:
		c.log.Debug("engine request settled", "id", pc.id, "method", method,
			"duration", time.Since(pc.createdAt), "ok", pc.err == nil)
		return pc.result, pc.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *client) onMessage(line []byte, resp *Response) {
	c.mu.Lock()
	if c.closed != nil {
		c.mu.Unlock()
		return
	}
	pc, ok := c.pending[resp.ID]
	if !ok {
		c.mu.Unlock()
		c.violation(line, fmt.Errorf("response for unknown request id %d", resp.ID))
		return
	}
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	switch {
	case resp.Invalid != nil:
		pc.settle(nil, ierr.Wrap(ierr.ProtocolViolation, fmt.Sprintf("invalid %s response", pc.method), resp.Invalid))
	case resp.Error != nil:
		pc.settle(nil, classify(pc.method, resp.Error))
	default:
		pc.settle(resp.Result, nil)
	}
}

func (c *client) onProtocolError(line []byte, err error) {
	c.violation(line, err)
}

func (c *client) violation(line []byte, cause error) {
	e := ierr.Wrap(ierr.ProtocolViolation, "engine sent an invalid message", cause)
	c.fail(e, func() {
		if c.onViolation != nil {
			c.onViolation(line, e)
		}
	})
}

func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed != nil
}

// fail closes the client and rejects every pending call with err in
// ascending id order. before runs after closing and ahead of the
// rejections. It returns the number of rejected calls and false if the
// client was already closed.
func (c *client) fail(err error, before func()) (int, bool) {
	c.mu.Lock()
	if c.closed != nil {
		c.mu.Unlock()
		return 0, false
	}
	c.closed = err
	ids := make([]uint64, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	calls := make([]*pendingCall, 0, len(ids))
	for _, id := range ids {
		calls = append(calls, c.pending[id])
	}
	clear(c.pending)
	c.mu.Unlock()

	if before != nil {
		before()
	}
	for _, pc := range calls {
		pc.settle(nil, err)
	}
	return len(calls), true
}

// inFlight returns the number of requests awaiting a response.
func (c *client) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
