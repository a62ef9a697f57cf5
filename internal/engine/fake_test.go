// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeProcess is an in-memory engine driven by a serve function.
type fakeProcess struct {
	pid int

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	once    sync.Once
	done    chan struct{}
	exitErr error

	terminated atomic.Bool
	killed     atomic.Bool
	// ignoreTerminate makes Terminate a no-op so Stop has to kill.
	ignoreTerminate bool
}

func newFakeProcess(pid int) *fakeProcess {
	p := &fakeProcess{pid: pid, done: make(chan struct{})}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

func (p *fakeProcess) Pid() int              { return p.pid }
func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdinW }
func (p *fakeProcess) Stdout() io.Reader     { return p.stdoutR }
func (p *fakeProcess) Stderr() io.Reader     { return p.stderrR }

func (p *fakeProcess) Wait() error {
	<-p.done
	return p.exitErr
}

func (p *fakeProcess) Terminate() error {
	p.terminated.Store(true)
	if !p.ignoreTerminate {
		p.exit(nil)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.exit(errors.New("signal: killed"))
	return nil
}

// exit simulates the process ending with err.
func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		p.exitErr = err
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
		_ = p.stdinR.Close()
		close(p.done)
	})
}

// writeLine writes raw text followed by a newline to stdout.
func (p *fakeProcess) writeLine(s string) {
	_, _ = io.WriteString(p.stdoutW, s+"\n")
}

func (p *fakeProcess) result(id uint64, v any) {
	b, _ := json.Marshal(v)
	p.writeLine(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, id, b))
}

func (p *fakeProcess) rpcError(id uint64, code int, message, errorCode string) {
	data := map[string]any{"is_panic": false, "message": message, "meta": map[string]any{}}
	if errorCode != "" {
		data["error_code"] = errorCode
	}
	b, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": "An error happened. Check the data field for details.", "data": data},
	})
	p.writeLine(string(b))
}

// serve decodes requests from stdin and passes each to fn on its own
// goroutine until stdin closes.
func (p *fakeProcess) serve(fn func(p *fakeProcess, req Request)) {
	go func() {
		sc := bufio.NewScanner(p.stdinR)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			var req Request
			if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
				continue
			}
			go fn(p, req)
		}
	}()
}

// fakeLauncher hands out fake processes with increasing pids.
type fakeLauncher struct {
	t     *testing.T
	serve func(p *fakeProcess, req Request)
	err   error
	// setup adjusts each process before it is returned.
	setup func(p *fakeProcess)

	mu    sync.Mutex
	procs []*fakeProcess
}

func (l *fakeLauncher) Launch() (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess(1000 + len(l.procs))
	if l.setup != nil {
		l.setup(p)
	}
	serve := l.serve
	if serve == nil {
		serve = func(*fakeProcess, Request) {}
	}
	p.serve(serve)
	l.procs = append(l.procs, p)
	l.t.Cleanup(func() { p.exit(nil) })
	return p, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) last() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.procs) == 0 {
		return nil
	}
	return l.procs[len(l.procs)-1]
}

// answerAll answers every request with a successful result for its method.
func answerAll(p *fakeProcess, req Request) {
	switch req.Method {
	case MethodIntrospect:
		p.result(req.ID, map[string]any{"datamodel": "model A {\n  id Int @id\n}\n", "version": "NonPrisma", "warnings": []any{}})
	case MethodGetDatabaseMetadata:
		p.result(req.ID, map[string]any{"size_in_bytes": 8192, "table_count": 2})
	case MethodListDatabases:
		p.result(req.ID, []string{"app", "app"})
	case MethodGetDatabaseVersion:
		p.result(req.ID, "PostgreSQL 16.2")
	case MethodGetDatabaseDescription:
		p.result(req.ID, "SqlSchema { tables: [] }")
	}
}
