// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package engine supervises an external introspection engine process and
// exposes its RPC methods as typed, blocking calls.
//
// The engine is started lazily by the first call and serves any number of
// concurrent calls over one stdio channel. When the process exits, is
// stopped, or writes something that cannot be tied to a request, every
// outstanding call is rejected and the next call starts a fresh process.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"introspect/cli/internal/dsn"
	ierr "introspect/cli/internal/errors"
	"introspect/cli/internal/logging"
	"introspect/cli/internal/schema"
)

// drainWait bounds how long the exit monitor waits for buffered output.
const drainWait = 250 * time.Millisecond

// Options configures an Engine. The zero value runs DefaultEnginePath.
type Options struct {
	// Launcher spawns the engine. When nil, an ExecLauncher is built from
	// Path, Args, Dir and Env.
	Launcher Launcher
	Path     string
	Args     []string
	// Dir is the engine working directory. Relative sqlite paths are
	// resolved against it.
	Dir string
	Env []string

	StopTimeout time.Duration
	StderrLines int
	Logger      *slog.Logger

	// LookupEnv resolves url = env("NAME"). Defaults to os.LookupEnv.
	LookupEnv schema.LookupFunc
	// OnProtocolError is called once per invalid line that ends a session.
	OnProtocolError func(line string)
}

// Engine is a client of one engine process at a time.
type Engine struct {
	opts Options
	sup  *Supervisor
	log  *slog.Logger

	mu   sync.Mutex
	sess *session
}

// session is one engine process and its RPC channel.
type session struct {
	id     string
	handle *Handle
	client *client
	stderr *lineBuffer
	// drained is closed once stdout and stderr are fully read.
	drained chan struct{}
}

// New returns an Engine. No process is started until the first call.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.StderrLines <= 0 {
		opts.StderrLines = DefaultStderrLines
	}
	if opts.Launcher == nil {
		opts.Launcher = &ExecLauncher{Path: opts.Path, Args: opts.Args, Dir: opts.Dir, Env: opts.Env}
	}
	log := opts.Logger.With("component", "engine")
	return &Engine{
		opts: opts,
		sup:  NewSupervisor(opts.Launcher, opts.StopTimeout, log),
		log:  log,
	}
}

// IntrospectOption adjusts an introspect request.
type IntrospectOption func(*Params)

// WithForce asks the engine to ignore the existing datamodel and
// re-introspect from scratch.
func WithForce(force bool) IntrospectOption {
	return func(p *Params) { p.Force = force }
}

// WithCompositeTypeDepth limits how deep composite types are introspected on
// document databases. -1 means unlimited.
func WithCompositeTypeDepth(depth int) IntrospectOption {
	return func(p *Params) { p.CompositeTypeDepth = &depth }
}

// Introspect derives a datamodel from the database the schema points at.
func (e *Engine) Introspect(ctx context.Context, schemaText string, opts ...IntrospectOption) (*IntrospectionResult, error) {
	var out IntrospectionResult
	if err := e.do(ctx, MethodIntrospect, schemaText, opts, &out); err != nil {
		return nil, err
	}
	if out.Warnings == nil {
		out.Warnings = []Warning{}
	}
	return &out, nil
}

// GetDatabaseMetadata returns the size and table count of the database.
func (e *Engine) GetDatabaseMetadata(ctx context.Context, schemaText string) (*DatabaseMetadata, error) {
	var out DatabaseMetadata
	if err := e.do(ctx, MethodGetDatabaseMetadata, schemaText, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDatabases returns the databases reachable with the schema's url, in
// engine order with duplicates preserved.
func (e *Engine) ListDatabases(ctx context.Context, schemaText string) ([]string, error) {
	var out []string
	if err := e.do(ctx, MethodListDatabases, schemaText, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// GetDatabaseVersion returns the database server version string.
func (e *Engine) GetDatabaseVersion(ctx context.Context, schemaText string) (string, error) {
	var out string
	if err := e.do(ctx, MethodGetDatabaseVersion, schemaText, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// GetDatabaseDescription returns the engine's low-level schema description.
// The text is meant for debugging and has no stable format.
func (e *Engine) GetDatabaseDescription(ctx context.Context, schemaText string) (string, error) {
	var out string
	if err := e.do(ctx, MethodGetDatabaseDescription, schemaText, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Stop rejects outstanding calls and stops the engine process. It is safe
// to call in any state and any number of times.
func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.sess
	e.sess = nil
	h := e.sup.detach(nil)
	e.mu.Unlock()

	if s != nil {
		if n, _ := s.client.fail(ierr.New(ierr.EngineCrashed, "engine stopped"), nil); n > 0 {
			e.log.Info("rejected outstanding calls", "session", s.id, "count", n)
		}
	}
	if h != nil {
		h.stop(e.sup.stopTimeout, e.log)
		e.log.Debug("engine stopped", "pid", h.Pid())
	}
}

// State returns the lifecycle state of the engine process.
func (e *Engine) State() State { return e.sup.State() }

// PID returns the pid of the running engine, or 0.
func (e *Engine) PID() int { return e.sup.PID() }

func (e *Engine) do(ctx context.Context, method Method, schemaText string, opts []IntrospectOption, out any) error {
	text, err := e.prepare(schemaText)
	if err != nil {
		return err
	}
	params := Params{Schema: text}
	for _, opt := range opts {
		opt(&params)
	}

	s, err := e.session()
	if err != nil {
		return err
	}
	raw, err := s.client.call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return ierr.Wrap(ierr.ProtocolViolation, fmt.Sprintf("unexpected %s result", method), err)
	}
	return nil
}

// prepare validates the datasource locally and returns the schema text to
// send, with an env() url replaced by its value.
func (e *Engine) prepare(schemaText string) (string, error) {
	src, err := schema.Extract(schemaText)
	if err != nil {
		return "", err
	}
	url, err := src.ResolveURL(e.opts.LookupEnv)
	if err != nil {
		return "", err
	}
	if err := src.Validate(url); err != nil {
		return "", err
	}
	if src.Provider == dsn.ProviderSQLite {
		if _, err := schema.ResolveFile(url, e.opts.Dir); err != nil {
			return "", err
		}
	}
	e.log.Debug("datasource resolved", "name", src.Name, "provider", src.Provider, "url", logging.Mask(url))
	return src.Rewrite(schemaText, url), nil
}

// session returns the live session, starting the engine if needed.
func (e *Engine) session() (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.sess; s != nil {
		if !s.client.isClosed() && !s.handle.exited() {
			return s, nil
		}
		// Ended but not yet retired by its monitor.
		e.sess = nil
		if h := e.sup.detach(s.handle); h != nil {
			go h.stop(e.sup.stopTimeout, e.log)
		}
	}

	h, err := e.sup.Start()
	if err != nil {
		e.log.Error("engine failed to start", "error", err)
		return nil, err
	}
	s := &session{
		id:      uuid.NewString(),
		handle:  h,
		stderr:  newLineBuffer(e.opts.StderrLines),
		drained: make(chan struct{}),
	}
	s.client = newClient(newTransport(h.proc.Stdin()), e.log.With("session", s.id))
	s.client.onViolation = func(line []byte, err *ierr.E) { e.violation(s, line, err) }
	e.sess = s
	e.log.Info("engine session started", "session", s.id, "pid", h.Pid())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.readStdout(s)
	}()
	go func() {
		defer wg.Done()
		s.stderr.drain(h.proc.Stderr(), func(line string) {
			e.log.Debug("engine stderr", "session", s.id, "line", line)
		})
	}()
	go func() {
		wg.Wait()
		close(s.drained)
	}()
	go e.monitor(s)
	return s, nil
}

func (e *Engine) readStdout(s *session) {
	if err := readLoop(s.handle.proc.Stdout(), s.client, e.log); err != nil {
		e.log.Debug("engine stdout closed", "session", s.id, "error", err)
	}
	// Output closed while the process lives on: nothing can be answered.
	select {
	case <-s.handle.Done():
		return
	case <-time.After(drainWait):
	}
	err := ierr.New(ierr.EngineCrashed, "engine closed its output").WithDiagnostic(s.stderr.String())
	s.client.fail(err, func() {
		if h := e.retire(s); h != nil {
			go h.stop(e.sup.stopTimeout, e.log)
		}
	})
}

// monitor rejects outstanding calls once the engine process exits.
func (e *Engine) monitor(s *session) {
	<-s.handle.Done()
	select {
	case <-s.drained:
	case <-time.After(drainWait):
		closeReader(s.handle.proc.Stdout())
		closeReader(s.handle.proc.Stderr())
	}

	exitErr := s.handle.ExitErr()
	crash := ierr.Wrap(ierr.EngineCrashed,
		fmt.Sprintf("engine process %d exited", s.handle.Pid()), exitErr).WithDiagnostic(s.stderr.String())
	pending := s.client.inFlight()
	if _, first := s.client.fail(crash, func() { e.retire(s) }); first {
		e.log.Error("engine exited unexpectedly", "session", s.id, "pid", s.handle.Pid(),
			"uptime", time.Since(s.handle.startedAt).Round(time.Millisecond), "pending", pending, "error", exitErr)
	}
	closeReader(s.handle.proc.Stdout())
	closeReader(s.handle.proc.Stderr())
}

// violation ends a session after an invalid engine line.
func (e *Engine) violation(s *session, line []byte, err *ierr.E) {
	e.log.Error("engine protocol violation", "session", s.id, "error", err, "line", logging.Mask(clip(string(line), 512)))
	if e.opts.OnProtocolError != nil {
		e.opts.OnProtocolError(string(line))
	}
	if h := e.retire(s); h != nil {
		go h.stop(e.sup.stopTimeout, e.log)
	}
}

// retire drops s as the live session so the next call starts a new one.
// It returns the session's handle if it was still the running process.
func (e *Engine) retire(s *session) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == s {
		e.sess = nil
	}
	return e.sup.detach(s.handle)
}

func closeReader(r any) {
	if c, ok := r.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
