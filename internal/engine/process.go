// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	ierr "introspect/cli/internal/errors"
)

const (
	// DefaultStopTimeout is how long Stop waits after terminate before killing.
	DefaultStopTimeout = 5 * time.Second
	// DefaultEnginePath is looked up on PATH when no engine path is configured.
	DefaultEnginePath = "introspection-engine"

	killWait = 2 * time.Second
)

// Process is a running engine.
type Process interface {
	Pid() int
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until the process exits. It is called exactly once.
	Wait() error
	// Terminate asks the process to exit.
	Terminate() error
	Kill() error
}

// Launcher spawns engine processes.
type Launcher interface {
	Launch() (Process, error)
}

// ExecLauncher runs the engine as an operating system process.
type ExecLauncher struct {
	Path string
	Args []string
	Dir  string
	// Env is appended to the current environment.
	Env []string
}

func (l *ExecLauncher) Launch() (Process, error) {
	name := l.Path
	if name == "" {
		name = DefaultEnginePath
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, ierr.Wrap(ierr.EngineStartFailed, fmt.Sprintf("engine executable %q not found", name), err)
	}

	cmd := exec.Command(path, l.Args...)
	cmd.Dir = l.Dir
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, ierr.Wrap(ierr.EngineStartFailed, "create engine stdin", err)
	}
	// Explicit pipes rather than StdoutPipe: Wait must not close the read
	// ends while the readers are still draining them.
	outR, outW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, ierr.Wrap(ierr.EngineStartFailed, "create engine stdout", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		closeAll(outR, outW)
		return nil, ierr.Wrap(ierr.EngineStartFailed, "create engine stderr", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		closeAll(outR, outW, errR, errW)
		return nil, ierr.Wrap(ierr.EngineStartFailed, fmt.Sprintf("start engine %s", path), err)
	}
	// The child holds its own copies of the write ends.
	closeAll(outW, errW)

	return &execProcess{cmd: cmd, stdin: stdin, stdout: outR, stderr: errR}, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	stderr *os.File
}

func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }
func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Stderr() io.Reader     { return p.stderr }
func (p *execProcess) Wait() error           { return p.cmd.Wait() }
func (p *execProcess) Kill() error           { return p.cmd.Process.Kill() }

// Terminate sends SIGTERM, falling back to Kill where signals other than
// kill are unsupported.
func (p *execProcess) Terminate() error {
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

// State is the lifecycle state of the engine process.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Handle is one spawned engine process.
type Handle struct {
	proc      Process
	startedAt time.Time
	done      chan struct{}
	exitErr   error
}

func (h *Handle) Pid() int { return h.proc.Pid() }

// Done is closed when the process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitErr is the Wait error of the process. Valid after Done is closed.
func (h *Handle) ExitErr() error { return h.exitErr }

func (h *Handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// stop terminates the process, kills it after grace and returns once it has
// exited or the kill wait elapsed.
func (h *Handle) stop(grace time.Duration, log *slog.Logger) {
	if h.exited() {
		return
	}
	if err := h.proc.Terminate(); err != nil {
		log.Debug("terminate engine", "pid", h.Pid(), "error", err)
	}
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-h.done:
		return
	case <-t.C:
	}

	log.Warn("engine did not exit in time, killing it", "pid", h.Pid(), "grace", grace)
	if err := h.proc.Kill(); err != nil {
		log.Debug("kill engine", "pid", h.Pid(), "error", err)
	}
	select {
	case <-h.done:
	case <-time.After(killWait):
		log.Error("engine did not exit after kill", "pid", h.Pid())
	}
}

// Supervisor owns the engine process lifecycle: NotStarted, Running, Stopped.
type Supervisor struct {
	launcher    Launcher
	stopTimeout time.Duration
	log         *slog.Logger

	mu      sync.Mutex
	state   State
	current *Handle
}

func NewSupervisor(l Launcher, stopTimeout time.Duration, log *slog.Logger) *Supervisor {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{launcher: l, stopTimeout: stopTimeout, log: log}
}

// Start returns the running process, spawning one if there is none.
// Spawn failures are EngineStartFailed and are not retried.
func (s *Supervisor) Start() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning && !s.current.exited() {
		return s.current, nil
	}

	proc, err := s.launcher.Launch()
	if err != nil {
		if !ierr.Is(err, ierr.EngineStartFailed) {
			err = ierr.Wrap(ierr.EngineStartFailed, "start engine", err)
		}
		return nil, err
	}

	h := &Handle{proc: proc, startedAt: time.Now(), done: make(chan struct{})}
	go func() {
		h.exitErr = proc.Wait()
		close(h.done)
		s.detach(h)
	}()

	s.state = StateRunning
	s.current = h
	s.log.Debug("engine started", "pid", proc.Pid())
	return h, nil
}

// Stop stops the running process. It never blocks indefinitely and is a
// no-op unless a process is running.
func (s *Supervisor) Stop() {
	if h := s.detach(nil); h != nil {
		h.stop(s.stopTimeout, s.log)
	}
}

// detach marks h, or the current process when h is nil, as no longer
// running and returns it. It returns nil if h is not current.
func (s *Supervisor) detach(h *Handle) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.current == nil {
		return nil
	}
	if h != nil && h != s.current {
		return nil
	}
	h = s.current
	s.state = StateStopped
	return h
}

// State returns the lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PID returns the pid of the running process, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.current == nil {
		return 0
	}
	return s.current.Pid()
}
