// Package launch runs the platform services (reverse proxy, application
// server, async API server) as a supervised process group: ordered start,
// restart with backoff when a child dies, and reverse-order shutdown with
// a SIGTERM-then-SIGKILL ladder.
package launch

import (
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
)

// Spec describes one long-running service.
type Spec struct {
	// Name identifies the service in logs and metrics.
	Name string
	// Argv is the full command line; Argv[0] is resolved via PATH.
	Argv []string
	// LogPath receives the child's combined stdout/stderr, appended.
	LogPath string
	// Env entries are appended to the inherited environment.
	Env []string
}

// ServiceSpecs assembles the three platform services in start order: the
// proxy first so it can queue requests while the servers bind their sockets.
func ServiceSpecs(cfg *config.Config) []Spec {
	return []Spec{
		{Name: "proxy", Argv: cfg.Commands.Proxy, LogPath: cfg.Paths.ProxyLog()},
		{Name: "app-server", Argv: cfg.Commands.AppServer, LogPath: cfg.Paths.MainLog()},
		{Name: "async-api", Argv: cfg.Commands.APIServer, LogPath: cfg.Paths.APILog()},
	}
}

// Handle is a started child process. The production implementation wraps
// os/exec; tests substitute fakes.
type Handle interface {
	PID() int
	// Wait blocks until the process exits and returns its exit error.
	// Safe to call from multiple goroutines.
	Wait() error
	// Signal delivers sig to the process.
	Signal(sig os.Signal) error
}

// Starter launches one child process per call.
type Starter interface {
	Start(spec Spec) (Handle, error)
}

// ExecStarter is the os/exec-backed Starter. Children get the spec's log
// file as combined output and no stdin, detaching them from the
// entrypoint's terminal.
type ExecStarter struct {
	logger *slog.Logger
}

// NewStarter creates an ExecStarter. A nil logger falls back to slog.Default.
func NewStarter(logger *slog.Logger) *ExecStarter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecStarter{logger: logger}
}

// Start launches the service described by spec.
func (s *ExecStarter) Start(spec Spec) (Handle, error) {
	if len(spec.Argv) == 0 {
		return nil, foundation.LaunchError("empty service argv").
			WithContext(foundation.Fields{"process": spec.Name}).
			Build()
	}

	path, err := exec.LookPath(spec.Argv[0])
	if err != nil {
		return nil, foundation.LaunchError("service binary not found").
			WithCause(err).
			WithContext(foundation.Fields{"process": spec.Name, "command": spec.Argv[0]}).
			Build()
	}

	logFile, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, foundation.LaunchError("opening service log file").
			WithCause(err).
			WithContext(foundation.Fields{"process": spec.Name, "path": spec.LogPath}).
			Build()
	}

	// #nosec G204 -- path is from exec.LookPath over operator-configured argv
	cmd := exec.Command(path, spec.Argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, foundation.LaunchError("starting service").
			WithCause(err).
			WithContext(foundation.Fields{"process": spec.Name}).
			Build()
	}
	return &execHandle{cmd: cmd, logFile: logFile}, nil
}

type execHandle struct {
	cmd      *exec.Cmd
	logFile  *os.File
	waitOnce sync.Once
	waitErr  error
}

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

func (h *execHandle) Wait() error {
	h.waitOnce.Do(func() {
		h.waitErr = h.cmd.Wait()
		// The child holds its own descriptor; the parent's copy is only
		// needed until the reap.
		_ = h.logFile.Close()
	})
	return h.waitErr
}

func (h *execHandle) Signal(sig os.Signal) error { return h.cmd.Process.Signal(sig) }

// ProcessState classifies a supervised child's lifecycle.
type ProcessState string

const (
	StateRunning    ProcessState = "running"
	StateRestarting ProcessState = "restarting"
	StateExhausted  ProcessState = "exhausted"
	StateStopped    ProcessState = "stopped"
)

// Process is one supervised service and its runtime bookkeeping.
type Process struct {
	Spec Spec

	mu       sync.Mutex
	handle   Handle
	done     chan struct{}
	exitErr  error
	restarts int

	state atomic.Value // ProcessState
}

func newProcess(spec Spec) *Process {
	p := &Process{Spec: spec}
	p.state.Store(StateStopped)
	return p
}

// State returns the current lifecycle state.
func (p *Process) State() ProcessState {
	state, ok := p.state.Load().(ProcessState)
	if !ok {
		return StateStopped
	}
	return state
}

// PID returns the live child's PID, zero when none.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return 0
	}
	return p.handle.PID()
}

// Restarts returns how many times the child has been restarted.
func (p *Process) Restarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

func (p *Process) noteRestart() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts++
	return p.restarts
}

// attach installs a started handle and begins the exit watch. The returned
// channel closes when that handle's process exits.
func (p *Process) attach(h Handle) <-chan struct{} {
	done := make(chan struct{})
	p.mu.Lock()
	p.handle = h
	p.done = done
	p.mu.Unlock()
	p.state.Store(StateRunning)

	go func() {
		err := h.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(done)
	}()
	return done
}

func (p *Process) lastExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// exitChannel returns the live handle's exit channel. ok is false when no
// child is currently attached or it already exited.
func (p *Process) exitChannel() (<-chan struct{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil || p.done == nil {
		return nil, false
	}
	select {
	case <-p.done:
		return p.done, false
	default:
		return p.done, true
	}
}

// signal delivers sig to the live child; a no-op when none is attached.
func (p *Process) signal(sig os.Signal) error {
	p.mu.Lock()
	h := p.handle
	p.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Signal(sig)
}
