// Package bridge runs one external AI CLI process per chat request and turns
// its output into a stream of chunks.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"sessionhub/internal/logging"
	"sessionhub/internal/model"
	"sessionhub/internal/registry"
)

const (
	defaultBuffer     = 64
	defaultAbortGrace = 5 * time.Second
	maxStderrBytes    = 64 * 1024
)

// Options configures a Bridge. Zero values select the defaults.
type Options struct {
	// Executables overrides the adapter's executable per tool.
	Executables map[model.AiTool]string
	// Adapters resolves the adapter for a tool. Defaults to model.NewAdapter.
	Adapters func(model.AiTool) (model.Adapter, error)
	// LookPath resolves executables. Defaults to exec.LookPath.
	LookPath LookPathFunc
	// Terminate delivers the termination signal. Defaults to SIGTERM.
	Terminate func(*os.Process) error
	// Env is appended to the inherited environment.
	Env []string
	// Buffer is the number of chunks buffered between process and consumer.
	Buffer int
	// AbortGrace is how long a terminated process may take to exit before
	// it is killed.
	AbortGrace time.Duration
	Logger     *logging.Logger
}

// Bridge spawns external processes and registers them in a registry.
type Bridge struct {
	reg  *registry.Registry
	opts Options
	log  *logging.Logger

	mu      sync.Mutex
	running map[*Stream]struct{}
}

// New returns a Bridge that records active requests in reg.
func New(reg *registry.Registry, opts Options) *Bridge {
	if opts.Adapters == nil {
		opts.Adapters = model.NewAdapter
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.Terminate == nil {
		opts.Terminate = func(p *os.Process) error { return p.Signal(syscall.SIGTERM) }
	}
	if opts.Buffer < 1 {
		opts.Buffer = defaultBuffer
	}
	if opts.AbortGrace <= 0 {
		opts.AbortGrace = defaultAbortGrace
	}
	return &Bridge{reg: reg, opts: opts, log: opts.Logger, running: make(map[*Stream]struct{})}
}

// Registry returns the registry the bridge records requests in.
func (b *Bridge) Registry() *registry.Registry {
	return b.reg
}

// Start spawns the process for req and returns its stream. Validation,
// busy-session and spawn failures are returned synchronously and leave no
// registry entry behind; every later failure is delivered as an Error chunk.
// Cancelling ctx aborts the request.
func (b *Bridge) Start(ctx context.Context, req model.ChatRequest) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("start request: %w", err)
	}
	adapter, err := b.opts.Adapters(req.Tool)
	if err != nil {
		return nil, fmt.Errorf("start request %s: %w", req.RequestID, err)
	}
	inv, err := adapter.BuildInvocation(req.ProjectPath, req.Prompt, req.Config)
	if err != nil {
		return nil, fmt.Errorf("build invocation: %w", err)
	}
	if exe := b.opts.Executables[req.Tool]; exe != "" {
		inv.Executable = exe
	}

	if _, ok := b.reg.Get(req.RequestID); ok {
		return nil, fmt.Errorf("start request %s: %w", req.RequestID, registry.ErrDuplicateRequest)
	}
	if req.SessionID != "" {
		if other, ok := b.reg.BySession(req.SessionID); ok {
			return nil, fmt.Errorf("start request %s: session %s running %s: %w", req.RequestID, req.SessionID, other.RequestID, registry.ErrSessionBusy)
		}
	}

	path, err := b.lookPath(req.Tool, inv.Executable)
	if err != nil {
		return nil, err
	}
	if inv.Dir != "" {
		if info, err := os.Stat(inv.Dir); err != nil || !info.IsDir() {
			if err == nil {
				err = errors.New("not a directory")
			}
			return nil, &SpawnError{Tool: req.Tool, Executable: path, Err: fmt.Errorf("working directory %s: %w", inv.Dir, err)}
		}
	}

	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(procCtx, path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = append(append(os.Environ(), inv.Env...), b.opts.Env...)
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}
	cmd.Cancel = func() error { return b.opts.Terminate(cmd.Process) }
	cmd.WaitDelay = b.opts.AbortGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &SpawnError{Tool: req.Tool, Executable: path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, &SpawnError{Tool: req.Tool, Executable: path, Err: err}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &SpawnError{Tool: req.Tool, Executable: path, Err: err}
	}

	s := newStream(req, b.opts.Buffer, b.opts.AbortGrace, cancel, b.reg, b.log.With(
		"request_id", req.RequestID,
		"tool", string(req.Tool),
		"pid", cmd.Process.Pid,
	))
	s.PID = cmd.Process.Pid

	proc := registry.ActiveProcess{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Tool:      req.Tool,
		StartedAt: time.Now(),
	}
	if err := b.reg.Register(proc, s.Abort); err != nil {
		cancel()
		go func() { _ = cmd.Wait() }()
		return nil, fmt.Errorf("start request %s: %w", req.RequestID, err)
	}

	s.log.Info("spawned process", "session_id", req.SessionID, "executable", path)
	b.mu.Lock()
	b.running[s] = struct{}{}
	b.mu.Unlock()

	stopWatch := context.AfterFunc(ctx, s.Abort)
	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.running, s)
			b.mu.Unlock()
		}()
		defer stopWatch()
		s.run(cmd, stdout, stderr, adapter)
	}()
	return s, nil
}

// Abort aborts requestID if it is active. It is idempotent and reports
// whether a running process was signaled.
func (b *Bridge) Abort(requestID string) bool {
	found := b.reg.Abort(requestID)
	if found {
		b.log.Info("abort requested", "request_id", requestID)
	}
	return found
}

// Shutdown aborts every active request and terminates processes that are
// still running after their terminal chunk. It returns the number of active
// requests aborted.
func (b *Bridge) Shutdown() int {
	n := b.reg.AbortAll()
	if n > 0 {
		b.log.Info("aborted active requests on shutdown", "count", n)
	}

	b.mu.Lock()
	lingering := make([]*Stream, 0, len(b.running))
	for s := range b.running {
		if s.finished.Load() {
			lingering = append(lingering, s)
		}
	}
	b.mu.Unlock()
	for _, s := range lingering {
		s.cancel()
	}
	if len(lingering) > 0 {
		b.log.Info("terminated finished processes on shutdown", "count", len(lingering))
	}
	return n
}
