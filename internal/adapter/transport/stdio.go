package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/logger"
	"github.com/thushan/ladle/pkg/format"
)

const (
	// stopGrace is how long a child gets between SIGTERM and SIGKILL.
	stopGrace = 5 * time.Second

	// maxLineBytes caps a single stdout line. Tool responses carrying
	// file contents or screenshots can get big.
	maxLineBytes = 10 << 20

	lineBufferDepth = 8
)

// StdioTransport runs an MCP server as a child process and exchanges
// newline-delimited JSON-RPC over its pipes. The protocol is strictly
// one request line, one response line, so calls are serialized: one
// in-flight request at a time, queued arrivals in order.
//
// The child is an explicit state machine: unstarted until the first
// Start or Call, running while the process lives, crashed once it
// exits. Respawns are counted against a budget; past the budget every
// call fails until an explicit Restart.
type StdioTransport struct {
	logger logger.StyledLogger
	env    map[string]string
	name   string

	command []string
	timeout time.Duration

	proc     atomic.Pointer[process]
	restarts atomic.Int32
	tracker  callTracker

	maxRestarts int32

	// callMu serializes calls and all lifecycle changes.
	callMu  sync.Mutex
	started bool
}

// process owns one spawned child. lines closes when stdout hits EOF;
// done closes after the child is reaped, at which point waitErr holds
// the exit result.
type process struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan []byte
	done    chan struct{}
	waitErr error
	pid     int
}

func (p *process) alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func NewStdioTransport(cfg domain.ServerConfig, log logger.StyledLogger) *StdioTransport {
	return &StdioTransport{
		name:        cfg.Name,
		command:     cfg.Command,
		env:         cfg.Env,
		timeout:     cfg.CallTimeout(),
		maxRestarts: int32(cfg.RestartLimit()),
		logger:      log,
	}
}

func (t *StdioTransport) Kind() string { return domain.TransportStdio }

// Start spawns the child. Callers may skip it; the first Call spawns
// lazily.
func (t *StdioTransport) Start(_ context.Context) error {
	t.callMu.Lock()
	defer t.callMu.Unlock()

	if p := t.proc.Load(); p != nil && p.alive() {
		return nil
	}
	return t.startLocked()
}

func (t *StdioTransport) Stop(_ context.Context) error {
	t.callMu.Lock()
	defer t.callMu.Unlock()

	if p := t.proc.Load(); p != nil {
		t.stopProcess(p)
		t.proc.Store(nil)
	}
	return nil
}

// Restart stops any running child, zeroes the respawn budget and
// spawns fresh. This is the recovery path once the budget is spent.
func (t *StdioTransport) Restart(_ context.Context) error {
	t.callMu.Lock()
	defer t.callMu.Unlock()

	if p := t.proc.Load(); p != nil {
		t.stopProcess(p)
		t.proc.Store(nil)
	}
	t.restarts.Store(0)
	return t.startLocked()
}

func (t *StdioTransport) Healthy(_ context.Context) bool {
	p := t.proc.Load()
	return p != nil && p.alive()
}

func (t *StdioTransport) Stats() domain.TransportStats {
	stats := domain.TransportStats{
		Kind:         domain.TransportStdio,
		RestartCount: int(t.restarts.Load()),
	}
	if p := t.proc.Load(); p != nil && p.alive() {
		stats.Running = true
		stats.PID = p.pid
	}
	t.tracker.fill(&stats)
	return stats
}

// Call writes one request line and reads one response line under the
// per-call deadline. A dead child found on arrival is respawned within
// the budget first. An interrupted read, whether timeout or caller
// cancel, poisons the stream, so the child is terminated and respawned
// before the error is returned.
func (t *StdioTransport) Call(ctx context.Context, req domain.Request) (domain.Response, error) {
	started := time.Now()

	t.callMu.Lock()
	defer t.callMu.Unlock()

	if err := t.ensureRunningLocked(); err != nil {
		terr := domain.NewTransportError(t.name, "spawn", false, err)
		t.tracker.failure(started, terr)
		return domain.Response{}, terr
	}

	line, err := json.Marshal(req)
	if err != nil {
		return domain.Response{}, domain.NewTransportError(t.name, "marshal", false, err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	p := t.proc.Load()
	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		terr := domain.NewTransportError(t.name, "write", false, err)
		t.tracker.failure(started, terr)
		return domain.Response{}, terr
	}

	if req.IsNotification() {
		// notifications get no response line, so don't read one
		t.tracker.success(started)
		return domain.Response{JSONRPC: domain.JSONRPCVersion}, nil
	}

	select {
	case raw, ok := <-p.lines:
		if !ok {
			terr := domain.NewTransportError(t.name, "read", false,
				fmt.Errorf("server %s closed stdout mid-call", t.name))
			t.tracker.failure(started, terr)
			return domain.Response{}, terr
		}

		var resp domain.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			terr := domain.NewTransportError(t.name, "parse", false, err)
			t.tracker.failure(started, terr)
			return domain.Response{}, terr
		}

		t.tracker.success(started)
		return resp, nil

	case <-ctx.Done():
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		terr := domain.NewTransportError(t.name, "read", timedOut, ctx.Err())

		// The abandoned response line may still arrive, so the stream is
		// poisoned either way and the child has to go. A stalled read is
		// an upstream fault and draws on the respawn budget; a client
		// hanging up mid-call is not, so its fresh spawn is free.
		t.stopProcess(p)
		t.proc.Store(nil)

		var rerr error
		if timedOut {
			t.tracker.failure(started, terr)
			rerr = t.respawnLocked()
		} else {
			rerr = t.startLocked()
		}
		if rerr != nil {
			t.logger.WarnWithServer("respawn after interrupted call failed", t.name, "error", rerr)
		}
		return domain.Response{}, terr
	}
}

// ensureRunningLocked spawns the child if it is not running. The first
// spawn is free; later ones draw on the respawn budget.
func (t *StdioTransport) ensureRunningLocked() error {
	if p := t.proc.Load(); p != nil && p.alive() {
		return nil
	}
	if !t.started {
		return t.startLocked()
	}
	return t.respawnLocked()
}

func (t *StdioTransport) respawnLocked() error {
	if t.restarts.Load() >= t.maxRestarts {
		return &domain.RestartExhaustedError{Server: t.name, Restarts: int(t.restarts.Load())}
	}

	if p := t.proc.Load(); p != nil {
		t.stopProcess(p)
		t.proc.Store(nil)
	}

	attempt := t.restarts.Add(1)
	t.logger.WarnWithServer("respawning stdio server", t.name,
		"attempt", int(attempt), "max_restarts", int(t.maxRestarts),
		"last_ok", format.TimeAgo(t.tracker.lastSuccessTime()))

	return t.startLocked()
}

func (t *StdioTransport) startLocked() error {
	// A failed spawn still burns the free first start, otherwise an
	// unspawnable command would retry forever without touching the budget.
	t.started = true

	p, err := t.spawn()
	if err != nil {
		return err
	}
	t.proc.Store(p)
	t.logger.InfoWithServer("stdio server started", t.name, "pid", p.pid)
	return nil
}

func (t *StdioTransport) spawn() (*process, error) {
	cmd := exec.Command(t.command[0], t.command[1:]...)
	cmd.Env = t.buildEnv()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe for %s: %w", t.name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe for %s: %w", t.name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stderr pipe for %s: %w", t.name, err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("spawn %s (%s): %w", t.name, t.command[0], err)
	}

	p := &process{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan []byte, lineBufferDepth),
		done:  make(chan struct{}),
		pid:   cmd.Process.Pid,
	}

	stderrDone := make(chan struct{})
	go t.drainStderr(stderr, stderrDone)

	// Reaping order matters: Wait closes the pipes, so it runs only
	// after both readers hit EOF. Otherwise a response written just
	// before exit could be discarded.
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			p.lines <- line
		}
		close(p.lines)
		<-stderrDone
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

func (t *StdioTransport) drainStderr(r io.Reader, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		t.logger.Debug("stdio server stderr", "server", t.name, "line", scanner.Text())
	}
}

// stopProcess shuts one child down: stdin closes first so cooperating
// servers exit on their own, then SIGTERM, then SIGKILL after the
// grace period. Pending stdout lines are discarded so the reader can
// reach EOF and the child gets reaped.
func (t *StdioTransport) stopProcess(p *process) {
	p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
	}

	go func() {
		for range p.lines {
		}
	}()

	select {
	case <-p.done:
	case <-time.After(stopGrace):
		t.logger.WarnWithServer("stdio server ignored SIGTERM, killing", t.name, "pid", p.pid)
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.done
	}

	if p.waitErr != nil {
		t.logger.Debug("stdio server exited", "server", t.name, "result", p.waitErr.Error())
	}
}

func (t *StdioTransport) buildEnv() []string {
	env := os.Environ()
	if len(t.env) == 0 {
		return env
	}

	keys := make([]string, 0, len(t.env))
	for k := range t.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+t.env[k])
	}
	return env
}
