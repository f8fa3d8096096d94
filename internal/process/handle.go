package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
)

// outputBufferSize is the buffer size for draining subprocess streams.
const outputBufferSize = 4096

// ErrKilled is returned by Stop when the process ignored SIGTERM for
// the graceful timeout and had to be killed. The process is dead, but
// anything it was writing may be incomplete.
var ErrKilled = errors.New("process: killed after graceful timeout")

// Config holds configuration for a long-running subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// GracefulTimeout is how long Stop waits after SIGTERM before
	// escalating to SIGKILL. Defaults to 10s.
	GracefulTimeout time.Duration

	// Stdout, when non-nil, receives the process's raw stdout bytes.
	// The live-view strategy points this at the MJPEG frame parser.
	// When nil, stdout is logged at debug level like stderr.
	Stdout io.Writer

	// OnExit is called once when the process exits, with the error
	// from Wait (nil on clean exit or requested stop).
	OnExit func(err error)
}

// Logger allows injection of a logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Handle tracks a single running subprocess from Start to exit.
type Handle struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	exitErr       error
	startTime     time.Time
	stopRequested bool

	done chan struct{}
}

// Start launches the configured subprocess and begins monitoring it.
// The returned handle reports the exit via Done and Err; the process
// is never restarted.
func Start(ctx context.Context, cfg Config, logger Logger) (*Handle, error) {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = noopLogger{}
	}

	h := &Handle{
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := h.start(ctx); err != nil {
		h.mu.Lock()
		h.status = StatusFailed
		h.exitErr = err
		h.mu.Unlock()
		close(h.done)
		return nil, err
	}

	go h.monitor()

	return h, nil
}

func (h *Handle) start(ctx context.Context) error {
	h.logger.Info("starting process",
		"name", h.config.Name,
		"binary", h.config.Binary,
		"args", h.config.Args,
	)

	cmd := exec.CommandContext(ctx, h.config.Binary, h.config.Args...) //nolint:gosec // Binary path is validated in config.Validate()

	// Create a new process group so we can signal all children on shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if h.config.Env != nil {
		cmd.Env = append(os.Environ(), h.config.Env...)
	}
	if h.config.WorkDir != "" {
		cmd.Dir = h.config.WorkDir
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	var stdout io.ReadCloser
	if h.config.Stdout != nil {
		cmd.Stdout = h.config.Stdout
	} else {
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("creating stdout pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", h.config.Name, err)
	}

	h.mu.Lock()
	h.cmd = cmd
	h.status = StatusRunning
	h.startTime = time.Now()
	h.mu.Unlock()

	go h.drain("stderr", stderr)
	if stdout != nil {
		go h.drain("stdout", stdout)
	}

	h.logger.Info("process started",
		"name", h.config.Name,
		"pid", cmd.Process.Pid,
	)

	return nil
}

// drain reads from the given stream and logs each chunk.
func (h *Handle) drain(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.logger.Debug("process output",
				"name", h.config.Name,
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}

// monitor waits for the process to exit and records the outcome.
func (h *Handle) monitor() {
	err := h.waitCmd()

	h.mu.Lock()
	stopRequested := h.stopRequested
	if stopRequested {
		// Signal-driven exit codes are expected on a requested stop.
		err = nil
	}
	h.exitErr = err
	if err != nil {
		h.status = StatusFailed
	} else {
		h.status = StatusStopped
	}
	h.mu.Unlock()

	if stopRequested {
		h.logger.Info("process stopped as requested", "name", h.config.Name)
	} else if err != nil {
		h.logger.Warn("process exited unexpectedly",
			"name", h.config.Name,
			"error", err,
		)
	} else {
		h.logger.Info("process exited", "name", h.config.Name)
	}

	close(h.done)

	if h.config.OnExit != nil {
		h.config.OnExit(err)
	}
}

func (h *Handle) waitCmd() error {
	h.mu.RLock()
	cmd := h.cmd
	h.mu.RUnlock()
	return cmd.Wait()
}

// Stop gracefully stops the subprocess.
// It sends SIGTERM to the process group and waits for the graceful
// timeout, then sends SIGKILL if the process is still alive. When the
// SIGKILL escalation was needed, Stop returns ErrKilled so callers
// know the process did not get to shut down cleanly.
func (h *Handle) Stop() error {
	h.mu.Lock()
	if h.status != StatusRunning {
		h.mu.Unlock()
		return nil
	}
	h.stopRequested = true
	cmd := h.cmd
	h.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	h.logger.Info("stopping process", "name", h.config.Name, "pid", pid)

	// Use negative PID to signal the process group (created via Setpgid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			h.logger.Warn("failed to send SIGTERM to process group", "name", h.config.Name, "error", err)
		}
	}

	select {
	case <-h.done:
		h.logger.Info("process stopped gracefully", "name", h.config.Name)
		return nil
	case <-time.After(h.config.GracefulTimeout):
		h.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", h.config.Name,
			"timeout", h.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %s: %w", h.config.Name, err)
		}
	}

	<-h.done
	h.logger.Info("process killed", "name", h.config.Name)

	return ErrKilled
}

// Kill terminates the subprocess immediately with SIGKILL, skipping
// the graceful SIGTERM phase. Used for live-view streams, which have
// no state worth flushing.
func (h *Handle) Kill() error {
	h.mu.Lock()
	if h.status != StatusRunning {
		h.mu.Unlock()
		return nil
	}
	h.stopRequested = true
	cmd := h.cmd
	h.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %s: %w", h.config.Name, err)
		}
	}

	<-h.done
	return nil
}

// Done returns a channel closed when the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the exit error, or nil if the process exited cleanly or
// was stopped on request. Only meaningful after Done is closed.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.exitErr
}

// Status returns the current status of the managed process.
func (h *Handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Running returns true if the process is currently running.
func (h *Handle) Running() bool {
	return h.Status() == StatusRunning
}

// PID returns the process ID, or 0 if not running.
func (h *Handle) PID() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.cmd != nil && h.cmd.Process != nil {
		return h.cmd.Process.Pid
	}
	return 0
}

// Uptime returns how long the process has been running.
// Returns 0 if the process is not running.
func (h *Handle) Uptime() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.status != StatusRunning {
		return 0
	}
	return time.Since(h.startTime)
}

// Stats holds a snapshot of a managed process.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (h *Handle) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		Name:   h.config.Name,
		Status: h.status,
	}

	if h.cmd != nil && h.cmd.Process != nil {
		stats.PID = h.cmd.Process.Pid
	}
	if h.status == StatusRunning {
		stats.Uptime = time.Since(h.startTime)
	}
	if h.exitErr != nil {
		stats.LastError = h.exitErr.Error()
	}

	return stats
}
