package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// Run executes a tool to completion and returns its combined stdout
// and stderr. The command is killed if it outlives timeout or if ctx
// is cancelled first. Output is returned even on failure so callers
// can surface tool diagnostics.
func Run(ctx context.Context, binary string, args []string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // Binary path is validated in config.Validate()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return buf.Bytes(), fmt.Errorf("%s timed out after %v", binary, timeout)
	}
	if err != nil {
		return buf.Bytes(), fmt.Errorf("running %s: %w", binary, err)
	}

	return buf.Bytes(), nil
}
