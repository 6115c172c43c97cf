package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"automark/logger"
)

// Binaries names the external programs the pipeline shells out to
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// CheckBinaries logs the status of each binary. Missing binaries are not fatal:
// probing falls back to an assumed height and renders fail per job.
func CheckBinaries(b Binaries) map[string]bool {
	status := map[string]bool{}
	for _, name := range []string{b.FFmpeg, b.FFprobe} {
		if _, err := exec.LookPath(name); err != nil {
			logger.Warnf("binary '%s' not found in PATH: %v", name, err)
			status[name] = false
			continue
		}
		logger.Debugf("binary '%s' available", name)
		status[name] = true
	}
	return status
}

// Runner executes an external program and returns what it wrote to stderr
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as child processes and captures their error stream
type ExecRunner struct{}

// Run executes name with args, blocking until it exits. Stdout is discarded.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stderr.Bytes(), fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return stderr.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stderr.Bytes(), nil
}
