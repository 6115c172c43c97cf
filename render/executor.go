package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"automark/encoder"
	"automark/logger"
	"automark/watermark"

	"github.com/kballard/go-shellquote"
)

// ErrOutputMissing is returned when the transcoder exits cleanly but the
// expected artifact is absent or empty.
var ErrOutputMissing = errors.New("output file not found")

// Failure is a transcoder run that exited unsuccessfully
type Failure struct {
	Command string
	Stderr  string
	Err     error
}

func (f *Failure) Error() string {
	detail := strings.TrimSpace(f.Stderr)
	if detail == "" {
		detail = f.Err.Error()
	}
	return fmt.Sprintf("ffmpeg failed: %s", detail)
}

func (f *Failure) Unwrap() error { return f.Err }

// Executor runs synthesized commands to completion
type Executor struct {
	Runner   encoder.Runner
	ErrorLog string        // diagnostics are appended here when set
	Timeout  time.Duration // zero waits indefinitely

	logMu sync.Mutex
}

// Execute blocks until the transcoder exits. onRendered is invoked once the
// process has succeeded and before the output is verified.
func (e *Executor) Execute(ctx context.Context, cmd watermark.Command, onRendered func()) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	runner := e.Runner
	if runner == nil {
		runner = encoder.ExecRunner{}
	}

	started := time.Now()
	stderr, err := runner.Run(ctx, cmd.Binary, cmd.Args...)
	if err != nil {
		f := &Failure{
			Command: shellquote.Join(append([]string{cmd.Binary}, cmd.Args...)...),
			Stderr:  string(stderr),
			Err:     err,
		}
		e.writeDiagnostic(f)
		return "", f
	}
	logger.Debugf("Render of %s finished in %s", filepath.Base(cmd.OutputPath), time.Since(started).Round(time.Millisecond))

	if onRendered != nil {
		onRendered()
	}

	if err := Verify(cmd.OutputPath); err != nil {
		return "", err
	}
	return cmd.OutputPath, nil
}

// Verify checks that path exists and is a non-empty regular file.
func Verify(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrOutputMissing)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrOutputMissing, path)
	}
	return nil
}

func (e *Executor) writeDiagnostic(f *Failure) {
	if e.ErrorLog == "" {
		return
	}
	e.logMu.Lock()
	defer e.logMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.ErrorLog), 0755); err != nil {
		logger.Warnf("Failed to create diagnostic log directory: %v", err)
		return
	}
	file, err := os.OpenFile(e.ErrorLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Warnf("Failed to open diagnostic log: %v", err)
		return
	}
	defer file.Close()

	stderr := f.Stderr
	if strings.TrimSpace(stderr) == "" {
		stderr = f.Err.Error()
	}
	fmt.Fprintf(file, "--- ffmpeg error [%s] ---\ncmd: %s\n%s\n", time.Now().Format(time.RFC3339), f.Command, stderr)
}
