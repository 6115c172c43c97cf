package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"automark/watermark"
)

// fakeRunner simulates the transcoder: it writes the last argument when
// output is set and fails with stderr otherwise.
type fakeRunner struct {
	output []byte
	stderr string
	err    error
	wait   bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if f.wait {
		<-ctx.Done()
		return []byte("killed"), ctx.Err()
	}
	if f.err != nil {
		return []byte(f.stderr), f.err
	}
	if f.output != nil {
		if err := os.WriteFile(args[len(args)-1], f.output, 0644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func command(dir string) watermark.Command {
	out := filepath.Join(dir, "clip_marked.mp4")
	return watermark.Command{
		Binary:     "ffmpeg",
		Args:       []string{"-y", "-i", "clip one.mp4", out},
		OutputPath: out,
	}
}

func TestExecuteSuccess(t *testing.T) {
	dir := t.TempDir()
	e := &Executor{Runner: &fakeRunner{output: []byte("video")}}

	rendered := false
	got, err := e.Execute(context.Background(), command(dir), func() { rendered = true })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !rendered {
		t.Error("onRendered not called")
	}
	if got != filepath.Join(dir, "clip_marked.mp4") {
		t.Errorf("output = %q", got)
	}
}

func TestExecuteFailureWritesDiagnostic(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "errors.log")
	e := &Executor{
		Runner:   &fakeRunner{err: errors.New("exit status 1"), stderr: "Unknown encoder 'libx264'\n"},
		ErrorLog: logPath,
	}

	rendered := false
	_, err := e.Execute(context.Background(), command(dir), func() { rendered = true })
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error = %v, want *Failure", err)
	}
	if rendered {
		t.Error("onRendered called for a failed run")
	}
	if !strings.HasPrefix(err.Error(), "ffmpeg failed: Unknown encoder") {
		t.Errorf("message = %q", err.Error())
	}

	data, rerr := os.ReadFile(logPath)
	if rerr != nil {
		t.Fatalf("diagnostic log: %v", rerr)
	}
	log := string(data)
	if !strings.HasPrefix(log, "--- ffmpeg error [") {
		t.Errorf("diagnostic header missing: %s", log)
	}
	if !strings.Contains(log, "cmd: ffmpeg -y -i 'clip one.mp4'") {
		t.Errorf("command line not quoted: %s", log)
	}
	if !strings.Contains(log, "Unknown encoder 'libx264'") {
		t.Errorf("stderr missing: %s", log)
	}

	e.Execute(context.Background(), command(dir), nil)
	data, _ = os.ReadFile(logPath)
	if strings.Count(string(data), "--- ffmpeg error") != 2 {
		t.Error("diagnostics must be appended")
	}
}

func TestExecuteEmptyStderrUsesError(t *testing.T) {
	e := &Executor{Runner: &fakeRunner{err: errors.New("exec: \"ffmpeg\": executable file not found")}}
	_, err := e.Execute(context.Background(), command(t.TempDir()), nil)
	if err == nil || !strings.Contains(err.Error(), "executable file not found") {
		t.Errorf("error = %v", err)
	}
}

func TestExecuteMissingOutput(t *testing.T) {
	e := &Executor{Runner: &fakeRunner{}}
	rendered := false
	_, err := e.Execute(context.Background(), command(t.TempDir()), func() { rendered = true })
	if !errors.Is(err, ErrOutputMissing) {
		t.Fatalf("error = %v, want ErrOutputMissing", err)
	}
	if !rendered {
		t.Error("onRendered should run before verification")
	}
}

func TestExecuteEmptyOutput(t *testing.T) {
	e := &Executor{Runner: &fakeRunner{output: []byte{}}}
	_, err := e.Execute(context.Background(), command(t.TempDir()), nil)
	if !errors.Is(err, ErrOutputMissing) {
		t.Fatalf("error = %v, want ErrOutputMissing", err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := &Executor{Runner: &fakeRunner{wait: true}, Timeout: 20 * time.Millisecond}
	_, err := e.Execute(context.Background(), command(t.TempDir()), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	if err := Verify(""); !errors.Is(err, ErrOutputMissing) {
		t.Error("empty path accepted")
	}
	if err := Verify(dir); !errors.Is(err, ErrOutputMissing) {
		t.Error("directory accepted")
	}
	file := filepath.Join(dir, "ok.mp4")
	os.WriteFile(file, []byte("data"), 0644)
	if err := Verify(file); err != nil {
		t.Errorf("Verify: %v", err)
	}
}
