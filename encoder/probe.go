package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeError reports why a video's height could not be determined
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// FFprobe reads stream geometry with the ffprobe binary
type FFprobe struct {
	Path string
}

// ProbeHeight returns the pixel height of the first video stream.
func (p FFprobe) ProbeHeight(ctx context.Context, path string) (int, error) {
	bin := p.Path
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=height",
		"-of", "csv=p=0",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))}
	}
	return parseHeight(path, stdout.String())
}

func parseHeight(path, out string) (int, error) {
	// some containers report the height once per program, keep the first line
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.TrimSuffix(line, ",")
	h, err := strconv.Atoi(line)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("failed to parse ffprobe output %q: %w", out, err)}
	}
	if h <= 0 {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("non-positive height %d", h)}
	}
	return h, nil
}
