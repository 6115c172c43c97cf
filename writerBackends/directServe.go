package writerbackends

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"automark/logger"
)

// UploadToDirectServe copies the video below baseDir/folder, which the HTTP
// server exposes as static files. folder and filename may not climb out of baseDir.
func UploadToDirectServe(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	baseDir := accessInfo["baseDir"]
	folder := accessInfo["folder"]
	filename := accessInfo["filename"]
	if baseDir == "" || filename == "" {
		return fmt.Errorf("missing required accessInfo keys: baseDir, filename")
	}

	fullDir := filepath.Join(baseDir, filepath.Clean("/"+folder))
	fullPath := filepath.Join(fullDir, filepath.Base(filename))
	if rel, err := filepath.Rel(baseDir, fullPath); err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %s escapes serve directory", fullPath)
	}

	if err := os.MkdirAll(fullDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// write next to the target so a half-written file is never served
	tmp, err := os.CreateTemp(fullDir, ".publish-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", fullDir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: reader}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to move file into %s: %w", fullPath, err)
	}

	logger.Infof("Saved '%s' to '%s'", filename, fullPath)
	return nil
}

// ctxReader stops a local copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
