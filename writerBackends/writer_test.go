package writerbackends

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteOutputDirectServe(t *testing.T) {
	base := t.TempDir()
	info := map[string]string{"baseDir": base, "folder": "brand/2024", "filename": "clip_marked.mp4"}

	if err := WriteOutput(context.Background(), info, strings.NewReader("video"), "directServe"); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(base, "brand", "2024", "clip_marked.mp4"))
	if err != nil || string(data) != "video" {
		t.Errorf("served file = %q, %v", data, err)
	}

	entries, _ := os.ReadDir(filepath.Join(base, "brand", "2024"))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestDirectServeStaysInBaseDir(t *testing.T) {
	base := t.TempDir()
	info := map[string]string{"baseDir": base, "folder": "../../escape", "filename": "../x.mp4"}
	if err := UploadToDirectServe(context.Background(), info, strings.NewReader("v")); err != nil {
		t.Fatalf("UploadToDirectServe: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "escape", "x.mp4")); err != nil {
		t.Errorf("file not confined to base dir: %v", err)
	}
}

func TestDirectServeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	info := map[string]string{"baseDir": t.TempDir(), "filename": "x.mp4"}
	if err := UploadToDirectServe(ctx, info, strings.NewReader("v")); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestWriteOutputUnknownBackend(t *testing.T) {
	err := WriteOutput(context.Background(), nil, strings.NewReader(""), "tape")
	if err == nil || !strings.Contains(err.Error(), "unknown backend type") {
		t.Errorf("error = %v", err)
	}
}

func TestBackendsRequireKeys(t *testing.T) {
	for _, backend := range []string{"s3", "gcs", "sftp", "minio", "directServe"} {
		if err := WriteOutput(context.Background(), map[string]string{}, strings.NewReader(""), backend); err == nil {
			t.Errorf("%s accepted empty access info", backend)
		}
	}
}

func TestGCSCredentials(t *testing.T) {
	raw := `{"type":"service_account"}`
	if got := gcsCredentials(base64.StdEncoding.EncodeToString([]byte(raw))); string(got) != raw {
		t.Errorf("base64 credentials decoded to %q", got)
	}
	if got := gcsCredentials(raw); string(got) != raw {
		t.Errorf("raw credentials = %q", got)
	}
	if gcsCredentials("") != nil {
		t.Error("empty credentials should select application defaults")
	}
}

func TestReaderSizeAndContentType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	os.WriteFile(path, []byte("12345"), 0644)
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if n := readerSize(f); n != 5 {
		t.Errorf("file size = %d", n)
	}
	if n := readerSize(strings.NewReader("abc")); n != -1 {
		t.Errorf("stream size = %d", n)
	}
	if ct := contentType("clip.mp4"); ct != "video/mp4" {
		t.Errorf("content type = %q", ct)
	}
	if ct := contentType("clip.unknownext"); ct != "application/octet-stream" {
		t.Errorf("fallback content type = %q", ct)
	}
}
