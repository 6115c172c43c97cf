// Package writerbackends publishes finished videos to the place a registered
// destination points at. Every backend takes the same accessInfo map: the
// destination's settings plus per-file keys filled in by the caller.
package writerbackends

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// WriteOutput streams reader to the backend named by backendType
func WriteOutput(ctx context.Context, accessInfo map[string]string, reader io.Reader, backendType string) error {
	var err error
	switch backendType {
	case "directServe":
		err = UploadToDirectServe(ctx, accessInfo, reader)
	case "s3":
		err = UploadToS3WithCreds(ctx, accessInfo, reader)
	case "gcs":
		err = UploadToGCSWithJSON(ctx, accessInfo, reader)
	case "sftp":
		err = UploadToSFTPWithCreds(ctx, accessInfo, reader)
	case "minio":
		err = UploadToMinio(ctx, accessInfo, reader)
	default:
		return fmt.Errorf("unknown backend type: %s", backendType)
	}
	if err != nil {
		return fmt.Errorf("%s upload: %w", backendType, err)
	}
	return nil
}

// not every host ships a mime.types with video entries
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

func contentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// readerSize returns the byte length when reader is a regular file, -1 otherwise.
func readerSize(reader io.Reader) int64 {
	f, ok := reader.(*os.File)
	if !ok {
		return -1
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return -1
	}
	return info.Size()
}
