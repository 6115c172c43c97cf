package writerbackends

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"automark/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsCredentials accepts the service account key raw or base64 encoded.
// An empty value means application default credentials.
func gcsCredentials(raw string) []byte {
	if raw == "" {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded
	}
	return []byte(raw)
}

// UploadToGCSWithJSON streams the video into bucket/object on Google Cloud Storage.
func UploadToGCSWithJSON(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	bucketName := accessInfo["bucket"]
	objectName := accessInfo["object"]
	if bucketName == "" || objectName == "" {
		return fmt.Errorf("missing required accessInfo keys: bucket, object")
	}

	var opts []option.ClientOption
	if creds := gcsCredentials(accessInfo["credentialsJSON"]); creds != nil {
		opts = append(opts, option.WithCredentialsJSON(creds))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType(objectName)
	if _, err = io.Copy(wc, reader); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Infof("Uploaded object '%s' to gs://%s", objectName, bucketName)
	return nil
}
