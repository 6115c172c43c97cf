package writerbackends

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"automark/logger"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// UploadToMinio puts the video into a MinIO (or any S3 API) bucket.
// Settings: endpoint, accessKey, secretKey, bucket, optional region and useSSL.
func UploadToMinio(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	endpoint := accessInfo["endpoint"]
	bucket := accessInfo["bucket"]
	object := accessInfo["object"]
	if endpoint == "" || bucket == "" || object == "" {
		return fmt.Errorf("missing required accessInfo keys: endpoint, bucket, object")
	}

	secure, _ := strconv.ParseBool(accessInfo["useSSL"])
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(accessInfo["accessKey"], accessInfo["secretKey"], ""),
		Secure: secure,
		Region: accessInfo["region"],
	})
	if err != nil {
		return fmt.Errorf("minio connection: %w", err)
	}

	info, err := client.PutObject(ctx, bucket, object, reader, readerSize(reader), minio.PutObjectOptions{
		ContentType: contentType(object),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, object, err)
	}

	logger.Infof("Uploaded object '%s' (%d bytes) to minio bucket '%s'", object, info.Size, bucket)
	return nil
}
