package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// MaxObjectSize bounds how much of an object is read into memory.
const MaxObjectSize = 64 << 20

// ErrObjectTooLarge is returned for objects larger than MaxObjectSize.
var ErrObjectTooLarge = errors.New("object exceeds size limit")

// DownloadFile reads a whole object into memory.
func DownloadFile(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader %s/%s: %w", bucketName, objectName, err)
	}
	defer r.Close()

	if r.Attrs.Size > MaxObjectSize {
		return nil, fmt.Errorf("%w: %s/%s is %d bytes", ErrObjectTooLarge, bucketName, objectName, r.Attrs.Size)
	}

	return readLimited(r, MaxObjectSize)
}

// readLimited reads r fully, failing when it holds more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrObjectTooLarge, limit)
	}
	return data, nil
}

// FetchFromGCS downloads the file bytes from the given GCS URI.
func FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: %w", err)
	}

	data, err := DownloadFile(ctx, bucketName, objectPath)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: %w", err)
	}
	return data, nil
}
