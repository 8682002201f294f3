package gcs

import (
	"context"
	"time"
)

// StorageService provides an interface for cloud storage operations.
// The ledger uses it to pull import sources and push backups.
type StorageService interface {
	// UploadFile uploads a local file to a storage bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// BackupLedger uploads the ledger file and returns the resulting URI.
	BackupLedger(ctx context.Context, bucketName, ledgerPath string, at time.Time) (string, error)
}
