package gcsuploader

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/gcs"
)

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// UploadFile delegates to the package-level UploadFile.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFile(ctx, bucketName, objectName, filePath)
}

// FetchFromGCS delegates to the package-level FetchFromGCS.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}

// BackupLedger uploads ledgerPath under BackupObjectName and returns its gs:// URI.
func (s *GCSStorageService) BackupLedger(ctx context.Context, bucketName, ledgerPath string, at time.Time) (string, error) {
	objectName := BackupObjectName(ledgerPath, at)
	if err := UploadFile(ctx, bucketName, objectName, ledgerPath); err != nil {
		return "", fmt.Errorf("BackupLedger: %w", err)
	}
	return BuildGCSURI(bucketName, objectName), nil
}

var _ gcs.StorageService = (*GCSStorageService)(nil)
