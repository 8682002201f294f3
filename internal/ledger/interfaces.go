package ledger

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// Repository is the transaction persistence the ledger works on.
// csvstore.Store is the production implementation.
type Repository interface {
	ReadAll(ctx context.Context) ([]domain.Transaction, error)
	ReadByUser(ctx context.Context, username string) ([]domain.Transaction, error)
	Append(ctx context.Context, tx domain.Transaction) error
	AppendAll(ctx context.Context, txs []domain.Transaction) error
	RemoveByUserAndTimestamp(ctx context.Context, username, timestamp string) (int, error)
}

// SourceFetcher downloads import sources that live in cloud storage.
// This is a minimal slice of gcs.StorageService.
type SourceFetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}
