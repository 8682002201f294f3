package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// LedgerExporter mirrors ledger records into an analytics table.
type LedgerExporter interface {
	InsertLedgerRows(ctx context.Context, rows []*LedgerRow) error
	QueryLedgerRowsByUser(ctx context.Context, username string) ([]*LedgerRow, error)
	DeleteExport(ctx context.Context, exportID string) (int64, error)
	Close() error
}

// BigQueryLedgerRepository is the concrete implementation of LedgerExporter
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryLedgerRepository struct {
	client    *bigquery.Client
	datasetID string
	tableID   string
}

// NewBigQueryLedgerRepository creates a repository writing to
// projectID.datasetID.tableID.
func NewBigQueryLedgerRepository(ctx context.Context, projectID, datasetID, tableID string) (*BigQueryLedgerRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: project ID is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: creating client: %w", err)
	}
	return &BigQueryLedgerRepository{
		client:    client,
		datasetID: datasetID,
		tableID:   tableID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryLedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertLedgerRows delegates to InsertLedgerRowsWithClient with the shared client.
func (r *BigQueryLedgerRepository) InsertLedgerRows(ctx context.Context, rows []*LedgerRow) error {
	return InsertLedgerRowsWithClient(ctx, r.client, r.datasetID, r.tableID, rows)
}

// QueryLedgerRowsByUser delegates to QueryLedgerRowsByUserWithClient with the shared client.
func (r *BigQueryLedgerRepository) QueryLedgerRowsByUser(ctx context.Context, username string) ([]*LedgerRow, error) {
	return QueryLedgerRowsByUserWithClient(ctx, r.client, r.datasetID, r.tableID, username)
}

// DeleteExport delegates to DeleteExportWithClient with the shared client.
func (r *BigQueryLedgerRepository) DeleteExport(ctx context.Context, exportID string) (int64, error) {
	return DeleteExportWithClient(ctx, r.client, r.datasetID, r.tableID, exportID)
}

// Ensure BigQueryLedgerRepository implements LedgerExporter.
var _ LedgerExporter = (*BigQueryLedgerRepository)(nil)
