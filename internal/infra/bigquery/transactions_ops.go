package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// InsertLedgerRowsWithClient streams rows into dataset.table using the
// provided BigQuery client.
func InsertLedgerRowsWithClient(ctx context.Context, client *bigquery.Client, datasetID, tableID string, rows []*LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(tableID).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertLedgerRows: inserting rows: %w", err)
	}

	return nil
}

// QueryLedgerRowsByUserWithClient reads back the exported rows of one user,
// ordered by booking time and export time.
func QueryLedgerRowsByUserWithClient(ctx context.Context, client *bigquery.Client, datasetID, tableID, username string) ([]*LedgerRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			export_id,
			account_username,
			operation,
			amount,
			direction,
			booked_at,
			merchant,
			type,
			remark,
			category,
			payment_method,
			location,
			tag,
			attachment,
			recurrence,
			exported_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE account_username = @username
		ORDER BY booked_at, exported_ts
	`, client.Project(), datasetID, tableID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "username", Value: username},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryLedgerRowsByUser: query read: %w", err)
	}

	var rows []*LedgerRow
	for {
		var r LedgerRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryLedgerRowsByUser: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// ExportResult describes one export run.
type ExportResult struct {
	ExportID string
	Exported int
	Skipped  int
	// Replaced counts rows of the previous export removed by ReplaceExport.
	Replaced int64
}

// ExportTransactions maps txs to rows under a fresh export ID and hands them
// to the exporter in one batch.
func ExportTransactions(ctx context.Context, exporter LedgerExporter, txs []domain.Transaction, now time.Time) (ExportResult, error) {
	exportID := uuid.NewString()
	rows, skipped := ToLedgerRows(exportID, now, txs)

	if err := exporter.InsertLedgerRows(ctx, rows); err != nil {
		return ExportResult{}, fmt.Errorf("ExportTransactions: %w", err)
	}

	return ExportResult{ExportID: exportID, Exported: len(rows), Skipped: skipped}, nil
}

// ReplaceExport exports txs and then deletes the rows of previousExportID,
// so the table holds one copy of the ledger. The old rows are kept when the
// new export fails.
func ReplaceExport(ctx context.Context, exporter LedgerExporter, txs []domain.Transaction, now time.Time, previousExportID string) (ExportResult, error) {
	res, err := ExportTransactions(ctx, exporter, txs, now)
	if err != nil {
		return ExportResult{}, err
	}

	replaced, err := exporter.DeleteExport(ctx, previousExportID)
	if err != nil {
		return res, fmt.Errorf("ReplaceExport: export %s written, removing %s: %w", res.ExportID, previousExportID, err)
	}
	res.Replaced = replaced

	return res, nil
}
