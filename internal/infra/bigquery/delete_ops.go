package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// DeleteExportWithClient deletes every row written by one export run and
// returns the number of rows removed. Rows still in the streaming buffer
// cannot be deleted by DML, so only older exports should be targeted.
func DeleteExportWithClient(ctx context.Context, client *bigquery.Client, datasetID, tableID, exportID string) (int64, error) {
	if exportID == "" {
		return 0, fmt.Errorf("DeleteExport: export ID is required")
	}

	q := client.Query(fmt.Sprintf(`
		DELETE FROM `+"`%s.%s.%s`"+`
		WHERE export_id = @export_id
	`, client.Project(), datasetID, tableID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "export_id", Value: exportID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("DeleteExport: run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("DeleteExport: wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("DeleteExport: job error: %w", err)
	}

	var affected int64
	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			affected = qs.NumDMLAffectedRows
		}
	}

	return affected, nil
}
