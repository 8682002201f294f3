package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/rs/zerolog"
)

// Importer runs one ledger import.
type Importer interface {
	Import(ctx context.Context, sourceURI, destPath string) (ledger.ImportResult, error)
}

// NewImportHandler returns a JobHandler that runs import jobs against
// importer, always into the importer's own ledger. The job's counters are
// filled in on success. The importer sees a context logger tagged with the
// job ID.
func NewImportHandler(importer Importer, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job Job) error {
		importJob, ok := job.(*ImportJob)
		if !ok {
			return fmt.Errorf("unsupported job type %q", job.GetType())
		}

		jobLog := logger.FromContextOr(ctx, log).With().Str("job_id", importJob.JobID).Logger()
		ctx = logger.WithContext(ctx, jobLog)

		jobLog.Info().
			Str("source", importJob.SourceURI).
			Int("attempt", importJob.RetryCount+1).
			Msg("Processing import job")

		result, err := importer.Import(ctx, importJob.SourceURI, "")
		if err != nil {
			jobLog.Error().Err(err).Msg("Import job failed")
			return err
		}

		importJob.Imported = result.Imported
		importJob.Skipped = result.Skipped
		return nil
	}
}
