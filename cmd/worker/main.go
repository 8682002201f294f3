package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/gcsuploader"
	"github.com/dvloznov/finance-ledger/internal/infra/csvstore"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/rs/zerolog"
)

// pollInterval is how often the job store is checked for finished jobs.
const pollInterval = 100 * time.Millisecond

// worker imports a batch of sources through the job queue, so that failed
// sources are retried like API-submitted imports.
func main() {
	var (
		configPath = flag.String("config", "", "Path to a YAML config file")
		ledgerPath = flag.String("ledger", "", "Ledger file (overrides ledger.path)")
		retries    = flag.Int("retries", jobs.DefaultMaxRetries, "Retries per source; negative disables retries")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: worker [options] SOURCE...")
		fmt.Fprintln(os.Stderr, "Each SOURCE is a local ledger-format file or a gs://bucket/object URI.")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *ledgerPath != "" {
		cfg.Ledger.Path = *ledgerPath
	}

	log := logger.NewWithLevel(cfg.Log.Level)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	store := csvstore.NewStore(cfg.Ledger.Path, log)
	service := ledger.NewService(store, gcsuploader.NewGCSStorageService(), log)

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(cfg.Jobs.Buffer, cfg.Jobs.Workers, jobStore)

	results, err := runBatch(ctx, queue, jobStore, service, flag.Args(), *retries, log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if stopErr := queue.Stop(shutdownCtx); stopErr != nil {
		log.Error().Err(stopErr).Msg("Error during graceful shutdown")
	}

	printSummary(os.Stdout, results)

	if err != nil {
		log.Fatal().Err(err).Msg("Batch import interrupted")
	}
	for _, job := range results {
		if job.Status != jobs.JobStatusCompleted {
			os.Exit(1)
		}
	}
}

// runBatch publishes one import job per source and waits until every job
// has completed or failed. Jobs are returned in source order.
func runBatch(ctx context.Context, queue *inmemory.Queue, store jobs.JobStore, importer jobs.Importer, sources []string, retries int, log zerolog.Logger) ([]*jobs.ImportJob, error) {
	if err := queue.Start(ctx, jobs.NewImportHandler(importer, log)); err != nil {
		return nil, fmt.Errorf("start queue: %w", err)
	}

	maxRetries := retries
	if retries == 0 {
		maxRetries = -1
	}

	ids := make([]string, 0, len(sources))
	for _, source := range sources {
		job := &jobs.ImportJob{SourceURI: source, MaxRetries: maxRetries}
		if err := queue.PublishImport(ctx, job); err != nil {
			return nil, fmt.Errorf("publish %s: %w", source, err)
		}
		log.Info().Str("job_id", job.JobID).Str("source", source).Msg("Import job enqueued")
		ids = append(ids, job.JobID)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		results, done, err := collect(ctx, store, ids)
		if err != nil {
			return nil, err
		}
		if done {
			return results, nil
		}

		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-ticker.C:
		}
	}
}

func collect(ctx context.Context, store jobs.JobStore, ids []string) ([]*jobs.ImportJob, bool, error) {
	results := make([]*jobs.ImportJob, 0, len(ids))
	done := true
	for _, id := range ids {
		job, err := store.GetJob(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if job.Status != jobs.JobStatusCompleted && job.Status != jobs.JobStatusFailed {
			done = false
		}
		results = append(results, job)
	}
	return results, done, nil
}

func printSummary(w io.Writer, results []*jobs.ImportJob) {
	imported, skipped, failed := 0, 0, 0
	for _, job := range results {
		switch job.Status {
		case jobs.JobStatusCompleted:
			fmt.Fprintf(w, "OK      %s: %d imported, %d skipped\n", job.SourceURI, job.Imported, job.Skipped)
			imported += job.Imported
			skipped += job.Skipped
		default:
			fmt.Fprintf(w, "FAILED  %s (%s, %d retries): %s\n", job.SourceURI, job.Status, job.RetryCount, job.Error)
			failed++
		}
	}
	fmt.Fprintf(w, "%d source(s): %d imported, %d skipped, %d failed\n", len(results), imported, skipped, failed)
}
