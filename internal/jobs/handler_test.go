package jobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
)

type fakeImporter struct {
	result ledger.ImportResult
	err    error
	source string
	dest   string
}

func (f *fakeImporter) Import(ctx context.Context, sourceURI, destPath string) (ledger.ImportResult, error) {
	log := logger.FromContext(ctx)
	log.Info().Msg("importing")
	f.source = sourceURI
	f.dest = destPath
	return f.result, f.err
}

type otherJob struct{}

func (otherJob) GetID() string        { return "x" }
func (otherJob) GetType() JobType     { return "other" }
func (otherJob) GetStatus() JobStatus { return JobStatusPending }

func TestImportHandler_FillsCounters(t *testing.T) {
	importer := &fakeImporter{result: ledger.ImportResult{Imported: 4, Skipped: 1}}
	handler := NewImportHandler(importer, logger.NewWithWriter(&bytes.Buffer{}))

	job := &ImportJob{JobID: "j", SourceURI: "gs://bucket/in.csv"}
	if err := handler(context.Background(), job); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	if job.Imported != 4 || job.Skipped != 1 {
		t.Errorf("counters = %d/%d, want 4/1", job.Imported, job.Skipped)
	}
	if importer.source != "gs://bucket/in.csv" || importer.dest != "" {
		t.Errorf("Import called with %q, %q", importer.source, importer.dest)
	}
}

func TestImportHandler_PropagatesError(t *testing.T) {
	want := errors.New("bucket unreachable")
	handler := NewImportHandler(&fakeImporter{err: want}, logger.NewWithWriter(&bytes.Buffer{}))

	if err := handler(context.Background(), &ImportJob{JobID: "j"}); !errors.Is(err, want) {
		t.Errorf("handler() error = %v, want %v", err, want)
	}
}

func TestImportHandler_RejectsOtherJobs(t *testing.T) {
	handler := NewImportHandler(&fakeImporter{}, logger.NewWithWriter(&bytes.Buffer{}))
	if err := handler(context.Background(), otherJob{}); err == nil {
		t.Error("expected error for unsupported job type")
	}
}

func TestImportHandler_TagsContextLoggerWithJobID(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := NewImportHandler(&fakeImporter{}, logger.NewWithWriter(&bytes.Buffer{}))
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	if err := handler(ctx, &ImportJob{JobID: "job-42", SourceURI: "in.csv"}); err != nil {
		t.Fatalf("handler() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %q", buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, `"job_id":"job-42"`) {
			t.Errorf("log line without job ID: %s", line)
		}
	}
	if !strings.Contains(lines[1], "importing") {
		t.Errorf("importer did not log through the job logger: %s", lines[1])
	}
}
