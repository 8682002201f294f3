package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/infra/csvstore"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
)

type testServer struct {
	handler    http.Handler
	ledgerPath string
	importDir  string
	jobStore   *inmemory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewWithWriter(&bytes.Buffer{})
	path := filepath.Join(t.TempDir(), "transactions.csv")
	service := ledger.NewService(csvstore.NewStore(path, log), nil, log)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(8, 1, jobStore)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		queue.Stop(context.Background())
		cancel()
	})
	if err := queue.Start(ctx, jobs.NewImportHandler(service, log)); err != nil {
		t.Fatalf("start queue: %v", err)
	}

	importDir := t.TempDir()
	return &testServer{
		handler:    newRouter(service, queue, jobStore, importDir, log),
		ledgerPath: path,
		importDir:  importDir,
		jobStore:   jobStore,
	}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_TransactionLifecycle(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{
		`{"username":"alice","operation":"Income","amount":"1000","timestamp":"2024/05/01 09:00"}`,
		`{"username":"alice","operation":"Expense","amount":"120.25","timestamp":"2024/05/14 18:30","merchant":"Grocer"}`,
	} {
		if rec := s.do(t, http.MethodPost, "/api/transactions", body); rec.Code != http.StatusCreated {
			t.Fatalf("POST status = %d (body %s)", rec.Code, rec.Body.String())
		}
	}

	rec := s.do(t, http.MethodGet, "/api/balance?user=alice", "")
	if !strings.Contains(rec.Body.String(), `"balance":"879.75"`) {
		t.Errorf("balance body = %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/transactions/weekly?user=alice&start=2024-05-13", "")
	if !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("weekly body = %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodDelete, "/api/transactions?user=alice&timestamp=2024%2F05%2F14+18%3A30", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"balance":"1000"`) {
		t.Errorf("DELETE status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/transactions?user=alice", "")
	if !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("list body = %s", rec.Body.String())
	}
}

func TestRouter_MethodsAndMiddleware(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodPut, "/api/transactions", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/balance", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/anomalies", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/transactions/weekly", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/imports", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/imports/abc", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/imports/", http.StatusBadRequest},
		{http.MethodOptions, "/api/transactions", http.StatusNoContent},
		{http.MethodGet, "/health", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.target, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if rec.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request ID header")
			}
		})
	}
}

func TestRouter_ImportJob(t *testing.T) {
	s := newTestServer(t)

	source := filepath.Join(s.importDir, "import.csv")
	content := csvstore.Header + "\n" +
		"bob,Deposit,300,2024/05/01 10:00,,,,,,,,,\n" +
		"bob,Refund,5,2024/05/02 10:00,,,,,,,,,\n" +
		"bob,Transfer In,900,2024/05/03 10:00,,Transfer,,,,,,,\n"
	if err := os.WriteFile(source, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"source_uri": "import.csv"})
	rec := s.do(t, http.MethodPost, "/api/imports", string(body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/imports status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var enqueued map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&enqueued); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var job jobs.ImportJob
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec = s.do(t, http.MethodGet, "/api/imports/"+enqueued["job_id"], "")
		if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.Status == jobs.JobStatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != jobs.JobStatusCompleted {
		t.Fatalf("job did not complete: %+v", job)
	}
	if job.Imported != 2 || job.Skipped != 1 {
		t.Errorf("imported/skipped = %d/%d, want 2/1", job.Imported, job.Skipped)
	}

	rec = s.do(t, http.MethodGet, "/api/anomalies?user=bob", "")
	if !strings.Contains(rec.Body.String(), `"abnormal":true`) {
		t.Errorf("anomalies body = %s", rec.Body.String())
	}
}

func TestRouter_ImportJob_RefusesSourcesOutsideImportDir(t *testing.T) {
	s := newTestServer(t)

	outside := filepath.Join(t.TempDir(), "elsewhere.csv")
	if err := os.WriteFile(outside, []byte(csvstore.Header+"\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	for _, source := range []string{outside, "../elsewhere.csv", "/etc/passwd", "gs://bucket-only"} {
		body, _ := json.Marshal(map[string]string{"source_uri": source})
		rec := s.do(t, http.MethodPost, "/api/imports", string(body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("source %q: status = %d, want 400", source, rec.Code)
		}
	}

	rec := s.do(t, http.MethodGet, "/api/imports", "")
	if !strings.Contains(rec.Body.String(), `"count":0`) {
		t.Errorf("refused sources created jobs: %s", rec.Body.String())
	}
}
