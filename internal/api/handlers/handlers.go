package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/gcsuploader"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger is the part of the ledger service the HTTP surface needs.
type Ledger interface {
	AddTransaction(ctx context.Context, username, operation string, amount decimal.Decimal, timestamp, merchant, txType string) (domain.Transaction, error)
	Remove(ctx context.Context, username, timestamp string, user *domain.User) bool
	Read(ctx context.Context, username string) []domain.Transaction
	ReadInPeriod(ctx context.Context, username string, start, end time.Time) []domain.Transaction
	WeeklyExpenses(ctx context.Context, username string, startOfWeek time.Time) []domain.Transaction
	Balance(ctx context.Context, username string) (decimal.Decimal, error)
	Abnormal(ctx context.Context, username string) bool
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(ledger Ledger, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		ledger: ledger,
		log:    log,
	}
}

// ListTransactions handles GET /api/transactions?user=U[&start=T&end=T]
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	username := query.Get("user")
	if username == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user is required")
		return
	}

	startStr, endStr := query.Get("start"), query.Get("end")
	if startStr == "" && endStr == "" {
		middleware.WriteJSON(w, http.StatusOK, listResponse(h.ledger.Read(ctx, username)))
		return
	}
	if startStr == "" || endStr == "" {
		middleware.WriteError(w, http.StatusBadRequest, "start and end must be given together")
		return
	}

	start, err := domain.ParseBound(startStr, false)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid start format")
		return
	}
	end, err := domain.ParseBound(endStr, true)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid end format")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, listResponse(h.ledger.ReadInPeriod(ctx, username, start, end)))
}

type addTransactionRequest struct {
	Username  string          `json:"username"`
	Operation string          `json:"operation"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp string          `json:"timestamp"`
	Merchant  string          `json:"merchant"`
	Type      string          `json:"type"`
}

// AddTransaction handles POST /api/transactions
func (h *TransactionsHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var req addTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	log := logger.FromContextOr(r.Context(), h.log)
	tx, err := h.ledger.AddTransaction(r.Context(), req.Username, req.Operation, req.Amount, req.Timestamp, req.Merchant, req.Type)
	if err != nil {
		if isValidationError(err) {
			log.Info().Err(err).Str("username", req.Username).Msg("Transaction rejected")
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("Failed to add transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to add transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// RemoveTransaction handles DELETE /api/transactions?user=U&timestamp=T
func (h *TransactionsHandler) RemoveTransaction(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	username, timestamp := query.Get("user"), query.Get("timestamp")
	if username == "" || timestamp == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user and timestamp are required")
		return
	}

	user := &domain.User{Username: username}
	if !h.ledger.Remove(r.Context(), username, timestamp, user) {
		middleware.WriteError(w, http.StatusNotFound, "No matching transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"removed":  true,
		"username": username,
		"balance":  user.Balance,
	})
}

// WeeklyExpenses handles GET /api/transactions/weekly?user=U&start=T
func (h *TransactionsHandler) WeeklyExpenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	username := query.Get("user")
	if username == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user is required")
		return
	}

	start, err := domain.ParseBound(query.Get("start"), false)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid start format")
		return
	}

	expenses := h.ledger.WeeklyExpenses(r.Context(), username, start)
	total := decimal.Zero
	for _, tx := range expenses {
		total = total.Add(tx.Amount)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": expenses,
		"count":        len(expenses),
		"total":        total,
	})
}

// BalanceHandler handles balance and anomaly endpoints.
type BalanceHandler struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(ledger Ledger, log zerolog.Logger) *BalanceHandler {
	return &BalanceHandler{
		ledger: ledger,
		log:    log,
	}
}

// GetBalance handles GET /api/balance?user=U
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("user")
	if username == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user is required")
		return
	}

	balance, err := h.ledger.Balance(r.Context(), username)
	if err != nil {
		log := logger.FromContextOr(r.Context(), h.log)
		log.Error().Err(err).Str("username", username).Msg("Failed to compute balance")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute balance")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"username": username,
		"balance":  balance,
	})
}

// GetAnomalies handles GET /api/anomalies?user=U
func (h *BalanceHandler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("user")
	if username == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user is required")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"username": username,
		"abnormal": h.ledger.Abnormal(r.Context(), username),
	})
}

// ErrSourceNotAllowed is returned for import sources outside what the HTTP
// surface may read.
var ErrSourceNotAllowed = errors.New("source_uri must be a gs:// URI or a file under the import directory")

// ImportsHandler handles import job endpoints.
type ImportsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	importDir string
	log       zerolog.Logger
}

// NewImportsHandler creates a new imports handler. Local sources are only
// accepted below importDir; an empty importDir limits imports to gs:// URIs.
func NewImportsHandler(publisher jobs.Publisher, store jobs.JobStore, importDir string, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		publisher: publisher,
		store:     store,
		importDir: importDir,
		log:       log,
	}
}

// resolveSource returns the source a job should read. gs:// URIs pass as is;
// local paths are resolved against the import directory and must stay in it.
func (h *ImportsHandler) resolveSource(source string) (string, error) {
	if strings.HasPrefix(source, "gs://") {
		if _, _, err := gcsuploader.ParseGCSURI(source); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSourceNotAllowed, err)
		}
		return source, nil
	}
	if h.importDir == "" {
		return "", ErrSourceNotAllowed
	}

	dir, err := filepath.Abs(h.importDir)
	if err != nil {
		return "", fmt.Errorf("resolving import directory: %w", err)
	}
	path := source
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrSourceNotAllowed
	}
	return path, nil
}

// EnqueueImport handles POST /api/imports
func (h *ImportsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceURI  string `json:"source_uri"`
		MaxRetries int    `json:"max_retries"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.SourceURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source_uri is required")
		return
	}

	log := logger.FromContextOr(r.Context(), h.log)
	source, err := h.resolveSource(req.SourceURI)
	if err != nil {
		log.Warn().Err(err).Str("source", req.SourceURI).Msg("Import source refused")
		middleware.WriteError(w, http.StatusBadRequest, ErrSourceNotAllowed.Error())
		return
	}

	job := &jobs.ImportJob{
		SourceURI:  source,
		MaxRetries: req.MaxRetries,
	}

	if err := h.publisher.PublishImport(r.Context(), job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("source", source).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"source_uri": job.SourceURI,
		"status":     string(job.Status),
	})
}

// GetImport handles GET /api/imports/{id}
func (h *ImportsHandler) GetImport(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, inmemory.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		log := logger.FromContextOr(r.Context(), h.log)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListImports handles GET /api/imports
func (h *ImportsHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		SourceURI: query.Get("source_uri"),
		Status:    jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		log := logger.FromContextOr(r.Context(), h.log)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

func listResponse(txs []domain.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrEmptyUsername) ||
		errors.Is(err, domain.ErrUnknownOperation) ||
		errors.Is(err, domain.ErrNonPositiveAmount) ||
		errors.Is(err, domain.ErrInvalidTimestamp) ||
		errors.Is(err, domain.ErrLineBreak)
}
