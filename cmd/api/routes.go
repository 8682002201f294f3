package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/handlers"
	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/rs/zerolog"
)

// newRouter registers every endpoint and wraps the mux in the middleware chain.
// Import jobs may read gs:// objects and files below importDir.
func newRouter(ledger handlers.Ledger, publisher jobs.Publisher, store jobs.JobStore, importDir string, log zerolog.Logger) http.Handler {
	transactionsHandler := handlers.NewTransactionsHandler(ledger, log)
	balanceHandler := handlers.NewBalanceHandler(ledger, log)
	importsHandler := handlers.NewImportsHandler(publisher, store, importDir, log)

	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.ListTransactions(w, r)
		case http.MethodPost:
			transactionsHandler.AddTransaction(w, r)
		case http.MethodDelete:
			transactionsHandler.RemoveTransaction(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/weekly", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.WeeklyExpenses(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			balanceHandler.GetBalance(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/anomalies", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			balanceHandler.GetAnomalies(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Import job endpoints
	mux.HandleFunc("/api/imports", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			importsHandler.ListImports(w, r)
		case http.MethodPost:
			importsHandler.EnqueueImport(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/imports/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		importsHandler.GetImport(w, r, jobID)
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)
}
