package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/csvstore"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service is the transaction controller: it validates requests, runs the
// queries over the repository and keeps user balances consistent after
// mutations. Read paths degrade to empty results on storage errors; the
// errors are logged, through the context's logger when it carries one.
type Service struct {
	repo    Repository
	fetcher SourceFetcher
	log     zerolog.Logger
}

// NewService creates a Service over repo. fetcher may be nil, in which case
// gs:// imports are rejected.
func NewService(repo Repository, fetcher SourceFetcher, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		fetcher: fetcher,
		log:     log,
	}
}

// AddTransaction validates and appends one record built from an add request.
func (s *Service) AddTransaction(ctx context.Context, username, operation string, amount decimal.Decimal, timestamp, merchant, txType string) (domain.Transaction, error) {
	tx, err := NewTransaction(username, operation, amount, timestamp, merchant, txType)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := s.repo.Append(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}
	return tx, nil
}

// Add is AddTransaction reduced to accepted/rejected. Rejections are logged
// with their reason.
func (s *Service) Add(ctx context.Context, username, operation string, amount decimal.Decimal, timestamp, merchant, txType string) bool {
	if _, err := s.AddTransaction(ctx, username, operation, amount, timestamp, merchant, txType); err != nil {
		log := s.logFor(ctx)
		log.Info().
			Err(err).
			Str("username", username).
			Str("operation", operation).
			Msg("Transaction rejected")
		return false
	}
	return true
}

// Remove deletes the user's records stamped exactly timestamp. When
// something was removed and user is non-nil, the user's balance is
// recomputed from the remaining records.
func (s *Service) Remove(ctx context.Context, username, timestamp string, user *domain.User) bool {
	log := s.logFor(ctx)
	removed, err := s.repo.RemoveByUserAndTimestamp(ctx, username, timestamp)
	if err != nil {
		log.Error().Err(err).Str("username", username).Str("timestamp", timestamp).Msg("Failed to remove transaction")
		return false
	}
	if removed == 0 {
		return false
	}

	if user != nil {
		balance, err := s.Balance(ctx, username)
		if err != nil {
			log.Error().Err(err).Str("username", username).Msg("Failed to recompute balance")
		} else {
			user.Balance = balance
		}
		log.Info().
			Str("username", username).
			Int("removed", removed).
			Str("balance", user.Balance.String()).
			Msg("Transaction removed, balance recomputed")
	}
	return true
}

// Read returns the user's records in file order, or an empty list when the
// ledger cannot be read.
func (s *Service) Read(ctx context.Context, username string) []domain.Transaction {
	txs, err := s.repo.ReadByUser(ctx, username)
	if err != nil {
		log := s.logFor(ctx)
		log.Error().Err(err).Str("username", username).Msg("Error reading transactions")
		return []domain.Transaction{}
	}
	return txs
}

// ReadAll returns every record in the ledger.
func (s *Service) ReadAll(ctx context.Context) []domain.Transaction {
	txs, err := s.repo.ReadAll(ctx)
	if err != nil {
		log := s.logFor(ctx)
		log.Error().Err(err).Msg("Error reading transactions")
		return []domain.Transaction{}
	}
	return txs
}

// ReadByUser is Read for a user entity; a nil user has no transactions.
func (s *Service) ReadByUser(ctx context.Context, user *domain.User) []domain.Transaction {
	if user == nil {
		return []domain.Transaction{}
	}
	return s.Read(ctx, user.Username)
}

// ReadInPeriod returns the user's records with start <= timestamp <= end.
func (s *Service) ReadInPeriod(ctx context.Context, username string, start, end time.Time) []domain.Transaction {
	return FilterPeriod(s.logFor(ctx), s.Read(ctx, username), start, end)
}

// WeeklyExpenses returns the user's expenses in [startOfWeek, startOfWeek+7d).
func (s *Service) WeeklyExpenses(ctx context.Context, username string, startOfWeek time.Time) []domain.Transaction {
	return FilterWeeklyExpenses(s.logFor(ctx), s.Read(ctx, username), startOfWeek)
}

// Balance folds all of the user's records into a signed balance.
func (s *Service) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	txs, err := s.repo.ReadByUser(ctx, username)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	return CalculateBalance(txs), nil
}

// HasAbnormalTransactions runs the anomaly check over txs.
func (s *Service) HasAbnormalTransactions(username string, txs []domain.Transaction) bool {
	return HasAbnormalTransactions(username, txs)
}

// Abnormal loads the user's records and runs the anomaly check.
func (s *Service) Abnormal(ctx context.Context, username string) bool {
	return HasAbnormalTransactions(username, s.Read(ctx, username))
}

// Import appends the valid rows of sourceURI (a local path or gs:// URI) to
// the ledger at destPath, or to the service's own ledger when destPath is
// empty. Rows are written in one batch.
func (s *Service) Import(ctx context.Context, sourceURI, destPath string) (ImportResult, error) {
	src, err := s.openSource(ctx, sourceURI)
	if err != nil {
		return ImportResult{}, fmt.Errorf("Import: open source %q: %w", sourceURI, err)
	}
	defer src.Close()

	log := s.logFor(ctx)
	rows, skipped, err := ParseImportRows(log, src)
	if err != nil {
		return ImportResult{}, fmt.Errorf("Import: %w", err)
	}

	dest := s.destination(destPath)
	if err := dest.AppendAll(ctx, rows); err != nil {
		return ImportResult{}, fmt.Errorf("Import: %w", err)
	}

	log.Info().
		Str("source", sourceURI).
		Int("imported", len(rows)).
		Int("skipped", skipped).
		Msg("Import completed")

	return ImportResult{Imported: len(rows), Skipped: skipped}, nil
}

func (s *Service) logFor(ctx context.Context) zerolog.Logger {
	return logger.FromContextOr(ctx, s.log)
}

func (s *Service) destination(destPath string) Repository {
	if destPath == "" {
		return s.repo
	}
	if p, ok := s.repo.(interface{ Path() string }); ok && p.Path() == destPath {
		return s.repo
	}
	return csvstore.NewStore(destPath, s.log)
}
