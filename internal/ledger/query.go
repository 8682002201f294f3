package ledger

import (
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// daysPerWeek is the length of the weekly expense window.
const daysPerWeek = 7

// FilterPeriod keeps the transactions with start <= timestamp <= end.
// Both bounds are inclusive. Transactions whose timestamp does not parse are
// logged and left out.
func FilterPeriod(log zerolog.Logger, txs []domain.Transaction, start, end time.Time) []domain.Transaction {
	start, end = domain.WallClock(start), domain.WallClock(end)

	out := []domain.Transaction{}
	for _, tx := range txs {
		ts, ok := parseForFilter(log, tx)
		if !ok {
			continue
		}
		if !ts.Before(start) && !ts.After(end) {
			out = append(out, tx)
		}
	}
	return out
}

// FilterWeeklyExpenses keeps the Expense transactions (case-insensitive) in
// [startOfWeek, startOfWeek+7 days). The end is exclusive, unlike FilterPeriod.
func FilterWeeklyExpenses(log zerolog.Logger, txs []domain.Transaction, startOfWeek time.Time) []domain.Transaction {
	start := domain.WallClock(startOfWeek)
	end := start.AddDate(0, 0, daysPerWeek)

	out := []domain.Transaction{}
	for _, tx := range txs {
		if !domain.OperationExpense.Is(tx.Operation) {
			continue
		}
		ts, ok := parseForFilter(log, tx)
		if !ok {
			continue
		}
		if !ts.Before(start) && ts.Before(end) {
			out = append(out, tx)
		}
	}
	return out
}

func parseForFilter(log zerolog.Logger, tx domain.Transaction) (time.Time, bool) {
	ts, err := tx.Time()
	if err != nil {
		log.Warn().
			Err(err).
			Str("username", tx.AccountUsername).
			Str("timestamp", tx.Timestamp).
			Msg("Excluding transaction with unparseable timestamp")
		return time.Time{}, false
	}
	return ts, true
}
