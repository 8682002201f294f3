package ledger

import (
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// CalculateBalance folds txs into a signed total: Income, Deposit and
// Transfer In add, Expense and Transfer Out subtract, anything else is
// ignored.
func CalculateBalance(txs []domain.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range txs {
		switch domain.SignOf(tx.Operation) {
		case 1:
			balance = balance.Add(tx.Amount)
		case -1:
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance
}
