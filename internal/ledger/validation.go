package ledger

import (
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// NewTransaction builds the record for an add request and validates it.
// Metadata columns other than merchant and type start empty.
func NewTransaction(username, operation string, amount decimal.Decimal, timestamp, merchant, txType string) (domain.Transaction, error) {
	tx := domain.Transaction{
		AccountUsername: username,
		Operation:       operation,
		Amount:          amount,
		Timestamp:       timestamp,
		Merchant:        merchant,
		Type:            txType,
	}
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}
