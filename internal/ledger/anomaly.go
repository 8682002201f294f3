package ledger

import (
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// AbnormalTransferThreshold is the inbound transfer amount above which a
// user's history is flagged.
const AbnormalTransferThreshold = 500

var abnormalThreshold = decimal.NewFromInt(AbnormalTransferThreshold)

// HasAbnormalTransactions reports whether txs contains an inbound transfer,
// named by either the operation or the type column, for more than
// AbnormalTransferThreshold. An empty username or an empty list is never
// abnormal.
func HasAbnormalTransactions(username string, txs []domain.Transaction) bool {
	if username == "" || len(txs) == 0 {
		return false
	}
	for _, tx := range txs {
		if isInboundTransfer(tx) && tx.Amount.GreaterThan(abnormalThreshold) {
			return true
		}
	}
	return false
}

func isInboundTransfer(tx domain.Transaction) bool {
	return domain.OperationTransferIn.Is(tx.Operation) || domain.OperationTransferIn.Is(tx.Type)
}
