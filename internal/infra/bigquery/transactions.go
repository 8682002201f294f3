package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

// LedgerRow is one exported ledger transaction in the BigQuery mirror table.
type LedgerRow struct {
	ExportID string `bigquery:"export_id"` // REQUIRED, one per export run

	AccountUsername string `bigquery:"account_username"` // REQUIRED
	Operation       string `bigquery:"operation"`        // REQUIRED

	Amount    *big.Rat            `bigquery:"amount"`    // REQUIRED NUMERIC
	Direction bigquery.NullString `bigquery:"direction"` // IN / OUT, NULL for unknown operations

	BookedAt civil.DateTime `bigquery:"booked_at"` // REQUIRED DATETIME, ledger wall clock

	Merchant      bigquery.NullString `bigquery:"merchant"`
	Type          bigquery.NullString `bigquery:"type"`
	Remark        bigquery.NullString `bigquery:"remark"`
	Category      bigquery.NullString `bigquery:"category"`
	PaymentMethod bigquery.NullString `bigquery:"payment_method"`
	Location      bigquery.NullString `bigquery:"location"`
	Tag           bigquery.NullString `bigquery:"tag"`
	Attachment    bigquery.NullString `bigquery:"attachment"`
	Recurrence    bigquery.NullString `bigquery:"recurrence"`

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// ToLedgerRows maps ledger records to export rows. Records whose timestamp
// does not parse cannot fill booked_at and are counted as skipped.
func ToLedgerRows(exportID string, exportedAt time.Time, txs []domain.Transaction) ([]*LedgerRow, int) {
	rows := make([]*LedgerRow, 0, len(txs))
	skipped := 0

	for _, tx := range txs {
		ts, err := tx.Time()
		if err != nil {
			skipped++
			continue
		}

		rows = append(rows, &LedgerRow{
			ExportID:        exportID,
			AccountUsername: tx.AccountUsername,
			Operation:       tx.Operation,
			Amount:          tx.Amount.Rat(),
			Direction:       direction(tx.Operation),
			BookedAt:        civil.DateTimeOf(ts),
			Merchant:        nullString(tx.Merchant),
			Type:            nullString(tx.Type),
			Remark:          nullString(tx.Remark),
			Category:        nullString(tx.Category),
			PaymentMethod:   nullString(tx.PaymentMethod),
			Location:        nullString(tx.Location),
			Tag:             nullString(tx.Tag),
			Attachment:      nullString(tx.Attachment),
			Recurrence:      nullString(tx.Recurrence),
			ExportedTS:      exportedAt,
		})
	}

	return rows, skipped
}

func direction(operation string) bigquery.NullString {
	switch domain.SignOf(operation) {
	case 1:
		return bigquery.NullString{StringVal: "IN", Valid: true}
	case -1:
		return bigquery.NullString{StringVal: "OUT", Valid: true}
	default:
		return bigquery.NullString{}
	}
}

func nullString(s string) bigquery.NullString {
	if s == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: s, Valid: true}
}
