package csvstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// FieldCount is the number of columns in a ledger row.
	FieldCount = 13

	separator = ","
)

// Columns names the ledger columns in file order.
var Columns = []string{
	"accountUsername",
	"operation",
	"amount",
	"timestamp",
	"merchant",
	"type",
	"remark",
	"category",
	"paymentMethod",
	"location",
	"tag",
	"attachment",
	"recurrence",
}

// Header is the first line of every ledger file.
var Header = strings.Join(Columns, separator)

var (
	// ErrTooFewFields marks a row with fewer than FieldCount columns.
	ErrTooFewFields = errors.New("too few fields")
	// ErrInvalidAmount marks a row whose amount column is not a number.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Encode renders tx as one ledger line, without the trailing newline.
// Fields are joined verbatim: a value containing a comma corrupts the row.
func Encode(tx domain.Transaction) string {
	return strings.Join([]string{
		tx.AccountUsername,
		tx.Operation,
		tx.Amount.String(),
		tx.Timestamp,
		tx.Merchant,
		tx.Type,
		tx.Remark,
		tx.Category,
		tx.PaymentMethod,
		tx.Location,
		tx.Tag,
		tx.Attachment,
		tx.Recurrence,
	}, separator)
}

// Decode parses one ledger line. Trailing empty columns are kept; columns
// beyond FieldCount are ignored.
func Decode(line string) (domain.Transaction, error) {
	data := strings.Split(strings.TrimSuffix(line, "\r"), separator)
	if len(data) < FieldCount {
		return domain.Transaction{}, fmt.Errorf("%w: got %d, want %d", ErrTooFewFields, len(data), FieldCount)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(data[2]))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: %q", ErrInvalidAmount, data[2])
	}

	return domain.Transaction{
		AccountUsername: data[0],
		Operation:       data[1],
		Amount:          amount,
		Timestamp:       data[3],
		Merchant:        data[4],
		Type:            data[5],
		Remark:          data[6],
		Category:        data[7],
		PaymentMethod:   data[8],
		Location:        data[9],
		Tag:             data[10],
		Attachment:      data[11],
		Recurrence:      data[12],
	}, nil
}
