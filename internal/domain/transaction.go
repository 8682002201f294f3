package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyUsername is returned when a transaction has no owning account.
	ErrEmptyUsername = errors.New("username is required")
	// ErrUnknownOperation is returned for operations outside the recognized set.
	ErrUnknownOperation = errors.New("unrecognized operation")
	// ErrNonPositiveAmount is returned when an amount is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	// ErrInvalidTimestamp is returned when a timestamp does not match TimestampLayout.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrLineBreak is returned when a field holds a CR or LF. The ledger
	// stores one record per line.
	ErrLineBreak = errors.New("field contains a line break")
)

// Transaction is one ledger entry. Field order matches the column order of
// the backing file.
type Transaction struct {
	AccountUsername string          `json:"account_username"` // owner of the entry, matched exactly
	Operation       string          `json:"operation"`        // Income, Expense, Transfer In, Transfer Out, Deposit
	Amount          decimal.Decimal `json:"amount"`           // stored as written
	Timestamp       string          `json:"timestamp"`        // "yyyy/MM/dd HH:mm", kept as the raw string

	Merchant      string `json:"merchant,omitempty"`
	Type          string `json:"type,omitempty"` // free-form sub-classification, read by anomaly detection
	Remark        string `json:"remark,omitempty"`
	Category      string `json:"category,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Location      string `json:"location,omitempty"`
	Tag           string `json:"tag,omitempty"`
	Attachment    string `json:"attachment,omitempty"`
	Recurrence    string `json:"recurrence,omitempty"`
}

// Time parses the transaction timestamp with the shared layout.
func (t Transaction) Time() (time.Time, error) {
	return ParseTimestamp(t.Timestamp)
}

// Validate checks the invariants a transaction must hold before it is
// written: no line breaks in any field, owner present, recognized operation,
// positive amount and a timestamp in the shared layout.
func (t Transaction) Validate() error {
	for _, f := range t.textFields() {
		if strings.ContainsAny(f.value, "\r\n") {
			return fmt.Errorf("%w: %s", ErrLineBreak, f.name)
		}
	}
	if t.AccountUsername == "" {
		return ErrEmptyUsername
	}
	if !IsRecognizedOperation(t.Operation) {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, t.Operation)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositiveAmount, t.Amount)
	}
	if _, err := ParseTimestamp(t.Timestamp); err != nil {
		return err
	}
	return nil
}

type textField struct {
	name, value string
}

func (t Transaction) textFields() []textField {
	return []textField{
		{"account_username", t.AccountUsername},
		{"operation", t.Operation},
		{"timestamp", t.Timestamp},
		{"merchant", t.Merchant},
		{"type", t.Type},
		{"remark", t.Remark},
		{"category", t.Category},
		{"payment_method", t.PaymentMethod},
		{"location", t.Location},
		{"tag", t.Tag},
		{"attachment", t.Attachment},
		{"recurrence", t.Recurrence},
	}
}

// User is the account collaborator. Balance is recomputed by the ledger but
// persisted elsewhere.
type User struct {
	Username string
	Balance  decimal.Decimal
}
