package domain

import "strings"

// Operation is the transaction kind.
type Operation string

const (
	OperationIncome      Operation = "Income"
	OperationExpense     Operation = "Expense"
	OperationTransferIn  Operation = "Transfer In"
	OperationTransferOut Operation = "Transfer Out"
	OperationDeposit     Operation = "Deposit"
)

// Operations lists the recognized operation kinds.
var Operations = []Operation{
	OperationIncome,
	OperationExpense,
	OperationTransferIn,
	OperationTransferOut,
	OperationDeposit,
}

// IsRecognizedOperation reports whether op is one of Operations.
// The comparison is case-sensitive: this is the set accepted for storage.
func IsRecognizedOperation(op string) bool {
	for _, known := range Operations {
		if string(known) == op {
			return true
		}
	}
	return false
}

// Is reports whether op names the same kind as o, ignoring case.
func (o Operation) Is(op string) bool {
	return strings.EqualFold(string(o), op)
}

// SignOf returns +1 for inbound kinds, -1 for outbound kinds and 0 for
// anything unrecognized.
func SignOf(op string) int {
	switch {
	case OperationIncome.Is(op), OperationDeposit.Is(op), OperationTransferIn.Is(op):
		return 1
	case OperationExpense.Is(op), OperationTransferOut.Is(op):
		return -1
	default:
		return 0
	}
}
