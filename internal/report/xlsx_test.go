package report

import (
	"bytes"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	txs := []domain.Transaction{
		{AccountUsername: "user1", Operation: "Income", Amount: decimal.RequireFromString("250.5"), Timestamp: "2024/05/18 10:00", Merchant: "acme"},
		{AccountUsername: "user1", Operation: "Expense", Amount: decimal.RequireFromString("50"), Timestamp: "2024/05/19 10:00", Recurrence: "monthly"},
	}

	buf := &bytes.Buffer{}
	if err := WriteXLSX(buf, txs, decimal.RequireFromString("200.5")); err != nil {
		t.Fatalf("WriteXLSX() error: %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader() error: %v", err)
	}
	defer f.Close()

	tests := []struct {
		cell string
		want string
	}{
		{"A1", "accountUsername"},
		{"M1", "recurrence"},
		{"A2", "user1"},
		{"C2", "250.5"},
		{"D2", "2024/05/18 10:00"},
		{"E2", "acme"},
		{"B3", "Expense"},
		{"M3", "monthly"},
		{"A4", ""},
		{"A5", BalanceLabel},
		{"C5", "200.5"},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			got, err := f.GetCellValue(SheetName, tt.cell)
			if err != nil {
				t.Fatalf("GetCellValue(%s) error: %v", tt.cell, err)
			}
			if got != tt.want {
				t.Errorf("%s = %q, want %q", tt.cell, got, tt.want)
			}
		})
	}
}

func TestWriteXLSX_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteXLSX(buf, nil, decimal.Zero); err != nil {
		t.Fatalf("WriteXLSX() error: %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader() error: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue(SheetName, "A3"); got != BalanceLabel {
		t.Errorf("A3 = %q, want %q", got, BalanceLabel)
	}
}
