// Package report renders ledger records into spreadsheet form.
package report

import (
	"fmt"
	"io"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/csvstore"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the exported transactions.
const SheetName = "Transactions"

// BalanceLabel marks the summary row written under the transactions.
const BalanceLabel = "balance"

// WriteXLSX writes txs as a workbook: one header row with the ledger
// columns, one row per transaction, then a blank row and a balance row.
func WriteXLSX(w io.Writer, txs []domain.Transaction, balance decimal.Decimal) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("WriteXLSX: rename sheet: %w", err)
	}

	header := make([]interface{}, len(csvstore.Columns))
	for i, c := range csvstore.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("WriteXLSX: header: %w", err)
	}

	for i, tx := range txs {
		row := []interface{}{
			tx.AccountUsername,
			tx.Operation,
			tx.Amount.InexactFloat64(),
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
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("WriteXLSX: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("WriteXLSX: row %d: %w", i+1, err)
		}
	}

	summaryRow := len(txs) + 3
	if err := f.SetCellValue(SheetName, fmt.Sprintf("A%d", summaryRow), BalanceLabel); err != nil {
		return fmt.Errorf("WriteXLSX: summary label: %w", err)
	}
	if err := f.SetCellValue(SheetName, fmt.Sprintf("C%d", summaryRow), balance.InexactFloat64()); err != nil {
		return fmt.Errorf("WriteXLSX: summary value: %w", err)
	}

	f.SetColWidth(SheetName, "A", "B", 16)
	f.SetColWidth(SheetName, "C", "C", 12)
	f.SetColWidth(SheetName, "D", "D", 18)
	f.SetColWidth(SheetName, "E", "M", 14)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: write workbook: %w", err)
	}
	return nil
}
