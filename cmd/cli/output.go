package main

import (
	"fmt"
	"io"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

var tableHeader = []string{"User", "Timestamp", "Operation", "Amount", "Merchant", "Type", "Category"}

// renderTransactions prints txs as a table. With total set, a footer sums
// the amounts.
func renderTransactions(w io.Writer, txs []domain.Transaction, total bool) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(tableHeader)

	sum := decimal.Zero
	for _, tx := range txs {
		table.Append([]string{
			tx.AccountUsername,
			tx.Timestamp,
			tx.Operation,
			tx.Amount.String(),
			tx.Merchant,
			tx.Type,
			tx.Category,
		})
		sum = sum.Add(tx.Amount)
	}

	if total {
		table.SetFooter([]string{"", "", "Total", sum.String(), "", "", ""})
	}

	table.Render()
	fmt.Fprintf(w, "%d transaction(s)\n", len(txs))
}
