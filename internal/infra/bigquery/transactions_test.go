package bigquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func sampleTransactions() []domain.Transaction {
	return []domain.Transaction{
		{
			AccountUsername: "user1",
			Operation:       "Transfer In",
			Amount:          decimal.RequireFromString("600.25"),
			Timestamp:       "2024/05/15 10:00",
			Merchant:        "bank",
			Type:            "Transfer",
		},
		{
			AccountUsername: "user1",
			Operation:       "Expense",
			Amount:          decimal.RequireFromString("12"),
			Timestamp:       "2024/05/16 18:30",
			Category:        "Food",
		},
		{
			AccountUsername: "user1",
			Operation:       "Bonus",
			Amount:          decimal.RequireFromString("1"),
			Timestamp:       "2024/05/17 09:00",
		},
		{
			AccountUsername: "user1",
			Operation:       "Income",
			Amount:          decimal.RequireFromString("5"),
			Timestamp:       "someday",
		},
	}
}

func TestToLedgerRows(t *testing.T) {
	exportedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	rows, skipped := ToLedgerRows("exp-1", exportedAt, sampleTransactions())
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	first := rows[0]
	if first.ExportID != "exp-1" || first.AccountUsername != "user1" || first.Operation != "Transfer In" {
		t.Errorf("unexpected identity columns: %+v", first)
	}
	if first.Amount.FloatString(2) != "600.25" {
		t.Errorf("Amount = %s, want 600.25", first.Amount.FloatString(2))
	}
	wantBooked := civil.DateTime{Date: civil.Date{Year: 2024, Month: 5, Day: 15}, Time: civil.Time{Hour: 10}}
	if first.BookedAt != wantBooked {
		t.Errorf("BookedAt = %v, want %v", first.BookedAt, wantBooked)
	}
	if !first.Direction.Valid || first.Direction.StringVal != "IN" {
		t.Errorf("Direction = %+v, want IN", first.Direction)
	}
	if !first.Merchant.Valid || first.Merchant.StringVal != "bank" {
		t.Errorf("Merchant = %+v", first.Merchant)
	}
	if first.Remark.Valid {
		t.Errorf("empty remark must be NULL, got %+v", first.Remark)
	}
	if !first.ExportedTS.Equal(exportedAt) {
		t.Errorf("ExportedTS = %v", first.ExportedTS)
	}

	if rows[1].Direction.StringVal != "OUT" {
		t.Errorf("expense direction = %+v, want OUT", rows[1].Direction)
	}
	if rows[2].Direction.Valid {
		t.Errorf("unknown operation direction must be NULL, got %+v", rows[2].Direction)
	}
}

type mockExporter struct {
	rows      []*LedgerRow
	err       error
	deleteErr error
}

func (m *mockExporter) InsertLedgerRows(ctx context.Context, rows []*LedgerRow) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *mockExporter) QueryLedgerRowsByUser(ctx context.Context, username string) ([]*LedgerRow, error) {
	var out []*LedgerRow
	for _, r := range m.rows {
		if r.AccountUsername == username {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockExporter) DeleteExport(ctx context.Context, exportID string) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	kept := m.rows[:0]
	var removed int64
	for _, r := range m.rows {
		if r.ExportID == exportID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return removed, nil
}

func (m *mockExporter) Close() error { return nil }

func TestExportTransactions(t *testing.T) {
	exporter := &mockExporter{}

	res, err := ExportTransactions(context.Background(), exporter, sampleTransactions(), time.Now())
	if err != nil {
		t.Fatalf("ExportTransactions() error: %v", err)
	}
	if res.Exported != 3 || res.Skipped != 1 {
		t.Errorf("result = %+v, want 3 exported / 1 skipped", res)
	}
	if _, err := uuid.Parse(res.ExportID); err != nil {
		t.Errorf("ExportID %q is not a UUID: %v", res.ExportID, err)
	}

	back, err := exporter.QueryLedgerRowsByUser(context.Background(), "user1")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range back {
		if r.ExportID != res.ExportID {
			t.Errorf("row carries export ID %q, want %q", r.ExportID, res.ExportID)
		}
	}
}

func TestExportTransactions_InsertError(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := ExportTransactions(context.Background(), &mockExporter{err: boom}, sampleTransactions(), time.Now())
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestReplaceExport(t *testing.T) {
	ctx := context.Background()
	exporter := &mockExporter{}

	first, err := ExportTransactions(ctx, exporter, sampleTransactions(), time.Now())
	if err != nil {
		t.Fatalf("first export: %v", err)
	}

	second, err := ReplaceExport(ctx, exporter, sampleTransactions(), time.Now(), first.ExportID)
	if err != nil {
		t.Fatalf("ReplaceExport() error: %v", err)
	}
	if second.Replaced != int64(first.Exported) {
		t.Errorf("Replaced = %d, want %d", second.Replaced, first.Exported)
	}
	if len(exporter.rows) != second.Exported {
		t.Errorf("table holds %d rows, want %d", len(exporter.rows), second.Exported)
	}
	for _, r := range exporter.rows {
		if r.ExportID != second.ExportID {
			t.Errorf("row from export %q survived the replacement", r.ExportID)
		}
	}
}

func TestReplaceExport_KeepsOldRowsWhenInsertFails(t *testing.T) {
	ctx := context.Background()
	exporter := &mockExporter{}
	first, _ := ExportTransactions(ctx, exporter, sampleTransactions(), time.Now())

	exporter.err = errors.New("quota exceeded")
	if _, err := ReplaceExport(ctx, exporter, sampleTransactions(), time.Now(), first.ExportID); err == nil {
		t.Fatal("expected error")
	}
	if len(exporter.rows) != first.Exported {
		t.Errorf("table holds %d rows, want the original %d", len(exporter.rows), first.Exported)
	}
}

func TestReplaceExport_DeleteError(t *testing.T) {
	boom := errors.New("streaming buffer")
	exporter := &mockExporter{deleteErr: boom}

	res, err := ReplaceExport(context.Background(), exporter, sampleTransactions(), time.Now(), "old")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
	if res.ExportID == "" || res.Exported != 3 {
		t.Errorf("result = %+v, want the new export to be reported", res)
	}
}
