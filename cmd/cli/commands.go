package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	infraBQ "github.com/dvloznov/finance-ledger/internal/infra/bigquery"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/report"
	"github.com/shopspring/decimal"
)

var (
	errUserRequired = errors.New("-user is required")
	errNoMatch      = errors.New("no matching transaction")
)

func runAdd(args []string, out io.Writer) error {
	fs := newFlagSet("add")
	common := addCommonFlags(fs)
	user := fs.String("user", "", "Account username")
	op := fs.String("op", "", "Operation: Income, Expense, Transfer In, Transfer Out, Deposit")
	amount := fs.String("amount", "", "Positive amount")
	timestamp := fs.String("timestamp", "", "Timestamp as yyyy/MM/dd HH:mm (defaults to now)")
	merchant := fs.String("merchant", "", "Merchant")
	txType := fs.String("type", "", "Free-form transaction type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	value, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("invalid -amount %q: %w", *amount, err)
	}
	if *timestamp == "" {
		*timestamp = domain.FormatTimestamp(time.Now())
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(context.Background(), a.log)

	tx, err := a.service.AddTransaction(ctx, *user, *op, value, *timestamp, *merchant, *txType)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Added %s %s for %s at %s\n", tx.Operation, tx.Amount, tx.AccountUsername, tx.Timestamp)
	return nil
}

func runRemove(args []string, out io.Writer) error {
	fs := newFlagSet("remove")
	common := addCommonFlags(fs)
	user := fs.String("user", "", "Account username")
	timestamp := fs.String("timestamp", "", "Exact timestamp of the transactions to remove")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *timestamp == "" {
		return errors.New("-user and -timestamp are required")
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(context.Background(), a.log)

	account := &domain.User{Username: *user}
	if !a.service.Remove(ctx, *user, *timestamp, account) {
		return errNoMatch
	}

	fmt.Fprintf(out, "Removed transactions at %s. Balance for %s: %s\n", *timestamp, *user, account.Balance)
	return nil
}

func runRead(args []string, out io.Writer) error {
	fs := newFlagSet("read")
	common := addCommonFlags(fs)
	user := fs.String("user", "", "Account username")
	all := fs.Bool("all", false, "List every user's transactions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" && !*all {
		return errUserRequired
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(context.Background(), a.log)

	var txs []domain.Transaction
	if *all {
		txs = a.service.ReadAll(ctx)
	} else {
		txs = a.service.Read(ctx, *user)
	}

	renderTransactions(out, txs, false)
	return nil
}

func runPeriod(args []string, out io.Writer) error {
	fs := newFlagSet("period")
	common := addCommonFlags(fs)
	user := fs.String("user", "", "Account username")
	startStr := fs.String("start", "", "Start (yyyy/MM/dd HH:mm or yyyy-MM-dd), inclusive")
	endStr := fs.String("end", "", "End (yyyy/MM/dd HH:mm or yyyy-MM-dd), inclusive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errUserRequired
	}

	start, err := domain.ParseBound(*startStr, false)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	end, err := domain.ParseBound(*endStr, true)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(context.Background(), a.log)

	renderTransactions(out, a.service.ReadInPeriod(ctx, *user, start, end), false)
	return nil
}

func runWeekly(args []string, out io.Writer) error {
	fs := newFlagSet("weekly")
	common := addCommonFlags(fs)
	user := fs.String("user", "", "Account username")
	startStr := fs.String("start", "", "Start of the week (yyyy/MM/dd HH:mm or yyyy-MM-dd)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errUserRequired
	}

	start, err := domain.ParseBound(*startStr, false)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(context.Background(), a.log)

	renderTransactions(out, a.service.WeeklyExpenses(ctx, *user, start), true)
	return nil
}

func runBalance(args []string, out io.Writer) error {
	fs := newFlagSet("balance")
	common := addCommonFlags(fs)
	user := fs.String("user", "", "Account username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errUserRequired
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(context.Background(), a.log)

	balance, err := a.service.Balance(ctx, *user)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Balance for %s: %s\n", *user, balance)
	return nil
}

func runAbnormal(args []string, out io.Writer) error {
	fs := newFlagSet("abnormal")
	common := addCommonFlags(fs)
	user := fs.String("user", "", "Account username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errUserRequired
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(context.Background(), a.log)

	if a.service.Abnormal(ctx, *user) {
		fmt.Fprintf(out, "%s has inbound transfers above %d\n", *user, ledger.AbnormalTransferThreshold)
	} else {
		fmt.Fprintf(out, "No abnormal transactions for %s\n", *user)
	}
	return nil
}

func runImport(args []string, out io.Writer) error {
	fs := newFlagSet("import")
	common := addCommonFlags(fs)
	source := fs.String("source", "", "Local path or gs://bucket/object of a ledger-format file")
	dest := fs.String("dest", "", "Destination ledger file (defaults to the configured ledger)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *source == "" {
		return errors.New("-source is required")
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, a.log)

	result, err := a.service.Import(ctx, *source, *dest)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d transactions (%d skipped)\n", result.Imported, result.Skipped)
	return nil
}

func runExport(args []string, out io.Writer) error {
	fs := newFlagSet("export")
	common := addCommonFlags(fs)
	user := fs.String("user", "", "Account username")
	output := fs.String("out", "", "Output .xlsx file (defaults to <user>.xlsx)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errUserRequired
	}
	if *output == "" {
		*output = *user + ".xlsx"
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(context.Background(), a.log)

	txs := a.service.Read(ctx, *user)

	f, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("create %s: %w", *output, err)
	}
	defer f.Close()

	if err := report.WriteXLSX(f, txs, ledger.CalculateBalance(txs)); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *output, err)
	}

	fmt.Fprintf(out, "Exported %d transactions to %s\n", len(txs), *output)
	return nil
}

func runExportBQ(args []string, out io.Writer) error {
	fs := newFlagSet("export-bq")
	common := addCommonFlags(fs)
	user := fs.String("user", "", "Account username")
	project := fs.String("project", "", "BigQuery project (overrides bigquery.project)")
	replace := fs.String("replace", "", "Export ID whose rows are deleted after this export succeeds")
	verify := fs.Bool("verify", true, "Read the exported rows back and report the count")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errUserRequired
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	if *project != "" {
		a.cfg.BigQuery.Project = *project
	}
	if a.cfg.BigQuery.Project == "" {
		return errors.New("a BigQuery project is required (-project or bigquery.project)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, a.log)

	repo, err := infraBQ.NewBigQueryLedgerRepository(ctx, a.cfg.BigQuery.Project, a.cfg.BigQuery.Dataset, a.cfg.BigQuery.Table)
	if err != nil {
		return err
	}
	defer repo.Close()

	txs := a.service.Read(ctx, *user)
	var result infraBQ.ExportResult
	if *replace != "" {
		result, err = infraBQ.ReplaceExport(ctx, repo, txs, time.Now(), *replace)
	} else {
		result, err = infraBQ.ExportTransactions(ctx, repo, txs, time.Now())
	}
	if err != nil {
		return err
	}

	a.log.Info().
		Str("export_id", result.ExportID).
		Int("exported", result.Exported).
		Int("skipped", result.Skipped).
		Int64("replaced", result.Replaced).
		Msg("BigQuery export completed")
	fmt.Fprintf(out, "Exported %d transactions for %s (export %s, %d skipped)\n", result.Exported, *user, result.ExportID, result.Skipped)

	if *verify {
		rows, err := repo.QueryLedgerRowsByUser(ctx, *user)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "BigQuery now holds %d rows for %s\n", len(rows), *user)
	}
	return nil
}

func runBackup(args []string, out io.Writer) error {
	fs := newFlagSet("backup")
	common := addCommonFlags(fs)
	bucket := fs.String("bucket", "", "GCS bucket (overrides storage.bucket)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := common.open()
	if err != nil {
		return err
	}
	if *bucket != "" {
		a.cfg.Storage.Bucket = *bucket
	}
	if a.cfg.Storage.Bucket == "" {
		return errors.New("a bucket is required (-bucket or storage.bucket)")
	}
	if _, err := os.Stat(a.store.Path()); err != nil {
		return fmt.Errorf("ledger file: %w", err)
	}

	ctx := logger.WithContext(context.Background(), a.log)

	uri, err := a.storage.BackupLedger(ctx, a.cfg.Storage.Bucket, a.store.Path(), time.Now())
	if err != nil {
		return err
	}

	a.log.Info().Str("ledger", a.cfg.Ledger.Path).Str("gcs_uri", uri).Msg("Ledger backed up")
	fmt.Fprintf(out, "Backed up %s to %s\n", a.cfg.Ledger.Path, uri)
	return nil
}
