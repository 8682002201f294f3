package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/gcs"
	"github.com/dvloznov/finance-ledger/internal/gcsuploader"
	"github.com/dvloznov/finance-ledger/internal/infra/csvstore"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/rs/zerolog"
)

var commands = map[string]func(args []string, out io.Writer) error{
	"add":       runAdd,
	"remove":    runRemove,
	"read":      runRead,
	"period":    runPeriod,
	"weekly":    runWeekly,
	"balance":   runBalance,
	"abnormal":  runAbnormal,
	"import":    runImport,
	"export":    runExport,
	"export-bq": runExportBQ,
	"backup":    runBackup,
}

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	}

	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := run(os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Finance Ledger CLI")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  cli <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  add        Record a transaction")
	fmt.Fprintln(w, "  remove     Remove a user's transactions at a timestamp")
	fmt.Fprintln(w, "  read       List a user's transactions (or all with -all)")
	fmt.Fprintln(w, "  period     List a user's transactions in a time range")
	fmt.Fprintln(w, "  weekly     List a user's expenses for the week starting at -start")
	fmt.Fprintln(w, "  balance    Show a user's balance")
	fmt.Fprintln(w, "  abnormal   Check a user for large inbound transfers")
	fmt.Fprintln(w, "  import     Import rows from a ledger-format file or gs:// object")
	fmt.Fprintln(w, "  export     Write a user's transactions to an XLSX workbook")
	fmt.Fprintln(w, "  export-bq  Export a user's transactions to BigQuery")
	fmt.Fprintln(w, "  backup     Upload the ledger file to Cloud Storage")
	fmt.Fprintln(w, "  help       Show this help message")
	fmt.Fprintln(w, "\nEvery command accepts -config PATH and -ledger PATH.")
	fmt.Fprintln(w, "Run 'cli <command> -h' for more information on a command.")
}

// commonFlags are registered on every subcommand.
type commonFlags struct {
	configPath *string
	ledgerPath *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", "", "Path to a YAML config file"),
		ledgerPath: fs.String("ledger", "", "Ledger file (overrides ledger.path)"),
	}
}

// app is the wiring shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   *csvstore.Store
	storage gcs.StorageService
	service *ledger.Service
}

func (c commonFlags) open() (*app, error) {
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return nil, err
	}
	if *c.ledgerPath != "" {
		cfg.Ledger.Path = *c.ledgerPath
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	store := csvstore.NewStore(cfg.Ledger.Path, log)
	storage := gcsuploader.NewGCSStorageService()

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		storage: storage,
		service: ledger.NewService(store, storage, log),
	}, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}
