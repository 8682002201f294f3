package main

import (
	"context"
	"crypto/sha256"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/bigquery/*.sql
var embeddedMigrations embed.FS

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// target names the placeholders substituted into migration SQL.
type target struct {
	Project string
	Dataset string
	Table   string
}

func main() {
	var (
		configPath    = flag.String("config", "", "Path to a YAML config file")
		projectID     = flag.String("project", "", "GCP project ID (overrides bigquery.project)")
		datasetID     = flag.String("dataset", "", "BigQuery dataset ID (overrides bigquery.dataset)")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "", "Directory of migrations (defaults to the embedded set)")
		dryRun        = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.Log.Level)

	tgt := target{Project: cfg.BigQuery.Project, Dataset: cfg.BigQuery.Dataset, Table: cfg.BigQuery.Table}
	if *projectID != "" {
		tgt.Project = *projectID
	}
	if *datasetID != "" {
		tgt.Dataset = *datasetID
	}
	if tgt.Project == "" {
		log.Fatal().Msg("A GCP project is required (-project or bigquery.project)")
	}

	var source fs.FS
	if *migrationsDir != "" {
		source = os.DirFS(*migrationsDir)
	} else {
		source, err = fs.Sub(embeddedMigrations, "migrations/bigquery")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open embedded migrations")
		}
	}

	migrations, err := readMigrations(source, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	ctx := context.Background()

	client, err := bigquery.NewClient(ctx, tgt.Project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", tgt.Project).Str("dataset", tgt.Dataset).Msg("Connected to BigQuery")

	if err := ensureSchemaMigrationsTable(ctx, client, tgt); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	applied, err := getAppliedMigrations(ctx, client, tgt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	for _, m := range changedMigrations(migrations, applied) {
		log.Warn().
			Int("version", m.Version).
			Str("name", m.Name).
			Msg("Applied migration has changed since it ran; it will not be re-applied")
	}

	todo := pendingMigrations(migrations, applied)
	if len(todo) == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
		return
	}

	for _, m := range todo {
		if *dryRun {
			log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Pending migration")
			continue
		}

		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")

		if err := runDDL(ctx, client, render(m.SQL, tgt)); err != nil {
			log.Fatal().Err(err).Str("migration", m.Filename).Msg("Failed to execute migration")
		}

		if err := recordMigration(ctx, client, tgt, m, *appliedBy); err != nil {
			log.Fatal().Err(err).Str("migration", m.Filename).Msg("Failed to record migration")
		}
	}

	if !*dryRun {
		log.Info().Int("applied", len(todo)).Msg("Migrations applied")
	}
}

// readMigrations reads all migration files at the root of fsys, sorted by
// version. Files not matching the NNNN_name.sql pattern are skipped.
func readMigrations(fsys fs.FS, log zerolog.Logger) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid version")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, file.Name())
		}
		seen[version] = file.Name()

		content, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		// The checksum covers the template, so the same migration applied to
		// another project or dataset keeps its checksum.
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      string(content),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// render substitutes the target placeholders in a migration template.
func render(sql string, tgt target) string {
	return strings.NewReplacer(
		"{{PROJECT_ID}}", tgt.Project,
		"{{DATASET_ID}}", tgt.Dataset,
		"{{LEDGER_TABLE}}", tgt.Table,
	).Replace(sql)
}

// pendingMigrations returns the migrations whose version has not been applied.
func pendingMigrations(migrations []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	var pending []Migration
	for _, m := range migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// changedMigrations returns applied migrations whose file checksum differs
// from the recorded one.
func changedMigrations(migrations []Migration, applied []AppliedMigration) []Migration {
	recorded := make(map[int]string, len(applied))
	for _, am := range applied {
		recorded[am.Version] = am.Checksum
	}

	var changed []Migration
	for _, m := range migrations {
		if sum, ok := recorded[m.Version]; ok && sum != "" && sum != m.Checksum {
			changed = append(changed, m)
		}
	}
	return changed
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client, tgt target) error {
	return runDDL(ctx, client, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, tgt.Project, tgt.Dataset))
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client, tgt target) ([]AppliedMigration, error) {
	query := client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, tgt.Project, tgt.Dataset))

	it, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, tgt target, m Migration, appliedBy string) error {
	query := client.Query(fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, tgt.Project, tgt.Dataset))
	query.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}

	return runQuery(ctx, query)
}

func runDDL(ctx context.Context, client *bigquery.Client, sql string) error {
	return runQuery(ctx, client.Query(sql))
}

func runQuery(ctx context.Context, query *bigquery.Query) error {
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
