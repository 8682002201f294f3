package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Ledger.Path != "transactions.csv" {
		t.Errorf("Ledger.Path = %q, want transactions.csv", cfg.Ledger.Path)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.BigQuery.Dataset != "finance" || cfg.BigQuery.Table != "ledger_transactions" {
		t.Errorf("unexpected BigQuery defaults: %+v", cfg.BigQuery)
	}
	if cfg.Jobs.Workers != 1 || cfg.Jobs.Buffer != 100 || cfg.Jobs.ImportDir != "" {
		t.Errorf("unexpected Jobs defaults: %+v", cfg.Jobs)
	}
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	yaml := []byte(`
ledger:
  path: /tmp/ledger.csv
log:
  level: debug
storage:
  bucket: backups
jobs:
  workers: 0
`)
	if err := os.WriteFile(path, yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINLEDGER_LOG_LEVEL", "warn")
	t.Setenv("FINLEDGER_BIGQUERY_PROJECT", "my-project")
	t.Setenv("FINLEDGER_JOBS_IMPORT_DIR", "/srv/imports")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Ledger.Path != "/tmp/ledger.csv" {
		t.Errorf("Ledger.Path = %q, want value from file", cfg.Ledger.Path)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, environment should win over file", cfg.Log.Level)
	}
	if cfg.Storage.Bucket != "backups" {
		t.Errorf("Storage.Bucket = %q, want backups", cfg.Storage.Bucket)
	}
	if cfg.BigQuery.Project != "my-project" {
		t.Errorf("BigQuery.Project = %q, want my-project", cfg.BigQuery.Project)
	}
	if cfg.Jobs.Workers != 1 {
		t.Errorf("Jobs.Workers = %d, want clamp to 1", cfg.Jobs.Workers)
	}
	if cfg.Jobs.ImportDir != "/srv/imports" {
		t.Errorf("Jobs.ImportDir = %q, want /srv/imports", cfg.Jobs.ImportDir)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
