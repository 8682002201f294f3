package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. FINLEDGER_LEDGER_PATH.
const EnvPrefix = "FINLEDGER"

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
	Table   string `mapstructure:"table"`
}

type JobsConfig struct {
	Workers int `mapstructure:"workers"`
	Buffer  int `mapstructure:"buffer"`
	// ImportDir is the only local directory HTTP import jobs may read.
	ImportDir string `mapstructure:"import_dir"`
}

type Config struct {
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ledger.path", "transactions.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.port", "8080")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "finance")
	v.SetDefault("bigquery.table", "ledger_transactions")
	// One worker keeps imports single-writer.
	v.SetDefault("jobs.workers", 1)
	v.SetDefault("jobs.buffer", 100)
	v.SetDefault("jobs.import_dir", "")
}

// Load reads configuration from defaults, the YAML file at path (optional;
// "config.yaml" in the working directory is tried when path is empty) and
// FINLEDGER_* environment variables, in increasing priority.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit path must exist; the implicit config.yaml is optional.
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.Jobs.Workers < 1 {
		c.Jobs.Workers = 1
	}
	if c.Jobs.Buffer < 1 {
		c.Jobs.Buffer = 1
	}
	return &c, nil
}
