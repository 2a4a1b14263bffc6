package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Ledger   LedgerConfig   `yaml:"ledger" mapstructure:"ledger"`
	Grouping GroupingConfig `yaml:"grouping" mapstructure:"grouping"`
	Family   FamilyConfig   `yaml:"family" mapstructure:"family"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the ledger snapshot backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LedgerConfig fixes the month range the ledger tracks. The column
// contract is derived from it.
type LedgerConfig struct {
	Start         string `yaml:"start" mapstructure:"start"`
	End           string `yaml:"end" mapstructure:"end"`
	NotApplicable string `yaml:"not_applicable" mapstructure:"not_applicable"`
}

// GroupingConfig tunes provider grouping.
type GroupingConfig struct {
	NameThreshold  float64 `yaml:"name_threshold" mapstructure:"name_threshold"`
	SubstringMin   int     `yaml:"substring_min" mapstructure:"substring_min"`
	AddressPrefix  int     `yaml:"address_prefix" mapstructure:"address_prefix"`
	Window         int     `yaml:"window" mapstructure:"window"`
	MaxClusterSize int     `yaml:"max_cluster_size" mapstructure:"max_cluster_size"`
}

// FamilyConfig tunes entity family grouping.
type FamilyConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// IngestConfig configures spreadsheet mapping.
type IngestConfig struct {
	FieldMap     string `yaml:"field_map" mapstructure:"field_map"`
	ProviderType string `yaml:"provider_type" mapstructure:"provider_type"`
	WorkDir      string `yaml:"work_dir" mapstructure:"work_dir"`
}

// FetchConfig configures downloads of published workbooks.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADHS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "adhs-etl.db")
	v.SetDefault("ledger.start", "2022-09")
	v.SetDefault("ledger.end", "2025-12")
	v.SetDefault("ledger.not_applicable", "N/A")
	v.SetDefault("grouping.name_threshold", 85.0)
	v.SetDefault("grouping.substring_min", 20)
	v.SetDefault("grouping.address_prefix", 20)
	v.SetDefault("grouping.window", 30)
	v.SetDefault("grouping.max_cluster_size", 25)
	v.SetDefault("family.threshold", 85.0)
	v.SetDefault("ingest.field_map", "")
	v.SetDefault("ingest.provider_type", "")
	v.SetDefault("ingest.work_dir", "")
	v.SetDefault("fetch.user_agent", "adhs-etl/1.0")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	needsStore := false
	switch mode {
	case "run", "ledger", "migrate":
		needsStore = true
	case "families":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsStore {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Ledger.Start == "" || c.Ledger.End == "" {
			errs = append(errs, "ledger.start and ledger.end are required")
		}
	}

	if mode == "run" {
		if c.Grouping.NameThreshold < 0 || c.Grouping.NameThreshold > 100 {
			errs = append(errs, "grouping.name_threshold must be between 0 and 100")
		}
		if c.Grouping.Window < 0 {
			errs = append(errs, "grouping.window must be >= 0")
		}
	}
	if mode == "families" && (c.Family.Threshold < 0 || c.Family.Threshold > 100) {
		errs = append(errs, "family.threshold must be between 0 and 100")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
