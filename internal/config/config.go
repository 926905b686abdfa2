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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ImportConfig configures the listing import run.
type ImportConfig struct {
	Source           string  `yaml:"source" mapstructure:"source"`
	BatchSize        int     `yaml:"batch_size" mapstructure:"batch_size"`
	MinScore         int     `yaml:"min_score" mapstructure:"min_score"`
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	ReportDir        string  `yaml:"report_dir" mapstructure:"report_dir"`
	BatchesPerSecond float64 `yaml:"batches_per_second" mapstructure:"batches_per_second"`
	CityTable        string  `yaml:"city_table" mapstructure:"city_table"`
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
	v.SetEnvPrefix("LISTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("import.source", "google_maps")
	v.SetDefault("import.batch_size", 200)
	v.SetDefault("import.min_score", 6)
	v.SetDefault("import.workers", 4)
	v.SetDefault("import.report_dir", ".")
	v.SetDefault("import.batches_per_second", 0)
	v.SetDefault("import.city_table", "")
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

// Validate checks the settings an import run cannot start without.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required (LISTING_STORE_DATABASE_URL)")
		}
	case "sqlite":
	default:
		return eris.Errorf("config: store.driver %q is not supported", c.Store.Driver)
	}
	return c.ValidateImport()
}

// ValidateImport checks only the import settings. Dry runs never open the
// store, so they validate with this instead of Validate.
func (c *Config) ValidateImport() error {
	if c.Import.BatchSize <= 0 {
		return eris.Errorf("config: import.batch_size must be > 0, got %d", c.Import.BatchSize)
	}
	if c.Import.MinScore < 0 || c.Import.MinScore > 10 {
		return eris.Errorf("config: import.min_score must be between 0 and 10, got %d", c.Import.MinScore)
	}
	if c.Import.Source == "" {
		return eris.New("config: import.source is required")
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
