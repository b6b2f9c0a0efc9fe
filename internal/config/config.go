// Package config loads application configuration from file and environment.
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
	API      APIConfig      `yaml:"api" mapstructure:"api"`
	OFGL     OFGLConfig     `yaml:"ofgl" mapstructure:"ofgl"`
	Fallback FallbackConfig `yaml:"fallback" mapstructure:"fallback"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// APIConfig configures the open-data portal client.
type APIConfig struct {
	Domain       string `yaml:"domain" mapstructure:"domain"`
	PageSize     int    `yaml:"page_size" mapstructure:"page_size"`
	PauseMillis  int    `yaml:"pause_millis" mapstructure:"pause_millis"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CatalogLimit int    `yaml:"catalog_limit" mapstructure:"catalog_limit"`
}

// OFGLConfig configures the local-finances portal client.
type OFGLConfig struct {
	Domain  string `yaml:"domain" mapstructure:"domain"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	MaxRows int    `yaml:"max_rows" mapstructure:"max_rows"`
}

// FallbackConfig points at the bundled reference files.
type FallbackConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// OutputConfig configures artifact output.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the optional run-log backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the artifact HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("BUDGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api.domain", "https://data.economie.gouv.fr")
	v.SetDefault("api.page_size", 100)
	v.SetDefault("api.pause_millis", 120)
	v.SetDefault("api.timeout_secs", 60)
	v.SetDefault("api.catalog_limit", 100)
	v.SetDefault("ofgl.domain", "https://data.ofgl.fr")
	v.SetDefault("ofgl.enabled", false)
	v.SetDefault("ofgl.max_rows", 5000)
	v.SetDefault("fallback.dir", "assets/fallback")
	v.SetDefault("output.dir", "out")
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.sqlite_path", "budget.db")
	v.SetDefault("server.port", 8080)
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

// Validate checks the fields a command mode needs before it starts.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.API.Domain != "", "api.domain is required")
	check(c.API.PageSize > 0, "api.page_size must be > 0")
	check(c.API.PauseMillis >= 0, "api.pause_millis must be >= 0")

	switch mode {
	case "fetch", "discover", "probe":
		switch c.Store.Driver {
		case "", "none":
		case "sqlite":
			check(c.Store.SQLitePath != "", "store.sqlite_path is required for sqlite driver")
		case "postgres":
			check(c.Store.DatabaseURL != "", "store.database_url is required for postgres driver")
		default:
			problems = append(problems, "store.driver must be none, sqlite or postgres")
		}
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.Output.Dir != "", "output.dir is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
