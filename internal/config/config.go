package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"go-insight-pipeline/internal/enrich"
	"go-insight-pipeline/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig       `yaml:"store" mapstructure:"store"`
	Storage StorageConfig     `yaml:"storage" mapstructure:"storage"`
	Queue   model.RetryConfig `yaml:"queue" mapstructure:"queue"`
	Cache   CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Enrich  EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Server  ServerConfig      `yaml:"server" mapstructure:"server"`
	Log     LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the sqlite database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StorageConfig selects where uploaded files live. Driver is "fs" or "sqlite".
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

// CacheConfig controls whether cached results are written through to the store.
type CacheConfig struct {
	Persist bool `yaml:"persist" mapstructure:"persist"`
}

// EnrichConfig configures model-backed insights and dashboard blueprints.
type EnrichConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	enrich.Config `yaml:",inline" mapstructure:",squash"`
	DefaultQuota  int `yaml:"default_quota" mapstructure:"default_quota"`
}

// ServerConfig configures the HTTP API.
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
	v.SetEnvPrefix("INSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one so AutomaticEnv can override it.
	v.SetDefault("store.path", "insight.db")
	v.SetDefault("storage.driver", "fs")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.base_delay", "1s")
	v.SetDefault("cache.persist", true)
	v.SetDefault("enrich.enabled", false)
	v.SetDefault("enrich.api_key", "")
	v.SetDefault("enrich.model", "claude-haiku-4-5-20251001")
	v.SetDefault("enrich.max_tokens", 1024)
	v.SetDefault("enrich.requests_per_second", 1.0)
	v.SetDefault("enrich.default_quota", -1)
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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "fs", "sqlite":
	default:
		return eris.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Queue.MaxAttempts < 1 {
		return eris.Errorf("config: queue.max_attempts must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	if c.Queue.BaseDelay < 0 {
		return eris.New("config: queue.base_delay must not be negative")
	}
	if c.Enrich.Enabled && c.Enrich.APIKey == "" {
		return eris.New("config: enrich.api_key is required when enrich.enabled is set")
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
