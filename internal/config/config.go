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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Scorer  ScorerConfig  `yaml:"scorer" mapstructure:"scorer"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeocodeConfig configures the forward geocoding provider.
type GeocodeConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	GoogleKey     string  `yaml:"google_key" mapstructure:"google_key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RetryAttempts int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// SearchConfig configures the fuzzy index.
type SearchConfig struct {
	MinSimilarity float64 `yaml:"min_similarity" mapstructure:"min_similarity"`
}

// ScorerConfig configures the match sweep limits and score weights.
type ScorerConfig struct {
	NameLimit     int     `yaml:"name_limit" mapstructure:"name_limit"`
	AddressLimit  int     `yaml:"address_limit" mapstructure:"address_limit"`
	MaxDistance   int     `yaml:"max_distance" mapstructure:"max_distance"`
	NameWeight    float64 `yaml:"name_weight" mapstructure:"name_weight"`
	AddressWeight float64 `yaml:"address_weight" mapstructure:"address_weight"`
}

// BatchConfig configures batch processing and the geocode cache.
type BatchConfig struct {
	Workers         int  `yaml:"workers" mapstructure:"workers"`
	Limit           int  `yaml:"limit" mapstructure:"limit"`
	GeocodeTTLHours int  `yaml:"geocode_ttl_hours" mapstructure:"geocode_ttl_hours"`
	MultiGeocode    bool `yaml:"multi_geocode" mapstructure:"multi_geocode"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "registry.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.rate_per_second", 1)
	v.SetDefault("geocode.retry_attempts", 3)
	v.SetDefault("search.min_similarity", 0.1)
	v.SetDefault("scorer.name_limit", 50)
	v.SetDefault("scorer.address_limit", 30)
	v.SetDefault("scorer.max_distance", 2)
	v.SetDefault("scorer.name_weight", 3)
	v.SetDefault("scorer.address_weight", 1)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.limit", 100)
	v.SetDefault("batch.geocode_ttl_hours", 720)
	v.SetDefault("batch.multi_geocode", true)
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
