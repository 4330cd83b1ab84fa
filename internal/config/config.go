package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GeocodeConfig configures the Nominatim client shared by the pipeline and
// place search.
type GeocodeConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MinDelayMs   int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	State        string `yaml:"state" mapstructure:"state"`
	CountryCodes string `yaml:"country_codes" mapstructure:"country_codes"`
	CachePath    string `yaml:"cache_path" mapstructure:"cache_path"`
}

// MinDelay returns the minimum interval between upstream calls.
func (g GeocodeConfig) MinDelay() time.Duration {
	return time.Duration(g.MinDelayMs) * time.Millisecond
}

// Timeout returns the per-request timeout.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// PipelineConfig configures the batch geocoding run.
type PipelineConfig struct {
	Concurrency    int `yaml:"concurrency" mapstructure:"concurrency"`
	RetryAttempts  int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// DataConfig locates the geocoded facility table.
type DataConfig struct {
	GeocodedPath string `yaml:"geocoded_path" mapstructure:"geocoded_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("YARDFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "fuel-yard-finder")
	v.SetDefault("geocode.min_delay_ms", 1000)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.state", "NJ")
	v.SetDefault("geocode.country_codes", "us")
	v.SetDefault("geocode.cache_path", "")
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.retry_attempts", 1)
	v.SetDefault("pipeline.retry_backoff_ms", 2000)
	v.SetDefault("data.geocoded_path", "geocoded_yards.csv")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks the settings a command mode depends on. Modes are
// "geocode", "query" and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "geocode":
		if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 16 {
			errs = append(errs, "pipeline.concurrency must be between 1 and 16")
		}
		if c.Pipeline.RetryAttempts < 1 {
			errs = append(errs, "pipeline.retry_attempts must be >= 1")
		}
		errs = append(errs, c.validateGeocode()...)
	case "query":
		if c.Data.GeocodedPath == "" {
			errs = append(errs, "data.geocoded_path is required")
		}
		errs = append(errs, c.validateGeocode()...)
	case "serve":
		if c.Data.GeocodedPath == "" {
			errs = append(errs, "data.geocoded_path is required")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateGeocode()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: %s", strings.Join(errs, "; ")))
	}
	return nil
}

func (c *Config) validateGeocode() []string {
	var errs []string
	if strings.TrimSpace(c.Geocode.UserAgent) == "" {
		errs = append(errs, "geocode.user_agent is required")
	}
	if c.Geocode.MinDelayMs < 0 {
		errs = append(errs, "geocode.min_delay_ms must be >= 0")
	}
	if c.Geocode.TimeoutSecs <= 0 {
		errs = append(errs, "geocode.timeout_secs must be > 0")
	}
	return errs
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
