package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/gvp"
)

// Config holds the full application configuration.
type Config struct {
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	GVP    GVPConfig    `yaml:"gvp" mapstructure:"gvp"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
}

// CacheConfig configures the on-disk dataset cache.
type CacheConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Refresh string `yaml:"refresh" mapstructure:"refresh"`
}

// GVPConfig configures access to the GVP web feature service.
type GVPConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// StoreConfig configures the Postgres loader.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path looks
// for config.yaml in the working directory; a missing file there is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("VOLCANOES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.refresh", "never")
	v.SetDefault("gvp.base_url", dataset.DefaultBaseURL)
	v.SetDefault("gvp.timeout_secs", int(gvp.DefaultTimeout/time.Second))
	v.SetDefault("gvp.user_agent", "volcanoes/1.0")
	v.SetDefault("gvp.rate_limit", 2.0)
	v.SetDefault("gvp.concurrency", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.schema", "public")

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

// Validate checks the settings a command needs. mode is one of "fetch",
// "serve" or "load". Every problem is reported in one error.
func (c *Config) Validate(mode string) error {
	var problems []string
	if c.GVP.TimeoutSecs <= 0 {
		problems = append(problems, "gvp.timeout_secs must be > 0")
	}
	if c.GVP.RateLimit < 0 {
		problems = append(problems, "gvp.rate_limit must be >= 0")
	}
	if c.GVP.Concurrency < 1 || c.GVP.Concurrency > 4 {
		problems = append(problems, "gvp.concurrency must be between 1 and 4")
	}
	if _, err := dataset.ParseCadence(c.Cache.Refresh); err != nil {
		problems = append(problems, "cache.refresh: "+err.Error())
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		problems = append(problems, "log.format must be json or console")
	}

	switch mode {
	case "fetch":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	case "load":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return &gvp.ConfigurationError{Reason: strings.Join(problems, "; ")}
	}
	return nil
}

// ClientOptions converts the configuration into gvp client options.
func (c *Config) ClientOptions() (gvp.Options, error) {
	refresh, err := dataset.ParseCadence(c.Cache.Refresh)
	if err != nil {
		return gvp.Options{}, &gvp.ConfigurationError{Field: "cache.refresh", Reason: err.Error()}
	}
	return gvp.Options{
		CacheDir:  c.Cache.Dir,
		BaseURL:   c.GVP.BaseURL,
		Timeout:   time.Duration(c.GVP.TimeoutSecs) * time.Second,
		UserAgent: c.GVP.UserAgent,
		RateLimit: c.GVP.RateLimit,
		Refresh:   refresh,
	}, nil
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
