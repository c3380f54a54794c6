package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	customerrors "github.com/301redirect/redirector/internal/errors"
)

// Resolver modes. ModeHost looks up the CNAME of the inbound Host header,
// ModeFixed always looks up Resolver.FixedDomain.
const (
	ModeHost  = "host"
	ModeFixed = "fixed"
)

// Config represents the main structure mapping the entire application configuration.
type Config struct {
	Server struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		LenientNotFound bool          `mapstructure:"lenient_not_found"` // answer 200 instead of 404 when nothing matches
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Database struct {
		DSN string `mapstructure:"dsn"` // postgres:// URL or SQLite file name
	} `mapstructure:"database"`

	Resolver struct {
		Endpoint    string        `mapstructure:"endpoint"`
		Mode        string        `mapstructure:"mode"`
		FixedDomain string        `mapstructure:"fixed_domain"`
		Timeout     time.Duration `mapstructure:"timeout"`
		Cache       struct {
			Enabled     bool          `mapstructure:"enabled"`
			MaxEntries  int64         `mapstructure:"max_entries"`
			MinTTL      time.Duration `mapstructure:"min_ttl"`
			MaxTTL      time.Duration `mapstructure:"max_ttl"`
			NegativeTTL time.Duration `mapstructure:"negative_ttl"`
		} `mapstructure:"cache"`
	} `mapstructure:"resolver"`

	Redirect struct {
		ApexDomain string `mapstructure:"apex_domain"`
	} `mapstructure:"redirect"`

	Hits struct {
		BufferSize  int           `mapstructure:"buffer_size"`
		WorkerCount int           `mapstructure:"worker_count"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"hits"`

	Monitor struct {
		Interval time.Duration `mapstructure:"interval"` // zero disables the target monitor
	} `mapstructure:"monitor"`

	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
}

// legacyEnv lists the environment names the service has always been deployed with.
// They are checked after the SECTION_KEY form produced by AutomaticEnv.
var legacyEnv = map[string]string{
	"server.host":          "HOST",
	"server.port":          "PORT",
	"database.dsn":         "DB_CONNECTION",
	"resolver.endpoint":    "RESOLVER_URL",
	"redirect.apex_domain": "APEX_DOMAIN",
}

// LoadConfig loads the application configuration using Viper.
// A .env file in the working directory is loaded into the environment first.
// configFile may be empty, in which case ./configs/config.yaml is used when present.
func LoadConfig(configFile string) (*Config, error) {
	_ = godotenv.Load() // a missing .env is the normal case in production

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath("./configs")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, &customerrors.ErrConfigLoad{Path: configFile, Reason: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.lenient_not_found", false)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.dsn", "redirects.db")
	v.SetDefault("resolver.endpoint", "https://dns.google/resolve")
	v.SetDefault("resolver.mode", ModeHost)
	v.SetDefault("resolver.fixed_domain", "")
	v.SetDefault("resolver.timeout", "5s")
	v.SetDefault("resolver.cache.enabled", true)
	v.SetDefault("resolver.cache.max_entries", 10000)
	v.SetDefault("resolver.cache.min_ttl", "10s")
	v.SetDefault("resolver.cache.max_ttl", "5m")
	v.SetDefault("resolver.cache.negative_ttl", "30s")
	v.SetDefault("redirect.apex_domain", "301redirect.to")
	v.SetDefault("hits.buffer_size", 1000)
	v.SetDefault("hits.worker_count", 5)
	v.SetDefault("hits.timeout", "5s")
	v.SetDefault("monitor.interval", "0s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func (c *Config) normalize() {
	c.Redirect.ApexDomain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(c.Redirect.ApexDomain)), ".")
	c.Resolver.Mode = strings.ToLower(strings.TrimSpace(c.Resolver.Mode))
	c.Resolver.FixedDomain = strings.ToLower(strings.TrimSpace(c.Resolver.FixedDomain))
}

// Validate checks the settings the resolution path cannot work without.
func (c *Config) Validate() error {
	if c.Redirect.ApexDomain == "" {
		return &customerrors.ErrConfigLoad{Reason: "redirect.apex_domain must not be empty"}
	}
	switch c.Resolver.Mode {
	case ModeHost:
	case ModeFixed:
		if c.Resolver.FixedDomain == "" {
			return &customerrors.ErrConfigLoad{Reason: "resolver.fixed_domain is required in fixed mode"}
		}
	default:
		return &customerrors.ErrConfigLoad{Reason: fmt.Sprintf("unknown resolver.mode %q", c.Resolver.Mode)}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &customerrors.ErrConfigLoad{Reason: fmt.Sprintf("server.port %d out of range", c.Server.Port)}
	}
	if c.Resolver.Endpoint == "" {
		return &customerrors.ErrConfigLoad{Reason: "resolver.endpoint must not be empty"}
	}
	if c.Hits.WorkerCount < 1 {
		c.Hits.WorkerCount = 1
	}
	if c.Hits.BufferSize < 0 {
		c.Hits.BufferSize = 0
	}
	return nil
}

// NotFoundStatus is the status code written when a request resolves to nothing.
func (c *Config) NotFoundStatus() int {
	if c.Server.LenientNotFound {
		return 200
	}
	return 404
}

// Addr is the listen address of the redirect server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
