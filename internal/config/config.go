// Package config loads runtime settings from defaults, an optional YAML file
// and USERNAMESCAN_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/tdh8316/usernamescan/internal/httpx"
	"github.com/tdh8316/usernamescan/internal/relay"
)

const EnvPrefix = "USERNAMESCAN"

type Config struct {
	HTTP   HTTPConfig   `mapstructure:"http"`
	Relay  RelayConfig  `mapstructure:"relay"`
	Scan   ScanConfig   `mapstructure:"scan"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	UserAgents        []string      `mapstructure:"user_agents"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	WithTor           bool          `mapstructure:"with_tor"`
	TorProxyURL       string        `mapstructure:"tor_proxy_url"`
}

type RelayConfig struct {
	Endpoints []string `mapstructure:"endpoints"`
}

type ScanConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	PlatformsFile string `mapstructure:"platforms_file"`
}

type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	Mode        string        `mapstructure:"mode"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	Burst       int           `mapstructure:"burst"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Loader wraps a private viper instance so tests and commands do not share
// global state.
type Loader struct {
	path  string
	viper *viper.Viper
}

func NewLoader(path string) *Loader {
	l := &Loader{path: path, viper: viper.New()}
	l.viper.SetConfigType("yaml")
	l.viper.SetEnvPrefix(EnvPrefix)
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()
	setDefaults(l.viper)
	return l
}

// Set overrides key with the highest precedence. Commands use it for flags
// the user passed explicitly.
func (l *Loader) Set(key string, value any) {
	l.viper.Set(key, value)
}

func (l *Loader) Load() (*Config, error) {
	if l.path != "" {
		l.viper.SetConfigFile(l.path)
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", l.path)
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// Load is shorthand for NewLoader(path).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", httpx.DefaultTimeout)
	v.SetDefault("http.max_body_bytes", httpx.DefaultMaxBodyBytes)
	v.SetDefault("http.user_agents", httpx.DefaultUserAgents)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.with_tor", false)
	v.SetDefault("http.tor_proxy_url", httpx.DefaultTorProxyURL)

	v.SetDefault("relay.endpoints", relay.DefaultEndpoints)

	v.SetDefault("scan.concurrency", 0)
	v.SetDefault("scan.platforms_file", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cache_ttl", 60*time.Second)
	v.SetDefault("server.rate_limit", 5)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file_path", "logs/usernamescan.log")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.compress", false)
}

func (c *Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive")
	}
	if c.HTTP.RequestsPerSecond < 0 || c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.Scan.Concurrency < 0 {
		return fmt.Errorf("scan.concurrency must not be negative")
	}
	if c.Server.CacheTTL < 0 {
		return fmt.Errorf("server.cache_ttl must not be negative")
	}
	for _, ep := range c.Relay.Endpoints {
		if !strings.Contains(ep, "{url}") {
			return fmt.Errorf("relay endpoint %q has no {url} placeholder", ep)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Output) {
	case "stdout", "stderr":
	case "file":
		if c.Log.FilePath == "" {
			return fmt.Errorf("log.file_path is required when log.output is file")
		}
	default:
		return fmt.Errorf("log.output must be stdout, stderr or file, got %q", c.Log.Output)
	}
	return nil
}
