// Package config loads runtime settings from flags, LIGHTHOUSE_* environment
// variables, an optional yaml file and built in defaults, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LIGHTHOUSE_REDIS_ADDR.
const EnvPrefix = "LIGHTHOUSE"

// Bus drivers.
const (
	BusRedis  = "redis"
	BusMemory = "memory"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Bus      BusConfig      `mapstructure:"bus"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Events   EventsConfig   `mapstructure:"events"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	AccessLog bool   `mapstructure:"access_log"`
}

type BusConfig struct {
	Driver string `mapstructure:"driver"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StreamConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type SnapshotConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type BatchConfig struct {
	MaxConcurrency          int  `mapstructure:"max_concurrency"`
	RestartFailuresAreNoOps bool `mapstructure:"restart_failures_are_noops"`
	EnableBuilds            bool `mapstructure:"enable_builds"`
}

type EventsConfig struct {
	Channel string `mapstructure:"channel"`
}

type ProxyConfig struct {
	Domain string `mapstructure:"domain"`
}

type DockerConfig struct {
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":5000")
	v.SetDefault("http.access_log", true)
	v.SetDefault("bus.driver", BusRedis)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("stream.idle_timeout", 60*time.Second)
	v.SetDefault("snapshot.enabled", true)
	v.SetDefault("snapshot.interval", time.Second)
	v.SetDefault("batch.max_concurrency", 0)
	v.SetDefault("batch.restart_failures_are_noops", true)
	v.SetDefault("batch.enable_builds", true)
	v.SetDefault("events.channel", "server_messages")
	v.SetDefault("proxy.domain", "")
	v.SetDefault("docker.stop_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// RegisterFlags adds the command line flags and binds them to v.
func RegisterFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String("config", "", "path to a yaml config file")
	fs.String("addr", ":5000", "HTTP listen address")
	fs.String("bus", BusRedis, "event bus driver (redis|memory)")
	fs.String("redis-addr", "localhost:6379", "Redis address")
	fs.String("proxy-domain", "", "serve <container>.<domain> through the app proxy")
	fs.String("log-level", "info", "log level (debug|info|warn|error)")
	fs.String("log-format", "text", "log format (text|json)")

	binds := map[string]string{
		"http.addr":    "addr",
		"bus.driver":   "bus",
		"redis.addr":   "redis-addr",
		"proxy.domain": "proxy-domain",
		"log.level":    "log-level",
		"log.format":   "log-format",
	}
	for key, flag := range binds {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads the config file (if any) and decodes v into a Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Bus.Driver {
	case BusRedis, BusMemory:
	default:
		return fmt.Errorf("unknown bus driver %q", c.Bus.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Stream.IdleTimeout <= 0 {
		return fmt.Errorf("stream.idle_timeout must be positive")
	}
	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot.interval must be positive")
	}
	return nil
}

// Logger builds the process logger described by c.Log.
func (c *Config) Logger() *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
