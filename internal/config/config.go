package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Realtime source selection.
const (
	RealtimePostgres = "postgres"
	RealtimeRedis    = "redis"
	RealtimeOff      = "off"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PGDSN              string
	OwnerID            string
	WindowDays         int
	PollInterval       time.Duration
	StaleFor           time.Duration
	MetricsDebounce    time.Duration
	RecordingsDebounce time.Duration
	RecordingsLimit    int
	PageSize           int
	Realtime           string
	NotifyChannel      string
	RedisAddr          string
	RedisChannel       string
	MirrorDir          string
	ProfileFallback    time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	Timezone           string
	LogLevel           string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CALLSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("window-days", 14)
	v.SetDefault("poll-interval", 30*time.Second)
	v.SetDefault("stale-for", 15*time.Second)
	v.SetDefault("metrics-debounce", 3*time.Second)
	v.SetDefault("recordings-debounce", 500*time.Millisecond)
	v.SetDefault("recordings-limit", 20)
	v.SetDefault("page-size", 20)
	v.SetDefault("realtime", RealtimePostgres)
	v.SetDefault("notify-channel", "callscope_events")
	v.SetDefault("redis-channel", "callscope_events")
	v.SetDefault("profile-fallback", 400*time.Millisecond)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		PGDSN:              v.GetString("pg-dsn"),
		OwnerID:            v.GetString("owner"),
		WindowDays:         v.GetInt("window-days"),
		PollInterval:       v.GetDuration("poll-interval"),
		StaleFor:           v.GetDuration("stale-for"),
		MetricsDebounce:    v.GetDuration("metrics-debounce"),
		RecordingsDebounce: v.GetDuration("recordings-debounce"),
		RecordingsLimit:    v.GetInt("recordings-limit"),
		PageSize:           v.GetInt("page-size"),
		Realtime:           v.GetString("realtime"),
		NotifyChannel:      v.GetString("notify-channel"),
		RedisAddr:          v.GetString("redis-addr"),
		RedisChannel:       v.GetString("redis-channel"),
		MirrorDir:          v.GetString("mirror-dir"),
		ProfileFallback:    v.GetDuration("profile-fallback"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		Timezone:           v.GetString("timezone"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.WindowDays < 1 {
		return fmt.Errorf("window-days must be at least 1")
	}
	switch c.Realtime {
	case RealtimePostgres, RealtimeRedis, RealtimeOff:
	default:
		return fmt.Errorf("realtime must be one of %s, %s, %s", RealtimePostgres, RealtimeRedis, RealtimeOff)
	}
	if c.Realtime == RealtimeRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis-addr is required with realtime=redis")
	}
	return nil
}

// Location resolves the configured timezone, defaulting to the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	return loc, nil
}
