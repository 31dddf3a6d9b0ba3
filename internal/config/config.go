// Package config loads server configuration from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TASKVIEWS_SERVER_PORT.
const EnvPrefix = "TASKVIEWS"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Preview  PreviewConfig  `mapstructure:"preview"`
	Events   EventsConfig   `mapstructure:"events"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // "sqlite" or "memory"
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	Seed         string `mapstructure:"seed"` // optional YAML task fixture loaded at startup
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

type EngineConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the engine timezone.
func (e EngineConfig) Location() (*time.Location, error) {
	return time.LoadLocation(e.Timezone)
}

type PreviewConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	MaxAge      time.Duration `mapstructure:"max_age"`
	MaxSessions int           `mapstructure:"max_sessions"`
	RecordLimit int           `mapstructure:"record_limit"` // records per bucket sent to the socket
}

type EventsConfig struct {
	Buffer int `mapstructure:"buffer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:taskviews.db?_pragma=foreign_keys(1)")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.seed", "")
	v.SetDefault("engine.timezone", "Asia/Shanghai")
	v.SetDefault("preview.idle_timeout", "30m")
	v.SetDefault("preview.max_age", "8h")
	v.SetDefault("preview.max_sessions", 100)
	v.SetDefault("preview.record_limit", 200)
	v.SetDefault("events.buffer", 256)
}

// Load reads configuration. path names a YAML file; when empty,
// TASKVIEWS_CONFIG is consulted and then ./taskviews.yaml if present.
// PORT and DATABASE_URL are honoured for compatibility with older
// deployments.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := errors.Join(
		v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"),
		v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL"),
		v.BindEnv("config", EnvPrefix+"_CONFIG"),
	); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("taskviews")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and resolves the timezone.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for sqlite"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver '%s' is not sqlite or memory", c.Database.Driver))
	}
	if c.Database.MaxOpenConns < 1 {
		errs = append(errs, errors.New("database.max_open_conns must be positive"))
	}
	if _, err := c.Engine.Location(); err != nil {
		errs = append(errs, fmt.Errorf("engine.timezone: %w", err))
	}
	if c.Preview.IdleTimeout <= 0 || c.Preview.MaxAge <= 0 {
		errs = append(errs, errors.New("preview timeouts must be positive"))
	}
	if c.Preview.MaxSessions < 1 {
		errs = append(errs, errors.New("preview.max_sessions must be positive"))
	}
	if c.Events.Buffer < 1 {
		errs = append(errs, errors.New("events.buffer must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
