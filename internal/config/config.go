package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Config holds all rollcall configuration.
type Config struct {
	Telegram   TelegramConfig   `toml:"telegram" mapstructure:"telegram"`
	Server     ServerConfig     `toml:"server" mapstructure:"server"`
	Database   DatabaseConfig   `toml:"database" mapstructure:"database"`
	Moderation ModerationConfig `toml:"moderation" mapstructure:"moderation"`
	Log        LogConfig        `toml:"log" mapstructure:"log"`
}

type TelegramConfig struct {
	Token       string  `toml:"token" mapstructure:"token"`
	TokenParam  string  `toml:"token_param" mapstructure:"token_param"` // SSM parameter name, used when token is empty
	APIURL      string  `toml:"api_url" mapstructure:"api_url"`
	PollTimeout int     `toml:"poll_timeout" mapstructure:"poll_timeout"` // seconds
	RateLimit   float64 `toml:"rate_limit" mapstructure:"rate_limit"`     // requests per second
}

type ServerConfig struct {
	Bind     string `toml:"bind" mapstructure:"bind"`
	Port     int    `toml:"port" mapstructure:"port"`
	APIToken string `toml:"api_token" mapstructure:"api_token"` // bearer token for /api/conversations; empty disables those routes
}

type DatabaseConfig struct {
	Driver string `toml:"driver" mapstructure:"driver"` // "sqlite", "dynamodb"
	Path   string `toml:"path" mapstructure:"path"`
	Table  string `toml:"table" mapstructure:"table"`
}

type ModerationConfig struct {
	WarnAfterDays   int    `toml:"warn_after_days" mapstructure:"warn_after_days"`
	RemoveAfterDays int    `toml:"remove_after_days" mapstructure:"remove_after_days"`
	SweepAt         string `toml:"sweep_at" mapstructure:"sweep_at"`             // HH:MM, UTC
	ActionTimeout   int    `toml:"action_timeout" mapstructure:"action_timeout"` // seconds
	Concurrency     int    `toml:"concurrency" mapstructure:"concurrency"`
	Ban             bool   `toml:"ban" mapstructure:"ban"` // keep removed members banned
}

type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"` // "text", "json"
}

const (
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			APIURL:      "https://api.telegram.org",
			PollTimeout: 50,
			RateLimit:   25,
		},
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 10000,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "", // resolved at runtime via store.DefaultDBPath()
			Table:  "rollcall-members",
		},
		Moderation: ModerationConfig{
			WarnAfterDays:   4,
			RemoveAfterDays: 5,
			SweepAt:         "00:05",
			ActionTimeout:   15,
			Concurrency:     4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file path: ~/.rollcall/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".rollcall", "config.toml"), nil
}

// Load reads the TOML file at path (or the default path when empty) on top
// of Default(), then applies environment overrides. A missing default file
// is not an error; a missing explicit path is.
//
// Every key can be set as ROLLCALL_<SECTION>_<KEY>, e.g.
// ROLLCALL_MODERATION_SWEEP_AT. BOT_TOKEN and PORT are honored as well.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("rollcall")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return Config{}, err
		}
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if tok := os.Getenv("BOT_TOKEN"); tok != "" && cfg.Telegram.Token == "" {
		cfg.Telegram.Token = tok
	}
	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", p, err)
		}
		cfg.Server.Port = port
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// the config file does not mention.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("telegram.token", d.Telegram.Token)
	v.SetDefault("telegram.token_param", d.Telegram.TokenParam)
	v.SetDefault("telegram.api_url", d.Telegram.APIURL)
	v.SetDefault("telegram.poll_timeout", d.Telegram.PollTimeout)
	v.SetDefault("telegram.rate_limit", d.Telegram.RateLimit)
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_token", d.Server.APIToken)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.table", d.Database.Table)
	v.SetDefault("moderation.warn_after_days", d.Moderation.WarnAfterDays)
	v.SetDefault("moderation.remove_after_days", d.Moderation.RemoveAfterDays)
	v.SetDefault("moderation.sweep_at", d.Moderation.SweepAt)
	v.SetDefault("moderation.action_timeout", d.Moderation.ActionTimeout)
	v.SetDefault("moderation.concurrency", d.Moderation.Concurrency)
	v.SetDefault("moderation.ban", d.Moderation.Ban)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Write marshals cfg as TOML to path, creating parent directories.
// Secrets are never written; keep them in the environment.
func Write(path string, cfg Config) error {
	cfg.Telegram.Token = ""
	cfg.Server.APIToken = ""
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the values the moderation core depends on.
func (c *Config) Validate() error {
	m := c.Moderation
	if m.WarnAfterDays < 1 {
		return fmt.Errorf("moderation.warn_after_days must be at least 1, got %d", m.WarnAfterDays)
	}
	if m.RemoveAfterDays <= m.WarnAfterDays {
		return fmt.Errorf("moderation.remove_after_days (%d) must be greater than warn_after_days (%d)", m.RemoveAfterDays, m.WarnAfterDays)
	}
	if _, err := ParseClock(m.SweepAt); err != nil {
		return err
	}
	if m.ActionTimeout <= 0 {
		return fmt.Errorf("moderation.action_timeout must be positive, got %d", m.ActionTimeout)
	}
	if m.Concurrency < 1 {
		return fmt.Errorf("moderation.concurrency must be at least 1, got %d", m.Concurrency)
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverDynamoDB:
		if c.Database.Table == "" {
			return errors.New("database.table is required for the dynamodb driver")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Timeout returns the per-action timeout.
func (m ModerationConfig) Timeout() time.Duration {
	return time.Duration(m.ActionTimeout) * time.Second
}

// ClockTime is a time of day in UTC.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid sweep time %q (want HH:MM): %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
