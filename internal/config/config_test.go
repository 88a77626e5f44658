package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate: %v", err)
	}
	if cfg.Moderation.WarnAfterDays != 4 || cfg.Moderation.RemoveAfterDays != 5 {
		t.Errorf("thresholds = %d/%d, want 4/5", cfg.Moderation.WarnAfterDays, cfg.Moderation.RemoveAfterDays)
	}
	if cfg.Moderation.SweepAt != "00:05" {
		t.Errorf("SweepAt = %q, want 00:05", cfg.Moderation.SweepAt)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"warn zero", func(c *Config) { c.Moderation.WarnAfterDays = 0 }},
		{"remove not after warn", func(c *Config) { c.Moderation.RemoveAfterDays = 4 }},
		{"bad sweep time", func(c *Config) { c.Moderation.SweepAt = "25:00" }},
		{"zero timeout", func(c *Config) { c.Moderation.ActionTimeout = 0 }},
		{"zero concurrency", func(c *Config) { c.Moderation.Concurrency = 0 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"dynamodb without table", func(c *Config) {
			c.Database.Driver = DriverDynamoDB
			c.Database.Table = ""
		}},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tc.name)
		}
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("Port = %d, want default %d", cfg.Server.Port, Default().Server.Port)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Load of missing explicit path succeeded, want error")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = 8080

[moderation]
sweep_at = "03:30"
concurrency = 2

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ROLLCALL_MODERATION_CONCURRENCY", "8")
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Moderation.SweepAt != "03:30" {
		t.Errorf("SweepAt = %q, want 03:30", cfg.Moderation.SweepAt)
	}
	if cfg.Moderation.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8 from env", cfg.Moderation.Concurrency)
	}
	if cfg.Moderation.WarnAfterDays != 4 {
		t.Errorf("WarnAfterDays = %d, want default 4", cfg.Moderation.WarnAfterDays)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("Token = %q, want value from BOT_TOKEN", cfg.Telegram.Token)
	}
}

func TestLoadPortEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr() != "0.0.0.0:9999" {
		t.Errorf("ListenAddr = %q, want 0.0.0.0:9999", cfg.ListenAddr())
	}

	t.Setenv("PORT", "not-a-port")
	if _, err := Load(""); err == nil {
		t.Error("Load with invalid PORT succeeded, want error")
	}
}

func TestWriteOmitsToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Telegram.Token = "secret"
	cfg.Server.APIToken = "inspect-secret"
	cfg.Moderation.SweepAt = "01:15"

	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Telegram.Token != "" {
		t.Errorf("Token = %q, want empty", loaded.Telegram.Token)
	}
	if loaded.Server.APIToken != "" {
		t.Errorf("APIToken = %q, want empty", loaded.Server.APIToken)
	}
	if loaded.Moderation.SweepAt != "01:15" {
		t.Errorf("SweepAt = %q, want 01:15", loaded.Moderation.SweepAt)
	}
}

func TestAPITokenFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if cfg, err := Load(""); err != nil || cfg.Server.APIToken != "" {
		t.Fatalf("default APIToken = %q (err %v), want empty", cfg.Server.APIToken, err)
	}

	t.Setenv("ROLLCALL_SERVER_API_TOKEN", "inspect-secret")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.APIToken != "inspect-secret" {
		t.Errorf("APIToken = %q, want value from ROLLCALL_SERVER_API_TOKEN", cfg.Server.APIToken)
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("00:05")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if c.Hour != 0 || c.Minute != 5 {
		t.Errorf("ParseClock = %+v, want 00:05", c)
	}
	if c.String() != "00:05" {
		t.Errorf("String = %q, want 00:05", c.String())
	}

	for _, bad := range []string{"", "5", "12:60", "noon"} {
		if _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q) = nil error, want error", bad)
		}
	}
}
