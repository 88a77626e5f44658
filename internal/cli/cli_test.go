package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/rollcall/internal/config"
	"github.com/lazypower/rollcall/internal/store"
)

// run executes the root command with fresh flag state and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, logLevel = "", ""
	configForce, sweepDryRun = false, false
	membersChat = 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seededConfig writes a config pointing at a fresh SQLite file holding recs.
func seededConfig(t *testing.T, recs ...store.ActivityRecord) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "rollcall.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, rec := range recs {
		if err := db.UpsertActivity(context.Background(), rec); err != nil {
			t.Fatalf("UpsertActivity: %v", err)
		}
	}
	db.Close()

	c := config.Default()
	c.Database.Path = dbPath
	c.Log.Level = "error"
	cfgPath := filepath.Join(dir, "config.toml")
	if err := config.Write(cfgPath, c); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return cfgPath
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "rollcall dev") {
		t.Errorf("output = %q, want rollcall dev prefix", out)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := run(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q, want path", out)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Moderation.WarnAfterDays != 4 || loaded.Moderation.RemoveAfterDays != 5 {
		t.Errorf("thresholds = %d/%d, want 4/5", loaded.Moderation.WarnAfterDays, loaded.Moderation.RemoveAfterDays)
	}

	if _, err := run(t, "config", "init", path); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := run(t, "config", "init", "--force", path); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[moderation]\nwarn_after_days = 5\nremove_after_days = 5\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "--config", path, "conversations")
	if err == nil || !strings.Contains(err.Error(), "remove_after_days") {
		t.Errorf("err = %v, want threshold validation error", err)
	}
}

func TestConversationsAndMembers(t *testing.T) {
	today := store.Day(time.Now())
	cfgPath := seededConfig(t,
		store.ActivityRecord{MemberID: 1, ConversationID: -100, DisplayName: "@fresh", LastActive: today},
		store.ActivityRecord{MemberID: 2, ConversationID: -100, DisplayName: "@gone", LastActive: today.AddDate(0, 0, -10)},
		store.ActivityRecord{MemberID: 3, ConversationID: -200, LastActive: today},
	)

	out, err := run(t, "--config", cfgPath, "conversations")
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if !strings.Contains(out, "-100") || !strings.Contains(out, "-200") {
		t.Errorf("conversations output missing chats:\n%s", out)
	}

	out, err = run(t, "--config", cfgPath, "members", "--chat=-100")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("members output has %d lines, want header + 2:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "@gone") || !strings.Contains(lines[1], "remove") {
		t.Errorf("line 1 = %q, want @gone due for removal", lines[1])
	}
	if !strings.Contains(lines[2], "@fresh") || !strings.Contains(lines[2], "active") {
		t.Errorf("line 2 = %q, want @fresh active", lines[2])
	}

	// The separated form takes the negative id as the flag value too.
	spaced, err := run(t, "--config", cfgPath, "members", "--chat", "-100")
	if err != nil {
		t.Fatalf("members --chat -100: %v", err)
	}
	if spaced != out {
		t.Errorf("--chat -100 output differs from --chat=-100:\n%s", spaced)
	}

	if _, err := run(t, "--config", cfgPath, "members", "--chat=abc"); err == nil {
		t.Error("non-numeric chat id should fail")
	}
	if _, err := run(t, "--config", cfgPath, "members"); err == nil || !strings.Contains(err.Error(), "--chat is required") {
		t.Errorf("members without --chat: err = %v, want --chat is required", err)
	}
}

func TestSweepDryRun(t *testing.T) {
	today := store.Day(time.Now())
	cfgPath := seededConfig(t,
		store.ActivityRecord{MemberID: 1, ConversationID: -100, DisplayName: "@quiet", LastActive: today.AddDate(0, 0, -4)},
		store.ActivityRecord{MemberID: 2, ConversationID: -100, LastActive: today.AddDate(0, 0, -5)},
		store.ActivityRecord{MemberID: 3, ConversationID: -100, DisplayName: "@fresh", LastActive: today},
	)

	out, err := run(t, "--config", cfgPath, "sweep", "--dry-run")
	if err != nil {
		t.Fatalf("sweep --dry-run: %v", err)
	}
	for _, want := range []string{"chat -100: 1 to warn, 1 to remove", "warn    @quiet", "remove  2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "@fresh") {
		t.Errorf("active member listed:\n%s", out)
	}

	// Dry run must not touch the store.
	db, err := store.Open(strings.TrimSuffix(cfgPath, "config.toml") + "rollcall.db")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	rec, err := db.Get(context.Background(), 1, -100)
	if err != nil || rec == nil || rec.Warned {
		t.Errorf("record after dry run = %+v, %v; want unwarned", rec, err)
	}
}

func TestSweepWithoutToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("ROLLCALL_TELEGRAM_TOKEN", "")
	cfgPath := seededConfig(t)

	_, err := run(t, "--config", cfgPath, "sweep")
	if err == nil || !strings.Contains(err.Error(), "no bot token") {
		t.Errorf("err = %v, want missing token error", err)
	}
}

func TestNewLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	tests := []struct {
		level string
		debug bool
		warn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"", false, true},
		{"error", false, false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		l := newLogger(&buf, config.LogConfig{Level: tt.level})
		if got := l.Enabled(context.Background(), slog.LevelDebug); got != tt.debug {
			t.Errorf("level %q: debug enabled = %v, want %v", tt.level, got, tt.debug)
		}
		if got := l.Enabled(context.Background(), slog.LevelWarn); got != tt.warn {
			t.Errorf("level %q: warn enabled = %v, want %v", tt.level, got, tt.warn)
		}
	}

	var buf bytes.Buffer
	newLogger(&buf, config.LogConfig{Format: "json"}).Info("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("json output = %q", buf.String())
	}
}
