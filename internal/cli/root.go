package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lazypower/rollcall/internal/config"
)

// skipConfig marks commands that run without loading the config file.
const skipConfig = "skip-config"

var (
	configPath string
	logLevel   string

	cfg    config.Config
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "Remove inactive members from Telegram groups",
	Long: "Rollcall records the last day each member posted in a group, warns members " +
		"who have been silent for a few days and removes them if they stay silent.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.rollcall/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads .env, the config file and the environment, then sets up
// logging. It runs before every command.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	cfg = c
	logger = newLogger(os.Stderr, cfg.Log)
	return nil
}
