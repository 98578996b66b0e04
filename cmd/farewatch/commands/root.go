// Package commands implements the CLI commands for farewatch.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/farewatch/internal/config"
	"github.com/jmylchreest/farewatch/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "farewatch",
	Short: "Airline fare watcher that gets past anti-bot challenges",
	Long: `Farewatch checks airline fares for a list of routes, gets past the
interstitial challenge page with a real or synthetic pointer, extracts the
offers and appends them to a price history.

Examples:
  # Check the routes in config.yml with the default profile
  farewatch check

  # One route, printed as JSON, using the OS pointer
  farewatch check -r BKK:HKT:15/03/2026 --profile physical -f json

  # Is the site serving a challenge right now?
  farewatch probe

  # Run daily at 08:00 Bangkok time
  farewatch schedule 8`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ./config.yml or $HOME/.farewatch/config.yml)")
	flags.String("profile", "", "run profile: passive, headed, virtual, physical or one defined in the config")
	flags.String("debug-dir", "", "save screenshots and page markup here when a stage fails")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "suppress progress output")
	flags.Bool("json-logs", false, "write logs as JSON")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("profile", flags.Lookup("profile"))
	_ = viper.BindPFlag("debug_dir", flags.Lookup("debug-dir"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("json_logs", flags.Lookup("json-logs"))

	// Unset flags fall back to these before their own empty defaults.
	viper.SetDefault("profile", config.Default().Profile)
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".farewatch"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FAREWATCH")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initLogger() {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("json_logs"),
	})
}

// loadConfig decodes and validates the merged file, env and flag settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", "path", used, "profile", cfg.Profile, "routes", len(cfg.Routes))
	} else {
		logger.Debug("no config file found, using defaults", "profile", cfg.Profile)
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
