package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	ServerAddress   string
	Port            int
	NicknamesPath   string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("PLAYERLIST_CONFIG", ""),
		"Path to YAML configuration file (env: PLAYERLIST_CONFIG)")

	flag.StringVar(&cfg.ServerAddress, "server",
		getEnv("PLAYERLIST_SERVER", ""),
		"Game server address to watch (env: PLAYERLIST_SERVER)")

	flag.IntVar(&cfg.Port, "port",
		getEnvInt("PLAYERLIST_PORT", 0),
		"HTTP port, 0 to use the config value (env: PLAYERLIST_PORT)")

	flag.StringVar(&cfg.NicknamesPath, "nicknames",
		getEnv("PLAYERLIST_NICKNAMES", ""),
		"Path to the nickname JSON file (env: PLAYERLIST_NICKNAMES)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("PLAYERLIST_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: PLAYERLIST_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("PLAYERLIST_LOG_FORMAT", "json"),
		"Log format: json, text (env: PLAYERLIST_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("PLAYERLIST_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: PLAYERLIST_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Game Server Player List

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Watch a server with the built-in defaults
  %s --server=mc.example.com

  # Run with a config file and text logging
  %s --config=/etc/playerlist/config.yaml --log-format=text

  # Run with environment variables
  export PLAYERLIST_SERVER=mc.example.com
  export PLAYERLIST_LOG_LEVEL=debug
  %s

  # Validate configuration only
  %s --config=/etc/playerlist/config.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
