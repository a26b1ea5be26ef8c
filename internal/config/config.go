// Package config centralizes viper-backed configuration: defaults, the
// config.yaml file and environment variable bindings.
package config

import (
	"log/slog"
	"os"

	"github.com/spf13/viper"
)

// InitConfig sets defaults, binds environment variables and reads config.yaml
// from the working directory. A missing config file is written out with the
// defaults; any other read error is fatal.
func InitConfig() {
	viper.SetDefault("kodik.baseurl", "https://kodikapi.com")
	viper.SetDefault("kodik.ratelimit", 5)
	viper.SetDefault("database.dbfile", "./kodisync.db")
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")

	viper.AutomaticEnv()
	if err := viper.BindEnv("kodik.token", "KODIK_API_TOKEN"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info("Config file not found, writing default config file...")
			if err := viper.SafeWriteConfig(); err != nil {
				slog.Error("Error writing config file", "error", err)
			}
		} else {
			slog.Error("Fatal error reading config file", "error", err)
			os.Exit(1)
		}
	}
}

// KodikToken returns the API token, from config or KODIK_API_TOKEN.
func KodikToken() string { return viper.GetString("kodik.token") }

// KodikBaseURL returns the API base URL.
func KodikBaseURL() string { return viper.GetString("kodik.baseurl") }

// KodikRateLimit returns the API request cap in requests per second.
func KodikRateLimit() int { return viper.GetInt("kodik.ratelimit") }

// DatabasePath returns the SQLite database file path.
func DatabasePath() string { return viper.GetString("database.dbfile") }

// LogLevel returns the configured log level name.
func LogLevel() string { return viper.GetString("loglevel") }

// LogFile returns the JSON log file path; empty disables file logging.
func LogFile() string { return viper.GetString("logfile") }

// SetLogLevel overrides the configured log level, used by the --log-level flag.
func SetLogLevel(level string) { viper.Set("loglevel", level) }

// SetDatabasePath overrides the database path, used by the --database flag.
func SetDatabasePath(path string) { viper.Set("database.dbfile", path) }
