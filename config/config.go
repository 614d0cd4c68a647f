package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported security master sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config holds the full application configuration loaded from environment variables or .env file.
//
// Example ENV equivalent:
//
//	SECMASTER_SOURCE=file
//	SECMASTER_PATH=data/isins.tsv
//	BBG_SUFFIX=:AU
//	RIC_SUFFIX=.AX
//	LOOKUP_STRICT_EXIT=false
//	SERVER_PORT=8080
//	POSTGRES_HOST=localhost
//	POSTGRES_DB=isinmap
type Config struct {
	Lookup   LookupConfig   // Security master source and code templates
	Server   ServerConfig   // HTTP server configuration (api mode)
	Postgres PostgresConfig // PostgreSQL connection settings (postgres source, load mode)
}

// LookupConfig controls where rows come from and how codes are derived from a ticker.
//
// Fields:
//   - Source: "file" (stream the TSV on every lookup) or "postgres".
//   - FilePath: path of the tab-separated security master.
//   - BBGSuffix: appended to the ticker to build the Bloomberg code.
//   - RICSuffix: appended to the ticker to build the Reuters code.
//   - StrictExit: exit non-zero when a lookup fails (lookup mode only).
type LookupConfig struct {
	Source     string
	FilePath   string
	BBGSuffix  string
	RICSuffix  string
	StrictExit bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port       string        // The TCP port the HTTP server will listen on (e.g., "8080")
	RateLimit  int           // Requests allowed per client IP per RateWindow
	RateWindow time.Duration // Rate limiter window
}

// PostgresConfig defines connection details for PostgreSQL.
//
// URL is the computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and read by the rest of the application.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// The returned error lists every invalid or missing key. AppConfig is populated
// even when validation fails so callers can still report with the defaults.
func LoadConfig() error {
	v := viper.New()

	v.SetDefault("SECMASTER_SOURCE", SourceFile)
	v.SetDefault("SECMASTER_PATH", "data/isins.tsv")
	v.SetDefault("BBG_SUFFIX", ":AU")
	v.SetDefault("RIC_SUFFIX", ".AX")
	v.SetDefault("LOOKUP_STRICT_EXIT", false)

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("RATE_LIMIT", 60)
	v.SetDefault("RATE_WINDOW", time.Minute)

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "isinmap")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	// Optional .env for local runs
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	AppConfig = Config{
		Lookup: LookupConfig{
			Source:     strings.ToLower(strings.TrimSpace(v.GetString("SECMASTER_SOURCE"))),
			FilePath:   v.GetString("SECMASTER_PATH"),
			BBGSuffix:  v.GetString("BBG_SUFFIX"),
			RICSuffix:  v.GetString("RIC_SUFFIX"),
			StrictExit: v.GetBool("LOOKUP_STRICT_EXIT"),
		},
		Server: ServerConfig{
			Port:       v.GetString("SERVER_PORT"),
			RateLimit:  v.GetInt("RATE_LIMIT"),
			RateWindow: v.GetDuration("RATE_WINDOW"),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
	}

	AppConfig.Postgres.URL = AppConfig.Postgres.DSN()

	return validateConfig(AppConfig)
}

// MustLoadConfig is LoadConfig for long-running modes: it terminates the
// process when the configuration is invalid.
func MustLoadConfig() {
	if err := LoadConfig(); err != nil {
		log.Fatalf("invalid configuration: %v\n", err)
	}
}

// DSN builds the postgres:// connection string for database/sql.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.DBName,
		p.SSLMode,
	)
}

// validateConfig collects every missing or malformed key of cfg.
// Postgres settings are only required when the postgres source is selected.
func validateConfig(cfg Config) error {
	var missing []string

	switch cfg.Lookup.Source {
	case SourceFile:
		if cfg.Lookup.FilePath == "" {
			missing = append(missing, "SECMASTER_PATH")
		}
	case SourcePostgres:
		if cfg.Postgres.Host == "" {
			missing = append(missing, "POSTGRES_HOST")
		}
		if cfg.Postgres.Port == 0 {
			missing = append(missing, "POSTGRES_PORT")
		}
		if cfg.Postgres.User == "" {
			missing = append(missing, "POSTGRES_USER")
		}
		if cfg.Postgres.DBName == "" {
			missing = append(missing, "POSTGRES_DB")
		}
	default:
		return fmt.Errorf("unsupported SECMASTER_SOURCE %q (want %q or %q)", cfg.Lookup.Source, SourceFile, SourcePostgres)
	}

	if cfg.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}
