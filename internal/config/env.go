package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names the entrypoint honors. These override the
// corresponding YAML fields so containers can be configured without a file.
const (
	EnvHostname    = "COURSEBOOT_HOSTNAME"
	EnvDBPassword  = "COURSEBOOT_DB_PASSWORD"
	EnvCertEmail   = "COURSEBOOT_CERT_EMAIL"
	EnvDevMode     = "COURSEBOOT_DEV_MODE"
	EnvBuildPacks  = "COURSEBOOT_BUILD_PACKS"
	EnvAsyncDBURL  = "COURSEBOOT_ASYNC_DB_URL"
	EnvAppRoot     = "COURSEBOOT_APP_ROOT"
	EnvContentRoot = "COURSEBOOT_CONTENT_ROOT"
	EnvLogLevel    = "COURSEBOOT_LOG_LEVEL"
)

// loadEnvFile loads environment variables from .env/.env.local files.
// It attempts each supported filename in order and stops at the first
// successfully parsed file. Existing process environment always wins.
func loadEnvFile() error {
	envPaths := []string{".env", ".env.local"}
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", envPath)
			return nil
		}
	}
	return fmt.Errorf("no .env file found")
}

// applyEnvOverrides layers COURSEBOOT_* variables over the parsed file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvHostname); v != "" {
		cfg.Platform.Hostname = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv(EnvCertEmail); v != "" {
		if cfg.Institution == nil {
			cfg.Institution = &InstitutionConfig{}
		}
		cfg.Institution.Email = v
	}
	if v := os.Getenv(EnvDevMode); v != "" {
		cfg.Launch.DevMode = parseBoolEnv(EnvDevMode, v)
	}
	if v := os.Getenv(EnvBuildPacks); v != "" {
		cfg.Build.Enabled = parseBoolEnv(EnvBuildPacks, v)
	}
	if v := os.Getenv(EnvAsyncDBURL); v != "" {
		cfg.Database.AsyncURL = v
	}
	if v := os.Getenv(EnvAppRoot); v != "" {
		cfg.Paths.AppRoot = v
	}
	if v := os.Getenv(EnvContentRoot); v != "" {
		cfg.Paths.ContentRoot = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		if cfg.Monitoring == nil {
			cfg.Monitoring = &MonitoringConfig{}
		}
		cfg.Monitoring.Logging.Level = NormalizeLogLevel(v)
	}
}

func parseBoolEnv(name, raw string) bool {
	b, err := strconv.ParseBool(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s=%q is not a boolean, treating as false\n", name, raw)
		return false
	}
	return b
}
