package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the effective entrypoint configuration: the YAML file
// (if any) with environment expansion, .env loading and COURSEBOOT_* overrides
// applied on top.
type Config struct {
	Version     string             `yaml:"version,omitempty"`
	Platform    PlatformConfig     `yaml:"platform"`
	Database    DatabaseConfig     `yaml:"database"`
	Paths       PathsConfig        `yaml:"paths,omitempty"`
	Probe       ProbeConfig        `yaml:"probe,omitempty"`
	Launch      LaunchConfig       `yaml:"launch,omitempty"`
	Build       BuildConfig        `yaml:"build,omitempty"`
	Rosters     RosterConfig       `yaml:"rosters,omitempty"`
	Institution *InstitutionConfig `yaml:"institution,omitempty"`
	Monitoring  *MonitoringConfig  `yaml:"monitoring,omitempty"`
	Events      *EventsConfig      `yaml:"events,omitempty"`
	Journal     *JournalConfig     `yaml:"journal,omitempty"`
	Commands    CommandsConfig     `yaml:"commands,omitempty"`
}

// Load loads a configuration file and applies the full pipeline:
// .env loading, environment expansion, unmarshal, env overrides,
// defaults and validation.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Version != "" && !strings.HasPrefix(config.Version, "1") {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected 1.x)", config.Version)
	}

	return finalize(&config)
}

// LoadOrDefault behaves like Load but falls back to a pure
// defaults-plus-environment configuration when the file does not exist.
// Containers that configure everything through the environment ship no YAML.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	return finalize(&Config{})
}

// finalize applies env overrides, defaults and validation to a parsed config.
func finalize(config *Config) (*Config, error) {
	applyEnvOverrides(config)

	if err := applyDefaults(config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Version: "1",
		Platform: PlatformConfig{
			Hostname:     "courses.example.edu",
			ServiceUser:  "courseware",
			ServiceGroup: "courseware",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "courseware",
			User:     "courseware",
			Password: "${COURSEBOOT_DB_PASSWORD}",
		},
		Probe: ProbeConfig{
			Attempts: 10,
			Interval: "2s",
		},
		Launch: LaunchConfig{
			DevMode: false,
			Restart: RestartConfig{
				Backoff:      RetryBackoffExponential,
				InitialDelay: "1s",
				MaxDelay:     "30s",
				MaxRetries:   5,
			},
		},
		Build: BuildConfig{
			Enabled: false,
			Workers: 2,
		},
		Institution: &InstitutionConfig{
			Name:  "Example Institution",
			Email: "${COURSEBOOT_CERT_EMAIL}",
		},
		Monitoring: &MonitoringConfig{
			Metrics: MonitoringMetrics{Enabled: false, Listen: ":9309", Path: "/metrics"},
			Logging: MonitoringLogging{Level: LogLevelInfo, Format: LogFormatText},
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
