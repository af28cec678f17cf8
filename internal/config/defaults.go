package config

import (
	"fmt"
	"path/filepath"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// CompositeDefaultApplier applies defaults across all configuration domains.
// Order matters: commands derive their default argv from paths and launch.
type CompositeDefaultApplier struct {
	appliers []DefaultApplier
}

// NewDefaultApplier creates a composite default applier with all domain appliers.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{
		appliers: []DefaultApplier{
			&PlatformDefaultApplier{},
			&DatabaseDefaultApplier{},
			&PathsDefaultApplier{},
			&ProbeDefaultApplier{},
			&LaunchDefaultApplier{},
			&BuildDefaultApplier{},
			&MonitoringDefaultApplier{},
			&EventsDefaultApplier{},
			&JournalDefaultApplier{},
			&CommandsDefaultApplier{},
		},
	}
}

// ApplyDefaults applies defaults for all configuration domains.
func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, applier := range c.appliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("applying defaults for %s: %w", applier.Domain(), err)
		}
	}
	return nil
}

// GetApplierByDomain returns a specific domain applier (useful for testing).
func (c *CompositeDefaultApplier) GetApplierByDomain(domain string) DefaultApplier {
	for _, applier := range c.appliers {
		if applier.Domain() == domain {
			return applier
		}
	}
	return nil
}

func applyDefaults(config *Config) error {
	return NewDefaultApplier().ApplyDefaults(config)
}

// PlatformDefaultApplier handles platform identity defaults.
type PlatformDefaultApplier struct{}

func (p *PlatformDefaultApplier) Domain() string { return "platform" }

func (p *PlatformDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Platform.ServiceUser == "" {
		cfg.Platform.ServiceUser = "courseware"
	}
	if cfg.Platform.ServiceGroup == "" {
		cfg.Platform.ServiceGroup = cfg.Platform.ServiceUser
	}
	return nil
}

// DatabaseDefaultApplier handles database connection defaults.
type DatabaseDefaultApplier struct{}

func (d *DatabaseDefaultApplier) Domain() string { return "database" }

func (d *DatabaseDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "courseware"
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "courseware"
	}
	return nil
}

// PathsDefaultApplier handles filesystem location defaults.
type PathsDefaultApplier struct{}

func (p *PathsDefaultApplier) Domain() string { return "paths" }

func (p *PathsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = "/var/lib/courseware"
	}
	if cfg.Paths.LogDir == "" {
		cfg.Paths.LogDir = "/var/log/courseware"
	}
	if cfg.Paths.RunDir == "" {
		cfg.Paths.RunDir = "/var/run/courseware"
	}
	if cfg.Paths.ConfigDir == "" {
		cfg.Paths.ConfigDir = "/etc/courseware"
	}
	if cfg.Paths.AppRoot == "" {
		cfg.Paths.AppRoot = "/opt/courseware/app"
	}
	if cfg.Paths.ContentRoot == "" {
		cfg.Paths.ContentRoot = filepath.Join(cfg.Paths.DataDir, "packs")
	}
	// DevCheckout stays empty unless configured; its presence is probed at launch.
	return nil
}

// ProbeDefaultApplier handles readiness probe defaults.
type ProbeDefaultApplier struct{}

func (p *ProbeDefaultApplier) Domain() string { return "probe" }

func (p *ProbeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Probe.Attempts <= 0 {
		cfg.Probe.Attempts = 10
	}
	if cfg.Probe.Interval == "" {
		cfg.Probe.Interval = "2s"
	}
	if cfg.Probe.Backoff == "" {
		cfg.Probe.Backoff = RetryBackoffFixed
	} else {
		if m := NormalizeRetryBackoff(string(cfg.Probe.Backoff)); m != "" {
			cfg.Probe.Backoff = m
		} else {
			cfg.Probe.Backoff = RetryBackoffFixed
		}
	}
	if cfg.Probe.ConnectTimeout == "" {
		cfg.Probe.ConnectTimeout = "5s"
	}
	return nil
}

// LaunchDefaultApplier handles supervision defaults.
type LaunchDefaultApplier struct{}

func (l *LaunchDefaultApplier) Domain() string { return "launch" }

func (l *LaunchDefaultApplier) ApplyDefaults(cfg *Config) error {
	r := &cfg.Launch.Restart
	if r.Backoff == "" {
		r.Backoff = RetryBackoffExponential
	} else {
		if m := NormalizeRetryBackoff(string(r.Backoff)); m != "" {
			r.Backoff = m
		} else {
			r.Backoff = RetryBackoffExponential
		}
	}
	if r.InitialDelay == "" {
		r.InitialDelay = "1s"
	}
	if r.MaxDelay == "" {
		r.MaxDelay = "30s"
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 5
	}
	if cfg.Launch.SweepInterval == "" {
		cfg.Launch.SweepInterval = "15s"
	}
	if cfg.Launch.StopGrace == "" {
		cfg.Launch.StopGrace = "10s"
	}
	return nil
}

// BuildDefaultApplier handles bulk build defaults.
type BuildDefaultApplier struct{}

func (b *BuildDefaultApplier) Domain() string { return "build" }

func (b *BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Build.Workers <= 0 {
		cfg.Build.Workers = 2
	}
	if cfg.Build.PackTimeout == "" {
		cfg.Build.PackTimeout = "20m"
	}
	return nil
}

// MonitoringDefaultApplier handles monitoring configuration defaults.
type MonitoringDefaultApplier struct{}

func (m *MonitoringDefaultApplier) Domain() string { return "monitoring" }

func (m *MonitoringDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Monitoring == nil {
		cfg.Monitoring = &MonitoringConfig{}
	}
	if cfg.Monitoring.Metrics.Listen == "" {
		cfg.Monitoring.Metrics.Listen = ":9309"
	}
	if cfg.Monitoring.Metrics.Path == "" {
		cfg.Monitoring.Metrics.Path = "/metrics"
	}
	if cfg.Monitoring.Logging.Level == "" {
		cfg.Monitoring.Logging.Level = LogLevelInfo
	} else {
		cfg.Monitoring.Logging.Level = NormalizeLogLevel(string(cfg.Monitoring.Logging.Level))
	}
	if cfg.Monitoring.Logging.Format == "" {
		cfg.Monitoring.Logging.Format = LogFormatText
	} else {
		cfg.Monitoring.Logging.Format = NormalizeLogFormat(string(cfg.Monitoring.Logging.Format))
	}
	return nil
}

// EventsDefaultApplier handles lifecycle event publisher defaults.
type EventsDefaultApplier struct{}

func (e *EventsDefaultApplier) Domain() string { return "events" }

func (e *EventsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Events == nil {
		return nil // publishing disabled
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "courseboot"
	}
	return nil
}

// JournalDefaultApplier handles bootstrap journal defaults.
type JournalDefaultApplier struct{}

func (j *JournalDefaultApplier) Domain() string { return "journal" }

func (j *JournalDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Journal == nil {
		cfg.Journal = &JournalConfig{}
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = cfg.Paths.JournalFile()
	}
	return nil
}

// CommandsDefaultApplier fills in the default argv for every external tool.
// Runs last so socket and log locations reflect the effective paths.
type CommandsDefaultApplier struct{}

func (c *CommandsDefaultApplier) Domain() string { return "commands" }

func (c *CommandsDefaultApplier) ApplyDefaults(cfg *Config) error {
	cmds := &cfg.Commands
	if len(cmds.RegisterModule) == 0 {
		cmds.RegisterModule = []string{"coursectl", "module", "register", "--editable"}
	}
	if len(cmds.CheckState) == 0 {
		cmds.CheckState = []string{"coursectl", "db", "state"}
	}
	if len(cmds.InitDB) == 0 {
		cmds.InitDB = []string{"coursectl", "db", "init"}
	}
	if len(cmds.ResetDB) == 0 {
		cmds.ResetDB = []string{"coursectl", "db", "init", "--reset", "--force"}
	}
	if len(cmds.FakeMigrate) == 0 {
		cmds.FakeMigrate = []string{"coursectl", "db", "migrate", "--fake"}
	}
	if len(cmds.IssueCert) == 0 {
		cmds.IssueCert = []string{"coursectl", "cert", "issue"}
	}
	if len(cmds.RegistryLookup) == 0 {
		cmds.RegistryLookup = []string{"coursectl", "registry", "info"}
	}
	if len(cmds.InstallDeps) == 0 {
		cmds.InstallDeps = []string{"coursectl", "pack", "deps"}
	}
	if len(cmds.BuildPack) == 0 {
		cmds.BuildPack = []string{"coursectl", "pack", "deploy"}
	}
	if len(cmds.AddInstructor) == 0 {
		cmds.AddInstructor = []string{"coursectl", "instructor", "add"}
	}
	if len(cmds.EnrollStudents) == 0 {
		cmds.EnrollStudents = []string{"coursectl", "students", "import"}
	}
	if len(cmds.AppVersion) == 0 {
		cmds.AppVersion = []string{"coursectl", "version"}
	}
	if len(cmds.Proxy) == 0 {
		cmds.Proxy = []string{"courseware-proxy", "--hostname", cfg.Platform.Hostname}
	}
	if len(cmds.AppServer) == 0 {
		cmds.AppServer = []string{"courseware-server", "--socket", cfg.Paths.AppSocket()}
	}
	if len(cmds.APIServer) == 0 {
		argv := []string{"courseware-async", "--socket", cfg.Paths.APISocket()}
		if cfg.Database.AsyncURL != "" {
			argv = append(argv, "--database-url", cfg.Database.AsyncURL)
		}
		cmds.APIServer = argv
	}
	return nil
}
