package config

import "time"

// LaunchConfig governs the supervised process group.
type LaunchConfig struct {
	// DevMode relaxes content-root permissions to group-writable and enables
	// the editable reinstall of a development checkout when one is present.
	DevMode bool          `yaml:"dev_mode,omitempty"`
	Restart RestartConfig `yaml:"restart,omitempty"`
	// SweepInterval is how often the supervisor checks child liveness.
	SweepInterval string `yaml:"sweep_interval,omitempty"`
	// StopGrace is how long children get between SIGTERM and SIGKILL.
	StopGrace string `yaml:"stop_grace,omitempty"`
}

// RestartConfig is the per-process restart policy.
type RestartConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries,omitempty"`
}

// InitialDelayDuration parses the initial restart delay, falling back to 1s.
func (r RestartConfig) InitialDelayDuration() time.Duration {
	return parseDurationOr(r.InitialDelay, time.Second)
}

// MaxDelayDuration parses the restart delay cap, falling back to 30s.
func (r RestartConfig) MaxDelayDuration() time.Duration {
	return parseDurationOr(r.MaxDelay, 30*time.Second)
}

// SweepIntervalDuration parses the liveness sweep interval, falling back to 15s.
func (l LaunchConfig) SweepIntervalDuration() time.Duration {
	return parseDurationOr(l.SweepInterval, 15*time.Second)
}

// StopGraceDuration parses the SIGTERM grace period, falling back to 10s.
func (l LaunchConfig) StopGraceDuration() time.Duration {
	return parseDurationOr(l.StopGrace, 10*time.Second)
}
