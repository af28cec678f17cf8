package config

import "time"

// ProbeConfig bounds the database readiness probe.
type ProbeConfig struct {
	Attempts int    `yaml:"attempts,omitempty"` // total attempts before giving up
	Interval string `yaml:"interval,omitempty"` // delay between attempts, e.g. "2s"
	// Backoff selects the delay progression; the entrypoint contract is a
	// fixed interval, other modes exist for operators who want them.
	Backoff RetryBackoffMode `yaml:"backoff,omitempty"`
	// ConnectTimeout caps a single ping.
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
}

// IntervalDuration parses the configured interval, falling back to 2s.
func (p ProbeConfig) IntervalDuration() time.Duration {
	return parseDurationOr(p.Interval, 2*time.Second)
}

// ConnectTimeoutDuration parses the configured per-attempt timeout, falling back to 5s.
func (p ProbeConfig) ConnectTimeoutDuration() time.Duration {
	return parseDurationOr(p.ConnectTimeout, 5*time.Second)
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
