package config

import "time"

// BuildConfig gates and tunes the bulk content-pack build.
type BuildConfig struct {
	// Enabled turns the bulk build phase on; default off.
	Enabled bool `yaml:"enabled,omitempty"`
	// Workers bounds concurrent pack builds.
	Workers int `yaml:"workers,omitempty"`
	// PackTimeout caps a single pack's build subprocess, e.g. "20m".
	PackTimeout string `yaml:"pack_timeout,omitempty"`
	// IndexPage controls generation of the library index after builds.
	IndexPage bool `yaml:"index_page,omitempty"`
}

// PackTimeoutDuration parses the per-pack build timeout, falling back to 20m.
func (b BuildConfig) PackTimeoutDuration() time.Duration {
	return parseDurationOr(b.PackTimeout, 20*time.Minute)
}
