package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/courseboot/internal/foundation"
)

// Validate checks the effective configuration. The precondition failures
// (missing hostname or database password) come back as fatal classified
// errors so the entrypoint exits before any side effect.
func (c *Config) Validate() error {
	validator := newConfigurationValidator(c)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validatePreconditions(); err != nil {
		return err
	}
	if err := cv.validateDurations(); err != nil {
		return err
	}
	if err := cv.validateBuild(); err != nil {
		return err
	}
	return nil
}

// validatePreconditions enforces the two required values.
func (cv *configurationValidator) validatePreconditions() error {
	result := foundation.RequireNonEmpty("platform.hostname", cv.config.Platform.Hostname)
	result = result.Combine(foundation.RequireNonEmpty("database.password", cv.config.Database.Password))
	if result.Valid {
		return nil
	}

	fields := make([]string, 0, len(result.Errors))
	for _, fe := range result.Errors {
		fields = append(fields, fe.Field)
	}
	return foundation.ConfigError("missing required configuration").
		WithComponent("config").
		WithContext(foundation.Fields{"fields": fields}).
		Build()
}

// validateDurations rejects explicitly configured durations that do not parse.
// Empty strings are fine; defaults cover them.
func (cv *configurationValidator) validateDurations() error {
	checks := []struct {
		field string
		value string
	}{
		{"probe.interval", cv.config.Probe.Interval},
		{"probe.connect_timeout", cv.config.Probe.ConnectTimeout},
		{"launch.restart.initial_delay", cv.config.Launch.Restart.InitialDelay},
		{"launch.restart.max_delay", cv.config.Launch.Restart.MaxDelay},
		{"launch.sweep_interval", cv.config.Launch.SweepInterval},
		{"launch.stop_grace", cv.config.Launch.StopGrace},
		{"build.pack_timeout", cv.config.Build.PackTimeout},
	}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		if d, err := time.ParseDuration(check.value); err != nil || d <= 0 {
			return foundation.ValidationError(fmt.Sprintf("%s: invalid duration %q", check.field, check.value)).
				WithComponent("config").
				Build()
		}
	}
	return nil
}

// validateBuild sanity-checks the bulk build section.
func (cv *configurationValidator) validateBuild() error {
	if cv.config.Build.Workers < 0 {
		return foundation.ValidationError("build.workers cannot be negative").
			WithComponent("config").
			Build()
	}
	return nil
}
