package config

// EventsConfig configures the optional lifecycle event publisher.
// An empty URL disables publishing entirely.
type EventsConfig struct {
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}
