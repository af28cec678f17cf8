package config

// JournalConfig configures the append-only bootstrap journal.
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // nil means enabled
	Path    string `yaml:"path,omitempty"`    // default <data_dir>/journal.db
}

// IsEnabled reports whether journaling is on; the default is on.
func (j *JournalConfig) IsEnabled() bool {
	return j == nil || j.Enabled == nil || *j.Enabled
}
