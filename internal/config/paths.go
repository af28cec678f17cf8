package config

import "path/filepath"

// PathsConfig collects every filesystem location the entrypoint touches.
// All of them receive defaults; containers typically only override the
// roots via COURSEBOOT_APP_ROOT / COURSEBOOT_CONTENT_ROOT.
type PathsConfig struct {
	DataDir     string `yaml:"data_dir,omitempty"`     // state record, journal, lock
	LogDir      string `yaml:"log_dir,omitempty"`      // service log files
	RunDir      string `yaml:"run_dir,omitempty"`      // unix sockets
	ConfigDir   string `yaml:"config_dir,omitempty"`   // generated config artifacts
	AppRoot     string `yaml:"app_root,omitempty"`     // installed application module
	ContentRoot string `yaml:"content_root,omitempty"` // content packs directory
	DevCheckout string `yaml:"dev_checkout,omitempty"` // optional development work tree
}

// StateFile is the bootstrap state record location.
func (p PathsConfig) StateFile() string { return filepath.Join(p.DataDir, "bootstrap-state.json") }

// JournalFile is the default bootstrap journal location.
func (p PathsConfig) JournalFile() string { return filepath.Join(p.DataDir, "journal.db") }

// LockFile guards first-run initialization across containers sharing a volume.
func (p PathsConfig) LockFile() string { return filepath.Join(p.DataDir, "bootstrap.lock") }

// AuthKeyFile holds the generated authentication key.
func (p PathsConfig) AuthKeyFile() string { return filepath.Join(p.ConfigDir, "auth_key") }

// CredentialsFile holds database credentials, mode 0600.
func (p PathsConfig) CredentialsFile() string { return filepath.Join(p.ConfigDir, ".pgpass") }

// OverrideFile is the institution override configuration.
func (p PathsConfig) OverrideFile() string {
	return filepath.Join(p.ConfigDir, "institution-override.yaml")
}

// MainLog is the application log the sentinel follows.
func (p PathsConfig) MainLog() string { return filepath.Join(p.LogDir, "courseware.log") }

// APILog is the dedicated async API server log.
func (p PathsConfig) APILog() string { return filepath.Join(p.LogDir, "async-api.log") }

// ProxyLog is the reverse proxy log.
func (p PathsConfig) ProxyLog() string { return filepath.Join(p.LogDir, "proxy.log") }

// AppSocket is the application server's unix socket.
func (p PathsConfig) AppSocket() string { return filepath.Join(p.RunDir, "app.sock") }

// APISocket is the async API server's unix socket.
func (p PathsConfig) APISocket() string { return filepath.Join(p.RunDir, "async-api.sock") }
