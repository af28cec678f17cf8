package config

// CommandsConfig holds the argv lists for every external tool the entrypoint
// drives. Each entry is a command prefix; the orchestrator appends
// operation-specific arguments where the contract notes it. Overriding an
// entry swaps the tool without touching orchestration logic.
type CommandsConfig struct {
	// RegisterModule registers the application module in editable mode;
	// the module path is appended.
	RegisterModule []string `yaml:"register_module,omitempty"`
	// CheckState prints the database state code as the last line of stdout.
	CheckState []string `yaml:"check_state,omitempty"`
	// InitDB performs full database initialization.
	InitDB []string `yaml:"init_db,omitempty"`
	// ResetDB resets and force-reinitializes the database.
	ResetDB []string `yaml:"reset_db,omitempty"`
	// FakeMigrate marks the schema current without altering data.
	FakeMigrate []string `yaml:"fake_migrate,omitempty"`
	// IssueCert requests a TLS certificate; hostname and email are appended.
	IssueCert []string `yaml:"issue_cert,omitempty"`
	// RegistryLookup queries pack metadata; the pack name is appended.
	// Exit status nonzero means "not registered".
	RegistryLookup []string `yaml:"registry_lookup,omitempty"`
	// InstallDeps installs a pack-local dependency list; the file is appended.
	InstallDeps []string `yaml:"install_deps,omitempty"`
	// BuildPack builds and deploys one pack; the pack directory is appended,
	// plus "--all" when a full rebuild was marked.
	BuildPack []string `yaml:"build_pack,omitempty"`
	// AddInstructor registers one instructor; identifier and course are appended.
	AddInstructor []string `yaml:"add_instructor,omitempty"`
	// EnrollStudents bulk-imports a student roster; the file is appended.
	EnrollStudents []string `yaml:"enroll_students,omitempty"`
	// AppVersion prints the installed application version.
	AppVersion []string `yaml:"app_version,omitempty"`
	// Proxy, AppServer and APIServer are the long-running processes.
	// Stdout/stderr are redirected to their configured log files.
	Proxy     []string `yaml:"proxy,omitempty"`
	AppServer []string `yaml:"app_server,omitempty"`
	APIServer []string `yaml:"api_server,omitempty"`
}
