package config

// PlatformConfig identifies the deployment and the identity backing
// processes run as.
type PlatformConfig struct {
	// Hostname is the public hostname of this deployment. Required.
	Hostname string `yaml:"hostname"`
	// ServiceUser/ServiceGroup own the application-writable paths.
	ServiceUser  string `yaml:"service_user,omitempty"`
	ServiceGroup string `yaml:"service_group,omitempty"`
}
