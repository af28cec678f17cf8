package config

// InstitutionConfig enables the reduced-privilege institution deployment.
// When Name is set, first-run initialization writes the institution override
// file (fixed auxiliary-service settings) unless one already exists.
type InstitutionConfig struct {
	Name string `yaml:"name,omitempty"`
	// Email gates TLS certificate issuance; empty skips the certificate step.
	Email string `yaml:"email,omitempty"`
}
