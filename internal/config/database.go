package config

import "fmt"

// DatabaseConfig describes the backing PostgreSQL instance.
type DatabaseConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
	Name string `yaml:"name,omitempty"`
	User string `yaml:"user,omitempty"`
	// Password is required; the precondition check refuses to start without it.
	Password string `yaml:"password,omitempty"`
	// AsyncURL is the optional connection string handed to the async API
	// server; empty means same database as the application server.
	AsyncURL string `yaml:"async_url,omitempty"`
}

// DSN returns a postgres connection string for the readiness probe.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}
