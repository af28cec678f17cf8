package initializer

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
)

// PlaceholderAuthKey is the insecure key the platform image ships with.
// First-run initialization replaces it; its presence after boot means
// provisioning never ran.
const PlaceholderAuthKey = "insecure-placeholder-key-replace-on-first-boot"

const authKeyBytes = 32

// GenerateAuthKey returns a fresh random key, hex encoded.
func GenerateAuthKey() (string, error) {
	buf := make([]byte, authKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", foundation.InitError("generating auth key").WithCause(err).Build()
	}
	return hex.EncodeToString(buf), nil
}

// ProvisionAuthKey replaces the shipped placeholder key with a generated
// one. A key that is already non-placeholder is left alone so re-provisioned
// containers keep their sessions valid.
func ProvisionAuthKey(path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	current, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to generation
	case err != nil:
		return foundation.InitError("reading auth key file").
			WithCause(err).
			WithContext(foundation.Fields{"path": path}).
			Build()
	case strings.TrimSpace(string(current)) != PlaceholderAuthKey:
		logger.Info("auth key already provisioned", logfields.Path(path))
		return nil
	}

	key, err := GenerateAuthKey()
	if err != nil {
		return err
	}
	if err := writeSecret(path, key+"\n"); err != nil {
		return err
	}
	logger.Info("auth key generated", logfields.Path(path))
	return nil
}

// WriteCredentials writes the database credentials file in pgpass format.
// Mode 0600 is part of the format's contract: clients refuse world-readable
// credential files.
func WriteCredentials(path string, db config.DatabaseConfig) error {
	line := fmt.Sprintf("%s:%d:%s:%s:%s\n", db.Host, db.Port, db.Name, db.User, db.Password)
	return writeSecret(path, line)
}

// WriteInstitutionOverride writes the institution override config when an
// institution name is configured and no override exists yet. An existing
// file is never touched; operators edit it in place.
func WriteInstitutionOverride(path string, inst *config.InstitutionConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if inst == nil || inst.Name == "" {
		return nil
	}

	if _, err := os.Stat(path); err == nil {
		logger.Info("institution override already present, leaving it untouched",
			logfields.Path(path))
		return nil
	} else if !os.IsNotExist(err) {
		return foundation.InitError("checking institution override").
			WithCause(err).
			WithContext(foundation.Fields{"path": path}).
			Build()
	}

	var doc institutionOverride
	doc.Institution.Name = inst.Name
	doc.Institution.Email = inst.Email

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return foundation.InitError("encoding institution override").WithCause(err).Build()
	}
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return foundation.InitError("writing institution override").
			WithCause(err).
			WithContext(foundation.Fields{"path": path}).
			Build()
	}
	logger.Info("institution override written",
		logfields.Path(path), slog.String("institution", inst.Name))
	return nil
}

type institutionOverride struct {
	Institution struct {
		Name  string `yaml:"name"`
		Email string `yaml:"email,omitempty"`
	} `yaml:"institution"`
}

func writeSecret(path, content string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return foundation.InitError("writing secret file").
			WithCause(err).
			WithContext(foundation.Fields{"path": path}).
			Build()
	}
	// WriteFile applies the mode only on creation; tighten pre-existing files.
	if err := os.Chmod(path, 0o600); err != nil {
		return foundation.InitError("restricting secret file mode").
			WithCause(err).
			WithContext(foundation.Fields{"path": path}).
			Build()
	}
	return nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return foundation.InitError("creating parent directory").
			WithCause(err).
			WithContext(foundation.Fields{"path": dir}).
			Build()
	}
	return nil
}
