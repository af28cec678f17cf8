package initializer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/courseboot/internal/config"
)

func TestProvisionAuthKey(t *testing.T) {
	t.Run("missing file gets generated key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "auth_key")
		if err := ProvisionAuthKey(path, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		key := strings.TrimSpace(string(data))
		if len(key) != authKeyBytes*2 {
			t.Errorf("Expected %d hex chars, got %d", authKeyBytes*2, len(key))
		}
		if key == PlaceholderAuthKey {
			t.Error("Generated key must not be the placeholder")
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("unexpected stat error: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("Expected mode 0600, got %o", info.Mode().Perm())
		}
	})

	t.Run("placeholder is replaced", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "auth_key")
		if err := os.WriteFile(path, []byte(PlaceholderAuthKey+"\n"), 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}

		if err := ProvisionAuthKey(path, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, _ := os.ReadFile(path)
		if strings.Contains(string(data), PlaceholderAuthKey) {
			t.Error("Expected placeholder to be replaced")
		}

		info, _ := os.Stat(path)
		if info.Mode().Perm() != 0o600 {
			t.Errorf("Expected mode tightened to 0600, got %o", info.Mode().Perm())
		}
	})

	t.Run("existing real key is preserved", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "auth_key")
		if err := os.WriteFile(path, []byte("already-provisioned-key\n"), 0o600); err != nil {
			t.Fatalf("setup: %v", err)
		}

		if err := ProvisionAuthKey(path, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, _ := os.ReadFile(path)
		if strings.TrimSpace(string(data)) != "already-provisioned-key" {
			t.Error("Expected existing key to be preserved")
		}
	})

	t.Run("keys are unique", func(t *testing.T) {
		a, err := GenerateAuthKey()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, err := GenerateAuthKey()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a == b {
			t.Error("Expected distinct keys from consecutive generations")
		}
	})
}

func TestWriteCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pgpass")
	db := config.DatabaseConfig{
		Host: "db.internal", Port: 5432, Name: "courseware", User: "cw", Password: "s3cret",
	}

	if err := WriteCredentials(path, db); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	want := "db.internal:5432:courseware:cw:s3cret\n"
	if string(data) != want {
		t.Errorf("Expected %q, got %q", want, string(data))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("unexpected stat error: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %o", info.Mode().Perm())
	}
}

func TestWriteInstitutionOverride(t *testing.T) {
	t.Run("written when name configured", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "institution-override.yaml")
		inst := &config.InstitutionConfig{Name: "Example University", Email: "ops@example.edu"}

		if err := WriteInstitutionOverride(path, inst, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		if !strings.Contains(string(data), "Example University") {
			t.Errorf("Expected institution name in override, got %q", string(data))
		}
	})

	t.Run("skipped without institution", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "institution-override.yaml")
		if err := WriteInstitutionOverride(path, nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("Expected no override file without institution")
		}
	})

	t.Run("existing file untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "institution-override.yaml")
		if err := os.WriteFile(path, []byte("institution:\n  name: Edited Locally\n"), 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}

		inst := &config.InstitutionConfig{Name: "Example University"}
		if err := WriteInstitutionOverride(path, inst, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "Edited Locally") {
			t.Error("Expected locally edited override to be preserved")
		}
	})
}
