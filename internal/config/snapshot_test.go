package config

import "testing"

// TestSnapshotStability ensures identical boot-affecting fields hash
// identically and any change to one of them changes the hash.
func TestSnapshotStability(t *testing.T) {
	a := validConfig()
	b := validConfig()
	if a.Snapshot() != b.Snapshot() {
		t.Fatalf("identical configs must produce identical snapshots")
	}

	b.Platform.Hostname = "other.example.edu"
	if a.Snapshot() == b.Snapshot() {
		t.Fatalf("hostname change must change the snapshot")
	}

	// Fields outside the boot-affecting set must not affect the hash.
	c := validConfig()
	c.Build.Enabled = true
	c.Probe.Attempts = 3
	if a.Snapshot() != c.Snapshot() {
		t.Fatalf("non boot-affecting fields must not change the snapshot")
	}
}

func TestSnapshotNil(t *testing.T) {
	var cfg *Config
	if cfg.Snapshot() != "" {
		t.Fatalf("nil config snapshot must be empty")
	}
}
