package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Snapshot computes a stable hash of the boot-affecting configuration fields.
// The state record stores the snapshot taken at first-run initialization;
// a later mismatch is logged so operators notice config drift against an
// already-initialized volume. Intentionally narrower than full serialization
// so irrelevant fields don't produce noise.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	w("platform.hostname", c.Platform.Hostname)
	w("platform.service_user", c.Platform.ServiceUser)
	w("database.host", c.Database.Host)
	w("database.port", strconv.Itoa(c.Database.Port))
	w("database.name", c.Database.Name)
	w("database.user", c.Database.User)
	w("paths.data_dir", c.Paths.DataDir)
	w("paths.config_dir", c.Paths.ConfigDir)
	w("paths.app_root", c.Paths.AppRoot)
	w("paths.content_root", c.Paths.ContentRoot)
	if c.Institution != nil {
		w("institution.name", c.Institution.Name)
	}
	return hex.EncodeToString(h.Sum(nil))
}
