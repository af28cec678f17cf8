package launch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/courseboot/internal/config"
)

func TestServiceSpecsOrderAndLogs(t *testing.T) {
	cfg := &config.Config{
		Paths: config.PathsConfig{LogDir: "/var/log/courseware"},
		Commands: config.CommandsConfig{
			Proxy:     []string{"proxy-server"},
			AppServer: []string{"app-server", "--socket"},
			APIServer: []string{"api-server"},
		},
	}

	specs := ServiceSpecs(cfg)
	if len(specs) != 3 {
		t.Fatalf("Expected 3 services, got %d", len(specs))
	}

	// The proxy must come up first so it can hold requests while the
	// servers bind their sockets.
	wantNames := []string{"proxy", "app-server", "async-api"}
	wantLogs := []string{cfg.Paths.ProxyLog(), cfg.Paths.MainLog(), cfg.Paths.APILog()}
	for i, spec := range specs {
		if spec.Name != wantNames[i] {
			t.Errorf("Service %d: expected %s, got %s", i, wantNames[i], spec.Name)
		}
		if spec.LogPath != wantLogs[i] {
			t.Errorf("Service %s: expected log %s, got %s", spec.Name, wantLogs[i], spec.LogPath)
		}
	}
	if specs[1].Argv[1] != "--socket" {
		t.Errorf("Expected argv carried through, got %v", specs[1].Argv)
	}
}

func TestExecStarterRunsAndLogsOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "svc.log")
	starter := NewStarter(nil)

	h, err := starter.Start(Spec{
		Name:    "svc",
		Argv:    []string{"sh", "-c", "echo started"},
		LogPath: logPath,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.PID() <= 0 {
		t.Errorf("Expected a real PID, got %d", h.PID())
	}
	if err := h.Wait(); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(data), "started") {
		t.Errorf("Expected child output in log file, got %q", string(data))
	}
}

func TestExecStarterErrors(t *testing.T) {
	starter := NewStarter(nil)
	logPath := filepath.Join(t.TempDir(), "svc.log")

	t.Run("empty argv", func(t *testing.T) {
		if _, err := starter.Start(Spec{Name: "svc", LogPath: logPath}); err == nil {
			t.Fatal("Expected error for empty argv")
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := starter.Start(Spec{
			Name:    "svc",
			Argv:    []string{"definitely-not-installed-anywhere"},
			LogPath: logPath,
		})
		if err == nil {
			t.Fatal("Expected error for missing binary")
		}
	})

	t.Run("unwritable log path", func(t *testing.T) {
		_, err := starter.Start(Spec{
			Name:    "svc",
			Argv:    []string{"sh", "-c", "true"},
			LogPath: filepath.Join(t.TempDir(), "missing-dir", "svc.log"),
		})
		if err == nil {
			t.Fatal("Expected error for unwritable log path")
		}
	})
}
