package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/execx"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/launch"
	"git.home.luguber.info/inful/courseboot/internal/probe"
	"git.home.luguber.info/inful/courseboot/internal/state"
)

// fakeRunner records every external command and serves canned Output
// responses keyed by argv[0]. failArg fails any Run whose argv contains it.
type fakeRunner struct {
	mu      sync.Mutex
	runs    [][]string
	outputs map[string]string
	failArg string
}

func (f *fakeRunner) Run(_ context.Context, spec execx.Spec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, spec.Argv)
	for _, arg := range spec.Argv {
		if f.failArg != "" && arg == f.failArg {
			return errors.New(spec.Argv[0] + " failed")
		}
	}
	return nil
}

func (f *fakeRunner) Output(_ context.Context, spec execx.Spec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, spec.Argv)
	return f.outputs[spec.Argv[0]], nil
}

func (f *fakeRunner) ran(program string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, argv := range f.runs {
		if argv[0] == program {
			n++
		}
	}
	return n
}

func (f *fakeRunner) argvOf(program string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, argv := range f.runs {
		if argv[0] == program {
			out = append(out, argv)
		}
	}
	return out
}

type fakeHandle struct {
	pid  int
	exit chan error
	once sync.Once
}

func (h *fakeHandle) PID() int    { return h.pid }
func (h *fakeHandle) Wait() error { return <-h.exit }

func (h *fakeHandle) Signal(sig os.Signal) error {
	if sig == syscall.SIGTERM || sig == syscall.SIGKILL {
		h.once.Do(func() { h.exit <- nil })
	}
	return nil
}

type fakeStarter struct {
	mu      sync.Mutex
	started []string
}

func (s *fakeStarter) Start(spec launch.Spec) (launch.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, spec.Name)
	return &fakeHandle{pid: 4000 + len(s.started), exit: make(chan error, 1)}, nil
}

func (s *fakeStarter) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.started...)
}

func (s *fakeStarter) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.started)
}

type proberStub struct {
	result foundation.Result[probe.Report, error]
}

func (p proberStub) Run(context.Context) foundation.Result[probe.Report, error] {
	return p.result
}

func bootConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Platform: config.PlatformConfig{Hostname: "courses.test"},
		Database: config.DatabaseConfig{
			Host: "localhost", Port: 5432, Name: "course", User: "course", Password: "secret",
		},
		Paths: config.PathsConfig{
			DataDir:     filepath.Join(root, "data"),
			LogDir:      filepath.Join(root, "log"),
			RunDir:      filepath.Join(root, "run"),
			ConfigDir:   filepath.Join(root, "etc"),
			AppRoot:     filepath.Join(root, "app"),
			ContentRoot: filepath.Join(root, "packs"),
		},
		Probe: config.ProbeConfig{Attempts: 3, Interval: "10ms", ConnectTimeout: "50ms"},
		Launch: config.LaunchConfig{
			Restart: config.RestartConfig{
				Backoff: config.RetryBackoffFixed, InitialDelay: "1ms", MaxDelay: "5ms", MaxRetries: 1,
			},
			SweepInterval: "50ms",
			StopGrace:     "100ms",
		},
		Build: config.BuildConfig{Workers: 1},
		Commands: config.CommandsConfig{
			RegisterModule: []string{"register-module"},
			CheckState:     []string{"check-state"},
			InitDB:         []string{"init-db"},
			ResetDB:        []string{"reset-db"},
			FakeMigrate:    []string{"fake-migrate"},
			IssueCert:      []string{"issue-cert"},
			RegistryLookup: []string{"registry-lookup"},
			InstallDeps:    []string{"install-deps"},
			BuildPack:      []string{"build-pack"},
			AddInstructor:  []string{"add-instructor"},
			EnrollStudents: []string{"enroll-students"},
			AppVersion:     []string{"app-version"},
			Proxy:          []string{"run-proxy"},
			AppServer:      []string{"run-app"},
			APIServer:      []string{"run-api"},
		},
	}
}

type bootFixture struct {
	orch    *Orchestrator
	cfg     *config.Config
	store   *state.Store
	journal *state.Journal
	runner  *fakeRunner
	starter *fakeStarter
}

// newFixture wires an orchestrator against fakes. The state record lives at
// cfg's real state path, so a second fixture over the same cfg sees the
// previous boot's record.
func newFixture(t *testing.T, cfg *config.Config) *bootFixture {
	t.Helper()

	journal, err := state.OpenJournal(":memory:")
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })

	store := state.NewStore(cfg.Paths.StateFile())
	runner := &fakeRunner{outputs: map[string]string{"check-state": "3\n"}}
	starter := &fakeStarter{}

	orch := New(cfg, store, nil, Options{
		Journal: journal,
		Runner:  runner,
		Starter: starter,
	})
	orch.newProber = func(*slog.Logger) prober {
		return proberStub{result: foundation.Ok[probe.Report, error](
			probe.Report{Attempts: 1, Elapsed: time.Millisecond})}
	}
	orch.tailOut = io.Discard

	return &bootFixture{
		orch:    orch,
		cfg:     cfg,
		store:   store,
		journal: journal,
		runner:  runner,
		starter: starter,
	}
}

// runBoot drives one full boot to ready and back down again via cancel.
// Completion is read from the fixture's own journal: the record's phase is
// ambiguous on repeat boots, where it is already "ready" at the start.
func runBoot(t *testing.T, fx *bootFixture) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fx.orch.Run(ctx) }()

	require.Eventually(t, func() bool {
		entries, err := fx.journal.Recent(context.Background(), 50)
		if err != nil {
			return false
		}
		for _, e := range entries {
			if e.Phase == PhaseBoot && e.EventType == EventCompleted {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
}

func mustWritePack(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating pack %s: %v", name, err)
	}
	return dir
}

func TestRunFirstBootReachesReady(t *testing.T) {
	cfg := bootConfig(t)
	fx := newFixture(t, cfg)
	fx.runner.outputs["check-state"] = "0\n"

	runBoot(t, fx)

	want := []string{"proxy", "app-server", "async-api"}
	if got := fx.starter.names(); !reflect.DeepEqual(got, want) {
		t.Errorf("started services = %v, want %v", got, want)
	}
	if n := fx.runner.ran("register-module"); n != 1 {
		t.Errorf("register-module ran %d times, want 1", n)
	}
	if n := fx.runner.ran("init-db"); n != 1 {
		t.Errorf("init-db ran %d times, want 1", n)
	}

	record, err := fx.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if record.RunID == "" {
		t.Error("run id not recorded")
	}
	if record.InitializedAt == nil {
		t.Error("initialization marker missing")
	}
	if record.LastStateCode == nil || *record.LastStateCode != 0 {
		t.Errorf("LastStateCode = %v, want 0", record.LastStateCode)
	}
	if !record.BuildAll {
		t.Error("state code 0 should mark a full rebuild")
	}
}

func TestRunSecondBootSkipsProvisioning(t *testing.T) {
	cfg := bootConfig(t)
	runBoot(t, newFixture(t, cfg))

	fx := newFixture(t, cfg)
	runBoot(t, fx)

	if n := fx.runner.ran("register-module"); n != 0 {
		t.Errorf("register-module ran %d times on second boot, want 0", n)
	}
	if n := fx.runner.ran("init-db"); n != 0 {
		t.Errorf("init-db ran %d times with a current schema, want 0", n)
	}
}

func TestRunFailsOnUnknownStateCode(t *testing.T) {
	cfg := bootConfig(t)
	fx := newFixture(t, cfg)
	fx.runner.outputs["check-state"] = "7\n"

	if err := fx.orch.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail on an unknown state code")
	}
	if n := fx.starter.startCount(); n != 0 {
		t.Errorf("%d services started despite a fatal state code", n)
	}
	record, err := fx.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if record.Phase == state.PhaseReady {
		t.Error("record must not reach ready after a failed dispatch")
	}
}

func TestRunProbeExhaustionIsFatal(t *testing.T) {
	cfg := bootConfig(t)
	fx := newFixture(t, cfg)
	exhausted := foundation.ProbeError("database unreachable after 3 attempts").Fatal().Build()
	fx.orch.newProber = func(*slog.Logger) prober {
		return proberStub{result: foundation.Err[probe.Report, error](exhausted)}
	}

	if err := fx.orch.Run(context.Background()); err == nil {
		t.Fatal("Run() should surface probe exhaustion")
	}
	if n := fx.runner.ran("check-state"); n != 0 {
		t.Error("state dispatch must not run when the database never came up")
	}
	if n := fx.starter.startCount(); n != 0 {
		t.Error("no services should start without a database")
	}
}

func TestRunJournalsPhaseSequence(t *testing.T) {
	cfg := bootConfig(t)
	fx := newFixture(t, cfg)

	runBoot(t, fx)

	record, err := fx.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	entries, err := fx.journal.ByRun(context.Background(), record.RunID)
	if err != nil {
		t.Fatalf("ByRun() error = %v", err)
	}

	var completed, skipped []string
	for _, e := range entries {
		switch e.EventType {
		case EventCompleted:
			completed = append(completed, e.Phase)
		case EventSkipped:
			skipped = append(skipped, e.Phase)
		}
	}
	want := []string{
		PhaseInit, PhaseProbe, PhaseMigrate, PhaseFsPrep,
		PhaseLaunch, PhaseRoster, PhaseBoot, PhaseSentinel,
	}
	if !reflect.DeepEqual(completed, want) {
		t.Errorf("completed phases = %v, want %v", completed, want)
	}
	if !reflect.DeepEqual(skipped, []string{PhaseBuild}) {
		t.Errorf("skipped phases = %v, want [build]", skipped)
	}
}

func TestRunBuildsRegisteredPacks(t *testing.T) {
	cfg := bootConfig(t)
	cfg.Build.Enabled = true
	mustWritePack(t, cfg.Paths.ContentRoot, "algebra")
	mustWritePack(t, cfg.Paths.ContentRoot, "calculus")

	fx := newFixture(t, cfg)
	fx.runner.outputs["check-state"] = "0\n" // fresh schema marks a full rebuild

	runBoot(t, fx)

	builds := fx.runner.argvOf("build-pack")
	if len(builds) != 2 {
		t.Fatalf("build-pack ran %d times, want 2: %v", len(builds), builds)
	}
	for _, argv := range builds {
		if argv[len(argv)-1] != "--all" {
			t.Errorf("full rebuild flag missing: %v", argv)
		}
	}

	record, err := fx.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if record.BuildAll {
		t.Error("a completed full rebuild should clear the build-all flag")
	}
}

func TestRunKeepsBuildAllWhenAPackFails(t *testing.T) {
	cfg := bootConfig(t)
	cfg.Build.Enabled = true
	broken := mustWritePack(t, cfg.Paths.ContentRoot, "broken")
	mustWritePack(t, cfg.Paths.ContentRoot, "fine")

	fx := newFixture(t, cfg)
	fx.runner.outputs["check-state"] = "0\n"
	fx.runner.failArg = broken

	runBoot(t, fx)

	if len(fx.runner.argvOf("build-pack")) != 2 {
		t.Error("the failing pack must not stop its sibling")
	}
	record, err := fx.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !record.BuildAll {
		t.Error("build-all stays set until a rebuild completes without failures")
	}
}

func TestToleratedSeverities(t *testing.T) {
	if tolerated(errors.New("plain")) {
		t.Error("unclassified errors abort the boot")
	}
	if !tolerated(foundation.RosterError("roster glitch").Build()) {
		t.Error("warning classifications should continue the boot")
	}
	if tolerated(foundation.StateError("bad code").Build()) {
		t.Error("fatal classifications must abort")
	}
	if tolerated(context.Canceled) {
		t.Error("cancellation must abort")
	}
}
