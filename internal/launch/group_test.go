package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/metrics"
)

type fakeHandle struct {
	name      string
	pid       int
	exit      chan error
	exitOnce  sync.Once
	starter   *fakeStarter
	termExits bool
	killExits bool

	mu      sync.Mutex
	signals []os.Signal
}

func (h *fakeHandle) PID() int    { return h.pid }
func (h *fakeHandle) Wait() error { return <-h.exit }

func (h *fakeHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	h.mu.Unlock()
	h.starter.logSignal(h.name, sig)
	if (sig == syscall.SIGTERM && h.termExits) || (sig == syscall.SIGKILL && h.killExits) {
		h.crash(nil)
	}
	return nil
}

func (h *fakeHandle) crash(err error) {
	h.exitOnce.Do(func() { h.exit <- err })
}

func (h *fakeHandle) signalsSeen() []os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]os.Signal{}, h.signals...)
}

type fakeStarter struct {
	mu      sync.Mutex
	started []string
	handles []*fakeHandle
	sigLog  []string
	failOn  map[string]error
	// ignoreTerm makes new handles survive SIGTERM (SIGKILL still works).
	ignoreTerm bool
}

func (s *fakeStarter) Start(spec Spec) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failOn[spec.Name]; ok {
		return nil, err
	}
	h := &fakeHandle{
		name:      spec.Name,
		pid:       100 + len(s.handles),
		exit:      make(chan error, 1),
		starter:   s,
		termExits: !s.ignoreTerm,
		killExits: true,
	}
	s.started = append(s.started, spec.Name)
	s.handles = append(s.handles, h)
	return h, nil
}

func (s *fakeStarter) logSignal(name string, sig os.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sigLog = append(s.sigLog, fmt.Sprintf("%s:%v", name, sig))
}

func (s *fakeStarter) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.started)
}

func (s *fakeStarter) startedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.started...)
}

func (s *fakeStarter) handle(i int) *fakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[i]
}

func (s *fakeStarter) signals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.sigLog...)
}

type recorderSpy struct {
	metrics.NoopRecorder
	mu         sync.Mutex
	restarts   map[string]int
	exhausted  map[string]int
	supervised int
}

func newRecorderSpy() *recorderSpy {
	return &recorderSpy{restarts: map[string]int{}, exhausted: map[string]int{}}
}

func (r *recorderSpy) SetSupervisedProcesses(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supervised = n
}

func (r *recorderSpy) supervisedGauge() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supervised
}

func (r *recorderSpy) IncProcessRestart(process string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restarts[process]++
}

func (r *recorderSpy) IncProcessRestartExhausted(process string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exhausted[process]++
}

func (r *recorderSpy) exhaustedCount(process string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhausted[process]
}

func fastLaunchConfig() config.LaunchConfig {
	return config.LaunchConfig{
		Restart: config.RestartConfig{
			Backoff:      config.RetryBackoffFixed,
			InitialDelay: "1ms",
			MaxDelay:     "5ms",
			MaxRetries:   3,
		},
		StopGrace: "100ms",
	}
}

func TestGroupStartsInOrderAndStopsInReverse(t *testing.T) {
	starter := &fakeStarter{}
	g := NewGroup(fastLaunchConfig(), starter, nil, nil)

	specs := []Spec{{Name: "proxy"}, {Name: "app-server"}, {Name: "async-api"}}
	if err := g.Start(t.Context(), specs); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	require.Equal(t, []string{"proxy", "app-server", "async-api"}, starter.startedNames())
	for _, p := range g.Processes() {
		if p.State() != StateRunning {
			t.Errorf("Expected %s running, got %s", p.Spec.Name, p.State())
		}
	}

	g.Stop(context.Background())

	want := []string{"async-api:terminated", "app-server:terminated", "proxy:terminated"}
	require.Equal(t, want, starter.signals())
	for _, p := range g.Processes() {
		if p.State() != StateStopped {
			t.Errorf("Expected %s stopped, got %s", p.Spec.Name, p.State())
		}
	}
}

func TestGroupRestartsCrashedService(t *testing.T) {
	starter := &fakeStarter{}
	g := NewGroup(fastLaunchConfig(), starter, nil, nil)

	if err := g.Start(t.Context(), []Spec{{Name: "app-server"}}); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	starter.handle(0).crash(errors.New("exit status 2"))

	require.Eventually(t, func() bool {
		return starter.startCount() == 2
	}, time.Second, 5*time.Millisecond, "expected a restart")
	require.Eventually(t, func() bool {
		return g.Processes()[0].State() == StateRunning
	}, time.Second, 5*time.Millisecond)

	if got := g.Processes()[0].Restarts(); got != 1 {
		t.Errorf("Expected 1 restart, got %d", got)
	}

	g.Stop(context.Background())
}

func TestGroupGivesUpAfterRestartBudget(t *testing.T) {
	starter := &fakeStarter{}
	spy := newRecorderSpy()
	cfg := fastLaunchConfig()
	cfg.Restart.MaxRetries = 1
	g := NewGroup(cfg, starter, nil, spy)

	if err := g.Start(t.Context(), []Spec{{Name: "app-server"}}); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	starter.handle(0).crash(errors.New("exit status 2"))
	require.Eventually(t, func() bool {
		return starter.startCount() == 2
	}, time.Second, 5*time.Millisecond)

	starter.handle(1).crash(errors.New("exit status 2"))
	require.Eventually(t, func() bool {
		return g.Processes()[0].State() == StateExhausted
	}, time.Second, 5*time.Millisecond)

	if got := starter.startCount(); got != 2 {
		t.Errorf("Expected no start beyond the budget, got %d", got)
	}
	if got := spy.exhaustedCount("app-server"); got != 1 {
		t.Errorf("Expected one exhaustion signal, got %d", got)
	}

	g.Stop(context.Background())
}

func TestGroupStopEscalatesToKill(t *testing.T) {
	starter := &fakeStarter{ignoreTerm: true}
	cfg := fastLaunchConfig()
	cfg.StopGrace = "10ms"
	g := NewGroup(cfg, starter, nil, nil)

	if err := g.Start(t.Context(), []Spec{{Name: "proxy"}}); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	g.Stop(context.Background())

	sigs := starter.handle(0).signalsSeen()
	require.Equal(t, []os.Signal{syscall.SIGTERM, syscall.SIGKILL}, sigs)
	if got := g.Processes()[0].State(); got != StateStopped {
		t.Errorf("Expected stopped after kill, got %s", got)
	}
}

func TestGroupStartFailureStopsEarlierServices(t *testing.T) {
	starter := &fakeStarter{failOn: map[string]error{"app-server": errors.New("no binary")}}
	g := NewGroup(fastLaunchConfig(), starter, nil, nil)

	err := g.Start(t.Context(), []Spec{{Name: "proxy"}, {Name: "app-server"}, {Name: "async-api"}})
	if err == nil {
		t.Fatal("Expected start error")
	}

	require.Equal(t, []string{"proxy"}, starter.startedNames())
	if got := g.Processes()[0].State(); got != StateStopped {
		t.Errorf("Expected proxy stopped after aborted group start, got %s", got)
	}
}

func TestGroupStopIsIdempotent(t *testing.T) {
	starter := &fakeStarter{}
	g := NewGroup(fastLaunchConfig(), starter, nil, nil)

	if err := g.Start(t.Context(), []Spec{{Name: "proxy"}}); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	g.Stop(context.Background())
	g.Stop(context.Background())

	sigs := starter.handle(0).signalsSeen()
	require.Equal(t, []os.Signal{syscall.SIGTERM}, sigs)
}
