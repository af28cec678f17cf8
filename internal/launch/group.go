package launch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
	"git.home.luguber.info/inful/courseboot/internal/metrics"
	"git.home.luguber.info/inful/courseboot/internal/retry"
)

// Group supervises a set of service processes. Children start in spec
// order, get restarted with backoff when they die, and stop in reverse
// order under a SIGTERM-then-SIGKILL ladder.
type Group struct {
	starter  Starter
	policy   retry.Policy
	grace    time.Duration
	logger   *slog.Logger
	recorder metrics.Recorder

	procs []*Process

	superviseCtx context.Context
	cancel       context.CancelFunc
	stopping     atomic.Bool
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewGroup builds a supervisor from the launch configuration.
func NewGroup(cfg config.LaunchConfig, starter Starter, logger *slog.Logger, recorder metrics.Recorder) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	r := cfg.Restart
	return &Group{
		starter:  starter,
		policy:   retry.NewPolicy(r.Backoff, r.InitialDelayDuration(), r.MaxDelayDuration(), r.MaxRetries),
		grace:    cfg.StopGraceDuration(),
		logger:   logger,
		recorder: recorder,
	}
}

// Start launches the specs in order and begins supervising each. When any
// initial start fails, already-started children are stopped and the error
// is returned; a group that never came up whole must not limp along.
func (g *Group) Start(ctx context.Context, specs []Spec) error {
	g.superviseCtx, g.cancel = context.WithCancel(ctx)

	for _, spec := range specs {
		proc := newProcess(spec)
		h, err := g.starter.Start(spec)
		if err != nil {
			g.logger.Error("service failed to start",
				logfields.Process(spec.Name), logfields.Error(err))
			g.Stop(context.Background())
			return foundation.LaunchError("starting service group").
				WithCause(err).
				WithContext(foundation.Fields{"process": spec.Name}).
				Build()
		}
		done := proc.attach(h)
		g.procs = append(g.procs, proc)
		g.logger.Info("service started",
			logfields.Process(spec.Name), logfields.PID(proc.PID()))

		g.wg.Add(1)
		go g.supervise(proc, done)
	}

	g.recorder.SetSupervisedProcesses(g.runningCount())
	return nil
}

// supervise watches one child, restarting it within the retry budget.
// Exhaustion is logged and counted but does not take the group down; the
// container stays alive for inspection.
func (g *Group) supervise(p *Process, done <-chan struct{}) {
	defer g.wg.Done()

	for {
		select {
		case <-g.superviseCtx.Done():
			return
		case <-done:
		}

		if g.stopping.Load() {
			return
		}

		exitErr := p.lastExitErr()
		g.logger.Warn("service exited",
			logfields.Process(p.Spec.Name), logfields.Error(exitErr))
		g.recorder.SetSupervisedProcesses(g.runningCount())

		if p.Restarts() >= g.policy.MaxRetries {
			p.state.Store(StateExhausted)
			g.recorder.IncProcessRestartExhausted(p.Spec.Name)
			g.logger.Error("service restart budget exhausted, giving up",
				logfields.Process(p.Spec.Name),
				slog.Int("restarts", p.Restarts()))
			return
		}

		attempt := p.noteRestart()
		p.state.Store(StateRestarting)
		g.recorder.IncProcessRestart(p.Spec.Name)
		g.logger.Info("restarting service",
			logfields.Process(p.Spec.Name), logfields.Attempt(attempt))

		if err := g.policy.Wait(g.superviseCtx, attempt); err != nil {
			return
		}
		if g.stopping.Load() {
			return
		}

		h, err := g.starter.Start(p.Spec)
		if err != nil {
			g.logger.Error("service restart failed",
				logfields.Process(p.Spec.Name), logfields.Error(err))
			// Count the failed start against the budget and loop again.
			closed := make(chan struct{})
			close(closed)
			done = closed
			continue
		}

		done = p.attach(h)
		g.recorder.SetSupervisedProcesses(g.runningCount())
		g.logger.Info("service restarted",
			logfields.Process(p.Spec.Name), logfields.PID(p.PID()))
	}
}

// Stop shuts the group down in reverse start order. Each live child gets
// SIGTERM, the grace period to exit, then SIGKILL. Idempotent.
func (g *Group) Stop(ctx context.Context) {
	g.stopOnce.Do(func() {
		g.stopping.Store(true)
		if g.cancel != nil {
			g.cancel()
		}

		for i := len(g.procs) - 1; i >= 0; i-- {
			g.stopProcess(ctx, g.procs[i])
		}

		g.wg.Wait()
		g.recorder.SetSupervisedProcesses(0)
	})
}

func (g *Group) stopProcess(ctx context.Context, p *Process) {
	defer p.state.Store(StateStopped)

	exited, alive := p.exitChannel()
	if !alive {
		return
	}

	g.logger.Info("stopping service", logfields.Process(p.Spec.Name))
	if err := p.signal(syscall.SIGTERM); err != nil {
		g.logger.Debug("signal failed",
			logfields.Process(p.Spec.Name), logfields.Error(err))
	}

	graceTimer := time.NewTimer(g.grace)
	defer graceTimer.Stop()
	select {
	case <-exited:
		g.logger.Info("service stopped", logfields.Process(p.Spec.Name))
		return
	case <-graceTimer.C:
	case <-ctx.Done():
	}

	g.logger.Warn("service did not stop in time, killing",
		logfields.Process(p.Spec.Name))
	_ = p.signal(syscall.SIGKILL)
	select {
	case <-exited:
	case <-ctx.Done():
	}
}

// Processes returns the supervised processes for status inspection.
func (g *Group) Processes() []*Process {
	out := make([]*Process, len(g.procs))
	copy(out, g.procs)
	return out
}

func (g *Group) runningCount() int {
	n := 0
	for _, p := range g.procs {
		if p.State() == StateRunning {
			n++
		}
	}
	return n
}
