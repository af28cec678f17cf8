// Package bootstrap sequences the container boot: first-run provisioning,
// database readiness, schema dispatch, filesystem preparation, supervised
// service launch, roster sync, the flag-gated bulk content build, and
// finally the foreground log sentinel. Every phase is journaled, published,
// and timed under a single run ID so a boot can be reconstructed afterwards
// from `courseboot status` alone.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/content"
	"git.home.luguber.info/inful/courseboot/internal/dbstate"
	"git.home.luguber.info/inful/courseboot/internal/events"
	"git.home.luguber.info/inful/courseboot/internal/execx"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/fsprep"
	"git.home.luguber.info/inful/courseboot/internal/initializer"
	"git.home.luguber.info/inful/courseboot/internal/launch"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
	"git.home.luguber.info/inful/courseboot/internal/metrics"
	"git.home.luguber.info/inful/courseboot/internal/probe"
	"git.home.luguber.info/inful/courseboot/internal/roster"
	"git.home.luguber.info/inful/courseboot/internal/sentinel"
	"git.home.luguber.info/inful/courseboot/internal/state"
	"git.home.luguber.info/inful/courseboot/internal/version"
)

// Phase names used in journal entries, lifecycle events, logs, and metrics.
const (
	PhaseBoot     = "boot"
	PhaseInit     = "init"
	PhaseProbe    = "probe"
	PhaseMigrate  = "migrate"
	PhaseFsPrep   = "fsprep"
	PhaseLaunch   = "launch"
	PhaseRoster   = "roster"
	PhaseBuild    = "build"
	PhaseSentinel = "sentinel"
)

// Journal event types.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventSkipped   = "skipped"
	EventShutdown  = "shutdown"
)

// Boot outcomes recorded on the boot counter.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

const monitoringStopTimeout = 5 * time.Second

// prober is the slice of the readiness prober the sequence needs.
type prober interface {
	Run(ctx context.Context) foundation.Result[probe.Report, error]
}

// Options carries the optional collaborators of a boot. Every field may be
// zero: a nil Journal drops entries, a nil Publisher disables lifecycle
// events, a nil Recorder disables metrics, a nil Metrics server skips the
// monitoring endpoint, and nil Runner/Starter fall back to the real
// subprocess implementations.
type Options struct {
	Journal   *state.Journal
	Publisher *events.Publisher
	Recorder  metrics.Recorder
	Metrics   *metrics.Server
	Runner    execx.Runner
	Starter   launch.Starter
}

// Orchestrator owns the boot sequence of one container run.
type Orchestrator struct {
	cfg       *config.Config
	store     *state.Store
	journal   *state.Journal
	publisher *events.Publisher
	monitor   *metrics.Server
	runner    execx.Runner
	starter   launch.Starter
	recorder  metrics.Recorder
	logger    *slog.Logger

	// newProber builds the readiness prober; tests swap it to boot
	// without a reachable database.
	newProber func(logger *slog.Logger) prober

	// tailOut overrides the sentinel's output stream; nil means stdout.
	tailOut io.Writer
}

// New assembles the boot sequence for cfg. The store must point at the
// container's state record; everything else is optional.
func New(cfg *config.Config, store *state.Store, logger *slog.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = execx.NewRunner(logger)
	}
	starter := opts.Starter
	if starter == nil {
		starter = launch.NewStarter(logger)
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		journal:   opts.Journal,
		publisher: opts.Publisher,
		monitor:   opts.Metrics,
		runner:    runner,
		starter:   starter,
		recorder:  recorder,
		logger:    logger,
		newProber: func(logger *slog.Logger) prober {
			return probe.New(cfg.Probe, cfg.Database.DSN(), logger)
		},
	}
}

// Run executes the boot sequence and then blocks in the foreground sentinel
// until ctx is canceled. A nil return means a signal-driven shutdown after
// the supervised services were stopped; any error is fatal and the caller
// should exit nonzero.
func (o *Orchestrator) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := o.logger.With(logfields.RunID(runID))
	start := time.Now()

	o.note(runID, PhaseBoot, EventStarted, "courseboot "+version.Version)
	logger.Info("boot sequence starting", slog.String("version", version.Version))

	if _, err := o.store.Update(func(r *state.Record) { r.RunID = runID }); err != nil {
		return o.fail(runID, logger, start, err)
	}

	if err := o.runPhase(ctx, runID, logger, PhaseInit, o.initPhase); err != nil {
		return o.fail(runID, logger, start, err)
	}
	if err := o.runPhase(ctx, runID, logger, PhaseProbe, o.probePhase); err != nil {
		return o.fail(runID, logger, start, err)
	}
	if err := o.runPhase(ctx, runID, logger, PhaseMigrate, o.migratePhase); err != nil {
		return o.fail(runID, logger, start, err)
	}
	if err := o.runPhase(ctx, runID, logger, PhaseFsPrep, o.fsprepPhase); err != nil {
		return o.fail(runID, logger, start, err)
	}

	group := launch.NewGroup(o.cfg.Launch, o.starter, logger, o.recorder)
	if err := o.runPhase(ctx, runID, logger, PhaseLaunch,
		func(ctx context.Context, logger *slog.Logger) (string, error) {
			return o.launchPhase(ctx, logger, group)
		}); err != nil {
		return o.fail(runID, logger, start, err)
	}

	sweeper := o.startSweeper(group, logger)
	defer func() {
		if sweeper != nil {
			_ = sweeper.Stop()
		}
		group.Stop(context.Background())
	}()

	if err := o.runPhase(ctx, runID, logger, PhaseRoster, o.rosterPhase); err != nil {
		return o.fail(runID, logger, start, err)
	}

	if o.cfg.Build.Enabled {
		if err := o.runPhase(ctx, runID, logger, PhaseBuild, o.buildPhase); err != nil {
			return o.fail(runID, logger, start, err)
		}
	} else {
		o.note(runID, PhaseBuild, EventSkipped, "bulk build disabled")
		logger.Debug("bulk build disabled, skipping", logfields.Phase(PhaseBuild))
	}

	if _, err := o.store.Update(func(r *state.Record) { r.MarkReady() }); err != nil {
		return o.fail(runID, logger, start, err)
	}

	elapsed := time.Since(start)
	o.recorder.ObserveBootDuration(elapsed)
	o.recorder.IncBootOutcome(OutcomeSuccess)
	o.note(runID, PhaseBoot, EventCompleted, "")
	logger.Info("boot sequence complete, entering foreground watch",
		logfields.DurationMS(float64(elapsed.Milliseconds())))

	if err := o.runPhase(ctx, runID, logger, PhaseSentinel, o.sentinelPhase); err != nil {
		o.note(runID, PhaseBoot, EventShutdown, err.Error())
		logger.Error("foreground watch failed, shutting down", logfields.Error(err))
		return err
	}

	o.note(runID, PhaseBoot, EventShutdown, "")
	logger.Info("supervisor shutting down")
	return nil
}

// runPhase wraps one phase with journaling, lifecycle events, and metrics.
// Warning-classified errors (roster problems, index failures) are logged
// and absorbed; anything else aborts the boot.
func (o *Orchestrator) runPhase(ctx context.Context, runID string, logger *slog.Logger,
	phase string, fn func(context.Context, *slog.Logger) (string, error),
) error {
	o.note(runID, phase, EventStarted, "")
	logger.Info("phase starting", logfields.Phase(phase))
	start := time.Now()

	detail, err := fn(ctx, logger)
	elapsed := time.Since(start)
	o.recorder.ObservePhaseDuration(phase, elapsed)

	if err != nil {
		o.note(runID, phase, EventFailed, err.Error())
		if tolerated(err) {
			o.recorder.IncPhaseResult(phase, metrics.ResultWarning)
			logger.Warn("phase failed, continuing",
				logfields.Phase(phase),
				logfields.DurationMS(float64(elapsed.Milliseconds())),
				logfields.Error(err))
			return nil
		}
		result := metrics.ResultFatal
		if errors.Is(err, context.Canceled) {
			result = metrics.ResultCanceled
		}
		o.recorder.IncPhaseResult(phase, result)
		logger.Error("phase failed",
			logfields.Phase(phase),
			logfields.DurationMS(float64(elapsed.Milliseconds())),
			logfields.Error(err))
		return err
	}

	o.recorder.IncPhaseResult(phase, metrics.ResultSuccess)
	o.note(runID, phase, EventCompleted, detail)
	logger.Info("phase completed",
		logfields.Phase(phase),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return nil
}

// tolerated reports whether a phase error downgrades to a warning instead
// of aborting the boot. Only warning-severity classifications qualify;
// cancellation always unwinds.
func tolerated(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var classified *foundation.ClassifiedError
	if foundation.AsClassified(err, &classified) {
		return classified.Severity == foundation.SeverityWarning
	}
	return false
}

func (o *Orchestrator) initPhase(ctx context.Context, logger *slog.Logger) (string, error) {
	performed, err := initializer.New(o.cfg, o.store, o.runner, logger).Run(ctx)
	if err != nil {
		return "", err
	}
	if !performed {
		return "already provisioned", nil
	}
	return "first-run provisioning performed", nil
}

func (o *Orchestrator) probePhase(ctx context.Context, logger *slog.Logger) (string, error) {
	result := o.newProber(logger).Run(ctx)
	if result.IsErr() {
		return "", result.UnwrapErr()
	}
	report := result.Unwrap()
	o.recorder.ObserveProbeAttempts(report.Attempts)
	return fmt.Sprintf("database ready after %d attempt(s)", report.Attempts), nil
}

func (o *Orchestrator) migratePhase(ctx context.Context, logger *slog.Logger) (string, error) {
	outcome, err := dbstate.NewMigrator(o.runner, o.cfg, logger).Run(ctx)
	if err != nil {
		return "", err
	}
	if _, err := o.store.Update(func(r *state.Record) {
		r.SetStateCode(int(outcome.Code), outcome.BuildAll)
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("state %s: %s", outcome.Code, outcome.Action), nil
}

func (o *Orchestrator) fsprepPhase(_ context.Context, logger *slog.Logger) (string, error) {
	preparer := fsprep.New(o.cfg, logger)
	if err := preparer.Prepare(); err != nil {
		return "", err
	}
	if o.cfg.Launch.DevMode {
		if err := preparer.RelaxForDevelopment(); err != nil {
			logger.Warn("failed to relax content permissions for development",
				logfields.Error(err))
		}
	}
	return "", nil
}

// launchPhase applies development conveniences first so a reinstalled
// checkout is what the services actually load, then starts the group.
func (o *Orchestrator) launchPhase(ctx context.Context, logger *slog.Logger, group *launch.Group) (string, error) {
	launch.NewDevMode(o.cfg, o.runner, logger).Apply(ctx)

	specs := launch.ServiceSpecs(o.cfg)
	if err := group.Start(ctx, specs); err != nil {
		return "", err
	}
	return fmt.Sprintf("supervising %d services", len(specs)), nil
}

// startSweeper begins the periodic liveness sweep. The sweep is reporting
// only; supervision works without it, so failures are logged and dropped.
func (o *Orchestrator) startSweeper(group *launch.Group, logger *slog.Logger) *launch.Sweeper {
	sweeper, err := launch.NewSweeper(group, logger, o.recorder)
	if err != nil {
		logger.Warn("liveness sweeper unavailable", logfields.Error(err))
		return nil
	}
	if err := sweeper.Start(o.cfg.Launch.SweepIntervalDuration()); err != nil {
		logger.Warn("liveness sweeper failed to start", logfields.Error(err))
		return nil
	}
	return sweeper
}

func (o *Orchestrator) rosterPhase(ctx context.Context, logger *slog.Logger) (string, error) {
	if err := roster.New(o.cfg, o.store, o.runner, logger).Sync(ctx); err != nil {
		return "", err
	}
	return "", nil
}

func (o *Orchestrator) buildPhase(ctx context.Context, logger *slog.Logger) (string, error) {
	record, err := o.store.Load()
	if err != nil {
		return "", err
	}

	registry := content.NewRegistry(o.cfg, o.runner, logger)
	builder := content.NewBuilder(o.cfg, o.runner, registry, logger, o.recorder)
	report, err := builder.BuildAll(ctx, record.BuildAll)
	if err != nil {
		// Services are already up; a pack-root problem is a warning here.
		return "", foundation.BuildError("bulk build aborted").
			Warning().
			WithCause(err).
			Build()
	}

	if record.BuildAll && len(report.Failed()) == 0 {
		if _, err := o.store.Update(func(r *state.Record) { r.BuildAll = false }); err != nil {
			return "", err
		}
	}

	if o.cfg.Build.IndexPage {
		if err := content.NewIndexer(o.cfg, logger).Generate(); err != nil {
			logger.Warn("library index generation failed", logfields.Error(err))
		}
	}

	return fmt.Sprintf("built %d, skipped %d, failed %d",
		report.Built(), report.Skipped(), len(report.Failed())), nil
}

// sentinelPhase holds the container in the foreground: monitoring endpoint
// up, main log streamed to stdout, until ctx is canceled by a signal.
func (o *Orchestrator) sentinelPhase(ctx context.Context, logger *slog.Logger) (string, error) {
	o.monitor.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), monitoringStopTimeout)
		defer cancel()
		o.monitor.Stop(stopCtx)
	}()

	tail := sentinel.New(o.cfg.Paths.MainLog(), o.tailOut, logger)
	if err := tail.Follow(ctx); err != nil {
		return "", err
	}
	return "signal received", nil
}

// note records one lifecycle event in the journal and on the event bus.
// Both sinks are best-effort. The journal write uses a background context
// so shutdown events survive signal cancellation.
func (o *Orchestrator) note(runID, phase, eventType, detail string) {
	if err := o.journal.Append(context.Background(), runID, phase, eventType, detail); err != nil {
		o.logger.Debug("journal append failed", logfields.Error(err))
	}
	o.publisher.Publish(runID, phase, eventType, detail)
}

// fail records the terminal boot outcome and returns err unchanged.
func (o *Orchestrator) fail(runID string, logger *slog.Logger, start time.Time, err error) error {
	o.recorder.ObserveBootDuration(time.Since(start))
	outcome := OutcomeFailed
	if errors.Is(err, context.Canceled) {
		outcome = OutcomeCanceled
	}
	o.recorder.IncBootOutcome(outcome)
	o.note(runID, PhaseBoot, EventFailed, err.Error())
	logger.Error("boot sequence failed", logfields.Error(err))
	return err
}
