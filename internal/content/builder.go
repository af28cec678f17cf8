package content

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/execx"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
	"git.home.luguber.info/inful/courseboot/internal/metrics"
)

// Skip reasons recorded in outcomes.
const (
	SkipUnregistered = "unregistered"
	SkipNoBuild      = "nobuild"
)

// Outcome is one pack's result in the bulk build.
type Outcome struct {
	Pack     string
	Skipped  bool
	Reason   string
	Err      error
	Duration time.Duration
}

// Report aggregates the bulk build across all packs.
type Report struct {
	Outcomes []Outcome
}

// Built counts packs that built successfully.
func (r *Report) Built() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Skipped && o.Err == nil {
			n++
		}
	}
	return n
}

// Skipped counts packs excluded by registry or marker.
func (r *Report) Skipped() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Skipped {
			n++
		}
	}
	return n
}

// Failed returns the outcomes whose build failed.
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Builder runs the bulk content build. Each pack builds in its own
// subprocess so a crashing build tool cannot take the siblings with it;
// the pool bounds how many run at once.
type Builder struct {
	cfg      *config.Config
	runner   execx.Runner
	registry RegistryChecker
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewBuilder creates a Builder. Nil logger and recorder get safe defaults.
func NewBuilder(cfg *config.Config, runner execx.Runner, registry RegistryChecker, logger *slog.Logger, recorder metrics.Recorder) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Builder{cfg: cfg, runner: runner, registry: registry, logger: logger, recorder: recorder}
}

// BuildAll builds every pack under the content root through the worker
// pool. buildAll forces full rebuilds of packs that look already built.
// Pack failures land in the report, never in the returned error; only
// discovery fails the call.
func (b *Builder) BuildAll(ctx context.Context, buildAll bool) (*Report, error) {
	packs, err := Discover(b.cfg.Paths.ContentRoot)
	if err != nil {
		return nil, err
	}
	if len(packs) == 0 {
		b.logger.Info("no content packs found", logfields.Path(b.cfg.Paths.ContentRoot))
		return &Report{}, nil
	}

	workers := b.cfg.Build.Workers
	if workers <= 0 {
		workers = 2
	}
	if workers > len(packs) {
		workers = len(packs)
	}
	b.logger.Info("starting bulk content build",
		slog.Int("packs", len(packs)),
		slog.Int("workers", workers),
		slog.Bool("build_all", buildAll))

	jobs := make(chan Pack)
	results := make(chan Outcome)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pack := range jobs {
				results <- b.buildOne(ctx, pack, buildAll)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, pack := range packs {
			select {
			case jobs <- pack:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, 0, len(packs))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Pack < outcomes[j].Pack })

	report := &Report{Outcomes: outcomes}
	b.logger.Info("bulk content build finished",
		slog.Int("built", report.Built()),
		slog.Int("skipped", report.Skipped()),
		slog.Int("failed", len(report.Failed())))
	return report, nil
}

// buildOne handles one pack end to end: registry gate, NOBUILD marker,
// dependency install, then the build-and-deploy subprocess.
func (b *Builder) buildOne(ctx context.Context, pack Pack, buildAll bool) Outcome {
	if ctx.Err() != nil {
		return Outcome{Pack: pack.Name, Err: ctx.Err()}
	}

	if !b.registry.Registered(ctx, pack.Name) {
		b.logger.Info("pack not registered, skipping", logfields.Pack(pack.Name))
		return Outcome{Pack: pack.Name, Skipped: true, Reason: SkipUnregistered}
	}
	if pack.SkipBuild() {
		b.logger.Info("pack opted out of build", logfields.Pack(pack.Name))
		return Outcome{Pack: pack.Name, Skipped: true, Reason: SkipNoBuild}
	}

	start := time.Now()
	if err := b.installDeps(ctx, pack); err != nil {
		return b.finish(pack, start, err)
	}

	argv := append(append([]string{}, b.cfg.Commands.BuildPack...), pack.Dir)
	if buildAll {
		argv = append(argv, "--all")
	}
	err := b.runner.Run(ctx, execx.Spec{
		Argv:    argv,
		Dir:     pack.Dir,
		Timeout: b.cfg.Build.PackTimeoutDuration(),
	})
	if err != nil {
		err = foundation.BuildError("pack build failed").
			WithCause(err).
			WithContext(foundation.Fields{"pack": pack.Name}).
			Build()
	}
	return b.finish(pack, start, err)
}

func (b *Builder) installDeps(ctx context.Context, pack Pack) error {
	depsFile, ok := pack.DepsFile()
	if !ok {
		return nil
	}
	argv := append(append([]string{}, b.cfg.Commands.InstallDeps...), depsFile)
	if err := b.runner.Run(ctx, execx.Spec{Argv: argv, Dir: pack.Dir}); err != nil {
		return foundation.BuildError("installing pack dependencies").
			WithCause(err).
			WithContext(foundation.Fields{"pack": pack.Name, "path": depsFile}).
			Build()
	}
	return nil
}

func (b *Builder) finish(pack Pack, start time.Time, err error) Outcome {
	duration := time.Since(start)
	b.recorder.ObservePackBuildDuration(pack.Name, duration, err == nil)
	b.recorder.IncPackBuildResult(err == nil)
	if err != nil {
		b.logger.Error("pack build failed",
			logfields.Pack(pack.Name),
			logfields.DurationMS(float64(duration.Milliseconds())),
			logfields.Error(err))
		return Outcome{Pack: pack.Name, Err: err, Duration: duration}
	}
	b.logger.Info("pack built",
		logfields.Pack(pack.Name),
		logfields.DurationMS(float64(duration.Milliseconds())))
	return Outcome{Pack: pack.Name, Duration: duration}
}
