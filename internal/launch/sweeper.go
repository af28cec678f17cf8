package launch

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
	"git.home.luguber.info/inful/courseboot/internal/metrics"
)

// Sweeper periodically inspects the process group and refreshes the
// liveness gauge. It exists for operators tailing the entrypoint log: a
// dead-and-exhausted service shows up every sweep, not only at the moment
// it died.
type Sweeper struct {
	scheduler gocron.Scheduler
	group     *Group
	logger    *slog.Logger
	recorder  metrics.Recorder
}

// NewSweeper creates a sweeper for the given group.
func NewSweeper(group *Group, logger *slog.Logger, recorder metrics.Recorder) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, foundation.InternalError("creating sweep scheduler").
			WithCause(err).
			Build()
	}
	return &Sweeper{scheduler: s, group: group, logger: logger, recorder: recorder}, nil
}

// Start schedules the sweep at the given interval and begins the scheduler.
func (s *Sweeper) Start(interval time.Duration) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
		gocron.WithName("liveness-sweep"),
	)
	if err != nil {
		return foundation.InternalError("scheduling liveness sweep").
			WithCause(err).
			Build()
	}
	s.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down.
func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Sweeper) sweep() {
	running := 0
	for _, p := range s.group.Processes() {
		state := p.State()
		if state == StateRunning {
			running++
			continue
		}
		s.logger.Warn("service not running",
			logfields.Process(p.Spec.Name),
			slog.String("state", string(state)),
			slog.Int("restarts", p.Restarts()))
	}
	s.recorder.SetSupervisedProcesses(running)
	s.logger.Debug("liveness sweep",
		slog.Int("running", running),
		slog.Int("total", len(s.group.Processes())))
}
