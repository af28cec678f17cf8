package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/courseboot/internal/bootstrap"
	"git.home.luguber.info/inful/courseboot/internal/events"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
	"git.home.luguber.info/inful/courseboot/internal/metrics"
	"git.home.luguber.info/inful/courseboot/internal/state"
)

// UpCmd is the container entrypoint: it runs the boot sequence, then holds
// the foreground supervising the platform services until SIGTERM/SIGINT.
type UpCmd struct{}

func (u *UpCmd) Run(_ *Global, root *CLI) error {
	cfg, logger, err := loadConfig(root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store := state.NewStore(cfg.Paths.StateFile())
	opts := bootstrap.Options{}

	if cfg.Journal.IsEnabled() {
		// The journal lives in the data dir, which may not exist before
		// the first boot's filesystem phase.
		if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
			logger.Warn("data directory unavailable, journaling disabled", logfields.Error(err))
		} else if journal, err := state.OpenJournal(journalPath(cfg)); err != nil {
			logger.Warn("bootstrap journal unavailable", logfields.Error(err))
		} else {
			defer func() { _ = journal.Close() }()
			opts.Journal = journal
		}
	}

	hostname, _ := os.Hostname()
	publisher, err := events.NewPublisher(cfg.Events, hostname, logger)
	if err != nil {
		logger.Warn("lifecycle event publisher unavailable", logfields.Error(err))
	} else if publisher != nil {
		defer publisher.Close()
		opts.Publisher = publisher
	}

	if cfg.Monitoring != nil && cfg.Monitoring.Metrics.Enabled {
		registry := prom.NewRegistry()
		opts.Recorder = metrics.NewPrometheusRecorder(registry)
		opts.Metrics = metrics.NewServer(
			cfg.Monitoring.Metrics.Listen, cfg.Monitoring.Metrics.Path, registry, logger)
	}

	return bootstrap.New(cfg, store, logger, opts).Run(ctx)
}
