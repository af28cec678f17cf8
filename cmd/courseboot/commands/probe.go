package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/courseboot/internal/probe"
)

// ProbeCmd runs the database readiness probe on its own, for health scripts
// and manual diagnosis. Exits nonzero when the database never answered.
type ProbeCmd struct {
	Attempts int `help:"Override the configured attempt budget" default:"0"`
}

func (p *ProbeCmd) Run(_ *Global, root *CLI) error {
	cfg, logger, err := loadConfig(root)
	if err != nil {
		return err
	}
	if p.Attempts > 0 {
		cfg.Probe.Attempts = p.Attempts
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	result := probe.New(cfg.Probe, cfg.Database.DSN(), logger).Run(ctx)
	if result.IsErr() {
		return result.UnwrapErr()
	}

	report := result.Unwrap()
	fmt.Printf("database ready after %d attempt(s) in %s\n",
		report.Attempts, report.Elapsed.Round(time.Millisecond))
	return nil
}
