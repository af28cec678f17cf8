package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/courseboot/internal/content"
	"git.home.luguber.info/inful/courseboot/internal/execx"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
	"git.home.luguber.info/inful/courseboot/internal/state"
)

// BuildCmd runs the bulk content-pack build on demand, outside the boot
// sequence. It honors a pending full-rebuild mark from the last migration
// and clears it when the rebuild completes without failures.
type BuildCmd struct {
	All   bool `help:"Force a full rebuild of every pack"`
	Index bool `help:"Regenerate the library index page afterwards"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, logger, err := loadConfig(root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store := state.NewStore(cfg.Paths.StateFile())
	record, err := store.Load()
	if err != nil {
		return err
	}
	buildAll := b.All || record.BuildAll

	runner := execx.NewRunner(logger)
	registry := content.NewRegistry(cfg, runner, logger)
	builder := content.NewBuilder(cfg, runner, registry, logger, nil)

	report, err := builder.BuildAll(ctx, buildAll)
	if err != nil {
		return err
	}

	if record.BuildAll && len(report.Failed()) == 0 {
		if _, err := store.Update(func(r *state.Record) { r.BuildAll = false }); err != nil {
			return err
		}
	}

	if b.Index || cfg.Build.IndexPage {
		if err := content.NewIndexer(cfg, logger).Generate(); err != nil {
			logger.Warn("library index generation failed", logfields.Error(err))
		}
	}

	fmt.Printf("built %d, skipped %d, failed %d\n",
		report.Built(), report.Skipped(), len(report.Failed()))
	if n := len(report.Failed()); n > 0 {
		return fmt.Errorf("%d pack build(s) failed", n)
	}
	return nil
}
