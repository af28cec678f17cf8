package launch

import (
	"context"
	"log/slog"

	git "github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/execx"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
)

// DevMode handles the development-checkout conveniences: when the configured
// checkout path is a git work tree, the module is reinstalled editable from
// it and a version report is logged. Every step here is best-effort; a
// production container without a checkout skips all of it.
type DevMode struct {
	cfg    *config.Config
	runner execx.Runner
	logger *slog.Logger
}

// NewDevMode creates the dev-checkout handler.
func NewDevMode(cfg *config.Config, runner execx.Runner, logger *slog.Logger) *DevMode {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevMode{cfg: cfg, runner: runner, logger: logger}
}

// Apply detects a development checkout and, when present, reinstalls the
// module editable from it and logs a version report. Failures are logged
// and swallowed: dev conveniences never block the boot.
func (d *DevMode) Apply(ctx context.Context) {
	checkout := d.cfg.Paths.DevCheckout
	if checkout == "" {
		return
	}

	repo, err := git.PlainOpen(checkout)
	if err != nil {
		d.logger.Debug("no development checkout", logfields.Path(checkout))
		return
	}
	d.logger.Info("development checkout detected", logfields.Path(checkout))

	argv := append(append([]string{}, d.cfg.Commands.RegisterModule...), checkout)
	if err := d.runner.Run(ctx, execx.Spec{Argv: argv}); err != nil {
		d.logger.Warn("editable reinstall failed", logfields.Error(err))
	}

	report := []slog.Attr{}
	if head, headErr := repo.Head(); headErr == nil {
		report = append(report,
			slog.String("commit", head.Hash().String()[:8]),
			slog.String("ref", head.Name().Short()))
	}
	version, verErr := d.runner.Output(ctx, execx.Spec{Argv: d.cfg.Commands.AppVersion})
	if verErr != nil {
		d.logger.Warn("version report failed", logfields.Error(verErr))
	} else {
		report = append(report, slog.String("app_version", version))
	}
	d.logger.LogAttrs(ctx, slog.LevelInfo, "development version report", report...)
}
