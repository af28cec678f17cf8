package content

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/execx"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
)

// RegistryChecker answers whether a pack is known to the platform registry.
type RegistryChecker interface {
	Registered(ctx context.Context, name string) bool
}

// Registry queries pack metadata through the registry-lookup command. The
// command's contract is its exit status: zero means registered, nonzero
// means unknown.
type Registry struct {
	cfg    *config.Config
	runner execx.Runner
	logger *slog.Logger
}

// NewRegistry creates a Registry. A nil logger falls back to slog.Default.
func NewRegistry(cfg *config.Config, runner execx.Runner, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{cfg: cfg, runner: runner, logger: logger}
}

// Registered reports whether the registry knows the pack. Lookup failures
// of any kind count as unregistered; the caller skips the pack.
func (r *Registry) Registered(ctx context.Context, name string) bool {
	argv := append(append([]string{}, r.cfg.Commands.RegistryLookup...), name)
	if _, err := r.runner.Output(ctx, execx.Spec{Argv: argv}); err != nil {
		r.logger.Debug("registry lookup failed",
			logfields.Pack(name), logfields.Error(err))
		return false
	}
	return true
}
