// Package initializer performs the one-time provisioning a fresh container
// needs before the platform can run: module registration, auth key
// generation, credential and institution artifacts, and the optional TLS
// certificate. Completion is recorded in the boot state record, so repeat
// boots skip the whole phase.
package initializer

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/execx"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
	"git.home.luguber.info/inful/courseboot/internal/state"
)

const lockRetryDelay = 250 * time.Millisecond

// Initializer runs first-boot provisioning exactly once per data volume.
type Initializer struct {
	cfg    *config.Config
	store  *state.Store
	runner execx.Runner
	logger *slog.Logger
}

func New(cfg *config.Config, store *state.Store, runner execx.Runner, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{cfg: cfg, store: store, runner: runner, logger: logger}
}

// Run initializes the container on first boot and is a no-op afterwards.
// It reports whether provisioning actually ran. Containers sharing a data
// volume serialize on a file lock; whoever acquires it second finds the
// record already initialized and skips.
func (i *Initializer) Run(ctx context.Context) (bool, error) {
	record, err := i.store.Load()
	if err != nil {
		return false, err
	}
	if record.Initialized() {
		i.logger.Info("container already initialized, skipping first-run setup",
			slog.Time("initialized_at", derefTime(record.InitializedAt)))
		i.warnOnDrift(record)
		return false, nil
	}

	lock := flock.New(i.cfg.Paths.LockFile())
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return false, foundation.InitError("acquiring initialization lock").
			WithCause(err).
			WithContext(foundation.Fields{"lock_file": i.cfg.Paths.LockFile()}).
			Build()
	}
	if !locked {
		return false, foundation.InitError("initialization lock unavailable").Build()
	}
	defer func() { _ = lock.Unlock() }()

	// Re-check under the lock: another container may have finished while
	// this one was waiting.
	record, err = i.store.Load()
	if err != nil {
		return false, err
	}
	if record.Initialized() {
		i.logger.Info("initialization completed by another container, skipping")
		return false, nil
	}

	if err := i.provision(ctx); err != nil {
		return false, err
	}

	if _, err := i.store.Update(func(r *state.Record) {
		r.MarkInitialized(i.cfg.Snapshot(), time.Now().UTC())
	}); err != nil {
		return false, err
	}

	i.logger.Info("first-run initialization complete")
	return true, nil
}

// provision runs the individual setup steps in order. Only certificate
// issuance is tolerated on failure; everything else aborts the boot,
// leaving the record untouched so the next boot retries from scratch.
func (i *Initializer) provision(ctx context.Context) error {
	if err := i.registerModule(ctx); err != nil {
		return err
	}
	if err := ProvisionAuthKey(i.cfg.Paths.AuthKeyFile(), i.logger); err != nil {
		return err
	}
	if err := WriteCredentials(i.cfg.Paths.CredentialsFile(), i.cfg.Database); err != nil {
		return err
	}
	if err := WriteInstitutionOverride(i.cfg.Paths.OverrideFile(), i.cfg.Institution, i.logger); err != nil {
		return err
	}
	i.issueCertificate(ctx)
	return nil
}

func (i *Initializer) registerModule(ctx context.Context) error {
	argv := append(append([]string{}, i.cfg.Commands.RegisterModule...), i.cfg.Paths.AppRoot)
	i.logger.Info("registering application module",
		logfields.Path(i.cfg.Paths.AppRoot))

	if err := i.runner.Run(ctx, execx.Spec{Argv: argv}); err != nil {
		return foundation.InitError("module registration failed").
			WithCause(err).
			Build()
	}
	return nil
}

// issueCertificate requests a TLS certificate when an institution email is
// configured. Failure is logged and tolerated: certificate issuance needs
// working DNS and an ACME endpoint, neither of which a fresh deployment
// reliably has yet.
func (i *Initializer) issueCertificate(ctx context.Context) {
	email := institutionEmail(i.cfg.Institution)
	if email == "" {
		i.logger.Info("no institution email configured, skipping certificate issuance")
		return
	}

	argv := append(append([]string{}, i.cfg.Commands.IssueCert...),
		i.cfg.Platform.Hostname, email)
	if err := i.runner.Run(ctx, execx.Spec{Argv: argv}); err != nil {
		i.logger.Warn("certificate issuance failed, continuing without certificate",
			logfields.Error(err))
		return
	}
	i.logger.Info("certificate issued", slog.String("hostname", i.cfg.Platform.Hostname))
}

// warnOnDrift flags a config change against an already-provisioned volume.
// Provisioning artifacts (credentials, overrides) reflect the old values and
// are not rewritten; the operator has to reconcile that deliberately.
func (i *Initializer) warnOnDrift(record *state.Record) {
	current := i.cfg.Snapshot()
	if record.ConfigSnapshot == "" || record.ConfigSnapshot == current {
		return
	}
	i.logger.Warn("boot-affecting configuration changed since initialization",
		slog.String("initialized_snapshot", record.ConfigSnapshot),
		slog.String("current_snapshot", current))
}

func institutionEmail(inst *config.InstitutionConfig) string {
	if inst == nil {
		return ""
	}
	return inst.Email
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
