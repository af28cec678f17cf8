// Package dbstate inspects the platform database schema and runs the
// migration action that state calls for. The check command's contract is
// minimal: the state code is the last line of stdout, everything above it
// is free-form logging.
package dbstate

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/execx"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
)

// Code is the schema state the platform check command reports.
type Code int

const (
	CodeEmpty     Code = 0 // no schema yet, full initialization required
	CodeLegacy    Code = 1 // pre-platform schema that must be rebuilt from scratch
	CodeUntracked Code = 2 // schema present but migration history missing
	CodeCurrent   Code = 3 // schema is up to date
)

func (c Code) String() string {
	switch c {
	case CodeEmpty:
		return "empty"
	case CodeLegacy:
		return "legacy"
	case CodeUntracked:
		return "untracked"
	case CodeCurrent:
		return "current"
	default:
		return "unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

// Outcome reports what the dispatch did with an inspected code.
type Outcome struct {
	Code     Code
	Action   string
	BuildAll bool // a rebuilt schema invalidates all deployed content
}

// Migrator drives schema inspection and migration through the platform CLI.
type Migrator struct {
	runner execx.Runner
	cfg    *config.Config
	logger *slog.Logger
}

func NewMigrator(runner execx.Runner, cfg *config.Config, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{runner: runner, cfg: cfg, logger: logger}
}

// Run inspects the current state and applies the matching migration.
func (m *Migrator) Run(ctx context.Context) (Outcome, error) {
	code, err := m.Inspect(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return m.Apply(ctx, code)
}

// Inspect runs the state check and parses the code from the last stdout line.
func (m *Migrator) Inspect(ctx context.Context) (Code, error) {
	out, err := m.runner.Output(ctx, execx.Spec{Argv: m.cfg.Commands.CheckState})
	if err != nil {
		return 0, foundation.StateError("database state check failed").
			WithCause(err).
			Build()
	}

	line := lastLine(out)
	n, parseErr := strconv.Atoi(line)
	if parseErr != nil {
		return 0, foundation.StateError("state check printed no code").
			WithContext(foundation.Fields{"last_line": line}).
			Build()
	}
	return Code(n), nil
}

// Apply dispatches on the inspected code. Unknown codes abort the boot:
// guessing at migrations against an unrecognized schema risks data loss.
func (m *Migrator) Apply(ctx context.Context, code Code) (Outcome, error) {
	m.logger.Info("database state inspected",
		logfields.StateCode(int(code)),
		slog.String("state", code.String()))

	switch code {
	case CodeEmpty:
		if err := m.step(ctx, "initialize schema", m.cfg.Commands.InitDB); err != nil {
			return Outcome{}, err
		}
		return Outcome{Code: code, Action: "initialized", BuildAll: true}, nil

	case CodeLegacy:
		if err := m.step(ctx, "reset legacy schema", m.cfg.Commands.ResetDB); err != nil {
			return Outcome{}, err
		}
		return Outcome{Code: code, Action: "reset", BuildAll: true}, nil

	case CodeUntracked:
		if err := m.step(ctx, "fake baseline migration", m.cfg.Commands.FakeMigrate); err != nil {
			return Outcome{}, err
		}
		return Outcome{Code: code, Action: "faked-baseline", BuildAll: false}, nil

	case CodeCurrent:
		m.logger.Info("schema already current, no migration needed")
		return Outcome{Code: code, Action: "none", BuildAll: false}, nil

	default:
		return Outcome{}, foundation.StateError("unknown database state code").
			WithContext(foundation.Fields{"code": int(code)}).
			Build()
	}
}

func (m *Migrator) step(ctx context.Context, action string, argv []string) error {
	m.logger.Info("running migration step",
		slog.String("action", action),
		logfields.Command(strings.Join(argv, " ")))

	if err := m.runner.Run(ctx, execx.Spec{Argv: argv}); err != nil {
		return foundation.StateError("migration step failed").
			WithCause(err).
			WithContext(foundation.Fields{"action": action}).
			Build()
	}
	return nil
}

// lastLine returns the final non-empty line of command output.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
