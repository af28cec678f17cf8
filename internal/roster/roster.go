// Package roster feeds optional instructor and student roster files into
// the application's admin commands. Each file carries an mtime stamp in the
// bootstrap state record; an unchanged file is skipped on the next boot.
package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/execx"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
	"git.home.luguber.info/inful/courseboot/internal/state"
)

// Syncer processes the configured roster files.
type Syncer struct {
	cfg    *config.Config
	store  *state.Store
	runner execx.Runner
	logger *slog.Logger
}

// New creates a Syncer. A nil logger falls back to slog.Default.
func New(cfg *config.Config, store *state.Store, runner execx.Runner, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{cfg: cfg, store: store, runner: runner, logger: logger}
}

// Sync processes the instructor roster, then the student roster. Row-level
// and import-level failures are tolerated; only state-record persistence
// failures and cancellation are returned.
func (s *Syncer) Sync(ctx context.Context) error {
	record, err := s.store.Load()
	if err != nil {
		return err
	}
	if err := s.syncInstructors(ctx, record); err != nil {
		return err
	}
	return s.syncStudents(ctx, record)
}

// syncInstructors registers every roster row through the admin command.
// The file is comma-delimited; only the first two fields (identifier,
// course) are used. A row that fails to register is logged and skipped.
func (s *Syncer) syncInstructors(ctx context.Context, record *state.Record) error {
	path := s.cfg.Rosters.InstructorFile
	if path == "" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("instructor roster not readable, skipping",
			logfields.RosterKind(state.RosterInstructors),
			logfields.Path(path), logfields.Error(err))
		return nil
	}
	if record.RosterFresh(state.RosterInstructors, info.ModTime()) {
		s.logger.Debug("instructor roster unchanged, skipping",
			logfields.RosterKind(state.RosterInstructors), logfields.Path(path))
		return nil
	}

	registered, failed, err := s.registerInstructors(ctx, path)
	if err != nil {
		return err
	}

	if _, err := s.store.Update(func(r *state.Record) {
		r.StampRoster(state.RosterInstructors, info.ModTime(), time.Now().UTC())
	}); err != nil {
		return err
	}
	s.logger.Info("instructor roster processed",
		logfields.RosterKind(state.RosterInstructors),
		slog.Int("registered", registered),
		slog.Int("failed", failed))
	return nil
}

func (s *Syncer) registerInstructors(ctx context.Context, path string) (registered, failed int, err error) {
	f, err := os.Open(path) // #nosec G304 -- operator-configured roster path
	if err != nil {
		s.logger.Warn("opening instructor roster failed, skipping",
			logfields.Path(path), logfields.Error(err))
		return 0, 0, nil
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	row := 0
	for {
		if ctx.Err() != nil {
			return registered, failed, ctx.Err()
		}
		fields, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			return registered, failed, nil
		}
		row++
		if readErr != nil {
			failed++
			s.logger.Warn("skipping malformed roster row",
				logfields.Row(row), logfields.Error(readErr))
			continue
		}
		if len(fields) < 2 {
			failed++
			s.logger.Warn("skipping roster row with missing fields", logfields.Row(row))
			continue
		}

		// Institution exports arrive in inconsistent unicode forms; the
		// admin tool matches identifiers byte-for-byte.
		identifier := norm.NFC.String(strings.TrimSpace(fields[0]))
		course := norm.NFC.String(strings.TrimSpace(fields[1]))
		if identifier == "" {
			continue
		}

		argv := append(append([]string{}, s.cfg.Commands.AddInstructor...), identifier, course)
		if runErr := s.runner.Run(ctx, execx.Spec{Argv: argv}); runErr != nil {
			failed++
			s.logger.Warn("instructor registration failed",
				logfields.Row(row),
				slog.String("identifier", identifier),
				logfields.Error(runErr))
			continue
		}
		registered++
	}
}

// syncStudents hands the whole student file to the bulk import command. On
// import failure the stamp is left untouched so the next boot retries.
func (s *Syncer) syncStudents(ctx context.Context, record *state.Record) error {
	path := s.cfg.Rosters.StudentFile
	if path == "" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("student roster not readable, skipping",
			logfields.RosterKind(state.RosterStudents),
			logfields.Path(path), logfields.Error(err))
		return nil
	}
	if record.RosterFresh(state.RosterStudents, info.ModTime()) {
		s.logger.Debug("student roster unchanged, skipping",
			logfields.RosterKind(state.RosterStudents), logfields.Path(path))
		return nil
	}

	argv := append(append([]string{}, s.cfg.Commands.EnrollStudents...), path)
	if runErr := s.runner.Run(ctx, execx.Spec{Argv: argv}); runErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("student roster import failed, will retry next boot",
			logfields.RosterKind(state.RosterStudents),
			logfields.Path(path), logfields.Error(runErr))
		return nil
	}

	if _, err := s.store.Update(func(r *state.Record) {
		r.StampRoster(state.RosterStudents, info.ModTime(), time.Now().UTC())
	}); err != nil {
		return err
	}
	s.logger.Info("student roster imported",
		logfields.RosterKind(state.RosterStudents), logfields.Path(path))
	return nil
}
