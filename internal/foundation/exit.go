package foundation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination
// for the entrypoint binary. Container supervisors act only on zero versus
// nonzero status, so every failure maps to exit code 1.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// FormatError formats an error for display on stderr.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	var classified *ClassifiedError
	if AsClassified(err, &classified) {
		return classified.Error()
	}

	return fmt.Sprintf("Error: %v", err)
}

// HandleError logs an error, prints it to stderr and exits the program.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	a.logError(err)
	fmt.Fprintf(os.Stderr, "%s\n", a.FormatError(err))
	os.Exit(a.ExitCodeFor(err))
}

// logError logs an error with severity-appropriate level and context.
func (a *CLIErrorAdapter) logError(err error) {
	var classified *ClassifiedError
	if !AsClassified(err, &classified) {
		a.logger.Error("Unclassified error", "error", err)
		return
	}

	attrs := []slog.Attr{
		slog.String("code", string(classified.Code)),
	}
	if classified.Component != "" {
		attrs = append(attrs, slog.String("component", classified.Component))
	}
	if classified.Retryable {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if a.verbose {
		for k, v := range classified.Context {
			attrs = append(attrs, slog.Any(k, v))
		}
	}

	level := a.slogLevelFromSeverity(classified.Severity)
	a.logger.LogAttrs(context.Background(), level, classified.Message, attrs...)
}

// slogLevelFromSeverity converts error severity to slog level.
func (a *CLIErrorAdapter) slogLevelFromSeverity(severity Severity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError, SeverityCritical, SeverityFatal:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
