// Package commands wires the courseboot CLI: global flags, logger setup,
// and the operator subcommands.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/courseboot/internal/config"
)

// Global carries state shared by all subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command: global flags plus the operator subcommands.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"/etc/courseboot/config.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Up     UpCmd     `cmd:"" help:"Boot the platform and supervise its services in the foreground (container entrypoint)"`
	Probe  ProbeCmd  `cmd:"" help:"Check database readiness and exit"`
	Status StatusCmd `cmd:"" help:"Print the bootstrap state record and recent journal events"`
	Build  BuildCmd  `cmd:"" help:"Run the bulk content-pack build once and exit"`
	Init   InitCmd   `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; it installs a provisional logger so
// config loading itself logs consistently. loadConfig re-installs the final
// logger once the configured level and format are known.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig loads the effective configuration, including the precondition
// validation, and installs the logger it describes.
func loadConfig(root *CLI) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return nil, nil, err
	}
	return cfg, installLogger(cfg, root.Verbose), nil
}

// installLogger builds the process logger from the monitoring section.
// --verbose always wins over the configured level.
func installLogger(cfg *config.Config, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	format := config.LogFormatText
	if cfg.Monitoring != nil {
		level = cfg.Monitoring.Logging.Level.SlogLevel()
		format = cfg.Monitoring.Logging.Format
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// journalPath resolves the journal database location.
func journalPath(cfg *config.Config) string {
	if cfg.Journal != nil && cfg.Journal.Path != "" {
		return cfg.Journal.Path
	}
	return cfg.Paths.JournalFile()
}
