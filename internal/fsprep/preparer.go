// Package fsprep puts the shared volume into the layout the platform
// expects: data, log, run and config directories, pre-created log files,
// and no stale unix sockets left over from a previous container. Every
// step is idempotent; the preparer runs on each boot.
package fsprep

import (
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
)

// Preparer creates and owns the runtime filesystem layout.
type Preparer struct {
	cfg    *config.Config
	logger *slog.Logger

	// seams for tests, which do not run as root
	chown     func(path string, uid, gid int) error
	geteuid   func() int
	lookupIDs func(user, group string) (int, int, error)
}

func New(cfg *config.Config, logger *slog.Logger) *Preparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preparer{
		cfg:       cfg,
		logger:    logger,
		chown:     os.Chown,
		geteuid:   os.Geteuid,
		lookupIDs: resolveServiceIDs,
	}
}

// Prepare creates directories, touches log files, clears stale sockets and
// hands ownership to the service user.
func (p *Preparer) Prepare() error {
	if err := p.ensureDirectories(); err != nil {
		return err
	}
	if err := p.ensureLogFiles(); err != nil {
		return err
	}
	if err := p.clearStaleSockets(); err != nil {
		return err
	}
	return p.applyOwnership()
}

func (p *Preparer) directories() []string {
	paths := p.cfg.Paths
	return []string{paths.DataDir, paths.LogDir, paths.RunDir, paths.ConfigDir, paths.ContentRoot}
}

func (p *Preparer) logFiles() []string {
	paths := p.cfg.Paths
	return []string{paths.MainLog(), paths.APILog(), paths.ProxyLog()}
}

func (p *Preparer) ensureDirectories() error {
	for _, dir := range p.directories() {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return foundation.FilesystemError("creating directory").
				Fatal().
				WithCause(err).
				WithContext(foundation.Fields{"path": dir}).
				Build()
		}
	}
	p.logger.Debug("runtime directories ready")
	return nil
}

// ensureLogFiles touches the service log files so the sentinel can follow
// them from the moment it starts, before any process has written a line.
func (p *Preparer) ensureLogFiles() error {
	for _, path := range p.logFiles() {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return foundation.FilesystemError("creating log file").
				Fatal().
				WithCause(err).
				WithContext(foundation.Fields{"path": path}).
				Build()
		}
		_ = f.Close()
	}
	return nil
}

// clearStaleSockets removes socket files an unclean shutdown left behind.
// The servers refuse to bind over an existing socket path.
func (p *Preparer) clearStaleSockets() error {
	for _, sock := range []string{p.cfg.Paths.AppSocket(), p.cfg.Paths.APISocket()} {
		err := os.Remove(sock)
		if err == nil {
			p.logger.Info("removed stale socket", logfields.Path(sock))
			continue
		}
		if !os.IsNotExist(err) {
			return foundation.FilesystemError("removing stale socket").
				Fatal().
				WithCause(err).
				WithContext(foundation.Fields{"path": sock}).
				Build()
		}
	}
	return nil
}

// applyOwnership chowns the runtime tree to the service user. Outside the
// container the entrypoint does not run as root, so ownership is skipped
// rather than failed.
func (p *Preparer) applyOwnership() error {
	if p.geteuid() != 0 {
		p.logger.Debug("not running as root, skipping ownership changes")
		return nil
	}

	uid, gid, err := p.lookupIDs(p.cfg.Platform.ServiceUser, p.cfg.Platform.ServiceGroup)
	if err != nil {
		return err
	}

	for _, dir := range []string{p.cfg.Paths.DataDir, p.cfg.Paths.LogDir, p.cfg.Paths.RunDir, p.cfg.Paths.ConfigDir} {
		if dir == "" {
			continue
		}
		if err := p.chownTree(dir, uid, gid); err != nil {
			return err
		}
	}
	// Content packs may be a read-only mount; only the root needs to belong
	// to the service user.
	if root := p.cfg.Paths.ContentRoot; root != "" {
		if err := p.chown(root, uid, gid); err != nil {
			p.logger.Warn("content root ownership not changed",
				logfields.Path(root), logfields.Error(err))
		}
	}
	return nil
}

func (p *Preparer) chownTree(root string, uid, gid int) error {
	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := p.chown(path, uid, gid); err != nil {
			return foundation.FilesystemError("changing ownership").
				Fatal().
				WithCause(err).
				WithContext(foundation.Fields{"path": path}).
				Build()
		}
		return nil
	})
}

func resolveServiceIDs(userName, groupName string) (int, int, error) {
	u, err := user.Lookup(userName)
	if err != nil {
		return 0, 0, foundation.FilesystemError("service user not found").
			Fatal().
			WithCause(err).
			WithContext(foundation.Fields{"user": userName}).
			Build()
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, foundation.FilesystemError("non-numeric uid").WithCause(err).Build()
	}

	gid := -1
	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return 0, 0, foundation.FilesystemError("service group not found").
				Fatal().
				WithCause(err).
				WithContext(foundation.Fields{"group": groupName}).
				Build()
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return 0, 0, foundation.FilesystemError("non-numeric gid").WithCause(err).Build()
		}
	}
	return uid, gid, nil
}

// RelaxForDevelopment makes the content tree and development checkout
// group-writable so a host-mounted volume can be edited in place while the
// service group keeps write access.
func (p *Preparer) RelaxForDevelopment() error {
	for _, root := range []string{p.cfg.Paths.ContentRoot, p.cfg.Paths.DevCheckout} {
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		if err := relaxTree(root); err != nil {
			return err
		}
		p.logger.Info("relaxed permissions for development", logfields.Path(root))
	}
	return nil
}

func relaxTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mode := info.Mode().Perm() | 0o020
		if chmodErr := os.Chmod(path, mode); chmodErr != nil {
			return foundation.FilesystemError("relaxing permissions").
				WithCause(chmodErr).
				WithContext(foundation.Fields{"path": path}).
				Build()
		}
		return nil
	})
}
