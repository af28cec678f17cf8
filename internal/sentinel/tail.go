// Package sentinel keeps the entrypoint in the foreground by following the
// application's main log file and echoing new lines, the way a container
// runtime expects its PID 1 to behave.
package sentinel

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
)

// Tail follows one log file. It tolerates the file not existing yet,
// rotation (remove/rename + recreate) and truncation.
type Tail struct {
	path    string
	out     io.Writer
	logger  *slog.Logger
	partial []byte
}

// New creates a Tail that writes followed lines to out. A nil out falls
// back to stdout, a nil logger to slog.Default.
func New(path string, out io.Writer, logger *slog.Logger) *Tail {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tail{path: path, out: out, logger: logger}
}

// Follow streams appended lines until ctx is canceled, then returns nil.
// The first open seeks to the end: the sentinel's job is to surface what
// the application logs from now on, not to replay history.
func (t *Tail) Follow(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return foundation.InternalError("creating log watcher").
			WithCause(err).
			Build()
	}
	defer func() { _ = watcher.Close() }()

	// Watching the directory instead of the file survives rotation.
	dir := filepath.Dir(t.path)
	if err := watcher.Add(dir); err != nil {
		return foundation.InternalError("watching log directory").
			WithCause(err).
			WithContext(foundation.Fields{"path": dir}).
			Build()
	}

	file := t.open(false)
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()
	t.logger.Info("following log file", logfields.Path(t.path))

	base := filepath.Base(t.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			switch {
			case event.Op&fsnotify.Create != 0:
				// Rotation: a fresh file replaced the one we had.
				if file != nil {
					_ = file.Close()
				}
				t.partial = nil
				file = t.open(true)
				if file != nil {
					t.logger.Debug("log file reopened", logfields.Path(t.path))
					t.drain(file)
				}
			case event.Op&fsnotify.Write != 0:
				if file == nil {
					file = t.open(true)
				}
				if file != nil {
					t.rewindIfTruncated(file)
					t.drain(file)
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if file != nil {
					_ = file.Close()
					file = nil
				}
				t.partial = nil
				t.logger.Debug("log file rotated away, waiting", logfields.Path(t.path))
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("log watcher error", logfields.Error(watchErr))
		}
	}
}

// open opens the log file, seeking to the end unless fromStart is set.
// A missing file is expected; anything else gets logged.
func (t *Tail) open(fromStart bool) *os.File {
	f, err := os.Open(t.path) // #nosec G304 -- operator-configured log path
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("opening log file failed",
				logfields.Path(t.path), logfields.Error(err))
		}
		return nil
	}
	if !fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			t.logger.Warn("seeking log file failed", logfields.Error(err))
		}
	}
	return f
}

// rewindIfTruncated restarts from the top when the file shrank under us.
func (t *Tail) rewindIfTruncated(file *os.File) {
	info, err := file.Stat()
	if err != nil {
		return
	}
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return
	}
	if pos > info.Size() {
		t.partial = nil
		_, _ = file.Seek(0, io.SeekStart)
		t.logger.Debug("log file truncated, restarting from top", logfields.Path(t.path))
	}
}

// drain copies everything appended since the last read to the output.
func (t *Tail) drain(file *os.File) {
	buf := make([]byte, 32*1024)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			t.emit(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// emit writes complete lines and keeps the trailing partial line for the
// next drain, so readers never see a line split mid-write.
func (t *Tail) emit(chunk []byte) {
	data := append(t.partial, chunk...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		_, _ = t.out.Write(data[:i+1])
		data = data[i+1:]
	}
	t.partial = append([]byte(nil), data...)
}
