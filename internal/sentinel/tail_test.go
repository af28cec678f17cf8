package sentinel

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func startFollow(t *testing.T, path string, out *syncBuffer) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- New(path, out, nil).Follow(ctx) }()
	t.Cleanup(stop)
	return stop, errCh
}

func TestFollowStreamsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courseware.log")
	appendLine(t, path, "preexisting line\n")

	out := &syncBuffer{}
	cancel, done := startFollow(t, path, out)

	require.Eventually(t, func() bool {
		appendLine(t, path, "request served\n")
		return strings.Contains(out.String(), "request served")
	}, 2*time.Second, 20*time.Millisecond)

	// The tail starts at the end: history is the collector's business.
	if strings.Contains(out.String(), "preexisting") {
		t.Error("Expected no replay of existing content")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean return on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestFollowWaitsForMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courseware.log")

	out := &syncBuffer{}
	startFollow(t, path, out)

	require.Eventually(t, func() bool {
		appendLine(t, path, "first line after creation\n")
		return strings.Contains(out.String(), "first line after creation")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestFollowSurvivesRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "courseware.log")
	appendLine(t, path, "seeded\n")

	out := &syncBuffer{}
	startFollow(t, path, out)

	require.Eventually(t, func() bool {
		appendLine(t, path, "before rotation\n")
		return strings.Contains(out.String(), "before rotation")
	}, 2*time.Second, 20*time.Millisecond)

	if err := os.Rename(path, filepath.Join(dir, "courseware.log.1")); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	require.Eventually(t, func() bool {
		appendLine(t, path, "after rotation\n")
		return strings.Contains(out.String(), "after rotation")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestFollowHandlesTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courseware.log")
	appendLine(t, path, "seeded\n")

	out := &syncBuffer{}
	startFollow(t, path, out)

	require.Eventually(t, func() bool {
		appendLine(t, path, "pre-truncate\n")
		return strings.Contains(out.String(), "pre-truncate")
	}, 2*time.Second, 20*time.Millisecond)

	if err := os.Truncate(path, 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	require.Eventually(t, func() bool {
		appendLine(t, path, "post-truncate\n")
		return strings.Contains(out.String(), "post-truncate")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEmitKeepsPartialLines(t *testing.T) {
	out := &syncBuffer{}
	tail := New("unused", out, nil)

	tail.emit([]byte("par"))
	if got := out.String(); got != "" {
		t.Errorf("Expected no output for a partial line, got %q", got)
	}

	tail.emit([]byte("tial\nnext"))
	if got := out.String(); got != "partial\n" {
		t.Errorf("Expected the completed line only, got %q", got)
	}

	tail.emit([]byte(" line\n"))
	if got := out.String(); got != "partial\nnext line\n" {
		t.Errorf("Expected both lines, got %q", got)
	}
}
