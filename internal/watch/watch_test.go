package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	assert.Equal(t, []string{root}, slices.Collect(watchPaths(root)))

	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "refs", "heads"), 0o755))
	got := slices.Sorted(watchPaths(root))
	assert.Equal(t, []string{filepath.Join(root, ".git"), filepath.Join(root, ".git", "refs", "heads")}, got)

	assert.Empty(t, slices.Collect(watchPaths("")))
}

func TestRelevant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{ev: fsnotify.Event{Name: "/r/.git/HEAD", Op: fsnotify.Write}, want: true},
		{ev: fsnotify.Event{Name: "/r/.git/index.lock", Op: fsnotify.Create}, want: false},
		{ev: fsnotify.Event{Name: "/r/.git/x.IPC", Op: fsnotify.Write}, want: false},
		{ev: fsnotify.Event{Name: "/r/.git/HEAD", Op: fsnotify.Chmod}, want: false},
		{ev: fsnotify.Event{Name: "/r/.git/ORIG_HEAD", Op: fsnotify.Rename}, want: true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relevant(tt.ev), "%v", tt.ev)
	}
}

func TestRunCollapsesBurst(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))

	fired := make(chan struct{}, 10)
	w := &Watcher{Root: root, Delay: 50 * time.Millisecond, OnChange: func() { fired <- struct{}{} }}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte{byte('a' + i)}, 0o644))
	}
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire")
	}
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, fired, "burst triggered more than one rebuild")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
