package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamal-hamza/autostart/internal/logger"
)

func TestRelevantEvent(t *testing.T) {
	tests := []struct {
		event fsnotify.Event
		name  string
		ok    bool
	}{
		{fsnotify.Event{Name: "/t/play.png", Op: fsnotify.Write}, "play.png", true},
		{fsnotify.Event{Name: "/t/PLAY.PNG", Op: fsnotify.Create}, "PLAY.PNG", true},
		{fsnotify.Event{Name: "/t/close_x.png", Op: fsnotify.Remove}, "close_x.png", true},
		{fsnotify.Event{Name: "/t/play.png", Op: fsnotify.Chmod}, "", false},
		{fsnotify.Event{Name: "/t/README.md", Op: fsnotify.Write}, "", false},
		{fsnotify.Event{Name: "/t/.hidden.png", Op: fsnotify.Write}, "", false},
		{fsnotify.Event{Name: "/t/~lock.png", Op: fsnotify.Write}, "", false},
	}

	for _, tt := range tests {
		name, ok := relevantEvent(tt.event)
		assert.Equal(t, tt.ok, ok, tt.event.String())
		assert.Equal(t, tt.name, name, tt.event.String())
	}
}

func TestTemplateWatcher_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, 50*time.Millisecond, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(c []string) { changes <- c }) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "world.png"), []byte{byte(i)}, 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "play.png"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	select {
	case got := <-changes:
		assert.Equal(t, []string{"play.png", "world.png"}, got)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestTemplateWatcher_MissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"), 0, logger.Nop())
	err := w.Run(context.Background(), func([]string) {})
	assert.Error(t, err)
}
