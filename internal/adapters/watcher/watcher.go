package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kamal-hamza/autostart/internal/logger"
)

// DefaultDebounce collapses bursts of file events into one callback
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the base names of .png files touched since the last call
type ChangeFunc func(changed []string)

// TemplateWatcher reports changes to PNG files in a directory
type TemplateWatcher struct {
	dir      string
	debounce time.Duration
	log      *logger.Logger
}

func New(dir string, debounce time.Duration, log *logger.Logger) *TemplateWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &TemplateWatcher{dir: dir, debounce: debounce, log: log}
}

// Run blocks until ctx is done, calling onChange after each quiet period
func (w *TemplateWatcher) Run(ctx context.Context, onChange ChangeFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch templates directory: %w", err)
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
	)

	flush := func() {
		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := make([]string, 0, len(pending))
		for name := range pending {
			changed = append(changed, name)
		}
		pending = make(map[string]struct{})
		mu.Unlock()

		sort.Strings(changed)
		onChange(changed)
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}

			name, relevant := relevantEvent(event)
			if !relevant {
				continue
			}

			mu.Lock()
			pending[name] = struct{}{}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, flush)
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}

// relevantEvent filters out non-PNG, hidden and temporary files
func relevantEvent(event fsnotify.Event) (string, bool) {
	base := filepath.Base(event.Name)
	if !strings.EqualFold(filepath.Ext(base), ".png") {
		return "", false
	}
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return "", false
	}
	if event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) ||
		event.Has(fsnotify.Rename) {
		return base, true
	}
	return "", false
}
