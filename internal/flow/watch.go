package flow

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flowrun/flowrun/internal/logging"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher invalidates a Registry when flow files change on disk.
type Watcher struct {
	registry *Registry
	fsw      *fsnotify.Watcher
	reloaded chan struct{}
}

// NewWatcher watches dirs and their subdirectories. Missing directories are
// skipped.
func NewWatcher(registry *Registry, dirs []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{registry: registry, fsw: fsw, reloaded: make(chan struct{}, 1)}
	for _, dir := range dirs {
		w.addTree(dir)
	}
	return w, nil
}

func (w *Watcher) addTree(root string) {
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			logging.Warn("Failed to watch flow directory", "dir", path, "error", err)
		}
		return nil
	})
}

// Reloaded is signalled after each invalidation.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addTree(ev.Name)
				}
			}
			if !isFlowFile(ev.Name) || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.registry.Invalidate()
			logging.Info("Flow definitions changed, reloading")
			select {
			case w.reloaded <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Flow watcher error", "error", err)
		}
	}
}

func isFlowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
