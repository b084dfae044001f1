//go:build !no_automation

package automation

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long the watcher waits for a burst of file
// events to settle before reloading.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watcher reloads scripts edited directly in the scripts directory.
type Watcher struct {
	engine   *Engine
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher creates a watcher for the engine's scripts directory.
// A zero debounce uses DefaultWatchDebounce.
func NewWatcher(engine *Engine, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		engine:   engine,
		dir:      engine.manager.Dir(),
		debounce: debounce,
		logger:   logger.With("component", "script-watcher"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins watching the directory.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	w.logger.Info("script watcher started", "dir", w.dir, "debounce", w.debounce)
	go w.watch()
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.cancel()
	if w.watcher == nil {
		return
	}
	w.watcher.Close()
	<-w.done
}

func (w *Watcher) watch() {
	defer close(w.done)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			id, ok := scriptIDFromPath(event.Name)
			if !ok {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
				!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("script file change", "id", id, "op", event.Op.String())
			pending[id] = struct{}{}

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			for id := range pending {
				w.apply(id)
				delete(pending, id)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("script watcher error", "err", err)
		}
	}
}

// apply reloads a script whose file exists and stops one whose file is gone.
func (w *Watcher) apply(id string) {
	if _, err := os.Stat(filepath.Join(w.dir, id+".lua")); os.IsNotExist(err) {
		if w.engine.Running(id) {
			w.logger.Info("script removed", "id", id)
		}
		w.engine.StopScript(id)
		return
	}
	if err := w.engine.ReloadScript(id); err != nil {
		w.logger.Warn("reload script", "id", id, "err", err)
		return
	}
	w.logger.Info("script reloaded from disk", "id", id, "running", w.engine.Running(id))
}

func scriptIDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".lua") || strings.HasPrefix(base, ".") {
		return "", false
	}
	id := strings.TrimSuffix(base, ".lua")
	return id, validScriptID(id)
}
