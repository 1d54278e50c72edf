package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/corymhall/editorbridge/debug"
	"github.com/fsnotify/fsnotify"
)

// watcher watches the directories of open documents and reports writes to
// them. A nil *watcher, used when the platform watcher cannot be created,
// ignores every call.
type watcher struct {
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	onChange func(ctx context.Context, path string)

	mu   sync.Mutex
	dirs map[string]int // directory -> number of open documents in it
	done chan struct{}
}

func newWatcher(logger *slog.Logger, onChange func(ctx context.Context, path string)) *watcher {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("file watching disabled", "error", err)
		return nil
	}
	w := &watcher{
		fs:       fw,
		logger:   logger,
		onChange: onChange,
		dirs:     make(map[string]int),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *watcher) loop() {
	defer close(w.done)
	ctx := debug.WithLogger(context.Background(), w.logger.With("component", "watcher"))
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.onChange(ctx, filepath.Clean(event.Name))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			debug.LogError(ctx, "watch error", err)
		}
	}
}

// Add starts watching the directory containing path.
func (w *watcher) Add(path string) {
	if w == nil {
		return
	}
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			w.logger.Debug("cannot watch directory", "dir", dir, "error", err)
			return
		}
	}
	w.dirs[dir]++
}

// Remove stops watching the directory containing path once no open
// document lives there.
func (w *watcher) Remove(path string) {
	if w == nil {
		return
	}
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	n, ok := w.dirs[dir]
	if !ok {
		return
	}
	if n > 1 {
		w.dirs[dir] = n - 1
		return
	}
	delete(w.dirs, dir)
	_ = w.fs.Remove(dir)
}

func (w *watcher) Close() error {
	if w == nil {
		return nil
	}
	err := w.fs.Close()
	<-w.done
	return err
}
