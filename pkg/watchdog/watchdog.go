package watchdog

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type filterFun func(string) bool

// WatchDog watches a directory tree for file creation events and forwards
// the created paths on a channel it owns. The crash archiver uses one to
// confirm crash artifacts actually landed on disk.
type WatchDog struct {
	watchCtx   context.Context
	notifyChan chan string
	filter     filterFun
	logger     *zap.Logger

	watcher *fsnotify.Watcher
}

// New creates a WatchDog over dir. The returned channel is closed when the
// context is done. If filter is non-nil, only paths it accepts are forwarded.
func New(watchCtx context.Context, logger *zap.Logger, dir string, filter filterFun) (*WatchDog, <-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	w := &WatchDog{
		watchCtx:   watchCtx,
		notifyChan: make(chan string, 64),
		filter:     filter,
		logger:     logger,
		watcher:    watcher,
	}

	if err := w.addDir(dir); err != nil {
		watcher.Close()
		return nil, nil, err
	}

	go w.watch()

	return w, w.notifyChan, nil
}

func (w *WatchDog) addDir(dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absDir); err != nil {
		return err
	}
	if err := w.watcher.Add(absDir); err != nil {
		return err
	}
	w.logger.Debug("Added directory to watch list", zap.String("dir", absDir))
	return nil
}

func (w *WatchDog) watch() {
	defer w.watcher.Close()
	defer close(w.notifyChan)
	for {
		select {
		case <-w.watchCtx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", zap.Error(err))
		}
	}
}

func (w *WatchDog) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != fsnotify.Create {
		return
	}
	if w.filter != nil && !w.filter(event.Name) {
		return
	}
	select {
	case w.notifyChan <- event.Name:
	case <-w.watchCtx.Done():
	}
}
