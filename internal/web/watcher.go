package web

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/promptloop/internal/logger"
)

// PRDWatcher watches the PRD file on disk and notifies connected dashboards
// when it changes, including changes written by the worker itself.
type PRDWatcher struct {
	path    string
	hub     *Hub
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewPRDWatcher starts watching the directory containing path. Watching the
// directory instead of the file survives editors that replace the file on
// save.
func NewPRDWatcher(path string, hub *Hub) (*PRDWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &PRDWatcher{
		path:    abs,
		hub:     hub,
		watcher: watcher,
		stop:    make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

// Close stops the watcher
func (w *PRDWatcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}

func (w *PRDWatcher) watch() {
	// Editors fire several events per save; coalesce them.
	var pending <-chan time.Time

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(200 * time.Millisecond)
		case <-pending:
			pending = nil
			logger.Debug("PRD file changed: %s", w.path)
			w.hub.Broadcast(&WebMessage{
				Type:      MessageTypePRDUpdated,
				Timestamp: time.Now(),
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("PRD watcher error: %v", err)
		}
	}
}
