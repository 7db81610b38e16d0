package router

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watcher reloads a router's profile table when the profiles file changes
// on disk. Editors typically replace config files via rename, so the parent
// directory is watched and events are filtered by file name.
type Watcher struct {
	router  *Router
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	base    string
	stop    chan struct{}
}

// NewWatcher creates a watcher for the router's configured profiles path.
func NewWatcher(router *Router, logger *zap.Logger) (*Watcher, error) {
	if router.config.ProfilesPath == "" {
		return nil, fmt.Errorf("no profiles path configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		router:  router,
		watcher: fsw,
		logger:  logger,
		base:    filepath.Base(router.config.ProfilesPath),
		stop:    make(chan struct{}),
	}, nil
}

// Start begins watching. Events are processed in a background goroutine
// until Stop is called or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.router.config.ProfilesPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.router.Reload(); err != nil {
				// Keep the active table and keep watching.
				w.logger.Warn("profile reload failed",
					zap.String("path", w.router.config.ProfilesPath),
					zap.Error(err))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("profile watcher error", zap.Error(err))
		}
	}
}
