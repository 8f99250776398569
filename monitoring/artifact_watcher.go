package monitoring

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher reports changes to artifact files on disk. Loaded
// artifacts are never swapped; a change only produces a warning and a
// callback.
type ArtifactWatcher struct {
	watcher  *fsnotify.Watcher
	paths    map[string]bool
	logger   *zap.Logger
	onChange func(path string)

	done      chan struct{}
	closeOnce sync.Once
}

// NewArtifactWatcher watches the directories holding paths. Empty paths are
// ignored. onChange may be nil.
func NewArtifactWatcher(logger *zap.Logger, onChange func(path string), paths ...string) (*ArtifactWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create artifact watcher: %w", err)
	}

	w := &ArtifactWatcher{
		watcher:  watcher,
		paths:    make(map[string]bool),
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, path := range paths {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		w.paths[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	// Watch directories, not files: artifacts are usually replaced by rename.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Start processes events in the background until Close.
func (w *ArtifactWatcher) Start() {
	go w.run()
}

func (w *ArtifactWatcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.paths[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Warn("artifact changed on disk, restart to apply",
				zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if w.onChange != nil {
				w.onChange(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("artifact watcher error", zap.Error(err))

		case <-w.done:
			return
		}
	}
}

func (w *ArtifactWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
