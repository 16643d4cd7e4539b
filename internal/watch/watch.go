// Package watch re-runs a sync whenever transcripts under a root change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/Zuo-Peng/mmem/internal/logging"
	"github.com/Zuo-Peng/mmem/internal/parse"
)

// DefaultDebounce is how long the tree must be quiet before a sync runs.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches every directory under a root. fsnotify is not recursive,
// so directories created later are added as they appear.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration
	onChange func() error
	logger   *logrus.Entry
	watched  map[string]bool
}

// New starts watching root. onChange is called from Run, never concurrently
// with itself.
func New(root string, debounce time.Duration, onChange func() error) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "watch", Path: root, Err: os.ErrInvalid}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fw,
		root:     root,
		debounce: debounce,
		onChange: onChange,
		logger:   logging.NewLogger("watch"),
		watched:  make(map[string]bool),
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.logger.WithError(err).Debugf("skip %s", path)
			return nil
		}
		if !info.IsDir() || w.watched[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.watched[path] = true
		w.logger.Debugf("watching %s", path)
		return nil
	})
}

// relevant reports whether an event can change what the index holds.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if _, ok := parse.FormatForPath(event.Name); ok {
		return true
	}
	// a removed or renamed directory takes its transcripts with it
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.watched[event.Name] {
		delete(w.watched, event.Name)
		return true
	}
	return false
}

// Run blocks until ctx is cancelled, calling onChange once per burst of
// events, after the tree has been quiet for the debounce interval.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.WithError(err).Warnf("watch %s", event.Name)
					}
					// files may have landed before the watch was added
					pending = true
					timer.Reset(w.debounce)
					continue
				}
			}
			if !w.relevant(event) {
				continue
			}
			pending = true
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Errorf("Watcher error: %v", err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := w.onChange(); err != nil {
				w.logger.WithError(err).Error("sync failed")
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// Close stops the watcher without waiting for Run.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
