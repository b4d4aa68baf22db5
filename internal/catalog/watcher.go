package catalog

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tphakala/soundpool-go/internal/errors"
)

// reloadDebounce coalesces the event bursts editors produce when saving.
const reloadDebounce = 200 * time.Millisecond

// fsWatcher reloads the catalog when its file changes. It watches the
// parent directory because most editors replace the file on save, which
// drops a watch placed on the file itself.
type fsWatcher struct {
	catalog *Catalog
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func newFSWatcher(c *Catalog) (*fsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New(err).
			Component("catalog").
			Category(errors.CategorySystem).
			Context("operation", "watch_catalog").
			Build()
	}

	if err := watcher.Add(c.baseDir); err != nil {
		_ = watcher.Close()
		return nil, errors.Newf("failed to watch catalog directory %s: %w", c.baseDir, err).
			Component("catalog").
			Category(errors.CategorySystem).
			Build()
	}

	w := &fsWatcher{
		catalog: c,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *fsWatcher) run() {
	defer w.wg.Done()

	debounce := time.NewTimer(reloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.catalog.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename) {
				continue
			}
			if pending && !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(reloadDebounce)
			pending = true

		case <-debounce.C:
			pending = false
			if err := w.catalog.Reload(); err != nil {
				w.catalog.logger.Error("catalog reload failed, keeping previous catalog",
					"error", err)
				continue
			}
			if w.catalog.onReload != nil {
				w.catalog.onReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.catalog.logger.Warn("catalog watcher error", "error", err)
		}
	}
}

func (w *fsWatcher) stop() {
	close(w.done)
	_ = w.watcher.Close()
	w.wg.Wait()
}
