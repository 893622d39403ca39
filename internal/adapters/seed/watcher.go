package seed

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carecompanion/pkg/async"
)

const defaultReloadDebounce = 400 * time.Millisecond

// Watcher reloads a directory-backed Catalog when its YAML files change.
// Bursts of editor writes collapse into one reload.
type Watcher struct {
	catalog  *Catalog
	watcher  *fsnotify.Watcher
	reload   *async.Debouncer[string]
	onReload func(error)
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for catalog. onReload, when set, is called after
// every reload attempt with its result.
func NewWatcher(catalog *Catalog, onReload func(error)) *Watcher {
	w := &Watcher{
		catalog:  catalog,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	w.reload = async.NewDebouncer(defaultReloadDebounce, w.doReload)
	return w
}

// Start begins watching the catalog directory until ctx is done or Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.catalog.Dir()); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw
	log.Info().Str("dir", w.catalog.Dir()).Msg("Watching seed catalogs")
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isCatalogFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.reload.Trigger(ev.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Seed watcher error")
		}
	}
}

func (w *Watcher) doReload(path string) {
	err := w.catalog.Reload()
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Seed catalog reload failed, keeping previous catalogs")
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.reload.Stop()
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
	})
}

func isCatalogFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
