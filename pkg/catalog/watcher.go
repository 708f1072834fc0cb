package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay debounces bursts of file system events into one reload.
const reloadDelay = 500 * time.Millisecond

// Watch starts watching the catalog directories and triggers a full reload
// after each settled burst of changes. Watcher errors are logged, never
// fatal; the active set keeps serving throughout.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	r.watcher = watcher

	for _, dir := range r.dirs {
		if err := r.watchDirectory(dir); err != nil {
			r.logger.Warn().Err(err).Str("dir", dir).
				Msg("Failed to watch catalog directory")
		}
	}

	go r.processEvents(ctx)

	r.logger.Info().Int("dirs", len(r.dirs)).Msg("Started watching catalog directories")
	return nil
}

// watchDirectory adds a directory tree to the watcher.
func (r *Registry) watchDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return r.watcher.Add(path)
		}
		return nil
	})
}

// processEvents debounces file system events and reloads the catalog.
func (r *Registry) processEvents(ctx context.Context) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if r.watcher != nil {
				_ = r.watcher.Close()
			}
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			// New subdirectories join the watch so nested catalogs
			// keep hot-reloading.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := r.watchDirectory(event.Name); err != nil {
						r.logger.Warn().Err(err).Str("dir", event.Name).
							Msg("Failed to watch new catalog directory")
					}
				}
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isCatalogFile(event.Name) && event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			r.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Catalog file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				if _, err := r.Reload(ctx); err != nil {
					r.logger.Error().Err(err).Msg("Failed to reload catalog")
				}
			})

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// isCatalogFile reports whether a path looks like a tool definition file.
func isCatalogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

// StopWatching stops watching for catalog changes.
func (r *Registry) StopWatching() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}
