package catalog

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/journal/internal/apperr"
	"github.com/starford/journal/internal/journal"
	"github.com/starford/journal/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// EventCallback is called after a watcher-driven catalog change.
// kind is one of Created, Updated, Deleted; path is relative to the root.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the journal root and keeps the catalog
// current until ctx is cancelled. It calls cb (if non-nil) after each
// successful catalog mutation.
//
// Year and month directories created at runtime are added to the watch list.
// Rename events trigger a reconciliation pass that removes entries whose
// files no longer exist on disk.
func Watch(ctx context.Context, db Catalog, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, rel string) {
		if cb != nil {
			cb(kind, rel)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, store, absPath, logger, notify)
					continue
				}
			}

			if !strings.HasSuffix(absPath, journal.EntryExtension) {
				continue
			}
			rel, relErr := store.Rel(absPath)
			if relErr != nil || !IsEntry(rel) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind, err := indexPath(db, store, rel)
				if err != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				if kind == "" {
					continue
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				notify(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				if removed, err := removeEntry(db, rel); err != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
				} else if removed {
					logger.Debug("watcher: deleted", slog.String("path", rel))
					notify(Deleted, rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// Rename fires on the old path only; the new path arrives as
				// a Create if it stays inside a watched directory.
				if removed, err := removeEntry(db, rel); err != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", err.Error()))
				} else if removed {
					notify(Deleted, rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// indexPath catalogs rel and returns Created for a path new to the catalog,
// Updated for a changed one, or "" when the content is unchanged. Editors
// often emit several writes per save; repeats are not re-indexed.
func indexPath(db Catalog, store storage.Provider, rel string) (string, error) {
	data, err := store.Read(rel)
	if err != nil {
		return "", err
	}
	old, err := db.GetChecksum(rel)
	if err != nil {
		return "", err
	}
	if old == storage.Checksum(data) {
		return "", nil
	}
	if err := IndexFile(db, rel, data, time.Now()); err != nil {
		return "", err
	}
	if old == "" {
		return Created, nil
	}
	return Updated, nil
}

// removeEntry drops rel from the catalog and reports whether it was there.
func removeEntry(db Catalog, rel string) (bool, error) {
	if _, err := db.GetEntry(rel); errors.Is(err, apperr.ErrRecordNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, db.DeleteEntry(rel)
}

// reconcile drops catalog entries without a file on disk and indexes files
// that are missing from the catalog or have changed.
func reconcile(db Catalog, store storage.Provider, logger *slog.Logger, notify func(kind, rel string)) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		if IsEntry(m.Path) {
			disk[m.Path] = m.Checksum
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteEntry(p); err == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				notify(Deleted, p)
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		if kind, err := indexPath(db, store, p); err == nil && kind != "" {
			logger.Debug("reconcile: indexed", slog.String("path", p))
			notify(kind, p)
		}
	}
}

// indexNewDir catalogs any entry files already present in a new directory.
func indexNewDir(db Catalog, store storage.Provider, dir string, logger *slog.Logger, notify func(kind, rel string)) {
	_ = store.Walk(dir, func(path string) error {
		rel, err := store.Rel(path)
		if err != nil || !IsEntry(rel) {
			return nil
		}
		if kind, err := indexPath(db, store, rel); err == nil && kind != "" {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			notify(kind, rel)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
