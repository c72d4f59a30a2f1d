// Package inbox watches a drop directory and imports image files placed in
// it as image nodes on the canvas.
package inbox

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long a file must go without writes before it is imported.
const settle = 200 * time.Millisecond

var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
}

// ImportFunc receives a dropped image. name is the file's base name without
// extension. A nil return removes the file from the drop directory.
type ImportFunc func(name string, data []byte) error

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Watch imports images already present in dir, then watches dir (and any
// subdirectory created later) until ctx is cancelled. Create and Write
// events are debounced so partially copied files are not imported.
func Watch(ctx context.Context, dir string, logger *slog.Logger, importFn ImportFunc) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, dir); err != nil {
		return err
	}

	logger.Info("inbox: started", slog.String("dir", dir))
	importDir(dir, logger, importFn)

	pending := make(map[string]time.Time)
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case now := <-settleCh:
			for p, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, p)
				importFile(p, logger, importFn)
			}
			if len(pending) > 0 {
				schedule()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("inbox: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					importDir(ev.Name, logger, importFn)
					continue
				}
			}

			if !IsImage(ev.Name) || strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[ev.Name] = time.Now()
				schedule()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}

// importFile hands one file to importFn and removes it on success.
func importFile(path string, logger *slog.Logger, importFn ImportFunc) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Moved away before it settled.
		return
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := importFn(name, data); err != nil {
		logger.Warn("inbox: import failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if err := os.Remove(path); err != nil {
		logger.Warn("inbox: remove failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	logger.Debug("inbox: imported", slog.String("path", path))
}

// importDir imports every image already inside dir.
func importDir(dir string, logger *slog.Logger, importFn ImportFunc) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !IsImage(path) || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		importFile(path, logger, importFn)
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
