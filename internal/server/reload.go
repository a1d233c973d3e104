package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Purger drops cached templates. *reach.FormSite is a Purger.
type Purger interface {
	Purge(ctx context.Context)
}

// WatchTemplates purges site every time a file in dir, or in any directory
// under it, is written, created, removed or renamed. It blocks until ctx is
// done.
func WatchTemplates(ctx context.Context, dir string, site Purger, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.InfoContext(ctx, "watching templates for changes", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.DebugContext(ctx, "templates changed, purging cache", "file", event.Name, "op", event.Op.String())
			site.Purge(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "error watching templates", "error", err)
		}
	}
}
