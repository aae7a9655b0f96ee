package appconf

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"linfer.allora.network/internal/logging"
)

// Watch monitors the config file at path and calls onChange with the result
// of load each time the file is written or replaced. It runs until ctx is
// cancelled.
//
// A failed load is logged and onChange is not called. An error from
// onChange is logged too; either way the previous config stays active.
func Watch(ctx context.Context, path string, load func() (Config, error), onChange func(Config) error, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(watcher, logger, "config_watcher")

	// Watch the directory: editors save atomically by renaming over the
	// file, which drops a watch placed on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	logging.LogOperation(logger, "config_watch_started", slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := load()
			if err != nil {
				logging.LogError(logger, "config reload failed, keeping previous config", err,
					slog.String("path", path))
				continue
			}

			if err := onChange(cfg); err != nil {
				logging.LogError(logger, "config change rejected, keeping previous config", err,
					slog.String("path", path))
				continue
			}
			logging.LogOperation(logger, "config_reloaded", slog.String("path", path))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.LogError(logger, "config watcher error", err, slog.String("path", path))
		}
	}
}
