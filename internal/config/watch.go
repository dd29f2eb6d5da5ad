package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch re-reads the config file whenever it changes and hands each new
// snapshot to apply. Watches the parent directory so editors that replace the
// file (rename-over-write) keep triggering events. Blocks until ctx is done.
func Watch(ctx context.Context, path string, apply func(MasterServer)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		// Running on built-in defaults without a config directory. Hot reload
		// is unavailable, but the server keeps running.
		slog.Warn("config directory not watchable, hot reload disabled", "dir", dir, "err", err)
		<-ctx.Done()
		return nil
	}

	target := filepath.Clean(path)
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
			cfg, err := LoadMasterServer(path)
			if err != nil {
				slog.Error("config reload failed", "path", path, "err", err)
				continue
			}
			slog.Info("config reloaded", "path", path, "port", cfg.Port, "accepted_version", cfg.AcceptedVersion)
			apply(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config watcher error", "err", err)
		}
	}
}
