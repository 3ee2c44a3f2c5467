package config

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kestrelhealth/claimdeck/pkg/logging"
)

// Watch reloads the config file when it changes on disk and calls onReload
// with the fresh config. Editors often replace rather than rewrite the file,
// so the parent directory is watched and events are debounced. Blocks until
// ctx is cancelled.
func Watch(ctx context.Context, path string, log *logging.Logger, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	base := filepath.Base(path)

	var timer *time.Timer
	reload := func() {
		cfg, err := LoadFromPath(path)
		if err != nil {
			log.Warn("config reload failed", "path", path, "error", err)
			return
		}
		log.Info("config reloaded", "path", path)
		onReload(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(250*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if strings.TrimSpace(err.Error()) != "" {
				log.Warn("config watcher error", "error", err)
			}
		}
	}
}
