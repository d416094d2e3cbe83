package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"gcligateway/internal/events"
)

// WatchFile watches path for writes and reloads the Store on change,
// publishing events.TopicConfigUpdated on hub when one is given. It runs
// until ctx is cancelled.
func WatchFile(ctx context.Context, path string, store *Store, hub *events.Hub) error {
	if path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := Load(path)
				if err != nil {
					log.WithError(err).Warn("config: reload failed, keeping previous snapshot")
					continue
				}
				store.Set(reloaded)
				log.Info("config: reloaded from disk")
				if hub != nil {
					hub.Publish(ctx, events.TopicConfigUpdated, nil, nil)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config: watcher error")
			}
		}
	}()
	return nil
}
