package model

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/feature"
)

// Watch reloads the artifact when the file on disk is replaced, so a newly
// trained model can be rolled out without restarting the pipeline. A reload
// that fails validation keeps the current model and logs the reason.
func (c *Classifier) Watch(ctx context.Context, schema feature.Schema) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: editors and atomic renames replace the inode.
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(c.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				c.reload(schema)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("model watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

func (c *Classifier) reload(schema feature.Schema) {
	art, err := LoadArtifact(c.path)
	if err != nil {
		c.logger.Warn("model reload failed, keeping current model", zap.Error(err))
		return
	}
	if err := checkSchema(art, schema); err != nil {
		c.logger.Warn("reloaded model rejected", zap.Error(err))
		return
	}

	prev := c.artifact.Swap(art)
	c.logger.Info("model reloaded",
		zap.String("previous_version", prev.ModelVersion),
		zap.String("model_version", art.ModelVersion))
}
