package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
)

// LoadWeights reads a scoring weight profile from a standalone YAML file:
//
//	gap: 1.0
//	timing: 1.2
//	value: 0.8
//	risk: 1.0
//	contact: 1.0
//
// Absent keys default to 1 (full weight) so a partial profile only overrides
// the dimensions it names.
func LoadWeights(path string) (crosssell.Weights, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	for _, k := range []string{"gap", "timing", "value", "risk", "contact"} {
		v.SetDefault(k, 1.0)
	}

	if err := v.ReadInConfig(); err != nil {
		return crosssell.DefaultWeights(), fmt.Errorf("config: failed to read weights file %q: %w", path, err)
	}

	var w crosssell.Weights
	if err := v.Unmarshal(&w); err != nil {
		return crosssell.DefaultWeights(), fmt.Errorf("config: failed to unmarshal weights file %q: %w", path, err)
	}
	return w, nil
}

// WatchWeights watches the weight-profile file and invokes onChange with each
// successfully parsed profile.  Watching the parent directory instead of the
// file itself survives the rename-then-replace pattern editors and config
// rollout tools use.
//
// WatchWeights blocks until ctx is cancelled; run it in its own goroutine.
func WatchWeights(ctx context.Context, path string, log logging.Logger, onChange func(crosssell.Weights)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: failed to create weights watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: failed to watch %q: %w", dir, err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w, err := LoadWeights(path)
			if err != nil {
				log.Warn("ignoring invalid weights profile",
					logging.String("path", path), logging.Err(err))
				continue
			}
			log.Info("scoring weights reloaded", logging.String("path", path))
			onChange(w)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("weights watcher error", logging.Err(err))
		}
	}
}
