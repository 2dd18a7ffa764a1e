package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"bookpress/markup"
	"bookpress/state"
)

// Watch renders source once and then again every time it changes, until
// context is cancelled. Bursts of change notifications (editors often
// write, rename and chmod for a single save) result in one render.
func Watch(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("watch")

	src, dst, err := setup(ctx, cmd, log)
	if err != nil {
		return err
	}
	// the same outputs are produced over and over
	env.Overwrite = true

	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("unable to watch source: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return errors.New("only single book source file could be watched")
	}

	return watch(ctx, src, dst, log)
}

func watch(ctx context.Context, src, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files, so directory is watched rather than file itself
	if err := watcher.Add(filepath.Dir(src)); err != nil {
		return fmt.Errorf("unable to watch %s: %w", filepath.Dir(src), err)
	}

	render := func() {
		if err := process(ctx, src, dst, log); err != nil && ctx.Err() == nil {
			log.Error("Unable to render", zap.String("source", src), zap.Error(err))
		}
	}
	render()

	pending := make(chan struct{}, 1)
	debouncer := markup.NewDebouncer(env.Cfg.Editor.Debounce)
	defer debouncer.Stop()

	log.Info("Watching for changes", zap.String("source", src), zap.Duration("debounce", env.Cfg.Editor.Debounce))
	for {
		select {
		case <-ctx.Done():
			log.Info("Watching stopped")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != src || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			log.Debug("Source changed", zap.Stringer("op", ev.Op))
			debouncer.Trigger(func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			render()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher problem", zap.Error(err))
		}
	}
}
