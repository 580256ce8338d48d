package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change before
// reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads paths whenever one of them is written, created or renamed
// into place, and passes the new chain to onChange. A reload that fails is
// passed to onError and the caller keeps its previous configuration. Watch
// blocks until ctx is canceled.
//
// Directories are watched rather than the files themselves so editors that
// save by renaming a temporary file are still noticed.
func Watch(ctx context.Context, paths []string, debounce time.Duration, onChange func(*Chain), onError func(error)) error {
	if len(paths) == 0 {
		return fmt.Errorf("config: nothing to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onError == nil {
		onError = func(error) {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("config: watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onError(fmt.Errorf("config: watcher: %w", err))

		case <-timer.C:
			chain, err := Load(existing(paths)...)
			if err != nil {
				onError(err)
				continue
			}
			onChange(chain)
		}
	}
}

func existing(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if fileExists(p) {
			out = append(out, p)
		}
	}
	return out
}
