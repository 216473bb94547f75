package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/pslog"
)

const defaultDebounce = 500 * time.Millisecond

// BatchFunc receives each debounced set of changed files.
type BatchFunc func(ctx context.Context, files []File)

// WatchOptions configure Watch.
type WatchOptions struct {
	Extensions []string
	Debounce   time.Duration
}

// Watch feeds accepted files created or written under dir to onBatch. Events
// are collected until dir has been quiet for the debounce period. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, dir string, opts WatchOptions, onBatch BatchFunc) error {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New(dir + " is not a directory")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}
	log := pslog.Ctx(ctx).With("dir", dir)
	log.Info("watching folder for uploads")

	pending := map[string]struct{}{}
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !Accepted(event.Name, opts.Extensions) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(opts.Debounce)
			} else {
				timer.Reset(opts.Debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("folder watch error", "err", err)
		case <-fire:
			fire = nil
			files := collect(pending, log)
			clear(pending)
			if len(files) > 0 {
				onBatch(ctx, files)
			}
		}
	}
}

func collect(pending map[string]struct{}, log pslog.Logger) []File {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	files := make([]File, 0, len(paths))
	for _, path := range paths {
		f, err := FromPath(path)
		if err != nil {
			log.Debug("skipping vanished file", "file", filepath.Base(path), "err", err)
			continue
		}
		files = append(files, f)
	}
	return files
}
