package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FS stores every key as <dir>/<key>.json. The directory is owner-only and
// files are written with 0600 permissions through a temp file + rename, so a
// reader never observes a half-written entry.
type FS struct {
	Dir    string
	logger *zerolog.Logger
}

func NewFS(dir string, logger *zerolog.Logger) *FS {
	return &FS{Dir: dir, logger: logger}
}

func (f *FS) path(key string) string {
	return filepath.Join(f.Dir, key+".json")
}

func (f *FS) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path(key), err)
	}
	return b, nil
}

func (f *FS) Set(_ context.Context, key string, value []byte) error {
	if err := EnsureDir(f.Dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.Dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path(key), err)
	}
	return nil
}

func (f *FS) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", f.path(key), err)
	}
	return nil
}

// Watch reports changes to key made by any process. It returns once the
// watcher is registered; events are delivered from a background goroutine
// that exits when ctx is done.
func (f *FS) Watch(ctx context.Context, key string, fn func()) error {
	if err := EnsureDir(f.Dir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: Set replaces the file by rename, which drops
	// watches placed on the file itself.
	if err := watcher.Add(f.Dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", f.Dir, err)
	}

	target := filepath.Base(f.path(key))
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
				if filepath.Base(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					if f.logger != nil {
						f.logger.Debug().Str("key", key).Str("op", ev.Op.String()).Msg("Storage entry changed on disk")
					}
					fn()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if f.logger != nil {
					f.logger.Warn().Err(err).Str("dir", f.Dir).Msg("File watcher error")
				}
			}
		}
	}()
	return nil
}
