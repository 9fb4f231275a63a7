// Package settings persists the open-ended key/value settings map.
package settings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/planstudio-ai/planstudio/internal/logging"
	"github.com/planstudio-ai/planstudio/internal/storage"
)

// Namespace is the fixed storage key the settings object lives under.
const Namespace = "planstudio"

var storagePath = []string{"settings", Namespace}

// Repository is the persistence abstraction the document store depends
// on. Reads are synchronous; Set writes through to the backing store.
type Repository interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	All() map[string]any
}

// File is a Repository backed by the JSON file storage layer. The full
// settings object is read once at construction and written back on
// every Set.
type File struct {
	store *storage.Storage

	mu     sync.RWMutex
	values map[string]any
}

// NewFile loads the settings object from store. A missing settings
// document starts the map empty.
func NewFile(store *storage.Storage) (*File, error) {
	f := &File{store: store, values: make(map[string]any)}

	err := store.Get(context.Background(), storagePath, &f.values)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if f.values == nil {
		f.values = make(map[string]any)
	}
	return f, nil
}

// Get returns the value for key and whether it is present.
func (f *File) Get(key string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

// Set stores value under key and persists the whole map.
func (f *File) Set(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = value
	if err := f.store.Put(context.Background(), storagePath, f.values); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	return nil
}

// All returns a copy of the settings map.
func (f *File) All() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]any, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Watch reports external edits of the settings file. Keys whose values
// changed on disk are passed to onChange; changes made through Set are
// absorbed into the cache first and do not fire. Watch blocks until ctx
// is done.
func (f *File) Watch(ctx context.Context, onChange func(key string, value any)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	settingsFile := f.store.FilePath(storagePath...)
	if err := watcher.Add(filepath.Dir(settingsFile)); err != nil {
		return fmt.Errorf("watch settings dir: %w", err)
	}

	log := logging.ForComponent("settings")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != settingsFile || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			for key, value := range f.reload() {
				onChange(key, value)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("settings watcher error")
		}
	}
}

// reload re-reads the file and returns the keys whose values differ
// from the cache, updating the cache as it goes.
func (f *File) reload() map[string]any {
	fresh := make(map[string]any)
	if err := f.store.Get(context.Background(), storagePath, &fresh); err != nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	changed := make(map[string]any)
	for key, value := range fresh {
		if old, ok := f.values[key]; !ok || !reflect.DeepEqual(old, value) {
			changed[key] = value
		}
	}
	for key := range f.values {
		if _, ok := fresh[key]; !ok {
			changed[key] = nil
		}
	}
	f.values = fresh
	return changed
}
