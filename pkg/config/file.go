package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileStore is a Store backed by a YAML file. It is safe for concurrent
// use; Reload and Watch swap the whole value set atomically.
type FileStore struct {
	path string

	mu       sync.RWMutex
	values   map[string]string
	onChange []func()
}

// Load reads the YAML file at path.
func Load(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if err := fs.Reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Path returns the file the store was loaded from.
func (fs *FileStore) Path() string { return fs.path }

// Reload re-reads the file. On error the previous values are kept.
func (fs *FileStore) Reload() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", fs.path, err)
	}
	values, err := parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", fs.path, err)
	}

	fs.mu.Lock()
	fs.values = values
	callbacks := append([]func(){}, fs.onChange...)
	fs.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnChange registers fn to run after every successful Reload.
func (fs *FileStore) OnChange(fn func()) {
	fs.mu.Lock()
	fs.onChange = append(fs.onChange, fn)
	fs.mu.Unlock()
}

// Keys returns all keys in sorted order.
func (fs *FileStore) Keys() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	keys := make([]string, 0, len(fs.values))
	for k := range fs.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String implements Store.
func (fs *FileStore) String(key, def string) string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if v, ok := fs.values[normalizeKey(key)]; ok {
		return v
	}
	return def
}

// Int implements Store.
func (fs *FileStore) Int(key string, def int) int {
	return parseInt(fs.String(key, ""), def)
}

// Watch reloads the store whenever the file changes, until ctx is done.
// The parent directory is watched so that editors replacing the file are
// noticed. Reload errors are passed to onError when it is non-nil.
func (fs *FileStore) Watch(ctx context.Context, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(fs.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fs.path, err)
	}
	target := filepath.Clean(fs.path)

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
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := fs.Reload(); err != nil && onError != nil {
				onError(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

// parse flattens a YAML mapping into slash separated keys. Sequences
// become comma separated values.
func parse(data []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	values := make(map[string]string)
	flatten("", doc, values)
	return values, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := prefix + normalizeKey(strings.Trim(k, "/"))
		switch v := v.(type) {
		case map[string]any:
			flatten(key, v, out)
		case []any:
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = scalar(item)
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = scalar(v)
		}
	}
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
