package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/qorzen/kernel/pkg/logging"
)

// FileLoader is the external-facing convenience collaborator spec.md §6
// describes as "delegated to external parsers": the core's merge engine
// never parses YAML itself, but something has to turn a file on disk into
// the dotted-path map[string]any a Store tier expects. Grounded on the
// teacher's internal/config/storage.go file-per-entity persistence idea,
// adapted here to one YAML document per tier instead of one file per
// entity.
type FileLoader struct {
	store *Store

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	paths   map[Tier]string
}

// NewFileLoader constructs a loader bound to store.
func NewFileLoader(store *Store) *FileLoader {
	return &FileLoader{store: store, paths: make(map[Tier]string)}
}

// LoadFile parses path as a YAML document and loads it into tier via
// Store.Reload, flattening nested maps into dotted-path keys (e.g.
// `feature: {x: true}` becomes key "feature.x").
func (l *FileLoader) LoadFile(tier Tier, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Warn("config.fileloader", "tier %s file does not exist, treating as empty: %s", tier, path)
			return l.store.Reload(tier, map[string]any{})
		}
		return fmt.Errorf("reading %s tier file %s: %w", tier, path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing %s tier file %s: %w", tier, path, err)
	}

	flat := make(map[string]any)
	flattenInto(flat, "", doc)

	l.mu.Lock()
	l.paths[tier] = path
	l.mu.Unlock()

	logging.Info("config.fileloader", "loaded %d keys for tier %s from %s", len(flat), tier, path)
	return l.store.Reload(tier, flat)
}

// WatchLocal watches path (normally the Local tier's file) and calls
// LoadFile(TierLocal, path) on every write, matching spec.md §4.3's
// reload contract. Stop via Close.
func (l *FileLoader) WatchLocal(path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	l.mu.Lock()
	l.watcher = w
	l.mu.Unlock()

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := l.LoadFile(TierLocal, path); err != nil {
					logging.Error("config.fileloader", err, "reload of %s failed", path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Error("config.fileloader", err, "config watcher error")
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if one is running.
func (l *FileLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	l.watcher = nil
	return err
}

// flattenInto recursively walks a parsed YAML/JSON tree, writing leaf
// values into out under dotted-path keys. A single key's value is always
// an atomic unit once flattened — spec.md §4.3's "objects are not
// deep-merged across tiers" — flattening happens once at load time, not
// per-merge, so the merge engine itself never needs to know a key came
// from a nested object.
func flattenInto(out map[string]any, prefix string, node any) {
	switch v := node.(type) {
	case map[string]any:
		if len(v) == 0 && prefix != "" {
			out[prefix] = v
			return
		}
		for k, val := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(out, key, val)
		}
	case map[any]any:
		conv := make(map[string]any, len(v))
		for k, val := range v {
			conv[fmt.Sprintf("%v", k)] = val
		}
		flattenInto(out, prefix, conv)
	default:
		if prefix != "" {
			out[prefix] = v
		}
	}
}
