// Package catalogfile loads alias overrides from a YAML file and keeps the
// catalog in sync with it while the process runs.
package catalogfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/askdex/internal/domain/catalog"
)

// File is the on-disk override format:
//
//	aliases:
//	  category:
//	    Hotel: [inn, lodging]
type File struct {
	Aliases map[catalog.Field]map[string][]string `yaml:"aliases"`
}

// Load reads path and extends base with its aliases. A missing file yields
// base unchanged.
func Load(path string, base *catalog.Catalog) (*catalog.Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data, base)
}

// Parse extends base with the aliases in data.
func Parse(data []byte, base *catalog.Catalog) (*catalog.Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	if len(f.Aliases) == 0 {
		return base, nil
	}
	c, err := base.WithAliases(f.Aliases)
	if err != nil {
		return nil, fmt.Errorf("apply catalog file: %w", err)
	}
	return c, nil
}

// debounce coalesces the burst of events editors emit for one save.
const debounce = 100 * time.Millisecond

// Watcher is a catalog.Provider backed by an override file. A reload that
// fails keeps the previous catalog.
type Watcher struct {
	path    string
	base    *catalog.Catalog
	current atomic.Pointer[catalog.Catalog]
	reloads *prometheus.CounterVec
	logger  *zap.Logger
}

var _ catalog.Provider = (*Watcher)(nil)

// NewWatcher loads path on top of base. reloads may be nil.
func NewWatcher(path string, base *catalog.Catalog, reloads *prometheus.CounterVec, logger *zap.Logger) (*Watcher, error) {
	c, err := Load(path, base)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, base: base, reloads: reloads, logger: logger}
	w.current.Store(c)
	return w, nil
}

// Current implements catalog.Provider.
func (w *Watcher) Current() *catalog.Catalog { return w.current.Load() }

// Reload re-reads the file and swaps the catalog on success.
func (w *Watcher) Reload() error {
	c, err := Load(w.path, w.base)
	if err != nil {
		w.observe("error")
		return err
	}
	w.current.Store(c)
	w.observe("ok")
	return nil
}

// Run watches the file's directory until ctx is done. The directory is
// watched instead of the file so atomic renames are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Clean(w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				w.logger.Warn("catalog reload failed, keeping previous aliases",
					zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.logger.Info("catalog reloaded", zap.String("path", w.path))

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) observe(result string) {
	if w.reloads != nil {
		w.reloads.WithLabelValues(result).Inc()
	}
}
