// Package collection discovers catalogue files and routes requests by
// collection name to the engine owning that collection.
package collection

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
	"github.com/Hussein-Mohammed/ScriptSight/internal/engine"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/config"
	apperrors "github.com/Hussein-Mohammed/ScriptSight/pkg/errors"
)

// Info summarises one loaded collection for listing endpoints.
type Info struct {
	Name      string `json:"name"`
	PageCount int    `json:"page_count"`
}

// Router maps collection names to dedicated engine instances. One engine is
// created per <name>.json file found in the catalogue directory.
type Router struct {
	engines map[string]*engine.Engine
	mu      sync.RWMutex
	cfg     config.CatalogueConfig
	loader  *catalogue.Loader
	logger  *slog.Logger
}

// NewRouter scans cfg.CatalogueDir and builds an engine per catalogue file.
// Individual load failures are logged and skipped; it is an error only if no
// collection loads at all.
func NewRouter(cfg config.CatalogueConfig) (*Router, error) {
	r := &Router{
		engines: make(map[string]*engine.Engine),
		cfg:     cfg,
		loader:  catalogue.NewLoader(cfg.ImageDir),
		logger:  slog.Default().With("component", "collection-router"),
	}
	paths, err := r.discover()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		eng, err := engine.New(name, path, r.loader)
		if err != nil {
			r.logger.Error("collection failed to load, skipping", "collection", name, "error", err)
			continue
		}
		r.engines[name] = eng
		r.logger.Info("collection ready", "collection", name, "pages", eng.PageCount())
	}
	if len(paths) > 0 && len(r.engines) == 0 {
		return nil, apperrors.Newf(apperrors.ErrCatalogueLoad, 500, "no collection loaded from %s", cfg.CatalogueDir)
	}
	r.logger.Info("collection router ready", "collections", len(r.engines))
	return r, nil
}

// Get returns the engine for the named collection.
func (r *Router) Get(name string) (*engine.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eng, ok := r.engines[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCollectionNotFound, 404, "collection %q", name)
	}
	return eng, nil
}

// Collections returns info for every loaded collection, sorted by name.
func (r *Router) Collections() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.engines))
	for name, eng := range r.engines {
		out = append(out, Info{Name: name, PageCount: eng.PageCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of loaded collections.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// ReloadAll rescans the catalogue directory: changed files are reloaded, new
// files get fresh engines, and engines whose files vanished are dropped.
// It returns the number of collections that changed.
func (r *Router) ReloadAll() (int, error) {
	paths, err := r.discover()
	if err != nil {
		return 0, err
	}
	onDisk := make(map[string]string, len(paths))
	for _, path := range paths {
		onDisk[strings.TrimSuffix(filepath.Base(path), ".json")] = path
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	for name, eng := range r.engines {
		if _, exists := onDisk[name]; !exists {
			delete(r.engines, name)
			r.loader.Evict(eng.CataloguePath())
			r.logger.Info("collection removed", "collection", name)
			changed++
			continue
		}
		reloaded, err := eng.Reload()
		if err != nil {
			r.logger.Error("collection reload failed", "collection", name, "error", err)
			continue
		}
		if reloaded {
			changed++
		}
	}
	for name, path := range onDisk {
		if _, exists := r.engines[name]; exists {
			continue
		}
		eng, err := engine.New(name, path, r.loader)
		if err != nil {
			r.logger.Error("new collection failed to load", "collection", name, "error", err)
			continue
		}
		r.engines[name] = eng
		r.logger.Info("new collection loaded", "collection", name, "pages", eng.PageCount())
		changed++
	}
	return changed, nil
}

// discover lists catalogue files in the configured directory, sorted.
func (r *Router) discover() ([]string, error) {
	entries, err := os.ReadDir(r.cfg.CatalogueDir)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue directory %s: %w", r.cfg.CatalogueDir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(r.cfg.CatalogueDir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
