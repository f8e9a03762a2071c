// Package engine ties one collection's catalogue to its attribute index and
// handles reloads when the catalogue file changes on disk.
package engine

import (
	"log/slog"
	"os"
	"sync"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
	"github.com/Hussein-Mohammed/ScriptSight/internal/index"
)

// Engine owns the loaded catalogue and index for one collection. The
// catalogue is immutable between reloads; reads never lock against each
// other.
type Engine struct {
	name          string
	cataloguePath string
	loader        *catalogue.Loader

	mu      sync.RWMutex
	cat     *catalogue.Catalogue
	idx     *index.AttributeIndex
	modTime int64

	logger *slog.Logger
}

// New creates an Engine for the catalogue file at cataloguePath and performs
// the initial load and index build.
func New(name, cataloguePath string, loader *catalogue.Loader) (*Engine, error) {
	e := &Engine{
		name:          name,
		cataloguePath: cataloguePath,
		loader:        loader,
		logger:        slog.Default().With("component", "engine", "collection", name),
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) load() error {
	info, err := os.Stat(e.cataloguePath)
	if err == nil {
		e.modTime = info.ModTime().UnixNano()
	}
	cat, err := e.loader.Load(e.cataloguePath)
	if err != nil {
		return err
	}
	idx := index.Build(cat)

	e.mu.Lock()
	e.cat = cat
	e.idx = idx
	e.mu.Unlock()

	e.logger.Info("index built",
		"pages", cat.Len(),
		"implements", len(idx.Values(catalogue.AttrImplement)),
		"orientations", len(idx.Values(catalogue.AttrOrientation)),
		"colours", len(idx.Values(catalogue.AttrColour)),
	)
	return nil
}

// Reload re-reads the catalogue if the file changed since the last load.
// It reports whether a reload happened.
func (e *Engine) Reload() (bool, error) {
	info, err := os.Stat(e.cataloguePath)
	if err != nil {
		return false, err
	}
	e.mu.RLock()
	unchanged := info.ModTime().UnixNano() == e.modTime
	e.mu.RUnlock()
	if unchanged {
		return false, nil
	}
	if err := e.load(); err != nil {
		return false, err
	}
	return true, nil
}

// Name returns the collection name.
func (e *Engine) Name() string {
	return e.name
}

// CataloguePath returns the catalogue file backing this engine.
func (e *Engine) CataloguePath() string {
	return e.cataloguePath
}

// Catalogue returns the current catalogue snapshot.
func (e *Engine) Catalogue() *catalogue.Catalogue {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cat
}

// Index returns the current attribute index snapshot.
func (e *Engine) Index() *index.AttributeIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx
}

// PageCount returns the number of pages in the collection.
func (e *Engine) PageCount() int {
	return e.Catalogue().Len()
}
