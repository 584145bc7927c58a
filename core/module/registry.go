// Package module loads controller and model modules from a directory tree,
// keeps them in an ordered registry and reloads them when their source files
// change.
//
// A Registry owns its watch subscription: it is attached in New when reload
// is enabled and released by Close. Change events are applied one at a time;
// lookups are safe from any goroutine.
package module

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mambaweb/mamba/core/events"
	"github.com/mambaweb/mamba/core/logging"
	"github.com/mambaweb/mamba/core/watch"
	"github.com/rs/zerolog"
)

// Entry is a registered module. Entries are replaced, never mutated.
type Entry struct {
	Name       string
	Instance   any
	SourcePath string

	// ImportPath is the package-qualified module path (package/dir/name).
	ImportPath string

	Loaded   bool
	Handle   Handle
	LoadedAt time.Time
	Reloads  int
}

// WatchState reports whether auto reload was requested and whether the
// watch is actually live.
type WatchState struct {
	Enabled bool
	Active  bool
}

// Validator decides whether a file is a module of the registry's kind.
type Validator func(path string) bool

// Options configures a Registry.
type Options struct {
	// Root is the directory modules are discovered under.
	Root string

	// Package prefixes import paths of discovered modules.
	Package string

	// Kind is the module kind this registry manages.
	Kind string

	// ReloadEnabled attaches a recursive watch on Root.
	ReloadEnabled bool

	// Loader imports module code. Required.
	Loader Loader

	// Validator overrides the default kind/extension predicate.
	Validator Validator

	// Extension of module files (default ".go").
	Extension string

	// Source provides change events (default: fsnotify).
	Source watch.Source

	// Bus receives lifecycle events. Optional.
	Bus *events.Bus

	Logger zerolog.Logger
}

// Registry is an ordered set of loaded modules.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	entries  map[string]Entry
	failures map[string]error

	// serializes load/reload so one change is applied at a time
	opMu sync.Mutex

	root      string
	pkg       string
	kind      string
	loader    Loader
	validator Validator
	bus       *events.Bus
	logger    zerolog.Logger

	watch WatchState
	sub   watch.Subscription
}

// New creates a registry and, if requested, attaches the watch. A watch that
// cannot be attached is logged and the registry continues without auto
// reload. Call Setup to load the modules already on disk.
func New(opts Options) (*Registry, error) {
	if opts.Loader == nil {
		return nil, errors.New("module registry requires a loader")
	}
	if opts.Extension == "" {
		opts.Extension = ".go"
	}
	if opts.Validator == nil {
		opts.Validator = KindValidator(opts.Kind, opts.Extension)
	}

	root := opts.Root
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	r := &Registry{
		entries:   make(map[string]Entry),
		failures:  make(map[string]error),
		root:      root,
		pkg:       opts.Package,
		kind:      opts.Kind,
		loader:    opts.Loader,
		validator: opts.Validator,
		bus:       opts.Bus,
		logger:    opts.Logger.With().Str("kind", opts.Kind).Logger(),
		watch:     WatchState{Enabled: opts.ReloadEnabled},
	}

	if opts.ReloadEnabled {
		source := opts.Source
		if source == nil {
			source = watch.NewFSNotify(opts.Logger)
		}
		sub, err := source.Attach(root, r.Handle)
		if err != nil {
			r.logger.Warn().Err(err).Str("root", root).Msg("auto reload unavailable, continuing without it")
		} else {
			r.sub = sub
			r.watch.Active = true
		}
	}

	return r, nil
}

// Setup loads every module under the registry root.
func (r *Registry) Setup() error {
	return r.Scan(r.root)
}

// Root returns the absolute discovery root.
func (r *Registry) Root() string { return r.root }

// Kind returns the module kind this registry manages.
func (r *Registry) Kind() string { return r.kind }

// Watch returns the watch state.
func (r *Registry) Watch() WatchState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.watch
}

// Close releases the watch subscription.
func (r *Registry) Close() error {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.watch.Active = false
	r.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}

// Scan walks dir recursively and loads every valid module file. Unreadable
// directories are skipped. A file that fails to load does not stop the scan;
// all load errors are returned joined.
func (r *Registry) Scan(dir string) error {
	var errs []error
	r.scanDir(dir, &errs)
	return errors.Join(errs...)
}

func (r *Registry) scanDir(dir string, errs *[]error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.logger.Debug().Err(err).Str("dir", dir).Msg("skipping unreadable directory")
		return
	}

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			r.scanDir(path, errs)
			continue
		}
		if !r.IsValidFile(path) {
			continue
		}
		if err := r.Load(path); err != nil {
			*errs = append(*errs, err)
		}
	}
}

// IsValidFile reports whether path is a module of this registry's kind.
func (r *Registry) IsValidFile(path string) bool {
	return r.validator(path)
}

// Load imports the module at path and registers it. Loading a name that is
// already registered is a no-op.
func (r *Registry) Load(path string) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	name := Name(path)
	if _, ok := r.Lookup(name); ok {
		return nil
	}

	h, err := r.loader.Import(path)
	if err != nil {
		return &LoadError{Name: name, Path: path, Err: err}
	}
	instance, err := Instantiate(h, r.kind)
	if err != nil {
		return &LoadError{Name: name, Path: path, Err: err}
	}

	entry := Entry{
		Name:       name,
		Instance:   instance,
		SourcePath: path,
		ImportPath: r.importPath(path),
		Loaded:     true,
		Handle:     h,
		LoadedAt:   time.Now(),
	}

	r.mu.Lock()
	r.entries[name] = entry
	r.order = append(r.order, name)
	count := len(r.entries)
	r.mu.Unlock()

	r.logger.Info().Str("module", name).Str("path", path).Msg("module loaded")
	r.publish(events.ModuleLoaded, entry, nil, count)
	return nil
}

// Reload re-executes a registered module and replaces its instance. It
// returns ErrNotLoaded for unknown names. Reload failures are logged, kept
// for LastReloadError and not returned; the previous entry stays registered
// until a replacement has been built.
func (r *Registry) Reload(name string) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	old, ok := r.Lookup(name)
	if !ok || !old.Loaded {
		return fmt.Errorf("%w: tried to reload %s", ErrNotLoaded, name)
	}

	logger := r.logger.With().Str("module", name).Str("path", old.SourcePath).Logger()
	logging.Log(logger, logging.Info, fmt.Sprintf("Reloading module %s (%T)", name, old.Instance), nil)

	entry, err := r.rebuild(old)
	if err != nil {
		rerr := &ReloadError{Name: name, Path: old.SourcePath, Err: err}
		r.mu.Lock()
		r.failures[name] = rerr
		count := len(r.entries)
		r.mu.Unlock()

		logging.Log(logger, logging.Error, "Error reloading module "+name+", keeping previous instance", err)
		r.publish(events.ModuleReloadFailed, old, rerr, count)
		return nil
	}

	r.mu.Lock()
	r.entries[name] = entry
	delete(r.failures, name)
	count := len(r.entries)
	r.mu.Unlock()

	r.publish(events.ModuleReloaded, entry, nil, count)
	return nil
}

func (r *Registry) rebuild(old Entry) (Entry, error) {
	if err := r.loader.Reexecute(old.Handle); err != nil {
		return Entry{}, err
	}
	instance, err := Instantiate(old.Handle, r.kind)
	if err != nil {
		// the previous instance stays registered, so its code must too
		if rv, ok := old.Handle.(reverter); ok {
			rv.revert()
		}
		return Entry{}, err
	}

	entry := old
	entry.Instance = instance
	entry.Loaded = true
	entry.LoadedAt = time.Now()
	entry.Reloads = old.Reloads + 1
	return entry, nil
}

// LastReloadError returns the error of the most recent failed reload of
// name, or nil if the last reload succeeded.
func (r *Registry) LastReloadError(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failures[name]
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Count returns the number of registered modules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Names returns registered module names in load order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Entries returns registered entries in load order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Handle applies a change event. Modified files that are registered are
// reloaded; created files are loaded; everything else is ignored.
func (r *Registry) Handle(ev watch.Event) {
	switch ev.Kind {
	case watch.Modified:
		if !r.IsValidFile(ev.Path) {
			return
		}
		name := Name(ev.Path)
		if _, ok := r.Lookup(name); !ok {
			return
		}
		if err := r.Reload(name); err != nil {
			r.logger.Error().Err(err).Str("path", ev.Path).Msg("reload on change failed")
		}

	case watch.Created:
		if _, err := os.Stat(ev.Path); err != nil {
			return
		}
		if !r.IsValidFile(ev.Path) {
			return
		}
		if err := r.Load(ev.Path); err != nil {
			r.logger.Error().Err(err).Str("path", ev.Path).Msg("loading new module failed")
		}
	}
}

// importPath qualifies a module file with the registry package:
// <package>/<dir relative to root>/<name>.
func (r *Registry) importPath(path string) string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	if r.pkg == "" {
		return rel
	}
	return r.pkg + "/" + rel
}

func (r *Registry) publish(name string, entry Entry, err error, count int) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(context.Background(), events.Event{
		Name:   name,
		Module: entry.Name,
		Kind:   r.kind,
		Path:   entry.SourcePath,
		Err:    err,
		Data: map[string]any{
			"count":   count,
			"reloads": entry.Reloads,
		},
	})
}
