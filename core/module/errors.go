package module

import (
	"errors"
	"fmt"

	"github.com/mambaweb/mamba/core/watch"
)

var (
	// ErrWatchUnavailable means the registry runs without auto reload.
	ErrWatchUnavailable = watch.ErrUnavailable

	// ErrNotLoaded is returned by Reload for names that are not registered.
	ErrNotLoaded = errors.New("module not loaded")

	// ErrNoFactory means the module exposes neither a New factory nor a
	// Module extension point of the registry's kind.
	ErrNoFactory = errors.New("no factory or extension point found")

	// ErrBadFactory means the New symbol has the wrong signature.
	ErrBadFactory = errors.New("factory has unexpected signature")

	// ErrNilInstance means the factory returned nil.
	ErrNilInstance = errors.New("factory returned nil instance")

	// ErrModuleNotFound is returned by loaders that have no code for a path.
	ErrModuleNotFound = errors.New("module code not found")
)

// LoadError reports a discovery-time failure for a single file.
type LoadError struct {
	Name string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %q from %s: %v", e.Name, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ReloadError reports a failed live reload. Registries log it rather than
// returning it; it is kept for inspection via LastReloadError.
type ReloadError struct {
	Name string
	Path string
	Err  error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("reload module %q from %s: %v", e.Name, e.Path, e.Err)
}

func (e *ReloadError) Unwrap() error { return e.Err }
