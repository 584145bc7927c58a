package module

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Symbol names a module may export to be instantiated.
const (
	// FactorySymbol is the designated factory: func() any.
	FactorySymbol = "New"

	// ModuleSymbol is an extension point value implementing Capability.
	ModuleSymbol = "Module"
)

// Loader imports module code from source files.
type Loader interface {
	// Import executes the module at path and returns a handle to it.
	Import(path string) (Handle, error)

	// Reexecute runs the module code again in place. The handle keeps its
	// identity; symbols looked up afterwards reflect the new code.
	Reexecute(h Handle) error
}

// Handle is a loaded module.
type Handle interface {
	// Path is the source file the module was loaded from.
	Path() string

	// Symbol returns a top-level value exported by the module.
	Symbol(name string) (any, bool)
}

// reverter is implemented by handles that can go back to the code they ran
// before their last successful Reexecute.
type reverter interface {
	revert()
}

// Factory builds a fresh module instance.
type Factory func() any

// Capability marks a value as an extension point of a module kind.
type Capability interface {
	MambaKind() string
}

// Instantiate resolves the object a module provides. A New factory wins;
// otherwise a Module value of the requested kind is used. An empty kind
// accepts any Capability.
func Instantiate(h Handle, kind string) (any, error) {
	if sym, ok := h.Symbol(FactorySymbol); ok {
		var instance any
		switch f := sym.(type) {
		case Factory:
			instance = f()
		case func() any:
			instance = f()
		default:
			return nil, fmt.Errorf("%w: %s is %T", ErrBadFactory, FactorySymbol, sym)
		}
		if instance == nil {
			return nil, ErrNilInstance
		}
		return instance, nil
	}

	if sym, ok := h.Symbol(ModuleSymbol); ok {
		if c, ok := sym.(Capability); ok && (kind == "" || c.MambaKind() == kind) {
			return c, nil
		}
	}

	return nil, ErrNoFactory
}

// Name derives the module name from a file path: the base name without its
// extension.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
