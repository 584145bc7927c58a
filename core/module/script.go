package module

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ScriptLoader interprets Go source files with yaegi. Each module file is a
// self-contained package; Reexecute evaluates the current file contents in a
// fresh interpreter so edits take effect without rebuilding the binary.
type ScriptLoader struct {
	exports []interp.Exports
}

// NewScriptLoader creates a loader. Exports make host packages importable
// from module files in addition to the standard library.
func NewScriptLoader(exports ...interp.Exports) *ScriptLoader {
	return &ScriptLoader{exports: exports}
}

// Import evaluates the module file at path.
func (l *ScriptLoader) Import(path string) (Handle, error) {
	h := &scriptHandle{path: path}
	if err := l.eval(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Reexecute evaluates the module file again. On failure the handle keeps
// the previous interpreter; after success it can still be reverted until the
// next evaluation.
func (l *ScriptLoader) Reexecute(h Handle) error {
	sh, ok := h.(*scriptHandle)
	if !ok {
		return fmt.Errorf("script loader cannot reexecute %T", h)
	}
	return l.eval(sh)
}

func (l *ScriptLoader) eval(h *scriptHandle) (err error) {
	src, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("read module source: %w", err)
	}

	file, err := parser.ParseFile(token.NewFileSet(), h.path, src, parser.PackageClauseOnly)
	if err != nil {
		return fmt.Errorf("parse module source: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("load stdlib symbols: %w", err)
	}
	for _, ex := range l.exports {
		if err := i.Use(ex); err != nil {
			return fmt.Errorf("load host symbols: %w", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module evaluation panicked: %v", r)
		}
	}()

	if _, err := i.Eval(string(src)); err != nil {
		return fmt.Errorf("evaluate module: %w", err)
	}

	h.mu.Lock()
	h.prevInterp, h.prevPkg = h.interp, h.pkg
	h.interp = i
	h.pkg = file.Name.Name
	h.mu.Unlock()
	return nil
}

type scriptHandle struct {
	mu     sync.RWMutex
	path   string
	pkg    string
	interp *interp.Interpreter

	prevPkg    string
	prevInterp *interp.Interpreter
}

func (h *scriptHandle) revert() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.prevInterp != nil {
		h.interp, h.pkg = h.prevInterp, h.prevPkg
		h.prevInterp, h.prevPkg = nil, ""
	}
}

func (h *scriptHandle) Path() string { return h.path }

func (h *scriptHandle) Symbol(name string) (sym any, ok bool) {
	h.mu.RLock()
	i, pkg := h.interp, h.pkg
	h.mu.RUnlock()

	defer func() {
		if recover() != nil {
			sym, ok = nil, false
		}
	}()

	v, err := i.Eval(pkg + "." + name)
	if err != nil || !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}
