package module

import (
	"fmt"
	"os"
	"sync"
)

// Symbols are the top-level values a module exports.
type Symbols map[string]any

// StaticLoader serves modules compiled into the binary. Each module is
// registered under its name with a function that "executes" it by returning
// its symbols. Reexecute runs that function again, which yields fresh
// instances but cannot pick up edited source: a compiled deployment has to be
// rebuilt for code changes to take effect.
type StaticLoader struct {
	mu      sync.RWMutex
	modules map[string]func() Symbols
}

// NewStaticLoader creates an empty static loader.
func NewStaticLoader() *StaticLoader {
	return &StaticLoader{modules: make(map[string]func() Symbols)}
}

// Register makes module code available under name.
func (l *StaticLoader) Register(name string, exec func() Symbols) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[name] = exec
}

// Import executes the module registered for the file's module name.
func (l *StaticLoader) Import(path string) (Handle, error) {
	name := Name(path)

	l.mu.RLock()
	exec, ok := l.modules[name]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}

	h := &staticHandle{path: path, exec: exec}
	if err := h.run(); err != nil {
		return nil, err
	}
	return h, nil
}

// Reexecute runs the module again. The source file must still exist.
func (l *StaticLoader) Reexecute(h Handle) error {
	sh, ok := h.(*staticHandle)
	if !ok {
		return fmt.Errorf("static loader cannot reexecute %T", h)
	}
	if _, err := os.Stat(sh.path); err != nil {
		return fmt.Errorf("module source: %w", err)
	}

	l.mu.RLock()
	if exec, ok := l.modules[Name(sh.path)]; ok {
		sh.exec = exec
	}
	l.mu.RUnlock()

	return sh.run()
}

type staticHandle struct {
	mu      sync.RWMutex
	path    string
	exec    func() Symbols
	symbols Symbols
	prev    Symbols
}

func (h *staticHandle) Path() string { return h.path }

func (h *staticHandle) Symbol(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.symbols[name]
	return v, ok
}

func (h *staticHandle) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module execution panicked: %v", r)
		}
	}()

	symbols := h.exec()

	h.mu.Lock()
	h.prev, h.symbols = h.symbols, symbols
	h.mu.Unlock()
	return nil
}

func (h *staticHandle) revert() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.prev != nil {
		h.symbols, h.prev = h.prev, nil
	}
}
