package bootstrap

import (
	"errors"
	"fmt"

	"github.com/mambaweb/mamba/config"
	"github.com/mambaweb/mamba/core/events"
	"github.com/mambaweb/mamba/core/module"
	"github.com/mambaweb/mamba/core/watch"
	"github.com/mambaweb/mamba/web/response"
	"github.com/rs/zerolog"
)

// ErrStaticLoaderRequired is returned when modules.loader is "static" but no
// compiled loader was supplied.
var ErrStaticLoaderRequired = errors.New("modules.loader is static but no compiled loader was provided")

// ModulesOptions configures NewModules.
type ModulesOptions struct {
	Loader        module.Loader // overrides the configured loader
	Source        watch.Source  // default fsnotify
	Bus           *events.Bus
	Logger        zerolog.Logger
	ReloadEnabled bool
}

// Modules holds the controller and model registries.
type Modules struct {
	Controllers *module.Registry
	Models      *module.Registry
}

// NewLoader returns override when set, otherwise the loader named by
// modules.loader. Script modules can import the response package.
func NewLoader(cfg *config.Config, override module.Loader) (module.Loader, error) {
	if override != nil {
		return override, nil
	}
	switch cfg.Modules.Loader {
	case config.LoaderStatic:
		return nil, ErrStaticLoaderRequired
	default:
		return module.NewScriptLoader(response.Symbols), nil
	}
}

// NewModules creates both registries without loading anything. Call Setup
// to scan the module directories.
func NewModules(cfg *config.Config, opts ModulesOptions) (*Modules, error) {
	loader, err := NewLoader(cfg, opts.Loader)
	if err != nil {
		return nil, err
	}

	base := module.Options{
		Package:       cfg.Modules.Package,
		Extension:     cfg.Modules.Extension,
		ReloadEnabled: opts.ReloadEnabled,
		Loader:        loader,
		Source:        opts.Source,
		Bus:           opts.Bus,
		Logger:        opts.Logger,
	}

	ctlOpts := base
	ctlOpts.Root = cfg.Modules.Controllers
	controllers, err := module.NewControllerManager(ctlOpts)
	if err != nil {
		return nil, fmt.Errorf("controller manager: %w", err)
	}

	mdlOpts := base
	mdlOpts.Root = cfg.Modules.Models
	models, err := module.NewModelManager(mdlOpts)
	if err != nil {
		controllers.Close()
		return nil, fmt.Errorf("model manager: %w", err)
	}

	return &Modules{Controllers: controllers, Models: models}, nil
}

// All returns the registries in load order: models first so controllers
// loaded afterwards can rely on them.
func (m *Modules) All() []*module.Registry {
	return []*module.Registry{m.Models, m.Controllers}
}

// ByKind returns the registry managing kind.
func (m *Modules) ByKind(kind string) (*module.Registry, bool) {
	for _, r := range m.All() {
		if r.Kind() == kind {
			return r, true
		}
	}
	return nil, false
}

// Setup loads the modules of every registry.
func (m *Modules) Setup() error {
	var errs []error
	for _, r := range m.All() {
		if err := r.Setup(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Kind(), err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the watches of every registry.
func (m *Modules) Close() error {
	var errs []error
	for _, r := range m.All() {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
