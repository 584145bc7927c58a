package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/mambaweb/mamba/core/watch"
	"github.com/rs/zerolog"
)

// field is one configuration setting as seen by hot reload.
type field struct {
	name string
	get  func(*Config) any
	live bool // applied without restart
}

var fields = []field{
	{name: "name", get: func(c *Config) any { return c.Name }},
	{name: "development", get: func(c *Config) any { return c.Development }},
	{name: "reload_enabled", get: func(c *Config) any { return c.ReloadEnabled }},
	{name: "server.host", get: func(c *Config) any { return c.Server.Host }},
	{name: "server.port", get: func(c *Config) any { return c.Server.Port }},
	{name: "server.read_timeout", get: func(c *Config) any { return c.Server.ReadTimeout }},
	{name: "server.write_timeout", get: func(c *Config) any { return c.Server.WriteTimeout }},
	{name: "modules.controllers", get: func(c *Config) any { return c.Modules.Controllers }},
	{name: "modules.models", get: func(c *Config) any { return c.Modules.Models }},
	{name: "modules.package", get: func(c *Config) any { return c.Modules.Package }},
	{name: "modules.extension", get: func(c *Config) any { return c.Modules.Extension }},
	{name: "modules.loader", get: func(c *Config) any { return c.Modules.Loader }},
	{name: "logging.level", get: func(c *Config) any { return c.Logging.Level }, live: true},
	{name: "logging.format", get: func(c *Config) any { return c.Logging.Format }},
	{name: "logging.log_dir", get: func(c *Config) any { return c.Logging.LogDir }},
	{name: "logging.syslog", get: func(c *Config) any { return c.Logging.Syslog }},
	{name: "logging.graylog", get: func(c *Config) any { return c.Logging.Graylog }},
	{name: "database.dsn", get: func(c *Config) any { return c.Database.DSN }},
	{name: "metrics.enabled", get: func(c *Config) any { return c.Metrics.Enabled }},
	{name: "metrics.path", get: func(c *Config) any { return c.Metrics.Path }},
}

// Changes returns the names of the settings that differ between old and
// next, in declaration order.
func Changes(old, next *Config) []string {
	var changed []string
	for _, f := range fields {
		if f.get(old) != f.get(next) {
			changed = append(changed, f.name)
		}
	}
	return changed
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return fieldNames(true)
}

// NonReloadableFields returns which fields require a restart.
func NonReloadableFields() []string {
	return fieldNames(false)
}

func fieldNames(live bool) []string {
	var names []string
	for _, f := range fields {
		if f.live == live {
			names = append(names, f.name)
		}
	}
	return names
}

func isLive(name string) bool {
	for _, f := range fields {
		if f.name == name {
			return f.live
		}
	}
	return false
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithSource replaces the file watch source used by WatchFile.
func WithSource(s watch.Source) HolderOption {
	return func(h *Holder) { h.source = s }
}

// Holder keeps the current configuration and reloads it when mamba.yaml
// changes or SIGHUP arrives. Listeners run only when a setting changed.
type Holder struct {
	mu         sync.RWMutex
	config     *Config
	generation int
	listeners  []func(*Config)

	// serializes reloads from the file watch and the signal handler
	reloadMu sync.Mutex

	path   string
	logger zerolog.Logger
	source watch.Source
	sub    watch.Subscription

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder loads the configuration at path.
func NewHolder(path string, logger zerolog.Logger, opts ...HolderOption) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	h := &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.source == nil {
		h.source = watch.NewShallowFSNotify(logger)
	}
	return h, nil
}

// Path returns the absolute path of the configuration file.
func (h *Holder) Path() string {
	return h.path
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Generation counts the reloads that changed at least one setting.
func (h *Holder) Generation() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.generation
}

// OnChange registers a callback for changed configurations.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload reads the file again. An invalid file is reported and the current
// configuration stays in effect.
func (h *Holder) Reload() error {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("config reload failed, keeping current config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	changed := Changes(h.config, next)
	if len(changed) == 0 {
		h.mu.Unlock()
		h.logger.Debug().Str("path", h.path).Msg("configuration unchanged")
		return nil
	}
	h.config = next
	h.generation++
	listeners := append([]func(*Config){}, h.listeners...)
	h.mu.Unlock()

	var live, restart []string
	for _, name := range changed {
		if isLive(name) {
			live = append(live, name)
		} else {
			restart = append(restart, name)
		}
	}
	if len(restart) > 0 {
		h.logger.Warn().Strs("fields", restart).Msg("configuration changes need a restart to apply")
	}
	h.logger.Info().Strs("applied", live).Msg("configuration reloaded")

	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// WatchFile reloads whenever the configuration file is written or
// replaced. The directory is watched so atomic saves are seen.
func (h *Holder) WatchFile() error {
	name := filepath.Base(h.path)
	sub, err := h.source.Attach(filepath.Dir(h.path), func(ev watch.Event) {
		if filepath.Base(ev.Path) != name || ev.Kind == watch.Other {
			return
		}
		h.logger.Debug().Str("event", ev.Kind.String()).Msg("config file changed")
		if err := h.Reload(); err != nil {
			h.logger.Error().Err(err).Msg("file watch reload failed")
		}
	})
	if err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}

	h.mu.Lock()
	h.sub = sub
	h.mu.Unlock()

	h.logger.Info().Str("path", h.path).Msg("watching config file for changes")
	return nil
}

// WatchSignals reloads on SIGHUP until Stop.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)

		h.mu.Lock()
		sub := h.sub
		h.sub = nil
		h.mu.Unlock()

		if sub != nil {
			if err := sub.Close(); err != nil {
				h.logger.Warn().Err(err).Msg("closing config watch")
			}
		}
	})
}
