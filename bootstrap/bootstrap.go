// Package bootstrap wires all dependencies and starts the application:
// configuration, logging, the module registries, the event bus with its
// metrics and journal subscribers, and the HTTP server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mambaweb/mamba/adapters/memory"
	"github.com/mambaweb/mamba/adapters/sqlite"
	"github.com/mambaweb/mamba/config"
	"github.com/mambaweb/mamba/core/events"
	"github.com/mambaweb/mamba/core/exporter"
	"github.com/mambaweb/mamba/core/journal"
	"github.com/mambaweb/mamba/core/logging"
	"github.com/mambaweb/mamba/core/module"
	"github.com/mambaweb/mamba/ports"
	"github.com/mambaweb/mamba/web"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful HTTP shutdown.
const ShutdownTimeout = 30 * time.Second

// Options provides optional configuration for application initialization.
type Options struct {
	// Loader overrides the loader selected by modules.loader. Required when
	// modules.loader is "static".
	Loader module.Loader

	// LogOutput receives the primary log stream (default os.Stdout).
	LogOutput io.Writer

	// Version is reported by /version.
	Version string
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Bus        *events.Bus
	Modules    *Modules
	Exporters  *exporter.Registry
	Metrics    *exporter.PrometheusExporter // nil when metrics are disabled
	DB         *sqlite.DB                   // nil without database.dsn
	Journal    ports.JournalStore           // in memory without database.dsn
	HTTPServer *http.Server

	holder    *config.Holder
	logCloser io.Closer
	closeOnce sync.Once
	closeErr  error
}

// New creates and initializes the application from cfg.
func New(cfg *config.Config, opts Options) (*App, error) {
	logger, closer, err := newLogger(cfg, opts.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	a := &App{
		Logger:    logger,
		Config:    cfg,
		Bus:       events.NewBus(logger.With().Str("component", "events").Logger()),
		Exporters: exporter.NewRegistry(),
		logCloser: closer,
	}

	logger.Info().Str("name", cfg.Name).Msg("initializing mamba")

	if err := a.init(opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// NewWithHotReload creates the application from the config file at path and
// reloads it on file change or SIGHUP. Only logging.level is applied live.
func NewWithHotReload(path string, opts Options) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a, err := New(cfg, opts)
	if err != nil {
		return nil, err
	}

	holder, err := config.NewHolder(path, a.Logger.With().Str("component", "config").Logger())
	if err != nil {
		a.Close()
		return nil, err
	}
	holder.OnChange(func(cfg *config.Config) {
		applyLogLevel(cfg.Logging.Level)
	})
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	holder.WatchSignals()
	a.holder = holder

	return a, nil
}

// Holder returns the config holder, or nil without hot reload.
func (a *App) Holder() *config.Holder {
	return a.holder
}

func (a *App) init(opts Options) error {
	cfg := a.Config

	if cfg.Metrics.Enabled {
		a.Metrics = exporter.NewPrometheusExporter(exporter.PrometheusConfig{
			Labels: map[string]string{"app": cfg.Name},
		})
		a.Exporters.Register(a.Metrics)
	}
	if cfg.Development {
		a.Exporters.Register(exporter.NewLogExporter(a.Logger.With().Str("component", "exporter").Logger()))
	}
	a.Exporters.Subscribe(a.Bus)

	if cfg.Database.DSN != "" {
		db, store, err := OpenJournal(context.Background(), cfg.Database.DSN, a.Logger)
		if err != nil {
			return fmt.Errorf("init journal: %w", err)
		}
		a.DB = db
		a.Journal = store
	} else {
		a.Journal = memory.NewJournalStore(memory.DefaultJournalCapacity)
	}
	journal.Subscribe(a.Bus, a.Journal, a.Logger.With().Str("component", "journal").Logger())

	modules, err := NewModules(cfg, ModulesOptions{
		Loader:        opts.Loader,
		Bus:           a.Bus,
		Logger:        a.Logger,
		ReloadEnabled: cfg.ReloadEnabled,
	})
	if err != nil {
		return fmt.Errorf("init modules: %w", err)
	}
	a.Modules = modules

	if a.Metrics != nil {
		a.Metrics.Track(modules.Controllers, modules.Models)
	}
	if err := a.Exporters.Start(context.Background()); err != nil {
		return fmt.Errorf("start exporters: %w", err)
	}

	if err := modules.Setup(); err != nil {
		// a broken module must not keep the others from serving
		a.Logger.Error().Err(err).Msg("some modules failed to load")
	}

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.router(opts.Version),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return nil
}

func (a *App) router(version string) http.Handler {
	deps := web.Deps{
		Controllers: a.Modules.Controllers,
		Models:      a.Modules.Models,
		Journal:     a.Journal,
		Logger:      a.Logger.With().Str("system", "web").Logger(),
		Version:     version,
		Timeout:     a.Config.Server.WriteTimeout,
	}
	if a.Metrics != nil {
		deps.MetricsHandler = a.Metrics.Handler()
		deps.MetricsPath = a.Config.Metrics.Path
		deps.Observer = a.Metrics
	}
	return web.NewRouter(deps)
}

// Run serves HTTP until ctx is cancelled, SIGINT or SIGTERM arrives, or
// the server fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Bool("reload_enabled", a.Config.ReloadEnabled).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info().Msg("shutting down")
		return a.Close()
	})

	return g.Wait()
}

// Close stops the server, releases module watches, stops exporters and
// closes the journal and log sinks. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error

		if a.holder != nil {
			a.holder.Stop()
		}

		if a.HTTPServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			if err := a.HTTPServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
			cancel()
		}

		if a.Modules != nil {
			if err := a.Modules.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if err := a.Exporters.Stop(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("stop exporters: %w", err))
		}

		if c, ok := a.Journal.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close journal: %w", err))
			}
		}
		if a.DB != nil {
			if err := a.DB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close database: %w", err))
			}
		}

		a.Logger.Info().Msg("shutdown complete")

		if a.logCloser != nil {
			if err := a.logCloser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close log sinks: %w", err))
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

// OpenJournal opens and migrates the journal database.
func OpenJournal(ctx context.Context, dsn string, logger zerolog.Logger) (*sqlite.DB, *sqlite.JournalStore, error) {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Debug().Str("dsn", dsn).Msg("journal database ready")
	return db, sqlite.NewJournalStore(db), nil
}

// newLogger builds the application logger. The logger itself passes every
// level; the global level filters so that it can change on config reload.
func newLogger(cfg *config.Config, out io.Writer) (zerolog.Logger, io.Closer, error) {
	lc := cfg.Logger()
	lc.Output = out
	lc.Level = zerolog.TraceLevel.String()

	logger, closer, err := logging.New(lc)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	applyLogLevel(cfg.Logging.Level)
	return logger, closer, nil
}

func applyLogLevel(level string) {
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}
