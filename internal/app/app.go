// Package app wires all leadscout subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens the record store and
// builds the query pipeline, dialogs and Discord handlers, Run serves until
// the context ends, and Shutdown tears everything down in reverse order.
//
// For testing, inject doubles via functional options (WithStore,
// WithSession). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/leadscout/internal/analysis"
	"github.com/MrWong99/leadscout/internal/config"
	"github.com/MrWong99/leadscout/internal/dialog"
	"github.com/MrWong99/leadscout/internal/discord"
	"github.com/MrWong99/leadscout/internal/discord/commands"
	"github.com/MrWong99/leadscout/internal/health"
	"github.com/MrWong99/leadscout/internal/leadstore"
	"github.com/MrWong99/leadscout/internal/observe"
	"github.com/MrWong99/leadscout/internal/query"
)

// catalogTimeout bounds the store lookups made when a dialog starts.
const catalogTimeout = 5 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      atomic.Pointer[config.Config]
	registry *config.Registry
	level    *slog.LevelVar
	watcher  *config.Watcher

	// Subsystems, initialised in New and torn down in Shutdown.
	telemetry *observe.Provider
	metrics   *observe.Metrics
	store     leadstore.Store
	pipeline  *query.Pipeline
	runner    *analysis.Runner
	bot       *discord.Bot
	session   discord.Session
	router    *discord.CommandRouter
	messenger *discord.Messenger
	dialogs   *dialog.Service
	analysis  *commands.AnalysisCommands
	handler   http.Handler

	// listening is closed once the HTTP listener is bound.
	listening chan struct{}
	addr      atomic.Value // string

	// closers are called in reverse order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a record store instead of opening one from the config.
// The caller keeps ownership of it.
func WithStore(s leadstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSession injects a Discord session instead of connecting a bot. The
// caller feeds interactions and messages through [App.Router].
func WithSession(s discord.Session) Option {
	return func(a *App) { a.session = s }
}

// WithLevelVar lets hot reloads adjust the level of the caller's logger.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithWatcher runs w alongside the application. Its change callback should
// forward to [App.ApplyChange].
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// New creates an App by wiring all subsystems together. reg opens the
// record store and may be nil when [WithStore] is given.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		registry:  reg,
		listening: make(chan struct{}),
	}
	a.cfg.Store(cfg)
	for _, o := range opts {
		o(a)
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
	}
	a.level.Set(cfg.Server.LogLevel.Slog())

	if err := a.initTelemetry(ctx); err != nil {
		_ = a.closeAll(ctx)
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	if err := a.initStore(ctx); err != nil {
		_ = a.closeAll(ctx)
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.pipeline = query.New(query.Config{
		Store:              a.store,
		IncludeUnprocessed: cfg.Store.IncludeUnprocessed,
		Limit:              cfg.Output.Limit,
		ChunkSize:          cfg.Output.ChunkSize,
		Networks:           cfg.Dialog.Networks,
		Metrics:            a.metrics,
	})
	a.runner = analysis.NewRunner(analysis.Config{
		Command: cfg.Analysis.Command,
		Dir:     cfg.Analysis.Dir,
		Timeout: cfg.Analysis.Timeout,
		Metrics: a.metrics,
	})

	if err := a.initDiscord(ctx); err != nil {
		_ = a.closeAll(ctx)
		return nil, fmt.Errorf("app: init discord: %w", err)
	}
	a.initHTTP()

	slog.Info("app initialised",
		"store", cfg.Store.Backend,
		"fallbacks", len(cfg.Store.Fallbacks),
		"discord", a.router != nil,
		"analysis", a.runner.Configured(),
	)
	return a, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	cfg := a.cfg.Load()
	p, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: cfg.Telemetry.ServiceName})
	if err != nil {
		return err
	}
	a.telemetry = p
	a.closers = append(a.closers, p.Shutdown)

	a.metrics, err = observe.NewMetrics(p.Meter)
	return err
}

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if a.registry == nil {
		return errors.New("no store registry")
	}
	s, closeFn, err := a.registry.OpenStore(ctx, a.cfg.Load().Store, a.metrics)
	if err != nil {
		return err
	}
	a.store = s
	a.closers = append(a.closers, func(context.Context) error { return closeFn() })
	return nil
}

// initDiscord connects the bot (unless a session was injected) and
// registers every command. Without a token or session the app serves only
// HTTP.
func (a *App) initDiscord(ctx context.Context) error {
	cfg := a.cfg.Load()
	perms := discord.NewPermissionChecker(cfg.Discord.AnalystRoleID)

	switch {
	case a.session != nil:
		a.router = discord.NewCommandRouter()
	case cfg.Discord.Token != "":
		bot, err := discord.New(ctx, discord.Config{
			Token:         cfg.Discord.Token,
			GuildID:       cfg.Discord.GuildID,
			AnalystRoleID: cfg.Discord.AnalystRoleID,
		})
		if err != nil {
			return err
		}
		a.bot = bot
		a.session = bot.Session()
		a.router = bot.Router()
		perms = bot.Permissions()
		a.closers = append(a.closers, func(context.Context) error { return bot.Close() })
	default:
		slog.Warn("discord disabled; no token configured")
		return nil
	}

	a.messenger = discord.NewMessenger(a.session, cfg.Output.SendDelay)
	a.dialogs = dialog.NewService(dialog.ServiceConfig{
		Messenger:   a.messenger,
		Querier:     a.pipeline,
		Catalog:     a.catalog,
		MaxSessions: cfg.Dialog.MaxSessions,
		IdleTimeout: cfg.Dialog.SessionTTL,
		Metrics:     a.metrics,
	})
	a.analysis = commands.NewAnalysisCommands(a.runner, perms)

	commands.NewFilterCommands(a.dialogs).Register(a.router)
	commands.NewLeadsCommands(a.pipeline, a.messenger).Register(a.router)
	a.analysis.Register(a.router)
	commands.HelpCommands{}.Register(a.router)
	return nil
}

func (a *App) initHTTP() {
	checks := []health.Checker{health.Ping("store", a.store)}
	if a.bot != nil {
		checks = append(checks, health.Flag("discord", a.bot.Connected, "gateway disconnected"))
	}

	mux := http.NewServeMux()
	health.New(checks...).Register(mux)
	mux.Handle("GET /metrics", a.telemetry.Handler())
	a.handler = observe.Middleware(a.metrics)(mux)
}

// catalog lists the options for a new dialog. Store regions replace the
// configured ones; fuel types are the configured keywords plus whatever the
// store has seen.
func (a *App) catalog(ctx context.Context) dialog.Catalog {
	cfg := a.cfg.Load()
	cat := dialog.Catalog{
		Regions:   cfg.Dialog.Regions,
		FuelTypes: cfg.Dialog.FuelTypes,
		Networks:  cfg.Dialog.Networks,
	}

	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	if regions, err := a.store.Regions(ctx); err != nil {
		slog.Warn("catalog: regions unavailable, using configured list", "err", err)
	} else if len(regions) > 0 {
		cat.Regions = regions
	}
	if fuels, err := a.store.FuelTypes(ctx); err != nil {
		slog.Warn("catalog: fuel types unavailable, using configured list", "err", err)
	} else {
		merged := slices.Concat(cfg.Dialog.FuelTypes, fuels)
		slices.Sort(merged)
		cat.FuelTypes = slices.Compact(merged)
	}
	return cat
}

// Config returns the config currently in effect.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// Pipeline returns the query pipeline.
func (a *App) Pipeline() *query.Pipeline { return a.pipeline }

// Router returns the Discord command router, or nil when Discord is
// disabled.
func (a *App) Router() *discord.CommandRouter { return a.router }

// Handler returns the HTTP handler serving health and metrics.
func (a *App) Handler() http.Handler { return a.handler }

// Addr blocks until the HTTP listener is bound and returns its address,
// or returns "" when ctx ends first.
func (a *App) Addr(ctx context.Context) string {
	select {
	case <-a.listening:
		s, _ := a.addr.Load().(string)
		return s
	case <-ctx.Done():
		return ""
	}
}

// ApplyChange applies the hot-reloadable parts of a config change. It is
// meant as the [config.Watcher] callback.
func (a *App) ApplyChange(_, new *config.Config, d config.ConfigDiff) {
	a.cfg.Store(new)
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.OutputChanged || d.CatalogChanged {
		a.pipeline.SetOutput(new.Output.Limit, new.Output.ChunkSize, new.Dialog.Networks)
	}
	if d.OutputChanged && a.messenger != nil {
		a.messenger.SetSendDelay(new.Output.SendDelay)
	}
	for _, nd := range d.NetworkChanges {
		slog.Info("network catalog changed", "slug", nd.Slug, "added", nd.Added, "removed", nd.Removed, "renamed", nd.Renamed)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP, reaps idle dialogs, polls the config and keeps the bot
// connected until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfg.Load()
	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", cfg.Server.ListenAddr, err)
	}
	a.addr.Store(ln.Addr().String())
	close(a.listening)

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if a.dialogs != nil {
		g.Go(func() error {
			a.dialogs.Run(ctx)
			return nil
		})
	}
	if a.watcher != nil {
		g.Go(func() error {
			a.watcher.Run(ctx)
			return nil
		})
	}
	if a.bot != nil {
		g.Go(func() error { return a.bot.Run(ctx) })
	}

	slog.Info("app running", "addr", ln.Addr().String())
	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown waits for background analysis reports to be posted and then
// tears down all subsystems in reverse init order. If ctx expires first, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.analysis != nil {
			done := make(chan struct{})
			go func() {
				a.analysis.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				slog.Warn("shutdown: analysis report still pending")
			}
		}

		shutdownErr = a.closeAll(ctx)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll(ctx context.Context) error {
	for i, closer := range slices.Backward(a.closers) {
		select {
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded", "remaining", i+1)
			return ctx.Err()
		default:
		}
		if err := closer(ctx); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
	return nil
}
