// Package app wires all railvox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API, and Shutdown tears everything down in
// order.
//
// For testing, inject doubles via functional options (WithSessionStore,
// WithBackend, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/railvox/internal/assistant"
	"github.com/MrWong99/railvox/internal/config"
	"github.com/MrWong99/railvox/internal/health"
	"github.com/MrWong99/railvox/internal/nlu"
	"github.com/MrWong99/railvox/internal/observe"
	"github.com/MrWong99/railvox/internal/railway"
	"github.com/MrWong99/railvox/internal/resilience"
	"github.com/MrWong99/railvox/internal/respond"
	"github.com/MrWong99/railvox/internal/server"
	"github.com/MrWong99/railvox/internal/session"
	"github.com/MrWong99/railvox/internal/storage"
	"github.com/MrWong99/railvox/pkg/provider/embeddings"
	"github.com/MrWong99/railvox/pkg/provider/embeddings/cache"
	"github.com/MrWong99/railvox/pkg/provider/embeddings/cache/pgstore"
	"github.com/MrWong99/railvox/pkg/provider/embeddings/hashing"
	"github.com/MrWong99/railvox/pkg/provider/stt"
	"github.com/MrWong99/railvox/pkg/provider/translate"
	"github.com/MrWong99/railvox/pkg/provider/tts"
)

const (
	defaultListenAddr  = ":8080"
	defaultIdleTimeout = 30 * time.Minute
	defaultCacheSize   = 4096
	pruneInterval      = time.Hour
)

// Named pairs a provider with the config name it was created from.
type Named[T any] struct {
	Name     string
	Provider T
}

// Providers holds the provider instances built from the config registry.
// A nil Embeddings selects the local hashing embedder; empty chains disable
// the stage. The first entry of a chain is the primary, the rest are
// fallbacks in order.
type Providers struct {
	Embeddings embeddings.Provider
	STT        []Named[stt.Transcriber]
	Translate  []Named[translate.Translator]
	TTS        []Named[tts.Synthesizer]
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Injected or built in New.
	metrics        *observe.Metrics
	metricsHandler http.Handler
	level          *slog.LevelVar
	backend        railway.Service
	store          session.Store

	pools      map[string]*pgxpool.Pool
	memStore   *session.MemStore
	embedCache *pgstore.Store
	sessions   *session.Guard
	engine     *nlu.Engine
	assistant  *assistant.Assistant
	checks     []health.Checker
	health     *health.Handler
	server     *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSessionStore injects a session store instead of creating one from
// config. It is still wrapped in a [session.Guard].
func WithSessionStore(s session.Store) Option {
	return func(a *App) { a.store = s }
}

// WithBackend injects the train-data service instead of creating the mock or
// HTTP client from config.
func WithBackend(b railway.Service) Option {
	return func(a *App) { a.backend = b }
}

// WithMetrics sets the instruments recorded into. Default:
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar lets [App.Reload] change the log level of the logger built
// on lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles.
//
// New performs all initialisation synchronously: database connections and
// migrations, embedding of the intent examples, and assembly of the
// pipeline and HTTP handler.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		pools:     make(map[string]*pgxpool.Pool),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"nlu", a.initNLU},
		{"sessions", a.initSessions},
		{"backend", a.initBackend},
		{"assistant", a.initAssistant},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			// Release what earlier steps opened.
			a.runClosers()
			return nil, fmt.Errorf("app: init %s: %w", s.name, err)
		}
	}
	a.initHealth()
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// pool returns the shared pool for dsn, connecting on first use.
func (a *App) pool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if p, ok := a.pools[dsn]; ok {
		return p, nil
	}
	p, err := storage.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	a.pools[dsn] = p
	a.closers = append(a.closers, func() error {
		p.Close()
		return nil
	})
	return p, nil
}

// initNLU builds the cached embedder, the classifier and the engine.
func (a *App) initNLU(ctx context.Context) error {
	emb, err := a.embedder(ctx)
	if err != nil {
		return err
	}

	g, err := nlu.NewGazetteer(a.cfg.NLU.StationNames())
	if err != nil {
		return err
	}
	var mopts []nlu.MatcherOption
	if t := a.cfg.NLU.FuzzyThreshold; t > 0 {
		mopts = append(mopts, nlu.WithFuzzyThreshold(t))
	}

	examples := nlu.DefaultExamples().Merge(a.cfg.NLU.IntentExamples())
	var copts []nlu.ClassifierOption
	if c := a.cfg.NLU.MinConfidence; c > 0 {
		copts = append(copts, nlu.WithMinConfidence(c))
	}
	start := time.Now()
	classifier, err := nlu.NewClassifier(ctx, emb, examples, copts...)
	if err != nil {
		return err
	}
	slog.Info("intent classifier ready",
		"model", emb.ModelID(),
		"stations", g.Len(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	a.engine = nlu.NewEngine(classifier, nlu.NewResolver(nlu.NewMatcher(g, mopts...)))
	return nil
}

// embedder returns the configured embeddings provider behind the cache
// layers.
func (a *App) embedder(ctx context.Context) (embeddings.Provider, error) {
	emb := a.providers.Embeddings
	if emb == nil {
		h, err := hashing.New(0)
		if err != nil {
			return nil, err
		}
		emb = h
		slog.Info("no embeddings provider configured, using local hashing embedder")
	}

	cc := a.cfg.Cache
	if cc.Size < 0 {
		return emb, nil
	}
	size := cc.Size
	if size == 0 {
		size = defaultCacheSize
	}
	copts := []cache.Option{cache.WithSize(size), cache.WithTTL(cc.TTL)}
	if cc.PostgresDSN != "" {
		p, err := a.pool(ctx, cc.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store := pgstore.New(p)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		a.embedCache = store
		copts = append(copts, cache.WithStore(store))
	}
	return cache.New(emb, copts...)
}

// initSessions picks the session store and wraps it in a guard.
func (a *App) initSessions(ctx context.Context) error {
	sc := a.cfg.Session
	if a.store == nil {
		if sc.PostgresDSN != "" {
			p, err := a.pool(ctx, sc.PostgresDSN)
			if err != nil {
				return err
			}
			ps := session.NewPostgresStore(p, sc.DefaultOrigin)
			if err := ps.Migrate(ctx); err != nil {
				return err
			}
			a.store = ps
		} else {
			a.memStore = session.NewMemStore(sc.DefaultOrigin)
			a.store = a.memStore
		}
	}
	a.sessions = session.NewGuard(a.store, sc.DefaultOrigin)
	return nil
}

// initBackend creates the HTTP client or the seeded mock.
func (a *App) initBackend(context.Context) error {
	if a.backend != nil {
		return nil
	}
	bc := a.cfg.Backend
	if bc.URL == "" {
		a.backend = railway.NewMock(bc.Seed, railway.WithStations(a.cfg.NLU.StationNames()))
		slog.Info("using mock train-data backend", "seed", bc.Seed)
		return nil
	}
	var opts []railway.ClientOption
	if bc.Token != "" {
		opts = append(opts, railway.WithToken(bc.Token))
	}
	c, err := railway.NewClient(bc.URL, opts...)
	if err != nil {
		return err
	}
	a.backend = c
	slog.Info("using remote train-data backend", "url", bc.URL)
	return nil
}

// initAssistant wraps the providers in circuit breakers and assembles the
// pipeline and the HTTP server.
func (a *App) initAssistant(context.Context) error {
	formatter, err := respond.NewFormatter(a.cfg.Respond.Overrides())
	if err != nil {
		return err
	}
	opts := []assistant.Option{
		assistant.WithSessions(a.sessions),
		assistant.WithFormatter(formatter),
		assistant.WithMetrics(a.metrics),
	}

	fc := a.fallbackConfig()
	if chain := a.providers.STT; len(chain) > 0 {
		t := resilience.NewTranscriber(chain[0].Provider, chain[0].Name, fc)
		for _, fb := range chain[1:] {
			t.AddFallback(fb.Name, fb.Provider)
		}
		opts = append(opts, assistant.WithTranscriber(t))
	}
	if chain := a.providers.Translate; len(chain) > 0 {
		t := resilience.NewTranslator(chain[0].Provider, chain[0].Name, fc)
		for _, fb := range chain[1:] {
			t.AddFallback(fb.Name, fb.Provider)
		}
		t.PassThrough(!a.cfg.Resilience.DisablePassThrough)
		opts = append(opts, assistant.WithTranslator(t))
		a.breakerCheck("translate", t.Group().States)
	}
	if chain := a.providers.TTS; len(chain) > 0 {
		s := resilience.NewSynthesizer(chain[0].Provider, chain[0].Name, fc)
		for _, fb := range chain[1:] {
			s.AddFallback(fb.Name, fb.Provider)
		}
		opts = append(opts, assistant.WithSynthesizer(s))
		a.breakerCheck("tts", s.Group().States)
	}

	a.assistant, err = assistant.New(a.engine, a.backend, opts...)
	return err
}

func (a *App) fallbackConfig() resilience.FallbackConfig {
	rc := a.cfg.Resilience
	return resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		MaxFailures:  rc.MaxFailures,
		ResetTimeout: rc.ResetTimeout,
		HalfOpenMax:  rc.HalfOpenMax,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("circuit breaker state changed", "provider", name, "from", from, "to", to)
			a.metrics.RecordBreakerTransition(name, to.String())
		},
	}}
}

var errAllOpen = errors.New("every circuit breaker is open")

// breakerCheck registers an optional readiness check that fails while every
// breaker of a provider chain is open.
func (a *App) breakerCheck(name string, states func() map[string]resilience.State) {
	a.checks = append(a.checks, health.Checker{
		Name:     name,
		Optional: true,
		Check: func(context.Context) error {
			for _, s := range states() {
				if s != resilience.StateOpen {
					return nil
				}
			}
			return errAllOpen
		},
	})
}

// initHealth assembles the readiness checks and the HTTP server.
func (a *App) initHealth() {
	checks := []health.Checker{{
		Name:     "sessions",
		Optional: true,
		Check: func(context.Context) error {
			if a.sessions.IsDegraded() {
				return errors.New("session store is failing")
			}
			return nil
		},
	}}
	for dsn, p := range a.pools {
		checks = append(checks, health.Checker{
			Name:  "postgres:" + redactDSN(dsn),
			Check: func(ctx context.Context) error { return storage.Ping(ctx, p) },
		})
	}
	a.health = health.New(append(checks, a.checks...)...)

	srv := server.New(a.assistant, a.cfg.NLU.StationNames(),
		server.WithHealth(a.health),
		server.WithMetricsHandler(a.metricsHandler),
		server.WithMetrics(a.metrics),
	)
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	a.server = &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Assistant returns the query pipeline, for one-shot use without the HTTP
// server.
func (a *App) Assistant() *assistant.Assistant { return a.assistant }

// Handler returns the HTTP handler served by Run.
func (a *App) Handler() http.Handler { return a.server.Handler }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the HTTP API and the background maintenance loops until ctx is
// cancelled. It returns ctx.Err() after a clean stop, or the first
// listener error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is like Run but accepts connections on ln.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.memStore != nil {
		idle := a.cfg.Session.IdleTimeout
		if idle <= 0 {
			idle = defaultIdleTimeout
		}
		g.Go(func() error {
			a.memStore.RunEvictor(gctx, idle/4, idle)
			return nil
		})
	}
	if a.embedCache != nil && a.cfg.Cache.TTL > 0 {
		g.Go(func() error {
			a.pruneEmbeddings(gctx)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	// Stop the server once ctx is done or the listener failed.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// pruneEmbeddings drops persisted vectors older than the cache TTL.
func (a *App) pruneEmbeddings(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.embedCache.Prune(ctx, a.cfg.Cache.TTL)
			if err != nil {
				slog.Warn("failed to prune embedding cache", "err", err)
				continue
			}
			slog.Debug("pruned embedding cache", "removed", n)
		}
	}
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of a changed config: the log
// level and the reply templates. Other changes are logged as needing a
// restart. It is the callback for [config.Watcher].
func (a *App) Reload(old, cur *config.Config) {
	d := config.Diff(old, cur)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(observe.ParseLevel(string(d.NewLogLevel)))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.TemplatesChanged {
		f, err := respond.NewFormatter(cur.Respond.Overrides())
		if err != nil {
			slog.Error("failed to reload reply templates", "err", err)
		} else {
			a.assistant.SetFormatter(f)
			slog.Info("reply templates reloaded", "overrides", len(cur.Respond.Templates))
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config sections changed that need a restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server and closes all subsystems. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) runClosers() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
	a.closers = nil
}

func (a *App) shutdownTimeout() time.Duration {
	if d := a.cfg.Server.ShutdownTimeout; d > 0 {
		return d
	}
	return 15 * time.Second
}

// redactDSN keeps the host part of a postgres DSN for check names.
func redactDSN(dsn string) string {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return "invalid"
	}
	return fmt.Sprintf("%s:%d/%s", cfg.ConnConfig.Host, cfg.ConnConfig.Port, cfg.ConnConfig.Database)
}
