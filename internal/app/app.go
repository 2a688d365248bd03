// Package app wires all Cinevox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject collaborators via functional options (WithLedger,
// WithCatalog, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/cinevoxhq/cinevox/internal/api"
	"github.com/cinevoxhq/cinevox/internal/assist"
	"github.com/cinevoxhq/cinevox/internal/budget"
	"github.com/cinevoxhq/cinevox/internal/capture"
	"github.com/cinevoxhq/cinevox/internal/config"
	"github.com/cinevoxhq/cinevox/internal/health"
	"github.com/cinevoxhq/cinevox/internal/observe"
	"github.com/cinevoxhq/cinevox/internal/pipeline"
	"github.com/cinevoxhq/cinevox/internal/resolve"
	"github.com/cinevoxhq/cinevox/pkg/audio"
	"github.com/cinevoxhq/cinevox/pkg/provider/llm"
	"github.com/cinevoxhq/cinevox/pkg/provider/stt"
)

// readHeaderTimeout bounds how long a client may take to send headers.
const readHeaderTimeout = 10 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM   llm.Provider
	STT   stt.Provider
	Audio audio.Platform
}

// App owns all subsystem lifetimes and orchestrates the Cinevox search
// pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Collaborators, injected or built in New.
	ledger    budget.Ledger
	catalog   pipeline.Catalog
	sink      pipeline.Sink
	actions   pipeline.ActionExecutor
	importer  pipeline.Importer
	analytics pipeline.Analytics
	metrics   *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	router  *pipeline.Router
	machine *capture.Machine
	server  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLedger injects a budget ledger instead of creating one from config.
func WithLedger(l budget.Ledger) Option {
	return func(a *App) { a.ledger = l }
}

// WithCatalog injects the movie catalog collaborator.
func WithCatalog(c pipeline.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithSink injects the outcome sink for capture-driven searches.
func WithSink(s pipeline.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithActionExecutor injects the handler for action-only utterances.
func WithActionExecutor(e pipeline.ActionExecutor) Option {
	return func(a *App) { a.actions = e }
}

// WithImporter injects the handler for list-import utterances.
func WithImporter(i pipeline.Importer) Option {
	return func(a *App) { a.importer = i }
}

// WithAnalytics injects the analytics recorder.
func WithAnalytics(an pipeline.Analytics) Option {
	return func(a *App) { a.analytics = an }
}

// WithMetrics injects a metrics instance instead of using the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any collaborator.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initLedger(ctx); err != nil {
		return nil, fmt.Errorf("app: init ledger: %w", err)
	}
	a.initDefaults()
	a.initRouter()
	a.initCapture()
	a.initServer()

	return a, nil
}

// initLedger builds the budget ledger from config unless one was injected.
// A deployment with no ledger section runs unmetered: the guard fails open on
// every check.
func (a *App) initLedger(ctx context.Context) error {
	if a.ledger != nil {
		return nil
	}

	switch {
	case a.cfg.Budget.LedgerURL != "":
		client, err := budget.NewClient(a.cfg.Budget.LedgerURL)
		if err != nil {
			return err
		}
		a.ledger = client
		slog.Info("budget ledger connected", "backend", "http", "url", a.cfg.Budget.LedgerURL)

	case a.cfg.Budget.PostgresDSN != "":
		pool, err := pgxpool.New(ctx, a.cfg.Budget.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect ledger database: %w", err)
		}
		ledger, err := budget.NewPostgresLedger(pool, a.cfg.Budget.DailyCapUSD)
		if err != nil {
			pool.Close()
			return err
		}
		if err := ledger.Migrate(ctx); err != nil {
			pool.Close()
			return err
		}
		a.ledger = ledger
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		slog.Info("budget ledger connected", "backend", "postgres", "daily_cap_usd", a.cfg.Budget.DailyCapUSD)

	default:
		slog.Warn("no budget ledger configured, discovery runs unmetered")
	}
	return nil
}

// initDefaults fills collaborator slots that were not injected.
func (a *App) initDefaults() {
	if a.catalog == nil {
		a.catalog = unconfiguredCatalog{}
	}
	if a.sink == nil {
		a.sink = logSink{logger: slog.Default()}
	}
}

// initRouter builds the utterance pipeline router.
func (a *App) initRouter() {
	guard := assist.NewGuard(a.ledger,
		assist.WithCheckTimeout(a.cfg.Budget.CheckTimeoutDuration()),
	)
	pricing := assist.Pricing{
		InputPerMillionUSD:  a.cfg.Discovery.InputPerMillionUSD,
		OutputPerMillionUSD: a.cfg.Discovery.OutputPerMillionUSD,
	}

	discoveryOpts := []assist.OrchestratorOption{assist.WithDiscoveryMetrics(a.metrics)}
	if a.cfg.Discovery.Temperature > 0 {
		discoveryOpts = append(discoveryOpts, assist.WithDiscoveryTemperature(a.cfg.Discovery.Temperature))
	}
	if a.cfg.Discovery.MaxTokens > 0 {
		discoveryOpts = append(discoveryOpts, assist.WithDiscoveryMaxTokens(a.cfg.Discovery.MaxTokens))
	}
	discovery := assist.NewOrchestrator(a.providers.LLM, guard, a.ledger, pricing, discoveryOpts...)

	routerOpts := []pipeline.RouterOption{
		pipeline.WithResolver(resolve.New(a.providers.LLM)),
		pipeline.WithDiscovery(discovery),
		pipeline.WithRequestTimeout(a.cfg.Discovery.RequestTimeoutDuration()),
		pipeline.WithRouterMetrics(a.metrics),
	}
	if a.actions != nil {
		routerOpts = append(routerOpts, pipeline.WithActionExecutor(a.actions))
	}
	if a.importer != nil {
		routerOpts = append(routerOpts, pipeline.WithImporter(a.importer))
	}
	if a.analytics != nil {
		routerOpts = append(routerOpts, pipeline.WithAnalytics(a.analytics))
	}

	a.router = pipeline.NewRouter(a.cfg.Pipeline.Thresholds(), a.catalog, a.sink, routerOpts...)
}

// initCapture builds the speech capture machine when both an audio platform
// and an STT provider are available.
func (a *App) initCapture() {
	if a.providers.Audio == nil || a.providers.STT == nil {
		slog.Info("speech capture disabled", "audio", a.providers.Audio != nil, "stt", a.providers.STT != nil)
		return
	}
	a.machine = capture.NewMachine(
		a.providers.Audio,
		a.providers.STT,
		audio.StreamConfig{SampleRate: 16000, Channels: 1},
		stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en"},
		capture.WithMetrics(a.metrics),
	)
}

// initServer builds the HTTP surface.
func (a *App) initServer() {
	// Providers are optional subsystems; an absent one must not fail
	// readiness, so only configured providers get a checker.
	checkers := []health.Checker{health.LedgerChecker(a.ledger)}
	if a.providers.LLM != nil {
		checkers = append(checkers, health.ProviderChecker("llm", true))
	}
	if a.providers.STT != nil {
		checkers = append(checkers, health.ProviderChecker("stt", true))
	}
	checker := health.New(checkers...)

	apiOpts := []api.Option{
		api.WithHealth(checker),
		api.WithMetrics(a.metrics),
	}
	if a.ledger != nil {
		apiOpts = append(apiOpts, api.WithLedger(a.ledger))
	}
	srv := api.New(a.router, apiOpts...)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// Router returns the utterance pipeline router.
func (a *App) Router() *pipeline.Router {
	return a.router
}

// Capture returns the speech capture machine, or nil when capture is
// disabled.
func (a *App) Capture() *capture.Machine {
	return a.machine
}

// Handler returns the HTTP route table. Intended for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until ctx is cancelled, then drains in-flight searches.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		if a.machine != nil {
			if _, err := a.machine.Stop(ctx); err != nil {
				slog.Warn("capture stop error", "err", err)
			}
		}

		// Let detached search goroutines deliver or discard their outcomes.
		a.router.Wait()

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

// unconfiguredCatalog is the default catalog collaborator: every search
// fails until a real backend is wired in.
type unconfiguredCatalog struct{}

func (unconfiguredCatalog) SearchMovie(context.Context, string) ([]pipeline.Movie, error) {
	return nil, errors.New("catalog: no backend configured")
}

func (unconfiguredCatalog) SearchRecommended(context.Context, string, string) ([]pipeline.Movie, error) {
	return nil, errors.New("catalog: no backend configured")
}

// logSink logs capture-driven outcomes. The HTTP path returns outcomes
// synchronously and never reaches it.
type logSink struct {
	logger *slog.Logger
}

func (s logSink) Apply(outcome pipeline.Outcome) {
	s.logger.Info("search outcome",
		"kind", outcome.Kind,
		"intent", outcome.Intent.Intent,
		"command", outcome.Command.Kind,
		"movies", len(outcome.Movies),
		"suggestions", len(outcome.Suggestions),
		"err", outcome.Err,
	)
}
