package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cinevoxhq/cinevox/internal/assist"
	"github.com/cinevoxhq/cinevox/internal/command"
	"github.com/cinevoxhq/cinevox/internal/hints"
	"github.com/cinevoxhq/cinevox/internal/intent"
	"github.com/cinevoxhq/cinevox/internal/observe"
	"github.com/cinevoxhq/cinevox/internal/resolve"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

const defaultRequestTimeout = 30 * time.Second

// Router routes utterances to their handlers. All network-bound stages run
// under a bounded, cancellable context.
type Router struct {
	classifier *intent.Classifier
	parser     *command.Parser
	extractor  *hints.Extractor

	// resolver and discovery are optional; without them unresolved
	// utterances simply stay unresolved.
	resolver  *resolve.Resolver
	discovery *assist.Orchestrator

	catalog   Catalog
	actions   ActionExecutor
	importer  Importer
	analytics Analytics
	sink      Sink

	logger  *slog.Logger
	metrics *observe.Metrics
	timeout time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RouterOption is a functional option for Router.
type RouterOption func(*Router)

// WithResolver enables the LLM fallback for unresolved utterances.
func WithResolver(r *resolve.Resolver) RouterOption {
	return func(rt *Router) {
		rt.resolver = r
	}
}

// WithDiscovery enables AI-assisted discovery for fuzzy searches.
func WithDiscovery(o *assist.Orchestrator) RouterOption {
	return func(rt *Router) {
		rt.discovery = o
	}
}

// WithActionExecutor sets the handler for action-only utterances.
func WithActionExecutor(a ActionExecutor) RouterOption {
	return func(rt *Router) {
		rt.actions = a
	}
}

// WithImporter sets the handler for import utterances.
func WithImporter(i Importer) RouterOption {
	return func(rt *Router) {
		rt.importer = i
	}
}

// WithAnalytics sets the analytics recorder.
func WithAnalytics(a Analytics) RouterOption {
	return func(rt *Router) {
		rt.analytics = a
	}
}

// WithRequestTimeout bounds each search's network work. Default 30s.
func WithRequestTimeout(d time.Duration) RouterOption {
	return func(rt *Router) {
		rt.timeout = d
	}
}

// WithRouterLogger sets the router's logger.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(rt *Router) {
		rt.logger = l
	}
}

// WithRouterMetrics enables per-stage latency and in-flight instruments.
func WithRouterMetrics(m *observe.Metrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

// NewRouter creates a Router. The classifier thresholds, catalog and sink
// are required; handlers for actions, imports, fallback and discovery are
// optional.
func NewRouter(thresholds intent.Thresholds, catalog Catalog, sink Sink, opts ...RouterOption) *Router {
	r := &Router{
		classifier: intent.NewClassifier(thresholds),
		parser:     command.NewParser(),
		extractor:  hints.NewExtractor(),
		catalog:    catalog,
		sink:       sink,
		logger:     slog.Default(),
		timeout:    defaultRequestTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Submit routes one utterance asynchronously. A submission supersedes any
// search still in flight: the previous search's context is cancelled before
// the new one starts, and its outcome will never reach the sink.
func (r *Router) Submit(ctx context.Context, u types.Utterance) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.gen++
	gen := r.gen
	r.cancel = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()
		outcome := r.route(runCtx, u)
		r.apply(runCtx, gen, outcome)
	}()
}

// Wait blocks until all submitted searches have finished. Intended for
// shutdown and tests.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Execute routes one utterance synchronously and returns its outcome. Unlike
// Submit, each call is independent: it does not supersede in-flight searches
// and bypasses the sink. This is the entry point for request/response
// callers such as the HTTP API.
func (r *Router) Execute(ctx context.Context, u types.Utterance) Outcome {
	return r.route(ctx, u)
}

// route executes the full pipeline for one utterance.
func (r *Router) route(ctx context.Context, u types.Utterance) Outcome {
	if r.metrics != nil {
		r.metrics.InFlightSearches.Add(ctx, 1)
		defer r.metrics.InFlightSearches.Add(ctx, -1)
	}

	cls := r.classifier.Classify(u.Text)
	out := Outcome{Utterance: u, Intent: cls}

	switch cls.Intent {
	case intent.IntentActionOnly:
		return r.routeAction(ctx, out)
	case intent.IntentImport:
		return r.routeImport(ctx, out)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// A fuzzy utterance is a description, not a command; parsing it would
	// only produce false positives.
	if cls.Intent == intent.IntentFuzzy {
		return r.routeDiscovery(ctx, out)
	}

	cmd := r.parser.Parse(u)
	if !cmd.IsValid() && r.resolver != nil {
		out.ResolverUsed = true
		resolveStart := time.Now()
		resolved, err := r.resolver.Resolve(ctx, u)
		if r.metrics != nil {
			r.metrics.ResolveDuration.Record(ctx, time.Since(resolveStart).Seconds())
		}
		if err != nil {
			// A failed fallback is treated as if the utterance had been
			// unresolved. One attempt, no fallback loop.
			r.logger.Warn("intent resolver failed", "error", err)
		} else {
			cmd = resolved
		}
	}
	out.Command = cmd

	if cmd.IsValid() {
		return r.routeDirect(ctx, out)
	}
	return r.routeDiscovery(ctx, out)
}

// routeAction dispatches to the external command executor.
func (r *Router) routeAction(ctx context.Context, out Outcome) Outcome {
	out.Kind = OutcomeAction
	if r.actions == nil {
		out.Kind = OutcomeFailed
		out.Err = errNoHandler("action")
		return out
	}
	if err := r.actions.Execute(ctx, out.Utterance); err != nil {
		out.Kind = OutcomeFailed
		out.Err = err
	}
	return out
}

// routeImport dispatches to the list importer.
func (r *Router) routeImport(ctx context.Context, out Outcome) Outcome {
	out.Kind = OutcomeImport
	if r.importer == nil {
		out.Kind = OutcomeFailed
		out.Err = errNoHandler("import")
		return out
	}
	if err := r.importer.Import(ctx, out.Utterance); err != nil {
		out.Kind = OutcomeFailed
		out.Err = err
	}
	return out
}

// routeDirect executes a resolved command against the catalog.
func (r *Router) routeDirect(ctx context.Context, out Outcome) Outcome {
	var (
		movies []Movie
		err    error
	)
	searchStart := time.Now()
	switch out.Command.Kind {
	case command.KindRecommenderSearch:
		movies, err = r.catalog.SearchRecommended(ctx, out.Command.Recommender, out.Command.Movie)
	case command.KindMovieSearch:
		movies, err = r.catalog.SearchMovie(ctx, out.Command.Query)
	}
	if r.metrics != nil {
		r.metrics.SearchDuration.Record(ctx, time.Since(searchStart).Seconds())
	}
	if err != nil {
		out.Kind = OutcomeFailed
		out.Err = err
		return out
	}
	out.Kind = OutcomeDirect
	out.Movies = movies
	return out
}

// routeDiscovery runs hint extraction and AI-assisted discovery for
// utterances with no confident command.
func (r *Router) routeDiscovery(ctx context.Context, out Outcome) Outcome {
	out.Hints = r.extractor.Extract(out.Utterance.Text)

	if r.discovery == nil {
		out.Kind = OutcomeFailed
		out.Err = errNoHandler("discovery")
		return out
	}

	res, err := r.discovery.Discover(ctx, out.Utterance.Text, out.Hints)
	if err != nil {
		out.Kind = OutcomeFailed
		out.Err = err
		return out
	}
	out.Kind = OutcomeDiscovery
	out.Suggestions = res.Suggestions
	out.Interpretation = res.Interpretation
	return out
}

// apply delivers the outcome to the sink unless the search was superseded.
// This is the single gate for all post-await side effects.
func (r *Router) apply(ctx context.Context, gen uint64, outcome Outcome) {
	r.mu.Lock()
	stale := r.gen != gen
	r.mu.Unlock()
	if stale {
		r.logger.Debug("discarding superseded search outcome", "utterance", outcome.Utterance.Text)
		return
	}

	r.sink.Apply(outcome)
	r.recordAnalytics(ctx, outcome)
}

// recordAnalytics sends the routing event, absorbing failures.
func (r *Router) recordAnalytics(ctx context.Context, outcome Outcome) {
	if r.analytics == nil {
		return
	}
	ev := Event{
		Utterance:    outcome.Utterance.Text,
		Intent:       outcome.Intent.Intent,
		Confidence:   outcome.Intent.Confidence,
		CommandKind:  outcome.Command.Kind,
		Outcome:      outcome.Kind,
		ResolverUsed: outcome.ResolverUsed,
		ResultCount:  len(outcome.Movies) + len(outcome.Suggestions),
	}
	if err := r.analytics.Record(ctx, ev); err != nil {
		r.logger.Warn("analytics record failed", "error", err)
	}
}

// errNoHandler is the outcome error when a stage has no configured handler.
type errNoHandler string

func (e errNoHandler) Error() string {
	return "pipeline: no " + string(e) + " handler configured"
}
