package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cinevoxhq/cinevox/internal/assist"
	"github.com/cinevoxhq/cinevox/internal/command"
	"github.com/cinevoxhq/cinevox/internal/intent"
	"github.com/cinevoxhq/cinevox/internal/resolve"
	"github.com/cinevoxhq/cinevox/pkg/provider/llm"
	llmmock "github.com/cinevoxhq/cinevox/pkg/provider/llm/mock"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

// catalogFunc adapts plain functions to the Catalog interface.
type catalogFunc struct {
	movie       func(ctx context.Context, query string) ([]Movie, error)
	recommended func(ctx context.Context, recommender, movie string) ([]Movie, error)
}

func (c catalogFunc) SearchMovie(ctx context.Context, query string) ([]Movie, error) {
	if c.movie == nil {
		return nil, nil
	}
	return c.movie(ctx, query)
}

func (c catalogFunc) SearchRecommended(ctx context.Context, recommender, movie string) ([]Movie, error) {
	if c.recommended == nil {
		return nil, nil
	}
	return c.recommended(ctx, recommender, movie)
}

// captureSink records every applied outcome.
type captureSink struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (s *captureSink) Apply(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

func (s *captureSink) All() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

type executorFunc func(ctx context.Context, u types.Utterance) error

func (f executorFunc) Execute(ctx context.Context, u types.Utterance) error { return f(ctx, u) }

type importerFunc func(ctx context.Context, u types.Utterance) error

func (f importerFunc) Import(ctx context.Context, u types.Utterance) error { return f(ctx, u) }

// captureAnalytics records events and optionally fails every call.
type captureAnalytics struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (a *captureAnalytics) Record(ctx context.Context, ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return a.err
}

func (a *captureAnalytics) All() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// discoveryResponding builds an orchestrator whose model returns the given
// suggestion titles.
func discoveryResponding(titles ...string) (*assist.Orchestrator, *llmmock.Provider) {
	var b strings.Builder
	b.WriteString(`{"interpretation": "a movie search", "suggestions": [`)
	for i, title := range titles {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"title": "` + title + `", "confidence_tier": "high"}`)
	}
	b.WriteString(`]}`)

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: b.String()},
	}
	return assist.NewOrchestrator(provider, assist.NewGuard(nil), nil, assist.Pricing{}), provider
}

func submitAndWait(t *testing.T, r *Router, text string) {
	t.Helper()
	r.Submit(context.Background(), types.NewUtterance(text))
	r.Wait()
}

func TestRouter_RecommenderSearchRouted(t *testing.T) {
	t.Parallel()

	var gotRecommender, gotMovie string
	catalog := catalogFunc{
		recommended: func(ctx context.Context, recommender, movie string) ([]Movie, error) {
			gotRecommender, gotMovie = recommender, movie
			return []Movie{{ID: "m1", Title: "Babygirl", Year: 2024}}, nil
		},
	}
	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalog, sink)

	submitAndWait(t, r, "Sabrina recommends Babygirl")

	if gotRecommender != "Sabrina" || gotMovie != "Babygirl" {
		t.Errorf("SearchRecommended(%q, %q)", gotRecommender, gotMovie)
	}
	outcomes := sink.All()
	if len(outcomes) != 1 {
		t.Fatalf("sink received %d outcomes, want 1", len(outcomes))
	}
	out := outcomes[0]
	if out.Kind != OutcomeDirect {
		t.Errorf("Kind = %q, want %q", out.Kind, OutcomeDirect)
	}
	if len(out.Movies) != 1 || out.Movies[0].Title != "Babygirl" {
		t.Errorf("Movies = %+v", out.Movies)
	}
	if out.ResolverUsed {
		t.Error("ResolverUsed = true for a deterministic parse")
	}
}

func TestRouter_MovieSearchRouted(t *testing.T) {
	t.Parallel()

	var gotQuery string
	catalog := catalogFunc{
		movie: func(ctx context.Context, query string) ([]Movie, error) {
			gotQuery = query
			return []Movie{{ID: "m2", Title: "Dune"}}, nil
		},
	}
	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalog, sink)

	submitAndWait(t, r, "add Dune to my watchlist")

	if gotQuery != "Dune" {
		t.Errorf("SearchMovie(%q), want %q", gotQuery, "Dune")
	}
	outcomes := sink.All()
	if len(outcomes) != 1 || outcomes[0].Kind != OutcomeDirect {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}

func TestRouter_ResolverFallbackResolvesCommand(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"intent": "movie_search", "movie_title": "Dune Part Two", "recommender": ""}`,
		},
	}

	var gotQuery string
	catalog := catalogFunc{
		movie: func(ctx context.Context, query string) ([]Movie, error) {
			gotQuery = query
			return []Movie{{ID: "m3", Title: "Dune: Part Two"}}, nil
		},
	}
	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalog, sink,
		WithResolver(resolve.New(provider)),
	)

	// No deterministic pattern matches this phrasing.
	submitAndWait(t, r, "dune part two please")

	if n := len(provider.Calls()); n != 1 {
		t.Fatalf("resolver made %d completion calls, want 1", n)
	}
	if gotQuery != "Dune Part Two" {
		t.Errorf("SearchMovie(%q)", gotQuery)
	}
	outcomes := sink.All()
	if len(outcomes) != 1 {
		t.Fatalf("sink received %d outcomes, want 1", len(outcomes))
	}
	if !outcomes[0].ResolverUsed {
		t.Error("ResolverUsed = false, want true")
	}
	if outcomes[0].Command.Kind != command.KindMovieSearch {
		t.Errorf("Command.Kind = %q", outcomes[0].Command.Kind)
	}
}

func TestRouter_ResolverFailureFallsThroughToDiscovery(t *testing.T) {
	t.Parallel()

	resolverProvider := &llmmock.Provider{CompleteErr: errors.New("upstream down")}
	discovery, _ := discoveryResponding("Dune: Part Two")

	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalogFunc{}, sink,
		WithResolver(resolve.New(resolverProvider)),
		WithDiscovery(discovery),
	)

	submitAndWait(t, r, "dune part two please")

	// One attempt, no retry loop.
	if n := len(resolverProvider.Calls()); n != 1 {
		t.Fatalf("resolver made %d completion calls, want 1", n)
	}
	outcomes := sink.All()
	if len(outcomes) != 1 {
		t.Fatalf("sink received %d outcomes, want 1", len(outcomes))
	}
	out := outcomes[0]
	if out.Kind != OutcomeDiscovery {
		t.Fatalf("Kind = %q, want %q (err %v)", out.Kind, OutcomeDiscovery, out.Err)
	}
	if len(out.Suggestions) != 1 || out.Suggestions[0].Title != "Dune: Part Two" {
		t.Errorf("Suggestions = %+v", out.Suggestions)
	}
	if !out.ResolverUsed {
		t.Error("ResolverUsed = false, want true")
	}
}

func TestRouter_FuzzyRoutesToDiscoveryWithHints(t *testing.T) {
	t.Parallel()

	resolverProvider := &llmmock.Provider{}
	discovery, discoveryProvider := discoveryResponding("Cast Away")

	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalogFunc{}, sink,
		WithResolver(resolve.New(resolverProvider)),
		WithDiscovery(discovery),
	)

	submitAndWait(t, r, "the one where a guy gets stranded on an island in 1997")

	if n := len(resolverProvider.Calls()); n != 0 {
		t.Errorf("resolver called %d times for a fuzzy utterance, want 0", n)
	}
	if n := len(discoveryProvider.Calls()); n != 1 {
		t.Fatalf("discovery made %d completion calls, want 1", n)
	}
	outcomes := sink.All()
	if len(outcomes) != 1 {
		t.Fatalf("sink received %d outcomes, want 1", len(outcomes))
	}
	out := outcomes[0]
	if out.Kind != OutcomeDiscovery {
		t.Fatalf("Kind = %q, want %q (err %v)", out.Kind, OutcomeDiscovery, out.Err)
	}
	if out.Intent.Intent != intent.IntentFuzzy {
		t.Errorf("Intent = %q, want %q", out.Intent.Intent, intent.IntentFuzzy)
	}
	if out.Hints.Year != 1997 {
		t.Errorf("Hints.Year = %d, want 1997", out.Hints.Year)
	}
	if len(out.Suggestions) != 1 || out.Suggestions[0].Title != "Cast Away" {
		t.Errorf("Suggestions = %+v", out.Suggestions)
	}
}

func TestRouter_ActionDispatch(t *testing.T) {
	t.Parallel()

	var executed types.Utterance
	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalogFunc{}, sink,
		WithActionExecutor(executorFunc(func(ctx context.Context, u types.Utterance) error {
			executed = u
			return nil
		})),
	)

	submitAndWait(t, r, "mark it watched")

	if executed.Text != "mark it watched" {
		t.Errorf("executed = %q", executed.Text)
	}
	outcomes := sink.All()
	if len(outcomes) != 1 || outcomes[0].Kind != OutcomeAction {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}

func TestRouter_ImportDispatch(t *testing.T) {
	t.Parallel()

	var imported types.Utterance
	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalogFunc{}, sink,
		WithImporter(importerFunc(func(ctx context.Context, u types.Utterance) error {
			imported = u
			return nil
		})),
	)

	submitAndWait(t, r, "import my list from chatgpt")

	if imported.Text != "import my list from chatgpt" {
		t.Errorf("imported = %q", imported.Text)
	}
	outcomes := sink.All()
	if len(outcomes) != 1 || outcomes[0].Kind != OutcomeImport {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}

func TestRouter_MissingHandlersFail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		utterance string
		wantIn    string
	}{
		{name: "no action executor", utterance: "mark it watched", wantIn: "no action handler"},
		{name: "no importer", utterance: "import my list from chatgpt", wantIn: "no import handler"},
		{name: "no discovery", utterance: "the one where a guy gets stranded", wantIn: "no discovery handler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &captureSink{}
			r := NewRouter(intent.DefaultThresholds(), catalogFunc{}, sink)
			submitAndWait(t, r, tt.utterance)

			outcomes := sink.All()
			if len(outcomes) != 1 {
				t.Fatalf("sink received %d outcomes, want 1", len(outcomes))
			}
			out := outcomes[0]
			if out.Kind != OutcomeFailed {
				t.Fatalf("Kind = %q, want %q", out.Kind, OutcomeFailed)
			}
			if out.Err == nil || !strings.Contains(out.Err.Error(), tt.wantIn) {
				t.Errorf("Err = %v, want mention of %q", out.Err, tt.wantIn)
			}
		})
	}
}

func TestRouter_CatalogErrorIsFailedOutcome(t *testing.T) {
	t.Parallel()

	catalogErr := errors.New("catalog unavailable")
	catalog := catalogFunc{
		movie: func(ctx context.Context, query string) ([]Movie, error) {
			return nil, catalogErr
		},
	}
	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalog, sink)

	submitAndWait(t, r, "add Dune to my watchlist")

	outcomes := sink.All()
	if len(outcomes) != 1 {
		t.Fatalf("sink received %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Kind != OutcomeFailed || !errors.Is(outcomes[0].Err, catalogErr) {
		t.Errorf("outcome = %+v", outcomes[0])
	}
}

func TestRouter_AnalyticsRecordedAndFailureAbsorbed(t *testing.T) {
	t.Parallel()

	catalog := catalogFunc{
		movie: func(ctx context.Context, query string) ([]Movie, error) {
			return []Movie{{ID: "m2", Title: "Dune"}}, nil
		},
	}
	analytics := &captureAnalytics{err: errors.New("analytics backend down")}
	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalog, sink,
		WithAnalytics(analytics),
	)

	submitAndWait(t, r, "add Dune to my watchlist")

	// The analytics failure must not reach the sink.
	outcomes := sink.All()
	if len(outcomes) != 1 || outcomes[0].Kind != OutcomeDirect {
		t.Fatalf("outcomes = %+v", outcomes)
	}

	events := analytics.All()
	if len(events) != 1 {
		t.Fatalf("analytics received %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Intent != intent.IntentDirect {
		t.Errorf("Intent = %q", ev.Intent)
	}
	if ev.CommandKind != command.KindMovieSearch {
		t.Errorf("CommandKind = %q", ev.CommandKind)
	}
	if ev.Outcome != OutcomeDirect || ev.ResultCount != 1 || ev.ResolverUsed {
		t.Errorf("event = %+v", ev)
	}
}

func TestRouter_NewSearchSupersedesInFlight(t *testing.T) {
	t.Parallel()

	alphaEntered := make(chan struct{})
	catalog := catalogFunc{
		movie: func(ctx context.Context, query string) ([]Movie, error) {
			if query == "Alpha" {
				close(alphaEntered)
				// Simulate a slow backend: return only once cancelled.
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return []Movie{{ID: "m9", Title: query}}, nil
		},
	}
	sink := &captureSink{}
	r := NewRouter(intent.DefaultThresholds(), catalog, sink)

	r.Submit(context.Background(), types.NewUtterance("add Alpha to my watchlist"))
	select {
	case <-alphaEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("first search never reached the catalog")
	}

	r.Submit(context.Background(), types.NewUtterance("add Beta to my watchlist"))
	r.Wait()

	// The superseded search finishes after its successor, but its outcome
	// must never reach the sink.
	outcomes := sink.All()
	if len(outcomes) != 1 {
		t.Fatalf("sink received %d outcomes, want 1: %+v", len(outcomes), outcomes)
	}
	if got := outcomes[0].Utterance.Text; got != "add Beta to my watchlist" {
		t.Errorf("applied outcome is for %q, want the superseding search", got)
	}
	if outcomes[0].Kind != OutcomeDirect {
		t.Errorf("Kind = %q, want %q", outcomes[0].Kind, OutcomeDirect)
	}
}
