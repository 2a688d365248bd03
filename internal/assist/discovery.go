package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cinevoxhq/cinevox/internal/budget"
	"github.com/cinevoxhq/cinevox/internal/hints"
	"github.com/cinevoxhq/cinevox/internal/observe"
	"github.com/cinevoxhq/cinevox/pkg/provider/llm"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

// MaxSuggestions is the hard cap on suggestions per discovery request. The
// prompt asks the model to stay under it and the parser enforces it.
const MaxSuggestions = 25

const defaultRecordTimeout = 10 * time.Second

const discoveryPrompt = `You help identify movies from vague spoken descriptions.
Given a query and optional extracted hints, respond with a single JSON object:
{"interpretation": "<one sentence restating what the user is looking for>",
 "suggestions": [{"title": "...", "year": 1999, "catalog_id": "", "confidence_tier": "high|medium|low", "justification": "<why this matches>"}]}
Rules:
- At most %d suggestions, ordered from most to least relevant.
- Omit catalog_id unless you are certain of it.
- Use the hints: a year or decade narrows the era, names narrow cast and crew.
- Prefer fewer confident suggestions over many weak ones.`

// Suggestion is one candidate movie from a discovery request.
type Suggestion struct {
	// Title is the movie title. Always non-empty.
	Title string `json:"title"`

	// Year is the release year, when the model knows it.
	Year int `json:"year,omitempty"`

	// CatalogID is an optional catalog identifier.
	CatalogID string `json:"catalog_id,omitempty"`

	// ConfidenceTier is "high", "medium" or "low".
	ConfidenceTier string `json:"confidence_tier"`

	// Justification explains why the suggestion matches the query.
	Justification string `json:"justification,omitempty"`
}

// Result is the outcome of one discovery request.
type Result struct {
	// Suggestions is the parsed candidate list, at most MaxSuggestions,
	// ordered by relevance.
	Suggestions []Suggestion

	// Interpretation restates what the model understood the user to want.
	Interpretation string

	// Usage is the reported token usage.
	Usage llm.Usage

	// CostUSD is the computed cost at the configured rates.
	CostUSD float64
}

// discoveryPayload is the model's JSON contract.
type discoveryPayload struct {
	Interpretation string       `json:"interpretation"`
	Suggestions    []Suggestion `json:"suggestions"`
}

// Orchestrator runs AI-assisted discovery: budget check, LLM call, cost
// accounting and fire-and-forget usage logging.
type Orchestrator struct {
	provider llm.Provider
	guard    *Guard
	ledger   budget.Ledger
	pricing  Pricing
	logger   *slog.Logger
	metrics  *observe.Metrics

	temperature   float64
	maxTokens     int
	recordTimeout time.Duration
}

// OrchestratorOption is a functional option for Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger for usage-recording diagnostics.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithDiscoveryTemperature overrides the default sampling temperature.
func WithDiscoveryTemperature(t float64) OrchestratorOption {
	return func(o *Orchestrator) {
		o.temperature = t
	}
}

// WithDiscoveryMaxTokens overrides the default completion token cap.
func WithDiscoveryMaxTokens(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.maxTokens = n
	}
}

// WithDiscoveryMetrics enables latency, token, cost and rate-limit counters.
func WithDiscoveryMetrics(m *observe.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates an Orchestrator. The guard decides admission, the
// ledger receives usage records; either may be backed by the same service.
func NewOrchestrator(provider llm.Provider, guard *Guard, ledger budget.Ledger, pricing Pricing, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		provider:      provider,
		guard:         guard,
		ledger:        ledger,
		pricing:       pricing,
		logger:        slog.Default(),
		temperature:   0.4,
		maxTokens:     2000,
		recordTimeout: defaultRecordTimeout,
	}
	for _, op := range opts {
		op(o)
	}
	return o
}

// Discover runs one AI-assisted discovery request.
//
// The budget guard is consulted first; a denial fails with RateLimited
// before any LLM call. Success returns the parsed suggestions (capped at
// MaxSuggestions, relevance order preserved) plus the interpretation,
// token usage and computed cost. The request is logged to the usage ledger
// asynchronously; recording failures never affect the returned result.
func (o *Orchestrator) Discover(ctx context.Context, query string, h hints.ExtractedHints) (*Result, error) {
	if o.provider == nil {
		return nil, &ConfigurationError{Setting: "llm credential"}
	}

	if d := o.guard.CheckRateLimit(ctx); !d.Allowed {
		if o.metrics != nil {
			o.metrics.RateLimited.Add(ctx, 1)
		}
		return nil, &RateLimited{Reason: d.Reason}
	}

	start := time.Now()
	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(discoveryPrompt, MaxSuggestions),
		Messages:     []types.Message{userMessage(query, h)},
		Temperature:  o.temperature,
		MaxTokens:    o.maxTokens,
		JSONOnly:     true,
	})
	if err != nil {
		mapped := MapProviderError(err)
		if o.metrics != nil {
			o.metrics.RecordProviderRequest(ctx, "llm", "discovery", statusLabel(mapped))
			o.metrics.RecordProviderError(ctx, "llm", "discovery")
		}
		o.recordAsync(ctx, query, h, nil, llm.Usage{}, 0, time.Since(start), statusLabel(mapped), mapped.Error())
		return nil, mapped
	}

	var payload discoveryPayload
	if err := DecodeModelJSON(resp.Content, &payload); err != nil {
		decErr := &DecodingError{Stage: "payload", Err: err}
		o.recordAsync(ctx, query, h, nil, resp.Usage, 0, time.Since(start), "decoding_error", decErr.Error())
		return nil, decErr
	}

	suggestions := sanitizeSuggestions(payload.Suggestions)
	cost := o.pricing.Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if o.metrics != nil {
		o.metrics.RecordProviderRequest(ctx, "llm", "discovery", "ok")
		o.metrics.DiscoveryDuration.Record(ctx, time.Since(start).Seconds())
		o.metrics.RecordTokens(ctx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		o.metrics.DiscoveryCostUSD.Add(ctx, cost)
	}

	o.recordAsync(ctx, query, h, suggestions, resp.Usage, cost, time.Since(start), "ok", "")

	return &Result{
		Suggestions:    suggestions,
		Interpretation: strings.TrimSpace(payload.Interpretation),
		Usage:          resp.Usage,
		CostUSD:        cost,
	}, nil
}

// sanitizeSuggestions drops entries without a title and enforces the cap,
// preserving the model's relevance order.
func sanitizeSuggestions(in []Suggestion) []Suggestion {
	var out []Suggestion
	for _, s := range in {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		out = append(out, s)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

// recordAsync logs the request to the usage ledger without blocking or
// failing the caller. The record uses a context detached from the request so
// a finished search does not cancel its own accounting.
func (o *Orchestrator) recordAsync(ctx context.Context, query string, h hints.ExtractedHints, suggestions []Suggestion, usage llm.Usage, cost float64, latency time.Duration, status, errMsg string) {
	if o.ledger == nil {
		return
	}

	rec := budget.UsageRecord{
		Query:            query,
		Hints:            h,
		ResultCount:      len(suggestions),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CostUSD:          cost,
		LatencyMS:        latency.Milliseconds(),
		Status:           status,
		ErrorMessage:     errMsg,
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		rctx, cancel := context.WithTimeout(detached, o.recordTimeout)
		defer cancel()
		if err := o.ledger.RecordRequest(rctx, rec); err != nil {
			o.logger.Warn("usage record failed", "error", err, "query", query)
		}
	}()
}

// statusLabel maps an error to a short ledger status string.
func statusLabel(err error) string {
	switch err.(type) {
	case *TransportError:
		return "transport_error"
	case *DecodingError:
		return "decoding_error"
	case *RateLimited:
		return "rate_limited"
	case *ConfigurationError:
		return "configuration_error"
	default:
		return "error"
	}
}

// userMessage builds the user message carrying the query and the hint JSON.
func userMessage(query string, h hints.ExtractedHints) types.Message {
	content := "Query: " + query
	if !h.IsEmpty() {
		if data, err := json.Marshal(h); err == nil {
			content += "\nHints: " + string(data)
		}
	}
	return types.Message{Role: "user", Content: content}
}
