// Package resolve implements the LLM fallback for utterances the
// deterministic command parser could not resolve. It makes exactly one
// completion attempt per utterance; retry policy, if any, belongs to the
// caller.
package resolve

import (
	"context"
	"errors"
	"strings"

	"github.com/cinevoxhq/cinevox/internal/assist"
	"github.com/cinevoxhq/cinevox/internal/command"
	"github.com/cinevoxhq/cinevox/pkg/provider/llm"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

// systemPrompt constrains the model to the intent JSON contract. The three
// fields are always present; empty strings mean "not applicable".
const systemPrompt = `You classify one spoken movie-search utterance.
Respond with a single JSON object and nothing else:
{"intent": "<recommender_search|movie_search|unknown>", "movie_title": "<title or empty>", "recommender": "<person or publication or empty>"}
Rules:
- "recommender_search" only when someone is credited with recommending a specific movie; fill both movie_title and recommender.
- "movie_search" when the user wants a specific movie found or added; fill movie_title.
- "unknown" for anything else; leave both fields empty.
Do not invent titles or recommenders that are not in the utterance.`

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 200
)

// intentPayload is the model's JSON contract.
type intentPayload struct {
	Intent      string `json:"intent"`
	MovieTitle  string `json:"movie_title"`
	Recommender string `json:"recommender"`
}

// Resolver resolves utterances through an LLM completion.
type Resolver struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
}

// Option is a functional option for Resolver.
type Option func(*Resolver)

// WithTemperature overrides the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(r *Resolver) {
		r.temperature = t
	}
}

// WithMaxTokens overrides the default completion token cap.
func WithMaxTokens(n int) Option {
	return func(r *Resolver) {
		r.maxTokens = n
	}
}

// New constructs a Resolver. A nil provider is allowed and makes every
// Resolve call fail with ConfigurationError, so an unconfigured deployment
// degrades to parser-only resolution instead of refusing to start.
func New(provider llm.Provider, opts ...Option) *Resolver {
	r := &Resolver{
		provider:    provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve classifies one utterance with a single completion attempt.
//
// The model's verdict maps to a Command: recommender_search with both fields
// non-empty becomes RecommenderSearch, movie_search with a title becomes
// MovieSearch, and everything else is Unknown. Unknown is a legitimate
// result, not an error.
//
// Errors follow the shared taxonomy: ConfigurationError before any network
// call when no provider is configured, TransportError on a non-2xx response,
// DecodingError when the model output is not the expected JSON shape.
func (r *Resolver) Resolve(ctx context.Context, raw types.Utterance) (command.Command, error) {
	if r.provider == nil {
		return command.Unknown(raw), &assist.ConfigurationError{Setting: "llm credential"}
	}

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: raw.Text},
		},
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
		JSONOnly:    true,
	})
	if err != nil {
		return command.Unknown(raw), assist.MapProviderError(err)
	}

	var payload intentPayload
	if err := assist.DecodeModelJSON(resp.Content, &payload); err != nil {
		return command.Unknown(raw), &assist.DecodingError{Stage: "payload", Err: err}
	}
	if payload.Intent == "" {
		return command.Unknown(raw), &assist.DecodingError{
			Stage: "payload",
			Err:   errors.New("missing intent field"),
		}
	}

	return mapPayload(payload, raw), nil
}

// mapPayload converts the model verdict into a Command. An intent value
// outside the contract, or one missing its required fields, is unresolved
// rather than an error: the model answered, it just did not find a command.
func mapPayload(p intentPayload, raw types.Utterance) command.Command {
	movie := strings.TrimSpace(p.MovieTitle)
	recommender := strings.TrimSpace(p.Recommender)

	switch p.Intent {
	case "recommender_search":
		if movie != "" && recommender != "" {
			return command.RecommenderSearch(recommender, movie, raw)
		}
	case "movie_search":
		if movie != "" {
			return command.MovieSearch(movie, raw)
		}
	}
	return command.Unknown(raw)
}
