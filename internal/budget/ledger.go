// Package budget defines the remote spend ledger consumed by the discovery
// budget guard and the usage recorder.
//
// The ledger is externally owned: this process never caches its state and
// never reconstructs it locally. Every read is a point-in-time snapshot and
// every discovery call re-checks it.
package budget

import (
	"context"

	"github.com/cinevoxhq/cinevox/internal/hints"
)

// Status is a point-in-time snapshot of the ledger's spend state.
type Status struct {
	// SpentUSD is today's accumulated discovery spend.
	SpentUSD float64 `json:"spent_usd"`

	// CapUSD is the configured daily spend cap.
	CapUSD float64 `json:"cap_usd"`

	// RemainingUSD is CapUSD minus SpentUSD, floored at zero.
	RemainingUSD float64 `json:"remaining_usd"`

	// RequestsToday is the number of discovery requests recorded today.
	RequestsToday int `json:"requests_today"`

	// TokensToday is the total token count recorded today.
	TokensToday int `json:"tokens_today"`

	// SpendRatePerHour is the recent spend rate in USD per hour.
	SpendRatePerHour float64 `json:"spend_rate_per_hour"`
}

// Decision is the ledger's answer to "can a discovery request be made now".
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool `json:"allowed"`

	// Reason is a human-readable explanation, set for denials and for
	// diagnostic allowances.
	Reason string `json:"reason"`

	// Status is the spend snapshot the decision was based on.
	Status Status `json:"status"`
}

// UsageRecord describes one completed discovery request for the ledger.
type UsageRecord struct {
	// Query is the user-visible search text.
	Query string `json:"query"`

	// Hints is the extracted hint set sent with the query.
	Hints hints.ExtractedHints `json:"hints"`

	// ResultCount is the number of suggestions returned.
	ResultCount int `json:"result_count"`

	// IngestedCount is the number of suggestions matched into the catalog.
	IngestedCount int `json:"ingested_count"`

	// PromptTokens and CompletionTokens are the reported token counts.
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	// CostUSD is the computed request cost.
	CostUSD float64 `json:"cost_usd"`

	// LatencyMS is the end-to-end request duration in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// Status is "ok" or a short failure label.
	Status string `json:"status"`

	// ErrorMessage carries failure detail when Status is not "ok".
	ErrorMessage string `json:"error_message,omitempty"`
}

// Ledger is the remote budget ledger. All three operations are network
// calls with independent failure modes; callers decide how failures map to
// user-facing behavior (the guard fails open, usage recording is absorbed).
type Ledger interface {
	// Status returns the current spend snapshot.
	Status(ctx context.Context) (*Status, error)

	// CanMakeRequest asks whether a discovery request may be made now.
	CanMakeRequest(ctx context.Context) (*Decision, error)

	// RecordRequest appends one completed request to the ledger.
	RecordRequest(ctx context.Context, rec UsageRecord) error
}
