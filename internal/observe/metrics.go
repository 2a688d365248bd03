// Package observe provides application-wide observability primitives for
// Cinevox: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Cinevox metrics.
const meterName = "github.com/cinevoxhq/cinevox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// CaptureDuration tracks speech capture length, from Start to Stop.
	CaptureDuration metric.Float64Histogram

	// ResolveDuration tracks LLM intent-resolution latency.
	ResolveDuration metric.Float64Histogram

	// DiscoveryDuration tracks AI-assisted discovery latency.
	DiscoveryDuration metric.Float64Histogram

	// SearchDuration tracks catalog search latency.
	SearchDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts routed utterances. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("outcome", ...)
	Utterances metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// TokensUsed counts LLM tokens. Use with attribute:
	//   attribute.String("direction", "prompt"|"completion")
	TokensUsed metric.Int64Counter

	// RateLimited counts discovery requests denied by the budget guard.
	RateLimited metric.Int64Counter

	// DiscoveryCostUSD accumulates the computed cost of discovery requests.
	DiscoveryCostUSD metric.Float64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveCaptures tracks the number of live capture sessions.
	ActiveCaptures metric.Int64UpDownCounter

	// InFlightSearches tracks searches currently being routed.
	InFlightSearches metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for a
// voice interaction: sub-second for local stages, up to tens of seconds for
// LLM round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CaptureDuration, err = m.Float64Histogram("cinevox.capture.duration",
		metric.WithDescription("Length of a speech capture session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ResolveDuration, err = m.Float64Histogram("cinevox.resolve.duration",
		metric.WithDescription("Latency of LLM intent resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiscoveryDuration, err = m.Float64Histogram("cinevox.discovery.duration",
		metric.WithDescription("Latency of AI-assisted discovery."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchDuration, err = m.Float64Histogram("cinevox.search.duration",
		metric.WithDescription("Latency of catalog searches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("cinevox.utterances",
		metric.WithDescription("Total routed utterances by intent and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("cinevox.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.TokensUsed, err = m.Int64Counter("cinevox.tokens.used",
		metric.WithDescription("Total LLM tokens by direction."),
	); err != nil {
		return nil, err
	}
	if met.RateLimited, err = m.Int64Counter("cinevox.discovery.rate_limited",
		metric.WithDescription("Discovery requests denied by the budget guard."),
	); err != nil {
		return nil, err
	}
	if met.DiscoveryCostUSD, err = m.Float64Counter("cinevox.discovery.cost_usd",
		metric.WithDescription("Accumulated discovery cost in USD."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("cinevox.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCaptures, err = m.Int64UpDownCounter("cinevox.active_captures",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.InFlightSearches, err = m.Int64UpDownCounter("cinevox.in_flight_searches",
		metric.WithDescription("Searches currently being routed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("cinevox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records one routed utterance with the standard attribute
// set.
func (m *Metrics) RecordUtterance(ctx context.Context, intent, outcome string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordTokens records prompt and completion token usage for one LLM call.
func (m *Metrics) RecordTokens(ctx context.Context, prompt, completion int) {
	if prompt > 0 {
		m.TokensUsed.Add(ctx, int64(prompt),
			metric.WithAttributes(attribute.String("direction", "prompt")),
		)
	}
	if completion > 0 {
		m.TokensUsed.Add(ctx, int64(completion),
			metric.WithAttributes(attribute.String("direction", "completion")),
		)
	}
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
