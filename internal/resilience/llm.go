package resilience

import (
	"context"

	"github.com/cinevoxhq/cinevox/pkg/provider/llm"
)

// LLMFailover implements [llm.Provider] with automatic failover across
// multiple model backends. The resolver and the discovery orchestrator use it
// like any other provider; a tripped primary is bypassed in favour of the
// next healthy fallback.
type LLMFailover struct {
	group *Failover[llm.Provider]
}

var _ llm.Provider = (*LLMFailover)(nil)

// NewLLMFailover creates an [LLMFailover] with primary as the preferred
// backend.
func NewLLMFailover(primary llm.Provider, name string, cfg FailoverConfig) *LLMFailover {
	return &LLMFailover{group: NewFailover(primary, name, cfg)}
}

// Add registers an additional backend, tried after the primary.
func (f *LLMFailover) Add(name string, provider llm.Provider) {
	f.group.Add(name, provider)
}

// Complete sends the request to the first healthy backend and returns its
// response.
func (f *LLMFailover) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Try(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
