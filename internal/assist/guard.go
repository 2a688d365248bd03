package assist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinevoxhq/cinevox/internal/budget"
)

const defaultCheckTimeout = 3 * time.Second

// Guard asks the remote budget ledger whether a discovery request may
// proceed.
//
// The guard fails open: when the ledger itself is unreachable or times out,
// the answer is "allowed" with a diagnostic reason. Budget-check
// unavailability must never block the user-facing feature; this is the one
// place in the pipeline where an error is deliberately absorbed into a
// success path.
type Guard struct {
	ledger  budget.Ledger
	logger  *slog.Logger
	timeout time.Duration
}

// GuardOption is a functional option for Guard.
type GuardOption func(*Guard)

// WithCheckTimeout bounds the ledger round trip. Default is 3s.
func WithCheckTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.timeout = d
	}
}

// WithGuardLogger sets the logger for fail-open diagnostics.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = l
	}
}

// NewGuard creates a Guard over the given ledger. A nil ledger is allowed
// and makes every check fail open.
func NewGuard(ledger budget.Ledger, opts ...GuardOption) *Guard {
	g := &Guard{
		ledger:  ledger,
		logger:  slog.Default(),
		timeout: defaultCheckTimeout,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// CheckRateLimit returns the ledger's decision. It never returns an error:
// ledger failures produce a permissive decision with the failure in Reason.
func (g *Guard) CheckRateLimit(ctx context.Context) *budget.Decision {
	if g.ledger == nil {
		return &budget.Decision{
			Allowed: true,
			Reason:  "budget check unavailable: no ledger configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	d, err := g.ledger.CanMakeRequest(ctx)
	if err != nil {
		g.logger.Warn("budget check failed, allowing request", "error", err)
		return &budget.Decision{
			Allowed: true,
			Reason:  fmt.Sprintf("budget check unavailable: %v", err),
		}
	}
	return d
}
