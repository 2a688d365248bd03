// Package mock provides a test double for the budget.Ledger interface.
package mock

import (
	"context"
	"sync"

	"github.com/cinevoxhq/cinevox/internal/budget"
)

// Ledger is a mock implementation of budget.Ledger.
type Ledger struct {
	mu sync.Mutex

	// StatusResult and StatusErr control Status.
	StatusResult *budget.Status
	StatusErr    error

	// Decision and DecisionErr control CanMakeRequest.
	Decision    *budget.Decision
	DecisionErr error

	// RecordErr, if non-nil, is returned by RecordRequest.
	RecordErr error

	// RecordFunc, if set, is invoked by RecordRequest after recording.
	RecordFunc func(rec budget.UsageRecord)

	records       []budget.UsageRecord
	decisionCalls int
}

// Compile-time interface check.
var _ budget.Ledger = (*Ledger)(nil)

// Status implements budget.Ledger.
func (l *Ledger) Status(ctx context.Context) (*budget.Status, error) {
	if l.StatusErr != nil {
		return nil, l.StatusErr
	}
	if l.StatusResult != nil {
		return l.StatusResult, nil
	}
	return &budget.Status{}, nil
}

// CanMakeRequest implements budget.Ledger.
func (l *Ledger) CanMakeRequest(ctx context.Context) (*budget.Decision, error) {
	l.mu.Lock()
	l.decisionCalls++
	l.mu.Unlock()
	if l.DecisionErr != nil {
		return nil, l.DecisionErr
	}
	if l.Decision != nil {
		return l.Decision, nil
	}
	return &budget.Decision{Allowed: true}, nil
}

// RecordRequest implements budget.Ledger.
func (l *Ledger) RecordRequest(ctx context.Context, rec budget.UsageRecord) error {
	l.mu.Lock()
	l.records = append(l.records, rec)
	fn := l.RecordFunc
	l.mu.Unlock()
	if fn != nil {
		fn(rec)
	}
	return l.RecordErr
}

// Records returns a snapshot of recorded usage. Thread-safe.
func (l *Ledger) Records() []budget.UsageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]budget.UsageRecord, len(l.records))
	copy(out, l.records)
	return out
}

// DecisionCalls returns how many times CanMakeRequest was invoked.
func (l *Ledger) DecisionCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decisionCalls
}
