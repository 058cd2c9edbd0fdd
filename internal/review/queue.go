// Package review implements the human verification queue: the holding area
// for aggregates the pipeline could not resolve automatically. Confirm and
// reject paths (single and bulk) run as optimistic status transitions on
// the aggregate store, so overlapping review actions cannot race into
// inconsistent results.
package review

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kozaktomas/face-attend/internal/facematch"
	"github.com/kozaktomas/face-attend/internal/store"
)

// ErrAlreadyResolved is returned when a resolution targets an aggregate that
// is no longer awaiting review. A benign conflict (double-click, concurrent
// bulk action), not a crash: the earlier decision stands untouched.
var ErrAlreadyResolved = errors.New("aggregate already resolved")

// ErrNotFound is returned when the aggregate does not exist.
var ErrNotFound = errors.New("aggregate not found")

// Decision is a human verdict on an AWAITING_REVIEW aggregate.
type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a decision value from a request.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionConfirm:
		return DecisionConfirm, nil
	case DecisionReject:
		return DecisionReject, nil
	}
	return "", fmt.Errorf("invalid decision %q", s)
}

func (d Decision) status() store.AggregateStatus {
	if d == DecisionConfirm {
		return store.StatusConfirmed
	}
	return store.StatusRejected
}

// Queue provides the review operations over persisted aggregates.
type Queue struct {
	aggs   store.AggregateStore
	metric facematch.Metric
}

// NewQueue creates a review queue over an aggregate store.
func NewQueue(aggs store.AggregateStore, metric facematch.Metric) *Queue {
	return &Queue{aggs: aggs, metric: metric}
}

// ListPending returns the aggregates awaiting a human decision for a
// session, best score first so the most-likely-correct candidates are
// reviewed before the doubtful ones.
func (q *Queue) ListPending(ctx context.Context, sessionID string) ([]store.SessionAggregate, error) {
	pending, err := q.aggs.ListByStatus(ctx, sessionID, store.StatusAwaitingReview)
	if err != nil {
		return nil, fmt.Errorf("list pending review: %w", err)
	}
	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if a.BestScore != b.BestScore {
			return q.metric.Better(a.BestScore, b.BestScore)
		}
		return a.PersonID < b.PersonID
	})
	return pending, nil
}

// Resolve applies a human decision to a single aggregate. Fails with
// ErrAlreadyResolved when the aggregate is not currently AWAITING_REVIEW;
// the guard makes double-submission harmless.
func (q *Queue) Resolve(ctx context.Context, aggregateID string, decision Decision, actor string) (*store.SessionAggregate, error) {
	ok, err := q.aggs.TransitionStatus(ctx, aggregateID, store.StatusAwaitingReview, decision.status(), actor)
	if err != nil {
		return nil, fmt.Errorf("resolve aggregate: %w", err)
	}

	agg, getErr := q.aggs.GetAggregate(ctx, aggregateID)
	if getErr != nil {
		return nil, fmt.Errorf("load resolved aggregate: %w", getErr)
	}
	if agg == nil {
		return nil, ErrNotFound
	}
	if !ok {
		return nil, fmt.Errorf("%w: aggregate %s is %s", ErrAlreadyResolved, aggregateID, agg.Status)
	}
	return agg, nil
}

// BulkResolve applies the same decision to every aggregate currently
// awaiting review in the session. Aggregates resolved between listing and
// applying (a concurrent individual Resolve) are skipped, never
// overwritten. Returns the aggregates this call resolved.
func (q *Queue) BulkResolve(ctx context.Context, sessionID string, decision Decision, actor string) ([]store.SessionAggregate, error) {
	pending, err := q.ListPending(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	resolved := make([]store.SessionAggregate, 0, len(pending))
	for _, agg := range pending {
		ok, err := q.aggs.TransitionStatus(ctx, agg.ID, store.StatusAwaitingReview, decision.status(), actor)
		if err != nil {
			return resolved, fmt.Errorf("bulk resolve aggregate %s: %w", agg.ID, err)
		}
		if !ok {
			continue // resolved individually in the meantime
		}
		agg.Status = decision.status()
		agg.ResolvedBy = actor
		resolved = append(resolved, agg)
	}
	return resolved, nil
}
