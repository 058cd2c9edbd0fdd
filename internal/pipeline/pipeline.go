// Package pipeline wires the matching core together: probe embeddings are
// scored against the enrollment store, classified into confidence bands,
// folded into session aggregates, and finally turned into attendance
// records either automatically or through the human review queue.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/facematch"
	"github.com/kozaktomas/face-attend/internal/review"
	"github.com/kozaktomas/face-attend/internal/session"
	"github.com/kozaktomas/face-attend/internal/store"
)

// Config holds the pipeline parameters, validated at startup.
type Config struct {
	Thresholds      facematch.Thresholds
	Metric          facematch.Metric
	MinObservations int
	EmbeddingDim    int
	// SessionIdleTimeout force-closes sessions that never received an
	// explicit close signal. Zero disables the janitor.
	SessionIdleTimeout time.Duration
	// ShortlistLimit bounds how many candidate persons the HNSW index
	// returns per probe. Zero disables shortlisting even when an index
	// is attached.
	ShortlistLimit int
}

// MatchDecision is the per-frame outcome returned to the caller.
type MatchDecision struct {
	ProbeID    string         `json:"probe_id"`
	SessionID  string         `json:"session_id"`
	PersonID   string         `json:"person_id,omitempty"` // empty when no candidate cleared the floor
	Score      float64        `json:"score"`
	Band       facematch.Band `json:"band"`
	ObservedAt time.Time      `json:"observed_at"`
	Resolved   bool           `json:"resolved"` // aggregate auto-confirmed by this frame
}

// Pipeline is the face-attendance decision engine.
type Pipeline struct {
	cfg       Config
	scorer    *facematch.Scorer
	tracker   *session.Tracker
	queue     *review.Queue
	finalizer *attendance.Finalizer
	encodings store.EncodingReader
	aggs      store.AggregateStore
	index     *store.EncodingIndex // optional candidate shortlist
	roster    attendance.Roster    // optional absence derivation
}

// New assembles a pipeline. index and roster may be nil.
func New(cfg Config, encodings store.EncodingReader, aggs store.AggregateStore, records store.RecordStore, index *store.EncodingIndex, roster attendance.Roster) (*Pipeline, error) {
	if err := cfg.Thresholds.Validate(cfg.Metric); err != nil {
		return nil, err
	}
	if cfg.MinObservations < 1 {
		cfg.MinObservations = 1
	}

	return &Pipeline{
		cfg:    cfg,
		scorer: facematch.NewScorer(cfg.Metric, cfg.EmbeddingDim),
		tracker: session.NewTracker(session.Config{
			Thresholds:      cfg.Thresholds,
			Metric:          cfg.Metric,
			MinObservations: cfg.MinObservations,
			IdleTimeout:     cfg.SessionIdleTimeout,
		}),
		queue:     review.NewQueue(aggs, cfg.Metric),
		finalizer: attendance.NewFinalizer(records),
		encodings: encodings,
		aggs:      aggs,
		index:     index,
		roster:    roster,
	}, nil
}

// references resolves the reference set for one probe. With an index
// attached it shortlists candidate persons first and loads only their
// encodings; otherwise it scores against a full snapshot. Either way the
// returned slice is a consistent snapshot for this call.
func (p *Pipeline) references(ctx context.Context, probe []float32) ([]store.StoredEncoding, error) {
	if p.index != nil && p.cfg.ShortlistLimit > 0 && p.index.Count() > 0 {
		persons, err := p.index.ShortlistPersons(probe, p.cfg.ShortlistLimit)
		if err == nil && len(persons) > 0 {
			return p.encodings.GetByPersons(ctx, persons)
		}
		// Index trouble is not fatal; fall through to the exact path.
	}
	return p.encodings.Snapshot(ctx)
}

// SubmitProbe scores one probe embedding for a session and folds the
// decision into the session aggregate. Auto-confirmed aggregates are
// persisted and finalized into PRESENT records before returning. On any
// error no aggregate mutation is visible.
func (p *Pipeline) SubmitProbe(ctx context.Context, sessionID string, vector []float32) (*MatchDecision, error) {
	refs, err := p.references(ctx, vector)
	if err != nil {
		return nil, fmt.Errorf("load reference encodings: %w", err)
	}

	scorerRefs := make([]facematch.Reference, len(refs))
	for i, enc := range refs {
		scorerRefs[i] = facematch.Reference{PersonID: enc.PersonID, Embedding: enc.Embedding}
	}

	result, err := p.scorer.Score(vector, scorerRefs)
	if err != nil {
		return nil, err
	}

	decision := &MatchDecision{
		ProbeID:    uuid.NewString(),
		SessionID:  sessionID,
		Score:      result.BestScore,
		Band:       facematch.BandNoMatch,
		ObservedAt: time.Now(),
	}
	if result.BestPersonID != "" {
		decision.Band = facematch.Classify(result.BestScore, p.cfg.Thresholds, p.cfg.Metric)
		if decision.Band != facematch.BandNoMatch {
			decision.PersonID = result.BestPersonID
		}
	}

	agg, auto := p.tracker.Apply(sessionID, session.Observation{
		PersonID: decision.PersonID,
		Score:    decision.Score,
		Band:     decision.Band,
		At:       decision.ObservedAt,
	})
	if auto {
		// Persist before the tracker state turns terminal: a failed write
		// leaves the aggregate PENDING so the next frame retries the
		// auto-confirmation instead of stranding it unfinalized.
		if err := p.persistAndFinalize(ctx, *agg); err != nil {
			return nil, err
		}
		p.tracker.Confirm(sessionID, agg.PersonID)
		decision.Resolved = true
	}
	return decision, nil
}

// persistAndFinalize writes a terminal aggregate and its attendance record.
func (p *Pipeline) persistAndFinalize(ctx context.Context, agg store.SessionAggregate) error {
	if err := p.aggs.SaveAggregate(ctx, agg); err != nil {
		return fmt.Errorf("persist aggregate: %w", err)
	}
	if _, err := p.finalizer.FinalizeAggregate(ctx, agg); err != nil {
		return err
	}
	return nil
}

// CloseSession ends a session explicitly. Remaining PENDING aggregates
// resolve per the aggregation rules (AWAITING_REVIEW unless auto-confirmed
// earlier) and are persisted. Returns every persisted aggregate for the
// session. When nothing is left to review and a roster is attached,
// absences are derived immediately.
func (p *Pipeline) CloseSession(ctx context.Context, sessionID string) ([]store.SessionAggregate, error) {
	closed := p.tracker.Close(sessionID)
	if closed != nil {
		// The session leaves the tracker only after every aggregate is
		// persisted; a failed save keeps it live so the close can be retried.
		for _, agg := range closed.Aggregates {
			if err := p.aggs.SaveAggregate(ctx, agg); err != nil {
				return nil, fmt.Errorf("persist aggregate on close: %w", err)
			}
		}
		p.tracker.Remove(sessionID)
		if closed.UnknownFrames > 0 {
			log.Printf("session %s closed with %d unknown-face frames", sessionID, closed.UnknownFrames)
		}
	}

	if err := p.maybeDeriveAbsences(ctx, sessionID); err != nil {
		return nil, err
	}
	return p.aggs.ListBySession(ctx, sessionID)
}

// ListSessionAggregates returns every persisted aggregate for a session.
func (p *Pipeline) ListSessionAggregates(ctx context.Context, sessionID string) ([]store.SessionAggregate, error) {
	return p.aggs.ListBySession(ctx, sessionID)
}

// ListPendingReview returns the aggregates awaiting human review for a
// session, most-likely-correct first.
func (p *Pipeline) ListPendingReview(ctx context.Context, sessionID string) ([]store.SessionAggregate, error) {
	return p.queue.ListPending(ctx, sessionID)
}

// ResolveReview applies a human decision to one aggregate. Confirmations
// produce a PRESENT record; rejections produce none. Returns the resolved
// aggregate and the record, which is nil for rejections.
func (p *Pipeline) ResolveReview(ctx context.Context, aggregateID string, decision review.Decision, actor string) (*store.SessionAggregate, *store.AttendanceRecord, error) {
	agg, err := p.queue.Resolve(ctx, aggregateID, decision, actor)
	if err != nil {
		return nil, nil, err
	}

	rec, err := p.finalizer.FinalizeAggregate(ctx, *agg)
	if err != nil {
		return agg, nil, err
	}
	if err := p.maybeDeriveAbsences(ctx, agg.SessionID); err != nil {
		return agg, rec, err
	}
	return agg, rec, nil
}

// BulkResolveReview applies one decision to every pending aggregate in the
// session, skipping any resolved concurrently. Returns the records created
// (none for rejections).
func (p *Pipeline) BulkResolveReview(ctx context.Context, sessionID string, decision review.Decision, actor string) ([]store.AttendanceRecord, error) {
	resolved, err := p.queue.BulkResolve(ctx, sessionID, decision, actor)
	if err != nil {
		return nil, err
	}

	var records []store.AttendanceRecord
	for _, agg := range resolved {
		rec, err := p.finalizer.FinalizeAggregate(ctx, agg)
		if err != nil {
			return records, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	if err := p.maybeDeriveAbsences(ctx, sessionID); err != nil {
		return records, err
	}
	return records, nil
}

// maybeDeriveAbsences emits ABSENT records once a session is fully settled:
// closed, with no aggregates left in review.
func (p *Pipeline) maybeDeriveAbsences(ctx context.Context, sessionID string) error {
	if p.roster == nil || p.tracker.IsOpen(sessionID) {
		return nil
	}
	pending, err := p.aggs.ListByStatus(ctx, sessionID, store.StatusAwaitingReview)
	if err != nil {
		return fmt.Errorf("check pending review: %w", err)
	}
	if len(pending) > 0 {
		return nil
	}
	if _, err := p.finalizer.DeriveAbsences(ctx, sessionID, p.roster); err != nil {
		return err
	}
	return nil
}

// SessionSummary reports the live state of a session, or nil when the
// session is not open.
func (p *Pipeline) SessionSummary(sessionID string) *session.Summary {
	return p.tracker.Summary(sessionID)
}

// Records lists the finalized attendance records for a session.
func (p *Pipeline) Records(ctx context.Context, sessionID string) ([]store.AttendanceRecord, error) {
	return p.finalizer.Records(ctx, sessionID)
}

// Run drives the idle-session janitor until the context is cancelled.
// Sessions that outlive the idle timeout are closed exactly as if
// CloseSession had been called.
func (p *Pipeline) Run(ctx context.Context) {
	if p.cfg.SessionIdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, closed := range p.tracker.CloseIdle(now) {
				log.Printf("closing idle session %s (%d aggregates)", closed.SessionID, len(closed.Aggregates))
				persisted := true
				for _, agg := range closed.Aggregates {
					if err := p.aggs.SaveAggregate(ctx, agg); err != nil {
						persisted = false
						log.Printf("persist aggregate for idle session %s: %v", closed.SessionID, err)
					}
				}
				if !persisted {
					continue // session stays tracked, retried on the next tick
				}
				p.tracker.Remove(closed.SessionID)
				if err := p.maybeDeriveAbsences(ctx, closed.SessionID); err != nil {
					log.Printf("derive absences for idle session %s: %v", closed.SessionID, err)
				}
			}
		}
	}
}
