// Package session maintains the live per-session aggregation state: one
// evolving decision aggregate per candidate person, upgraded only by
// repeated or stronger evidence. The tracker owns every aggregate until a
// terminal status is reached; after that ownership passes to the
// attendance record manager.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attend/internal/facematch"
	"github.com/kozaktomas/face-attend/internal/store"
)

// Config holds the aggregation parameters.
type Config struct {
	Thresholds facematch.Thresholds
	Metric     facematch.Metric
	// MinObservations is the number of frames required before a CONFIDENT
	// aggregate may auto-resolve. Dampens single-frame false positives.
	MinObservations int
	// IdleTimeout closes sessions that never received an explicit close
	// signal, so aggregates cannot stay PENDING indefinitely.
	IdleTimeout time.Duration
}

// Observation is one classified frame decision applied to a session.
type Observation struct {
	PersonID string
	Score    float64
	Band     facematch.Band
	At       time.Time
}

// Summary describes the current state of a live session.
type Summary struct {
	SessionID     string
	Observations  int
	UnknownFrames int
	Aggregates    []store.SessionAggregate
	LastActivity  time.Time
	Open          bool
}

// ClosedSession is the outcome of closing one session.
type ClosedSession struct {
	SessionID     string
	Aggregates    []store.SessionAggregate
	UnknownFrames int
}

type liveSession struct {
	mu            sync.Mutex
	aggregates    map[string]*store.SessionAggregate // keyed by person ID
	observations  int
	unknownFrames int
	lastActivity  time.Time
}

// Tracker holds all live sessions. Frames for different sessions proceed in
// parallel; frames within a session are serialized on the session lock so
// the monotonic-confidence rule sees observations in order.
type Tracker struct {
	mu       sync.Mutex
	cfg      Config
	sessions map[string]*liveSession
}

// NewTracker creates an empty tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.MinObservations < 1 {
		cfg.MinObservations = 1
	}
	return &Tracker{cfg: cfg, sessions: make(map[string]*liveSession)}
}

func (t *Tracker) session(id string, create bool) *liveSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok && create {
		s = &liveSession{
			aggregates:   make(map[string]*store.SessionAggregate),
			lastActivity: time.Now(),
		}
		t.sessions[id] = s
	}
	return s
}

// Apply folds one observation into the session state. NO_MATCH frames are
// discarded (counted only as unknown-face events, no aggregate is created).
// Returns a copy of the updated aggregate and whether this observation
// auto-confirmed it. The returned copy carries AUTO_CONFIRMED but the live
// aggregate stays PENDING until Confirm: the caller persists and finalizes
// first, so a failed write leaves the aggregate retryable instead of
// terminal in memory only.
func (t *Tracker) Apply(sessionID string, obs Observation) (*store.SessionAggregate, bool) {
	s := t.session(sessionID, true)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observations++
	if obs.At.IsZero() {
		obs.At = time.Now()
	}
	s.lastActivity = obs.At

	if obs.Band == facematch.BandNoMatch || obs.PersonID == "" {
		s.unknownFrames++
		return nil, false
	}

	agg, ok := s.aggregates[obs.PersonID]
	if !ok {
		agg = &store.SessionAggregate{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			PersonID:  obs.PersonID,
			BestScore: obs.Score,
			Band:      obs.Band,
			Status:    store.StatusPending,
			CreatedAt: obs.At,
		}
		s.aggregates[obs.PersonID] = agg
	}

	if agg.Status.Terminal() {
		// Already resolved within this session; nothing left to learn.
		copied := *agg
		return &copied, false
	}

	agg.ObservationCount++
	agg.UpdatedAt = obs.At
	if t.cfg.Metric.Better(obs.Score, agg.BestScore) {
		agg.BestScore = obs.Score
	}
	// Band is recomputed from the best score only, so a noisy uncertain
	// frame after a confident identification can never downgrade it.
	if band := facematch.Classify(agg.BestScore, t.cfg.Thresholds, t.cfg.Metric); band.Stronger(agg.Band) {
		agg.Band = band
	}

	copied := *agg
	auto := false
	if agg.Status == store.StatusPending && agg.Band == facematch.BandConfident && agg.ObservationCount >= t.cfg.MinObservations {
		copied.Status = store.StatusAutoConfirmed
		auto = true
	}
	return &copied, auto
}

// Confirm marks an auto-confirmed aggregate terminal once its persisted
// state exists. Until then the aggregate is still PENDING and the next
// frame triggers the auto-confirmation again.
func (t *Tracker) Confirm(sessionID, personID string) {
	s := t.session(sessionID, false)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if agg, ok := s.aggregates[personID]; ok && agg.Status == store.StatusPending {
		agg.Status = store.StatusAutoConfirmed
	}
}

// Summary returns a snapshot of the session state without mutating it.
func (t *Tracker) Summary(sessionID string) *Summary {
	s := t.session(sessionID, false)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := &Summary{
		SessionID:     sessionID,
		Observations:  s.observations,
		UnknownFrames: s.unknownFrames,
		LastActivity:  s.lastActivity,
		Open:          true,
	}
	for _, agg := range s.aggregates {
		sum.Aggregates = append(sum.Aggregates, *agg)
	}
	return sum
}

// Close forces every remaining PENDING aggregate to resolve: anything not
// auto-confirmed (uncertain, or confident but under the minimum observation
// count) moves to AWAITING_REVIEW. The returned aggregates are the caller's
// to persist; the session stays in the tracker until Remove, so a close
// whose persistence failed can simply be retried. Re-closing is idempotent.
func (t *Tracker) Close(sessionID string) *ClosedSession {
	s := t.session(sessionID, false)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	closed := &ClosedSession{SessionID: sessionID, UnknownFrames: s.unknownFrames}
	now := time.Now()
	for _, agg := range s.aggregates {
		if agg.Status == store.StatusPending {
			agg.Status = store.StatusAwaitingReview
			agg.UpdatedAt = now
		}
		closed.Aggregates = append(closed.Aggregates, *agg)
	}
	return closed
}

// Remove drops a session from the tracker. Called after the closed
// session's aggregates are safely persisted.
func (t *Tracker) Remove(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// CloseIdle closes every session whose last activity is older than the
// configured idle timeout. Returns the closed sessions, if any; they stay
// tracked until the caller persists them and calls Remove.
func (t *Tracker) CloseIdle(now time.Time) []*ClosedSession {
	if t.cfg.IdleTimeout <= 0 {
		return nil
	}

	t.mu.Lock()
	var expired []string
	for id, s := range t.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastActivity) > t.cfg.IdleTimeout
		s.mu.Unlock()
		if idle {
			expired = append(expired, id)
		}
	}
	t.mu.Unlock()

	var closed []*ClosedSession
	for _, id := range expired {
		if c := t.Close(id); c != nil {
			closed = append(closed, c)
		}
	}
	return closed
}

// IsOpen reports whether a session is still live in the tracker.
func (t *Tracker) IsOpen(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[sessionID]
	return ok
}

// OpenSessions returns the IDs of all currently tracked sessions.
func (t *Tracker) OpenSessions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	return ids
}
